package library

import "github.com/google/uuid"

// Inventory tracks every physical copy materialized from the catalog at
// startup. It has no persistence of its own; copy counts are mirrored in the
// Store, and state changes happen through the *BookCopy pointers it hands
// out.
type Inventory struct {
	copies []*BookCopy
}

// NewInventory materializes one BookCopy per available-copy unit, in record
// order. A nil or empty record set yields a usable empty inventory.
func NewInventory(records []BookRecord) *Inventory {
	inv := &Inventory{}
	for _, r := range records {
		for i := 0; i < r.AvailableCopies; i++ {
			inv.copies = append(inv.copies, &BookCopy{
				ID:     uuid.New(),
				Title:  r.Title,
				Author: r.Author,
			})
		}
	}
	return inv
}

// Copies returns all tracked copies. Callers mutate state through the
// returned pointers.
func (inv *Inventory) Copies() []*BookCopy {
	return inv.copies
}

// ByTitle returns every copy of one title.
func (inv *Inventory) ByTitle(title string) []*BookCopy {
	var matches []*BookCopy
	for _, c := range inv.copies {
		if c.Title == title {
			matches = append(matches, c)
		}
	}
	return matches
}

// Len returns the number of tracked copies.
func (inv *Inventory) Len() int {
	return len(inv.copies)
}
