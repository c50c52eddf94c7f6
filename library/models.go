package library

import (
	"time"

	"github.com/google/uuid"
)

// BookRecord is one catalog row: a title, its bibliographic metadata, and how
// many copies are currently available for borrowing. The YAML tags cover seed
// catalog files, the JSON tags cover `find --format json` output.
type BookRecord struct {
	Title           string `json:"title" yaml:"title"`
	Author          string `json:"author" yaml:"author"`
	PublicationYear int    `json:"publication_year" yaml:"publication_year"`
	AvailableCopies int    `json:"available_copies" yaml:"available_copies"`
}

// CopyState is the lifecycle state of one physical copy, derived from its
// borrowed/returned flags.
type CopyState string

const (
	StateAvailable CopyState = "available"
	StateBorrowed  CopyState = "borrowed"
	StateReturned  CopyState = "returned"
)

// BookCopy is one physical copy of a title. Copies are created once at
// startup, one per available-copy unit in the catalog, and never destroyed;
// the simulation overwrites their state fields in place, day after day.
type BookCopy struct {
	ID         uuid.UUID
	Title      string
	Author     string
	ReturnTime time.Time // due minute, meaningful only while borrowed
	Returned   bool
	Borrowed   bool
}

// State maps the flags to a single lifecycle state. A copy that is not
// borrowed is available no matter what the returned flag says; availability
// accounting lives in the catalog store's copy counts, not here.
func (c *BookCopy) State() CopyState {
	switch {
	case !c.Borrowed:
		return StateAvailable
	case c.Returned:
		return StateReturned
	default:
		return StateBorrowed
	}
}
