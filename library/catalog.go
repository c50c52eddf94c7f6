package library

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk YAML shape the seed command consumes:
//
//	books:
//	  - title: Dune
//	    author: Frank Herbert
//	    publication_year: 1965
//	    available_copies: 3
type CatalogFile struct {
	Books []BookRecord `yaml:"books"`
}

// ReadCatalogFile parses a YAML catalog file and validates the records
// against the store schema.
func ReadCatalogFile(path string) ([]BookRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	if err := ValidateRecords(f.Books); err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return f.Books, nil
}

// ValidateRecords rejects record sets the store schema would not accept:
// empty or duplicate titles, empty authors, non-positive publication years,
// negative copy counts.
func ValidateRecords(records []BookRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if r.Title == "" {
			return fmt.Errorf("record %d: title must not be empty", i)
		}
		if _, dup := seen[r.Title]; dup {
			return fmt.Errorf("record %d: duplicate title %q", i, r.Title)
		}
		seen[r.Title] = struct{}{}

		if r.Author == "" {
			return fmt.Errorf("record %d (%s): author must not be empty", i, r.Title)
		}
		if r.PublicationYear <= 0 {
			return fmt.Errorf("record %d (%s): publication_year must be positive", i, r.Title)
		}
		if r.AvailableCopies < 0 {
			return fmt.Errorf("record %d (%s): available_copies must not be negative", i, r.Title)
		}
	}
	return nil
}
