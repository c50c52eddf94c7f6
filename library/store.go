package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrStoreUnavailable marks a catalog store that is missing, corrupt, or
	// otherwise unreadable. The simulation logs it and runs with an empty
	// catalog instead of halting.
	ErrStoreUnavailable = errors.New("catalog store unavailable")

	// ErrRecordNotFound marks a copy-count mutation against a title that is
	// not in the catalog.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoCopies marks a decrement when every copy of the title is already
	// out.
	ErrNoCopies = errors.New("no copies available")
)

// Store persists the book catalog in a single SQLite file, one row per title.
// Every copy-count change commits synchronously before the caller proceeds,
// so the file on disk always reflects the last acknowledged mutation.
type Store struct {
	db *sql.DB

	selectCopiesStmt *sql.Stmt
	updateCopiesStmt *sql.Stmt
}

// Open opens (or creates) the catalog store at dbPath, applies schema
// migrations, and prepares the copy-count statements. A file that exists but
// is not a valid store fails wrapping ErrStoreUnavailable.
func Open(dbPath string) (*Store, error) {
	// Create the parent directory on first run.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create store dir: %v", ErrStoreUnavailable, err)
		}
	}

	// busy_timeout keeps concurrent writers from failing fast.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	store := &Store{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return store, nil
}

// Close releases prepared statements and closes the DB.
func (s *Store) Close() error {
	if s.selectCopiesStmt != nil {
		s.selectCopiesStmt.Close()
	}
	if s.updateCopiesStmt != nil {
		s.updateCopiesStmt.Close()
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL so the simulator can write while a find query reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            title TEXT PRIMARY KEY,
            author TEXT NOT NULL,
            publication_year INTEGER NOT NULL,
            available_copies INTEGER NOT NULL CHECK (available_copies >= 0)
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (s *Store) prepareStatements() error {
	var err error
	if s.selectCopiesStmt, err = s.db.Prepare(`SELECT available_copies FROM books WHERE title=?`); err != nil {
		return err
	}
	if s.updateCopiesStmt, err = s.db.Prepare(`UPDATE books SET available_copies=? WHERE title=?`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loading and lookups
// ---------------------------------------------------------------------------

// Load returns every catalog record, ordered by title. A store that cannot
// be read fails wrapping ErrStoreUnavailable; callers log it and continue
// with an empty catalog.
func (s *Store) Load() ([]BookRecord, error) {
	records, err := s.queryRecords(`SELECT title,author,publication_year,available_copies FROM books ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

// FindByTitle returns the record whose title matches exactly, or an empty
// slice.
func (s *Store) FindByTitle(title string) ([]BookRecord, error) {
	return s.queryRecords(`SELECT title,author,publication_year,available_copies FROM books WHERE title=? ORDER BY title`, title)
}

// FindByAuthor returns every record by the given author, or an empty slice.
func (s *Store) FindByAuthor(author string) ([]BookRecord, error) {
	return s.queryRecords(`SELECT title,author,publication_year,available_copies FROM books WHERE author=? ORDER BY title`, author)
}

// FindByYear returns every record published in the given year, or an empty
// slice.
func (s *Store) FindByYear(year int) ([]BookRecord, error) {
	return s.queryRecords(`SELECT title,author,publication_year,available_copies FROM books WHERE publication_year=? ORDER BY title`, year)
}

func (s *Store) queryRecords(query string, args ...any) ([]BookRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []BookRecord{}
	for rows.Next() {
		var r BookRecord
		if err := rows.Scan(&r.Title, &r.Author, &r.PublicationYear, &r.AvailableCopies); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ---------------------------------------------------------------------------
// Copy-count mutations
// ---------------------------------------------------------------------------

// DecrementCopies takes one copy of a title out of circulation and commits
// before returning. Fails wrapping ErrRecordNotFound for unknown titles and
// ErrNoCopies when the count is already zero; the count never goes negative.
func (s *Store) DecrementCopies(title string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	copies, err := s.copiesOf(tx, title)
	if err != nil {
		return err
	}
	if copies == 0 {
		return fmt.Errorf("%w: %q", ErrNoCopies, title)
	}

	if _, err := tx.Stmt(s.updateCopiesStmt).Exec(copies-1, title); err != nil {
		return fmt.Errorf("update copy count: %w", err)
	}
	return tx.Commit()
}

// IncrementCopies puts one copy of a title back into circulation and commits
// before returning. Fails wrapping ErrRecordNotFound for unknown titles.
func (s *Store) IncrementCopies(title string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	copies, err := s.copiesOf(tx, title)
	if err != nil {
		return err
	}

	if _, err := tx.Stmt(s.updateCopiesStmt).Exec(copies+1, title); err != nil {
		return fmt.Errorf("update copy count: %w", err)
	}
	return tx.Commit()
}

func (s *Store) copiesOf(tx *sql.Tx, title string) (int, error) {
	var copies int
	err := tx.Stmt(s.selectCopiesStmt).QueryRow(title).Scan(&copies)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %q", ErrRecordNotFound, title)
	}
	if err != nil {
		return 0, err
	}
	return copies, nil
}

// ---------------------------------------------------------------------------
// Full rewrite
// ---------------------------------------------------------------------------

// ReplaceAll rewrites the entire catalog in one transaction: everything that
// was in the store is gone, the given records are what remains.
func (s *Store) ReplaceAll(records []BookRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM books`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO books(title,author,publication_year,available_copies) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.Title, r.Author, r.PublicationYear, r.AvailableCopies); err != nil {
			return fmt.Errorf("insert %q: %w", r.Title, err)
		}
	}
	return tx.Commit()
}
