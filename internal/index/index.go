package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mattn/go-sqlite3"

	"github.com/marianozunino/vanish/internal/config"
	"github.com/marianozunino/vanish/internal/model"
)

var (
	// ErrIDTaken is returned by Put when a record with the same token
	// already exists. Token uniqueness is enforced here, not assumed.
	ErrIDTaken = errors.New("share token already exists")

	// ErrRecordNotFound is returned by Get for unknown tokens.
	ErrRecordNotFound = errors.New("no record found for token")
)

// Index is the durable metadata index, a SQLite-backed mapping from share
// token to record. Single-key operations are atomic; there are no
// cross-key transactions.
type Index struct {
	*sql.DB
}

// New opens (and if needed creates) the SQLite metadata index
func New(cfg *config.Config) (*Index, error) {
	db, err := sql.Open("sqlite3", cfg.SQLitePath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Base schema; migrations track the same table for ops tooling
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, err
	}

	return &Index{db}, nil
}

// Close closes the database connection
func (ix *Index) Close() error {
	return ix.DB.Close()
}

// Put inserts a new record. It fails with ErrIDTaken when the token is
// already present, whatever the existing record's status: a tombstone
// occupies its token until purged.
func (ix *Index) Put(rec *model.ShareRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	stmt, err := ix.Prepare(`INSERT INTO records (id, data) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(rec.ID(), string(value)); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrIDTaken, rec.ID())
		}
		return err
	}

	return nil
}

// Get retrieves the record for a token
func (ix *Index) Get(token string) (model.ShareRecord, error) {
	var rec model.ShareRecord
	var data string

	err := ix.QueryRow("SELECT data FROM records WHERE id = ?", token).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return rec, fmt.Errorf("%w: %s", ErrRecordNotFound, token)
		}
		return rec, err
	}

	err = json.Unmarshal([]byte(data), &rec)
	return rec, err
}

// MarkDeleted transitions a record to the deleted state, keeping the row
// as a tombstone. Marking an absent or already-deleted record is not an
// error.
func (ix *Index) MarkDeleted(token string) error {
	rec, err := ix.Get(token)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if rec.Status == model.StatusDeleted {
		return nil
	}

	rec.Status = model.StatusDeleted
	value, err := json.Marshal(&rec)
	if err != nil {
		return err
	}

	stmt, err := ix.Prepare(`UPDATE records SET data = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(string(value), token)
	return err
}

// Purge physically removes a record row. Purging an absent row is not an
// error.
func (ix *Index) Purge(token string) error {
	stmt, err := ix.Prepare("DELETE FROM records WHERE id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(token)
	return err
}

// Scan returns every record matching the predicate that was present when
// the scan started. Rows that fail to decode are logged and skipped so a
// single corrupt row never takes out a sweep pass.
func (ix *Index) Scan(pred func(model.ShareRecord) bool) ([]model.ShareRecord, error) {
	rows, err := ix.Query("SELECT data FROM records")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []model.ShareRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var rec model.ShareRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			log.Printf("Warning: Skipping undecodable record row: %v", err)
			continue
		}

		if pred(rec) {
			matched = append(matched, rec)
		}
	}

	return matched, rows.Err()
}
