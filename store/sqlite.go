package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hb9tf/bliss/hit"
)

// SQLite persists hits to a local sqlite3 file, grounded in
// collection/export/sqlite.go.
type SQLite struct {
	DBFile string
}

// WriteHits drains hits into the sqlite3 file at s.DBFile, opening it on
// each call the way the teacher's SQLite.Write does.
func (s *SQLite) WriteHits(ctx context.Context, hits <-chan hit.Hit) error {
	db, err := sql.Open("sqlite3", s.DBFile)
	if err != nil {
		return fmt.Errorf("unable to open sqlite DB %q: %s", s.DBFile, err)
	}
	defer db.Close()
	return writeHits(ctx, db, hits)
}

// ReadHits loads every persisted hit from s.DBFile.
func (s *SQLite) ReadHits() ([]hit.Hit, error) {
	db, err := sql.Open("sqlite3", s.DBFile)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite DB %q: %s", s.DBFile, err)
	}
	defer db.Close()
	return readHits(db)
}
