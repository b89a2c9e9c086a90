package store

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"github.com/hb9tf/bliss/hit"
)

// MySQL persists hits to a pre-opened MySQL connection, grounded in
// export/mysql.go. Unlike SQLite, the teacher's MySQL exporter takes an
// already-open *sql.DB rather than a DSN string, since connection pooling
// across repeated exports matters more for a networked database.
type MySQL struct {
	DB *sql.DB
}

// WriteHits drains hits into m.DB.
func (m *MySQL) WriteHits(ctx context.Context, hits <-chan hit.Hit) error {
	return writeHits(ctx, m.DB, hits)
}

// ReadHits loads every persisted hit from m.DB.
func (m *MySQL) ReadHits() ([]hit.Hit, error) {
	return readHits(m.DB)
}
