package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/relwatch/dbopen"
)

const schema = `CREATE TABLE IF NOT EXISTS cursor (
	name         TEXT PRIMARY KEY,
	last_seen_id TEXT NOT NULL,
	updated_at   INTEGER NOT NULL
)`

// DefaultName is the cursor row used when several watchers do not share a
// database.
const DefaultName = "default"

// SQLiteStore keeps the cursor as one row in an SQLite database. Several
// watchers can share a database by using distinct names.
type SQLiteStore struct {
	db     *sql.DB
	name   string
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path, name string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("cursor: open sqlite: %w", err)
	}
	if name == "" {
		name = DefaultName
	}
	return &SQLiteStore{db: db, name: name, logger: orDefault(logger)}, nil
}

// Load reads the cursor row. A missing row or a query error yields the zero
// Cursor.
func (s *SQLiteStore) Load(ctx context.Context) Cursor {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seen_id FROM cursor WHERE name = ?`, s.name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Debug("cursor: no row, starting fresh", "name", s.name)
		return Cursor{}
	case err != nil:
		s.logger.Warn("cursor: query failed, starting fresh", "name", s.name, "error", err)
		return Cursor{}
	}
	return Cursor{LastSeenID: id}
}

// Save upserts the cursor row.
func (s *SQLiteStore) Save(ctx context.Context, c Cursor) error {
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO cursor (name, last_seen_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_seen_id = excluded.last_seen_id,
			updated_at   = excluded.updated_at`,
		s.name, c.LastSeenID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cursor: save: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
