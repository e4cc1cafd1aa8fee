// CLAUDE:SUMMARY Cursor value and its stores: JSON file (default) and SQLite; Load never fails, Save reports errors.
// Package cursor persists the identifier of the last release that was
// successfully announced.
//
// Load is forgiving: a missing, empty, unreadable or malformed store yields
// the zero Cursor and a warning, never an error. Save is strict.
package cursor

import (
	"context"
	"log/slog"
)

// Cursor is the persisted watcher state.
type Cursor struct {
	LastSeenID string `json:"last_seen_id"`
}

// Seen reports whether id is the release the cursor already points at.
func (c Cursor) Seen(id string) bool {
	return c.LastSeenID == id
}

// Advance returns a copy of c pointing at id.
func (c Cursor) Advance(id string) Cursor {
	c.LastSeenID = id
	return c
}

// Store loads and saves a Cursor.
type Store interface {
	Load(ctx context.Context) Cursor
	Save(ctx context.Context, c Cursor) error
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
