package cursor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps the cursor in a small JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a FileStore at path. The file need not exist.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: orDefault(logger)}
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the cursor. Absence, empty content or invalid JSON all yield
// the zero Cursor.
func (s *FileStore) Load(_ context.Context) Cursor {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("cursor: no state file, starting fresh", "path", s.path)
		} else {
			s.logger.Warn("cursor: unreadable state file, starting fresh", "path", s.path, "error", err)
		}
		return Cursor{}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		s.logger.Warn("cursor: empty state file, starting fresh", "path", s.path)
		return Cursor{}
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		s.logger.Warn("cursor: malformed state file, starting fresh", "path", s.path, "error", err)
		return Cursor{}
	}
	return c
}

// Save writes the cursor as two-space indented JSON with a trailing newline.
// The content goes to a temporary file in the same directory which is then
// renamed over the target.
func (s *FileStore) Save(_ context.Context, c Cursor) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("cursor: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cursor: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cursor-*.tmp")
	if err != nil {
		return fmt.Errorf("cursor: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("cursor: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cursor: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cursor: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("cursor: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("cursor: rename: %w", err)
	}
	return nil
}
