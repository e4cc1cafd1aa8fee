package cursor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"), nil)
	if c := s.Load(context.Background()); c.LastSeenID != "" {
		t.Errorf("got %q, want empty", c.LastSeenID)
	}
}

func TestFileStore_RecoverableContent(t *testing.T) {
	// WHAT: Empty, whitespace-only and malformed files all load as empty.
	// WHY: A damaged state file must never block the run.
	for name, content := range map[string]string{
		"empty":     "",
		"blank":     "  \n\t\n",
		"malformed": "{last_seen_id: oops",
		"wrongtype": `{"last_seen_id": 42}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if c := NewFileStore(path, nil).Load(context.Background()); c.LastSeenID != "" {
				t.Errorf("got %q, want empty", c.LastSeenID)
			}
		})
	}
}

func TestFileStore_UnreadablePath(t *testing.T) {
	// A directory where the file should be.
	dir := t.TempDir()
	if c := NewFileStore(dir, nil).Load(context.Background()); c.LastSeenID != "" {
		t.Errorf("got %q, want empty", c.LastSeenID)
	}
}

func TestFileStore_SaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path, nil)
	if err := s.Save(context.Background(), Cursor{LastSeenID: "january-15-2026-release"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"last_seen_id\": \"january-15-2026-release\"\n}\n"
	if string(data) != want {
		t.Errorf("file content:\ngot  %q\nwant %q", data, want)
	}
}

func TestFileStore_SaveNoHTMLEscape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path, nil)
	if err := s.Save(context.Background(), Cursor{LastSeenID: "r&d-<2026>"}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if want := "{\n  \"last_seen_id\": \"r&d-<2026>\"\n}\n"; string(data) != want {
		t.Errorf("got %q", data)
	}
}

func TestFileStore_RoundTripAndOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewFileStore(path, nil)
	ctx := context.Background()

	if err := s.Save(ctx, Cursor{LastSeenID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, Cursor{LastSeenID: "b"}); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(ctx).LastSeenID; got != "b" {
		t.Errorf("got %q, want b", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestCursor_SeenAdvance(t *testing.T) {
	c := Cursor{LastSeenID: "old"}
	next := c.Advance("new")
	if c.LastSeenID != "old" {
		t.Error("Advance must not mutate the receiver")
	}
	if !next.Seen("new") || next.Seen("old") {
		t.Errorf("Seen: %+v", next)
	}
	if !(Cursor{}).Seen("") {
		t.Error("zero cursor has seen the empty id")
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := OpenSQLite(path, "", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.Load(ctx).LastSeenID; got != "" {
		t.Errorf("fresh store: got %q", got)
	}
	if err := s.Save(ctx, Cursor{LastSeenID: "january-8-2026-release"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, Cursor{LastSeenID: "january-15-2026-release"}); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(ctx).LastSeenID; got != "january-15-2026-release" {
		t.Errorf("got %q", got)
	}
	s.Close()

	// Persisted across reopen; names are isolated.
	s2, err := OpenSQLite(path, DefaultName, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if got := s2.Load(ctx).LastSeenID; got != "january-15-2026-release" {
		t.Errorf("after reopen: got %q", got)
	}

	other, err := OpenSQLite(path, "other-vendor", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	if got := other.Load(ctx).LastSeenID; got != "" {
		t.Errorf("other name: got %q", got)
	}
}

func TestSQLiteStore_LoadAfterClose(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if got := s.Load(context.Background()).LastSeenID; got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
