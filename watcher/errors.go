package watcher

import (
	"errors"

	"github.com/hazyhaar/relwatch/release"
)

// Sentinel errors. Collaborator failures are wrapped with the step that
// failed ("watcher: fetch: ...", "watcher: notify: ...").
var (
	// ErrInvalidConfig is returned by Validate and New.
	ErrInvalidConfig = errors.New("watcher: invalid config")

	// ErrNotFound is returned when neither locator strategy finds a release.
	ErrNotFound = release.ErrNotFound
)
