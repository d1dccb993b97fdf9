// Package ledger records which resolution sessions are currently live.
//
// Sessions own a sandbox directory each. A process that crashes before
// disposing its sessions leaves those directories behind; the ledger is how
// `extrepo sandbox sweep` tells orphaned sandboxes apart from sandboxes still
// in use by a running process.
//
// Two backends are provided:
//   - memory: In-process storage for a single CLI invocation or tests
//   - redis: Shared storage for several processes on one or more hosts
//
// # Usage
//
//	l := ledger.NewMemory()
//	_ = l.Register(ctx, ledger.Entry{SessionID: id, Path: dir})
//	defer l.Release(ctx, id)
package ledger

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("not found")

// DefaultTTL is how long a Redis entry lives without being refreshed.
// Sessions are short-lived; an entry that outlives this is treated as orphaned.
const DefaultTTL = 6 * time.Hour

// Entry describes one live session.
type Entry struct {
	SessionID  string    `json:"session_id"`
	Path       string    `json:"path"`
	Repository string    `json:"repository,omitempty"`
	Host       string    `json:"host"`
	PID        int       `json:"pid"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEntry creates an Entry for the current process.
func NewEntry(sessionID, path string) Entry {
	host, _ := os.Hostname()
	return Entry{
		SessionID: sessionID,
		Path:      path,
		Host:      host,
		PID:       os.Getpid(),
		CreatedAt: time.Now(),
	}
}

// Ledger is the interface for live-session storage backends.
// Implementations must be safe for concurrent use.
type Ledger interface {
	// Register records a live session. Registering the same ID twice
	// replaces the previous entry.
	Register(ctx context.Context, e Entry) error

	// Release removes a session. Releasing an unknown ID is not an error.
	Release(ctx context.Context, sessionID string) error

	// Get returns the entry for sessionID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Entry, error)

	// List returns all live entries in no particular order.
	List(ctx context.Context) ([]Entry, error)

	// Close releases backend resources.
	Close() error
}

// Paths returns the set of sandbox paths held by live entries.
func Paths(ctx context.Context, l Ledger) (map[string]bool, error) {
	entries, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	paths := make(map[string]bool, len(entries))
	for _, e := range entries {
		paths[e.Path] = true
	}
	return paths, nil
}
