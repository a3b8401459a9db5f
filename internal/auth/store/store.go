package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrIncompleteSession = errors.New("store: incomplete session")
)

// SessionStore holds the console's authenticated session. Concrete drivers
// (memory, sqlite) implement this. A session is written and removed as a
// whole: readers observe either all five fields or none.
type SessionStore interface {
	// Get returns the current session, or ErrNotFound when the console is
	// not authenticated.
	Get(ctx context.Context) (domain.Session, error)

	// Set replaces the session atomically. A session missing any field is
	// rejected with ErrIncompleteSession and the store is left untouched.
	Set(ctx context.Context, s domain.Session) error

	// Clear removes the session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Store is a SessionStore backed by a resource that has to be released.
type Store interface {
	SessionStore

	// Ping verifies the backing storage is usable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// EmptinessChecker is implemented by stores that can report an empty store
// without reading and decoding a session.
type EmptinessChecker interface {
	IsEmpty(ctx context.Context) (bool, error)
}

// CheckComplete returns ErrIncompleteSession naming the first missing field.
func CheckComplete(s domain.Session) error {
	values := s.Values()
	for _, key := range domain.SessionKeys() {
		if values[key] == "" {
			return fmt.Errorf("%w: missing %s", ErrIncompleteSession, key)
		}
	}
	return nil
}
