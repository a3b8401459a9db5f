// Package memory is a process-local session store. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/internal/auth/store"
)

// Store keeps the session as an immutable snapshot. Set and Clear swap the
// pointer under the lock, so a reader sees the old session or the new one.
type Store struct {
	mu      sync.RWMutex
	current *domain.Session
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Get(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return domain.Session{}, store.ErrNotFound
	}
	return *s.current, nil
}

func (s *Store) Set(ctx context.Context, sess domain.Session) error {
	if err := store.CheckComplete(sess); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := sess

	s.mu.Lock()
	s.current = &snapshot
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }
