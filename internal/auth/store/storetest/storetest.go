// Package storetest holds the behaviour every SessionStore driver must share.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/internal/auth/store"
	"github.com/stretchr/testify/require"
)

// Session returns a complete session whose fields all carry suffix.
func Session(suffix string) domain.Session {
	return domain.Session{
		AccessToken:  "access-" + suffix,
		RefreshToken: "refresh-" + suffix,
		UserType:     "administrator",
		UserID:       "id-" + suffix,
		Username:     "user-" + suffix,
	}
}

// Run exercises a driver created fresh for each subtest by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.SessionStore) {
	t.Run("empty store is not found", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(context.Background())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("set then get returns every field", func(t *testing.T) {
		s := newStore(t)
		want := Session("1")

		require.NoError(t, s.Set(context.Background(), want))

		got, err := s.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("set replaces the previous session", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Set(context.Background(), Session("old")))
		require.NoError(t, s.Set(context.Background(), Session("new")))

		got, err := s.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, Session("new"), got)
	})

	t.Run("partial set is rejected and leaves store untouched", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(context.Background(), Session("kept")))

		for _, key := range domain.SessionKeys() {
			values := Session("partial").Values()
			values[key] = ""

			err := s.Set(context.Background(), domain.SessionFromValues(values))
			require.ErrorIs(t, err, store.ErrIncompleteSession, key)
		}

		got, err := s.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, Session("kept"), got)
	})

	t.Run("partial set on empty store stays empty", func(t *testing.T) {
		s := newStore(t)

		err := s.Set(context.Background(), domain.Session{AccessToken: "a"})
		require.ErrorIs(t, err, store.ErrIncompleteSession)

		_, err = s.Get(context.Background())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("clear removes every field", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(context.Background(), Session("1")))

		require.NoError(t, s.Clear(context.Background()))

		_, err := s.Get(context.Background())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("clear on empty store is a no-op", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Clear(context.Background()))
	})

	t.Run("clear ignores a cancelled context", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(context.Background(), Session("1")))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, s.Clear(ctx))

		_, err := s.Get(context.Background())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent readers never see a mix", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(context.Background(), Session("a")))

		var wg sync.WaitGroup
		for i := range 4 {
			wg.Add(1)
			go func(writer int) {
				defer wg.Done()
				for j := range 25 {
					suffix := "a"
					if (writer+j)%2 == 0 {
						suffix = "b"
					}
					_ = s.Set(context.Background(), Session(suffix))
				}
			}(i)
		}

		for range 100 {
			got, err := s.Get(context.Background())
			require.NoError(t, err)
			require.Contains(t, []domain.Session{Session("a"), Session("b")}, got)
		}
		wg.Wait()
	})
}
