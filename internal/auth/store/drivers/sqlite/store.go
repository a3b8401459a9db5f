package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/internal/auth/store"
	"github.com/aussiebroadwan/regconsole/pkg/cryptox"
	_ "modernc.org/sqlite"
)

// Store persists the session as one row per key in session_values. When a
// sealer is configured every value is encrypted with its key name as
// additional data.
type Store struct {
	db     *sql.DB
	dsn    string
	sealer *cryptox.Sealer
}

var (
	_ store.Store            = (*Store)(nil)
	_ store.EmptinessChecker = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithSealer encrypts values at rest.
func WithSealer(sealer *cryptox.Sealer) Option {
	return func(s *Store) { s.sealer = sealer }
}

func NewStore(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single writer keeps the console's sqlite file free of busy errors.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		dsn: dsn,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context) (domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session_values`)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, len(domain.SessionKeys()))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.Session{}, fmt.Errorf("failed to scan session row: %w", err)
		}

		plain, err := s.open(key, value)
		if err != nil {
			return domain.Session{}, err
		}
		values[key] = plain
	}
	if err := rows.Err(); err != nil {
		return domain.Session{}, fmt.Errorf("failed to read session: %w", err)
	}

	if len(values) == 0 {
		return domain.Session{}, store.ErrNotFound
	}

	sess := domain.SessionFromValues(values)
	if err := store.CheckComplete(sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *Store) Set(ctx context.Context, sess domain.Session) error {
	if err := store.CheckComplete(sess); err != nil {
		return err
	}

	values := sess.Values()
	sealed := make(map[string]string, len(values))
	for key, value := range values {
		v, err := s.seal(key, value)
		if err != nil {
			return err
		}
		sealed[key] = v
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_values`); err != nil {
			return fmt.Errorf("failed to replace session: %w", err)
		}
		for _, key := range domain.SessionKeys() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_values (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
				key, sealed[key],
			); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
		return nil
	})
}

// Clear ignores cancellation of ctx so a logout always removes local state.
func (s *Store) Clear(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_values`); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return nil
	})
}

func (s *Store) seal(key, value string) (string, error) {
	if s.sealer == nil {
		return value, nil
	}
	sealed, err := s.sealer.Seal(value, key)
	if err != nil {
		return "", fmt.Errorf("failed to seal %s: %w", key, err)
	}
	return sealed, nil
}

func (s *Store) open(key, value string) (string, error) {
	if s.sealer == nil {
		return value, nil
	}
	plain, err := s.sealer.Open(value, key)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", key, err)
	}
	return plain, nil
}

// IsEmpty reports whether no session is stored.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_values`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
