package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/internal/auth/store"
	"github.com/aussiebroadwan/regconsole/internal/metrics"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
)

// DefaultLogoutTimeout bounds the server call made during logout.
const DefaultLogoutTimeout = 5 * time.Second

// AuthClient is the backend API used by SessionService. *consoleauth.Client
// implements it.
type AuthClient interface {
	Login(ctx context.Context, creds consoleauth.Credentials) (*consoleauth.LoginChallenge, error)
	VerifyOTP(ctx context.Context, sessionID string, role consoleauth.Role, code string) (*consoleauth.Tokens, error)
	ResendOTP(ctx context.Context, sessionID string, role consoleauth.Role) (*consoleauth.ResendResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

var _ AuthClient = (*consoleauth.Client)(nil)

// SessionService ties the stateless client to the session store. It is the
// only place where verified tokens are persisted or removed.
type SessionService struct {
	Client        AuthClient
	Store         store.SessionStore
	Logger        *slog.Logger
	Metrics       metrics.Recorder
	LogoutTimeout time.Duration
}

// NewSessionService creates a SessionService. A nil recorder disables
// metrics and a non-positive timeout falls back to DefaultLogoutTimeout.
func NewSessionService(
	client AuthClient,
	sessions store.SessionStore,
	logger *slog.Logger,
	recorder metrics.Recorder,
	logoutTimeout time.Duration,
) *SessionService {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if logoutTimeout <= 0 {
		logoutTimeout = DefaultLogoutTimeout
	}

	return &SessionService{
		Client:        client,
		Store:         sessions,
		Logger:        logger,
		Metrics:       recorder,
		LogoutTimeout: logoutTimeout,
	}
}

// SubmitCredentials runs the first login step. The store is never touched:
// a session id is not proof of authentication.
func (s *SessionService) SubmitCredentials(ctx context.Context, creds consoleauth.Credentials) (*consoleauth.LoginChallenge, error) {
	start := time.Now()

	challenge, err := s.Client.Login(ctx, creds)
	s.record(metrics.FlowLogin, start, err)
	if err != nil {
		s.logFailure(ctx, metrics.FlowLogin, err, slog.String("user_type", string(creds.Role)))
		return nil, err
	}

	s.Logger.InfoContext(ctx, "credentials accepted, passcode challenge issued",
		slog.String("user_type", string(creds.Role)),
	)
	return challenge, nil
}

// VerifyOTP runs the second login step and persists the returned session
// with a single Set. Nothing is written when verification fails.
func (s *SessionService) VerifyOTP(ctx context.Context, sessionID string, role consoleauth.Role, code string) (domain.Identity, error) {
	start := time.Now()

	tokens, err := s.Client.VerifyOTP(ctx, sessionID, role, code)
	if err != nil {
		s.record(metrics.FlowVerifyOTP, start, err)
		s.logFailure(ctx, metrics.FlowVerifyOTP, err, slog.String("user_type", string(role)))
		return domain.Identity{}, err
	}

	sess := domain.SessionFromTokens(*tokens)
	if err := s.Store.Set(ctx, sess); err != nil {
		s.record(metrics.FlowVerifyOTP, start, err)
		s.Logger.ErrorContext(ctx, "failed to persist session", slog.Any("error", err))

		// A failed Set is atomic, but a stale session from an earlier
		// login must not survive either.
		if clearErr := s.Store.Clear(ctx); clearErr != nil {
			s.Logger.ErrorContext(ctx, "failed to clear session store", slog.Any("error", clearErr))
		}
		return domain.Identity{}, fmt.Errorf("failed to persist session: %w", err)
	}

	s.record(metrics.FlowVerifyOTP, start, nil)
	s.Logger.InfoContext(ctx, "session established",
		slog.String("user_type", sess.UserType),
		slog.String("user_id", sess.UserID),
		slog.String("username", sess.Username),
	)
	return sess.Identity(), nil
}

// ResendOTP requests a new passcode. The returned SessionID must replace the
// one the caller holds.
func (s *SessionService) ResendOTP(ctx context.Context, sessionID string, role consoleauth.Role) (*consoleauth.ResendResult, error) {
	start := time.Now()

	res, err := s.Client.ResendOTP(ctx, sessionID, role)
	s.record(metrics.FlowResendOTP, start, err)
	if err != nil {
		s.logFailure(ctx, metrics.FlowResendOTP, err, slog.String("user_type", string(role)))
		return nil, err
	}

	s.Logger.InfoContext(ctx, "passcode resent", slog.Bool("rotated", res.Rotated))
	return res, nil
}

// Logout invalidates the refresh token on the server when one is stored and
// then clears the store. The server call is bounded by LogoutTimeout and its
// failure is only logged; the local session is always removed. The returned
// error is a failure of the store itself.
func (s *SessionService) Logout(ctx context.Context) error {
	start := time.Now()

	// Logout runs to completion even when the caller has gone away (Ctrl-C).
	local := context.WithoutCancel(ctx)

	sess, err := s.Store.Get(local)
	switch {
	case err == nil:
		s.revoke(ctx, sess.RefreshToken, start)
	case errors.Is(err, store.ErrNotFound):
		s.Metrics.RecordFlow(metrics.FlowLogout, metrics.OutcomeSkipped, time.Since(start))
	default:
		s.Logger.WarnContext(ctx, "failed to read session before logout", slog.Any("error", err))
		s.Metrics.RecordFlow(metrics.FlowLogout, metrics.OutcomeSkipped, time.Since(start))
	}

	if err := s.Store.Clear(local); err != nil {
		s.Logger.ErrorContext(ctx, "failed to clear session store", slog.Any("error", err))
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.Logger.InfoContext(ctx, "logged out")
	return nil
}

func (s *SessionService) revoke(ctx context.Context, refreshToken string, start time.Time) {
	// The caller may already be cancelled (e.g. Ctrl-C); the server call
	// gets its own bounded budget.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.LogoutTimeout)
	defer cancel()

	err := s.Client.Logout(callCtx, refreshToken)
	s.record(metrics.FlowLogout, start, err)
	if err != nil {
		s.Logger.WarnContext(ctx, "server logout failed, clearing local session anyway",
			slog.String("kind", outcome(err)),
			slog.Any("error", err),
		)
	}
}

// IsAuthenticated reports whether a complete session is stored.
func (s *SessionService) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Current(ctx)
	return ok
}

// UserType returns the stored user type.
func (s *SessionService) UserType(ctx context.Context) (string, bool) {
	sess, ok := s.Current(ctx)
	return sess.UserType, ok
}

// Username returns the stored username.
func (s *SessionService) Username(ctx context.Context) (string, bool) {
	sess, ok := s.Current(ctx)
	return sess.Username, ok
}

// Current returns the stored session. Any store failure reads as not
// authenticated.
func (s *SessionService) Current(ctx context.Context) (domain.Session, bool) {
	if ec, ok := s.Store.(store.EmptinessChecker); ok {
		if empty, err := ec.IsEmpty(ctx); err == nil && empty {
			return domain.Session{}, false
		}
	}

	sess, err := s.Store.Get(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.Logger.WarnContext(ctx, "failed to read session", slog.Any("error", err))
		}
		return domain.Session{}, false
	}
	return sess, true
}

func (s *SessionService) record(flow string, start time.Time, err error) {
	s.Metrics.RecordFlow(flow, outcome(err), time.Since(start))
}

func (s *SessionService) logFailure(ctx context.Context, flow string, err error, attrs ...slog.Attr) {
	args := []any{
		slog.String("flow", flow),
		slog.String("kind", outcome(err)),
	}
	var e *consoleauth.Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		args = append(args, slog.Int("status", e.StatusCode))
	}
	if cause := errors.Unwrap(err); cause != nil {
		args = append(args, slog.String("cause", cause.Error()))
	}
	for _, a := range attrs {
		args = append(args, a)
	}

	s.Logger.WarnContext(ctx, "authentication flow failed", args...)
}

// outcome is the metric label for err.
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	if kind := consoleauth.KindOf(err); kind != "" {
		return string(kind)
	}
	return metrics.OutcomeError
}
