package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/internal/auth/store"
	"github.com/aussiebroadwan/regconsole/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
)

// fakeClient is a scriptable AuthClient. Unset funcs succeed with canned
// values.
type fakeClient struct {
	login  func(ctx context.Context, creds consoleauth.Credentials) (*consoleauth.LoginChallenge, error)
	verify func(ctx context.Context, sessionID string, role consoleauth.Role, code string) (*consoleauth.Tokens, error)
	resend func(ctx context.Context, sessionID string, role consoleauth.Role) (*consoleauth.ResendResult, error)
	logout func(ctx context.Context, refreshToken string) error

	loginCalls  atomic.Int32
	verifyCalls atomic.Int32
	resendCalls atomic.Int32
	logoutCalls atomic.Int32

	mu            sync.Mutex
	verifiedIDs   []string
	resentIDs     []string
	loggedOutWith []string
}

func (c *fakeClient) Login(ctx context.Context, creds consoleauth.Credentials) (*consoleauth.LoginChallenge, error) {
	c.loginCalls.Add(1)
	if c.login != nil {
		return c.login(ctx, creds)
	}
	return &consoleauth.LoginChallenge{SessionID: "sess-1", Message: "OTP sent."}, nil
}

func (c *fakeClient) VerifyOTP(ctx context.Context, sessionID string, role consoleauth.Role, code string) (*consoleauth.Tokens, error) {
	c.verifyCalls.Add(1)
	c.mu.Lock()
	c.verifiedIDs = append(c.verifiedIDs, sessionID)
	c.mu.Unlock()

	if c.verify != nil {
		return c.verify(ctx, sessionID, role, code)
	}
	return &testTokens, nil
}

func (c *fakeClient) ResendOTP(ctx context.Context, sessionID string, role consoleauth.Role) (*consoleauth.ResendResult, error) {
	c.resendCalls.Add(1)
	c.mu.Lock()
	c.resentIDs = append(c.resentIDs, sessionID)
	c.mu.Unlock()

	if c.resend != nil {
		return c.resend(ctx, sessionID, role)
	}
	return &consoleauth.ResendResult{SessionID: sessionID, Message: "New OTP sent."}, nil
}

func (c *fakeClient) Logout(ctx context.Context, refreshToken string) error {
	c.logoutCalls.Add(1)
	c.mu.Lock()
	c.loggedOutWith = append(c.loggedOutWith, refreshToken)
	c.mu.Unlock()

	if c.logout != nil {
		return c.logout(ctx, refreshToken)
	}
	return nil
}

var testTokens = consoleauth.Tokens{
	AccessToken:  "access",
	RefreshToken: "refresh",
	UserType:     "administrator",
	UserID:       "7",
	Username:     "alice",
}

// failingStore wraps a memory store and fails the selected operations.
type failingStore struct {
	*memory.Store
	setErr   error
	clearErr error
	getErr   error
}

var errStoreBroken = errors.New("disk full")

func (s *failingStore) Get(ctx context.Context) (domain.Session, error) {
	if s.getErr != nil {
		return domain.Session{}, s.getErr
	}
	return s.Store.Get(ctx)
}

func (s *failingStore) Set(ctx context.Context, sess domain.Session) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, sess)
}

func (s *failingStore) Clear(ctx context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.Store.Clear(ctx)
}

// countingStore reports emptiness up front and counts full reads.
type countingStore struct {
	*memory.Store
	emptyErr error
	gets     int
}

func (s *countingStore) IsEmpty(ctx context.Context) (bool, error) {
	if s.emptyErr != nil {
		return false, s.emptyErr
	}
	_, err := s.Store.Get(ctx)
	return errors.Is(err, store.ErrNotFound), nil
}

func (s *countingStore) Get(ctx context.Context) (domain.Session, error) {
	s.gets++
	return s.Store.Get(ctx)
}
