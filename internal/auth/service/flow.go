package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidState   = errors.New("login flow: operation not allowed in current state")
	ErrResendInFlight = errors.New("login flow: resend already in progress")
	ErrResendCooldown = errors.New("login flow: please wait before requesting another code")
)

// State of the login screen.
type State int

const (
	StateAnonymous State = iota
	StateCredentialsSubmitted
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateCredentialsSubmitted:
		return "credentials_submitted"
	case StateVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// LoginFlow drives one console login for a fixed role:
//
//	Anonymous -> CredentialsSubmitted -> Verified
//
// Resend loops on CredentialsSubmitted and adopts the returned session id.
// Logout returns to Anonymous from any state. A failed step leaves the state
// unchanged so the form stays editable.
type LoginFlow struct {
	svc  *SessionService
	role consoleauth.Role
	now  func() time.Time

	cooldown  time.Duration
	resending atomic.Bool

	mu        sync.Mutex
	state     State
	sessionID string
	identity  domain.Identity
	limiter   *rate.Limiter
}

// FlowOption configures a LoginFlow.
type FlowOption func(*LoginFlow)

// WithResendCooldown makes Resend fail with ErrResendCooldown until d has
// passed since the code was last sent. Zero disables the cooldown.
func WithResendCooldown(d time.Duration) FlowOption {
	return func(f *LoginFlow) { f.cooldown = d }
}

// WithClock replaces time.Now for the cooldown.
func WithClock(now func() time.Time) FlowOption {
	return func(f *LoginFlow) { f.now = now }
}

// NewLoginFlow starts an anonymous flow. If a session is already stored the
// flow starts out Verified.
func NewLoginFlow(ctx context.Context, svc *SessionService, role consoleauth.Role, opts ...FlowOption) *LoginFlow {
	f := &LoginFlow{
		svc:  svc,
		role: role,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	if sess, ok := svc.Current(ctx); ok {
		f.state = StateVerified
		f.identity = sess.Identity()
	}

	return f
}

// Role is the audience every request of this flow is sent with.
func (f *LoginFlow) Role() consoleauth.Role { return f.role }

func (f *LoginFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SessionID is the current challenge identifier, empty outside
// CredentialsSubmitted.
func (f *LoginFlow) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

// Identity returns who is signed in once the flow is Verified.
func (f *LoginFlow) Identity() (domain.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity, f.state == StateVerified
}

// Submit sends the credentials. It may be repeated while the passcode has
// not been verified, which starts a fresh challenge.
func (f *LoginFlow) Submit(ctx context.Context, username, password string) (*consoleauth.LoginChallenge, error) {
	if f.State() == StateVerified {
		return nil, ErrInvalidState
	}

	challenge, err := f.svc.SubmitCredentials(ctx, consoleauth.Credentials{
		Username: username,
		Password: password,
		Role:     f.role,
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.state = StateCredentialsSubmitted
	f.sessionID = challenge.SessionID
	f.startCooldownLocked()
	f.mu.Unlock()

	return challenge, nil
}

// Verify answers the challenge with code and persists the session.
func (f *LoginFlow) Verify(ctx context.Context, code string) (domain.Identity, error) {
	f.mu.Lock()
	state, sessionID := f.state, f.sessionID
	f.mu.Unlock()

	if state != StateCredentialsSubmitted {
		return domain.Identity{}, ErrInvalidState
	}

	identity, err := f.svc.VerifyOTP(ctx, sessionID, f.role, code)
	if err != nil {
		return domain.Identity{}, err
	}

	f.mu.Lock()
	f.state = StateVerified
	f.sessionID = ""
	f.identity = identity
	f.mu.Unlock()

	return identity, nil
}

// Resend asks for a new code. Only one resend runs at a time; a concurrent
// call returns ErrResendInFlight without contacting the backend.
func (f *LoginFlow) Resend(ctx context.Context) (*consoleauth.ResendResult, error) {
	if !f.resending.CompareAndSwap(false, true) {
		return nil, ErrResendInFlight
	}
	defer f.resending.Store(false)

	f.mu.Lock()
	state, sessionID, limiter := f.state, f.sessionID, f.limiter
	f.mu.Unlock()

	if state != StateCredentialsSubmitted {
		return nil, ErrInvalidState
	}

	if limiter != nil && !limiter.AllowN(f.now(), 1) {
		return nil, ErrResendCooldown
	}

	res, err := f.svc.ResendOTP(ctx, sessionID, f.role)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	// A Submit or Logout that raced this call owns the state now.
	if f.state == StateCredentialsSubmitted && f.sessionID == sessionID {
		f.sessionID = res.SessionID
	}
	f.mu.Unlock()

	return res, nil
}

// Logout clears the session (see SessionService.Logout) and resets the flow.
// The flow is reset even when the store reports an error.
func (f *LoginFlow) Logout(ctx context.Context) error {
	err := f.svc.Logout(ctx)

	f.mu.Lock()
	f.state = StateAnonymous
	f.sessionID = ""
	f.identity = domain.Identity{}
	f.mu.Unlock()

	return err
}

// startCooldownLocked begins a fresh cooldown window after a code was sent.
// f.mu must be held.
func (f *LoginFlow) startCooldownLocked() {
	if f.cooldown <= 0 {
		return
	}
	limiter := rate.NewLimiter(rate.Every(f.cooldown), 1)
	limiter.AllowN(f.now(), 1)
	f.limiter = limiter
}
