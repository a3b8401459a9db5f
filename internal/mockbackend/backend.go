// Package mockbackend is an in-memory implementation of the registration
// backend's console authentication endpoints, used for local development and
// end-to-end tests.
package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/metrics"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/aussiebroadwan/regconsole/pkg/cryptox"
	"github.com/aussiebroadwan/regconsole/pkg/idx"
	"github.com/aussiebroadwan/regconsole/pkg/jwtx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultMaxAttempts  = 5
	DefaultMaxResends   = 5
)

// Config holds the backend's tunables.
type Config struct {
	Issuer        string
	SigningSecret []byte
	Pepper        string

	ChallengeTTL time.Duration
	MaxAttempts  int // wrong passcodes before a challenge is destroyed
	MaxResends   int
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Issuer == "" {
		c.Issuer = "regconsole-authmock"
	}
	if c.ChallengeTTL <= 0 {
		c.ChallengeTTL = DefaultChallengeTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxResends <= 0 {
		c.MaxResends = DefaultMaxResends
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}
}

// Account is a console user.
type Account struct {
	ID           int64
	Username     string
	Role         consoleauth.Role
	PasswordHash string
	Locked       bool
}

// NewAccount describes an account to create.
type NewAccount struct {
	Username string
	Password string
	Role     consoleauth.Role
	Locked   bool
}

// challenge is a pending passcode check. The id is rotated on every resend.
type challenge struct {
	ID        string
	AccountID int64
	Role      consoleauth.Role
	Secret    string
	Attempts  int
	Resends   int
	ExpiresAt time.Time
}

type refreshRecord struct {
	AccountID int64
	ExpiresAt time.Time
	Revoked   bool
}

// TokenPair is returned after a successful passcode.
type TokenPair struct {
	Access   string
	Refresh  string
	Account  Account
	IssuedAt time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// Backend holds all state in memory behind a single mutex.
type Backend struct {
	cfg     Config
	signer  *jwtx.HS256Signer
	outbox  Outbox
	logger  *slog.Logger
	metrics *metrics.BackendCollector
	now     func() time.Time

	// dummyHash is verified against for unknown usernames so both paths
	// cost one Argon2 evaluation.
	dummyHash string

	mu         sync.Mutex
	nextID     int64
	accounts   map[string]*Account
	challenges map[string]*challenge
	refresh    map[string]*refreshRecord
}

// New creates a Backend.
func New(cfg Config, outbox Outbox, logger *slog.Logger, collector *metrics.BackendCollector, opts ...Option) (*Backend, error) {
	cfg.applyDefaults()

	if collector == nil {
		collector = metrics.NewBackendCollector(prometheus.NewRegistry())
	}

	dummy, err := cryptox.HashPassword(idx.New().String(), cfg.Pepper)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}

	b := &Backend{
		cfg:        cfg,
		outbox:     outbox,
		logger:     logger,
		metrics:    collector,
		now:        time.Now,
		dummyHash:  dummy,
		accounts:   make(map[string]*Account),
		challenges: make(map[string]*challenge),
		refresh:    make(map[string]*refreshRecord),
	}
	for _, opt := range opts {
		opt(b)
	}

	// Tokens are stamped and verified against the same clock.
	signer, err := jwtx.NewHS256Signer(cfg.SigningSecret, cfg.Issuer, jwtx.WithClock(b.now))
	if err != nil {
		return nil, err
	}
	b.signer = signer

	return b, nil
}

// Signer exposes the access token signer, e.g. to verify issued tokens.
func (b *Backend) Signer() *jwtx.HS256Signer { return b.signer }

// AddAccount creates an account with an Argon2id password hash.
func (b *Backend) AddAccount(na NewAccount) (Account, error) {
	username := normalizeUsername(na.Username)
	if username == "" || na.Password == "" {
		return Account{}, errors.New("username and password are required")
	}
	if !na.Role.Valid() {
		return Account{}, fmt.Errorf("unknown role %q", na.Role)
	}

	hash, err := cryptox.HashPassword(na.Password, b.cfg.Pepper)
	if err != nil {
		return Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[username]; exists {
		return Account{}, fmt.Errorf("account %q already exists", username)
	}

	b.nextID++
	acct := &Account{
		ID:           b.nextID,
		Username:     username,
		Role:         na.Role,
		PasswordHash: hash,
		Locked:       na.Locked,
	}
	b.accounts[username] = acct

	return *acct, nil
}

// SetLocked locks or unlocks an account.
func (b *Backend) SetLocked(username string, locked bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[normalizeUsername(username)]
	if !ok {
		return fmt.Errorf("account %q not found", username)
	}
	acct.Locked = locked
	return nil
}

// Login checks the password and opens a passcode challenge. The returned
// session id identifies the challenge.
func (b *Backend) Login(ctx context.Context, username, password string, role consoleauth.Role) (string, error) {
	username = normalizeUsername(username)

	b.mu.Lock()
	acct, ok := b.accounts[username]
	var snapshot Account
	if ok {
		snapshot = *acct
	}
	b.mu.Unlock()

	hash := b.dummyHash
	if ok {
		hash = snapshot.PasswordHash
	}
	if err := cryptox.VerifyPassword(password, b.cfg.Pepper, hash); err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	// A role mismatch is reported like a bad password so the audience of an
	// account is not disclosed.
	if snapshot.Role != role {
		return "", ErrInvalidCredentials
	}
	if snapshot.Locked {
		return "", ErrAccountLocked
	}

	c, err := b.newChallenge(snapshot, role)
	if err != nil {
		return "", err
	}
	if err := b.deliver(ctx, snapshot.Username, c); err != nil {
		return "", err
	}

	b.mu.Lock()
	b.challenges[c.ID] = c
	b.mu.Unlock()

	return c.ID, nil
}

// Verify checks a passcode. On success the challenge is consumed and a
// token pair is issued; a second use of the same session id fails.
func (b *Backend) Verify(ctx context.Context, sessionID string, role consoleauth.Role, code string) (TokenPair, error) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.challenges[sessionID]
	if !ok || c.Role != role {
		return TokenPair{}, ErrInvalidSession
	}
	if now.After(c.ExpiresAt) {
		delete(b.challenges, sessionID)
		return TokenPair{}, ErrInvalidSession
	}

	valid, err := totp.ValidateCustom(code, c.Secret, now, b.totpOpts(1))
	if err != nil || !valid {
		c.Attempts++
		b.metrics.OTPFailed()
		if c.Attempts >= b.cfg.MaxAttempts {
			delete(b.challenges, sessionID)
			return TokenPair{}, ErrTooManyOTPAttempts
		}
		return TokenPair{}, ErrInvalidOTP
	}

	acct := b.accountByID(c.AccountID)
	if acct == nil {
		delete(b.challenges, sessionID)
		return TokenPair{}, ErrInvalidSession
	}
	if acct.Locked {
		delete(b.challenges, sessionID)
		return TokenPair{}, ErrAccountLocked
	}

	claims := jwtx.NewAccessClaims(
		fmt.Sprint(acct.ID), string(acct.Role), acct.Username, b.signer.Issuer(), b.cfg.AccessTTL, now,
	)
	access, err := b.signer.Sign(claims)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return TokenPair{}, err
	}

	delete(b.challenges, sessionID)
	b.refresh[cryptox.FingerprintToken(refresh)] = &refreshRecord{
		AccountID: acct.ID,
		ExpiresAt: now.Add(b.cfg.RefreshTTL),
	}
	b.metrics.TokensIssued()

	return TokenPair{
		Access:   access,
		Refresh:  refresh,
		Account:  *acct,
		IssuedAt: now,
	}, nil
}

// Resend issues a new passcode under a new session id. The previous id and
// its passcode stop working. Failed attempts carry over.
func (b *Backend) Resend(ctx context.Context, sessionID string, role consoleauth.Role) (string, error) {
	now := b.now()

	b.mu.Lock()
	old, ok := b.challenges[sessionID]
	if !ok || old.Role != role || now.After(old.ExpiresAt) {
		delete(b.challenges, sessionID)
		b.mu.Unlock()
		return "", ErrInvalidSession
	}
	if old.Resends >= b.cfg.MaxResends {
		delete(b.challenges, sessionID)
		b.mu.Unlock()
		return "", ErrTooManyResends
	}
	acct := b.accountByID(old.AccountID)
	if acct == nil {
		delete(b.challenges, sessionID)
		b.mu.Unlock()
		return "", ErrInvalidSession
	}
	snapshot := *acct
	b.mu.Unlock()

	// The old challenge stays usable until its replacement has been sent.
	c, err := b.newChallenge(snapshot, role)
	if err != nil {
		return "", err
	}
	if err := b.deliver(ctx, snapshot.Username, c); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// A concurrent Verify or Resend may have consumed it meanwhile.
	if b.challenges[sessionID] != old {
		return "", ErrInvalidSession
	}
	c.Attempts = old.Attempts
	c.Resends = old.Resends + 1
	delete(b.challenges, sessionID)
	b.challenges[c.ID] = c

	return c.ID, nil
}

// Logout revokes a refresh token.
func (b *Backend) Logout(ctx context.Context, refreshToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.refresh[cryptox.FingerprintToken(refreshToken)]
	if !ok || rec.Revoked || b.now().After(rec.ExpiresAt) {
		return ErrInvalidRefreshToken
	}
	rec.Revoked = true
	b.metrics.TokenRevoked()
	return nil
}

// PurgeExpired drops expired challenges and spent refresh tokens. It returns
// the number of challenges removed.
func (b *Backend) PurgeExpired() int {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	purged := 0
	for id, c := range b.challenges {
		if now.After(c.ExpiresAt) {
			delete(b.challenges, id)
			purged++
		}
	}
	for fp, rec := range b.refresh {
		if rec.Revoked || now.After(rec.ExpiresAt) {
			delete(b.refresh, fp)
		}
	}

	b.metrics.ChallengesPurged(purged)
	return purged
}

// PendingChallenges returns the number of open challenges.
func (b *Backend) PendingChallenges() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.challenges)
}

func (b *Backend) newChallenge(acct Account, role consoleauth.Role) (*challenge, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      b.cfg.Issuer,
		AccountName: acct.Username,
		Period:      b.totpPeriod(),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate passcode secret: %w", err)
	}

	return &challenge{
		ID:        idx.New().String(),
		AccountID: acct.ID,
		Role:      role,
		Secret:    key.Secret(),
		ExpiresAt: b.now().Add(b.cfg.ChallengeTTL),
	}, nil
}

func (b *Backend) deliver(ctx context.Context, username string, c *challenge) error {
	code, err := totp.GenerateCodeCustom(c.Secret, b.now(), b.totpOpts(0))
	if err != nil {
		return fmt.Errorf("failed to generate passcode: %w", err)
	}

	if err := b.outbox.Deliver(ctx, Delivery{
		Username:  username,
		SessionID: c.ID,
		Code:      code,
		ExpiresAt: c.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("failed to deliver passcode: %w", err)
	}

	b.metrics.ChallengeIssued()
	return nil
}

// totpPeriod spans the whole challenge lifetime so a delivered code stays
// valid until the challenge expires.
func (b *Backend) totpPeriod() uint {
	return max(uint(b.cfg.ChallengeTTL/time.Second), 1)
}

func (b *Backend) totpOpts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    b.totpPeriod(),
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// accountByID must be called with b.mu held.
func (b *Backend) accountByID(id int64) *Account {
	for _, acct := range b.accounts {
		if acct.ID == id {
			return acct
		}
	}
	return nil
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
