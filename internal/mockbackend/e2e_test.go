package mockbackend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/auth/service"
	"github.com/aussiebroadwan/regconsole/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/regconsole/internal/metrics"
	"github.com/aussiebroadwan/regconsole/internal/mockbackend"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/aussiebroadwan/regconsole/pkg/httpx"
	"github.com/aussiebroadwan/regconsole/pkg/jwtx"
	"github.com/aussiebroadwan/regconsole/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const apiPrefix = "/api/auth"

type harness struct {
	backend *mockbackend.Backend
	outbox  *mockbackend.RecordingOutbox
	server  *httptest.Server
	client  *consoleauth.Client
	svc     *service.SessionService
}

var generous = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}

func newHarness(t *testing.T, limits mockbackend.RateLimits) *harness {
	t.Helper()

	reg := prometheus.NewRegistry()
	outbox := &mockbackend.RecordingOutbox{}
	backend, err := mockbackend.New(mockbackend.Config{
		SigningSecret: []byte("0123456789abcdef0123456789abcdef"),
		MaxAttempts:   3,
	}, outbox, slogx.Discard(), metrics.NewBackendCollector(reg))
	require.NoError(t, err)

	_, err = backend.AddAccount(mockbackend.NewAccount{
		Username: "alice", Password: "correct horse", Role: consoleauth.RoleAdministrator,
	})
	require.NoError(t, err)
	_, err = backend.AddAccount(mockbackend.NewAccount{
		Username: "locked", Password: "pw", Role: consoleauth.RoleAdministrator, Locked: true,
	})
	require.NoError(t, err)

	router := mockbackend.NewRouter(backend, reg, apiPrefix, "test", limits, slogx.Discard())
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client := consoleauth.NewClientWithHTTP(server.URL+apiPrefix, &http.Client{
		Timeout:   5 * time.Second,
		Transport: slogx.NewTransport(nil, slogx.Discard()),
	})
	svc := service.NewSessionService(client, memory.NewStore(), slogx.Discard(), metrics.NewCollector(prometheus.NewRegistry()), time.Second)

	return &harness{backend: backend, outbox: outbox, server: server, client: client, svc: svc}
}

func openLimits() mockbackend.RateLimits {
	return mockbackend.RateLimits{Login: generous, Verify: generous, Resend: generous, Logout: generous}
}

func (h *harness) code(t *testing.T) string {
	t.Helper()
	d, ok := h.outbox.Last("alice")
	require.True(t, ok)
	return d.Code
}

func TestEndToEndLoginLogout(t *testing.T) {
	h := newHarness(t, openLimits())
	ctx := context.Background()

	flow := service.NewLoginFlow(ctx, h.svc, consoleauth.RoleAdministrator)

	challenge, err := flow.Submit(ctx, "alice", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, challenge.Message)
	require.False(t, h.svc.IsAuthenticated(ctx))

	identity, err := flow.Verify(ctx, h.code(t))
	require.NoError(t, err)
	require.Equal(t, "alice", identity.Username)
	require.Equal(t, "administrator", identity.UserType)
	require.Equal(t, "1", identity.UserID)

	sess, ok := h.svc.Current(ctx)
	require.True(t, ok)
	require.True(t, sess.Complete())

	claims, err := jwtx.Peek(sess.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)

	require.NoError(t, flow.Logout(ctx))
	require.False(t, h.svc.IsAuthenticated(ctx))

	// The refresh token was revoked on the server.
	err = h.client.Logout(ctx, sess.RefreshToken)
	require.ErrorIs(t, err, consoleauth.ErrInvalidCredentials)
}

func TestEndToEndResendRotation(t *testing.T) {
	h := newHarness(t, openLimits())
	ctx := context.Background()

	flow := service.NewLoginFlow(ctx, h.svc, consoleauth.RoleAdministrator)
	_, err := flow.Submit(ctx, "alice", "correct horse")
	require.NoError(t, err)
	firstID, firstCode := flow.SessionID(), h.code(t)

	res, err := flow.Resend(ctx)
	require.NoError(t, err)
	require.True(t, res.Rotated)
	require.NotEqual(t, firstID, flow.SessionID())

	// The old identifier is dead on the server.
	_, err = h.client.VerifyOTP(ctx, firstID, consoleauth.RoleAdministrator, firstCode)
	require.ErrorIs(t, err, consoleauth.ErrValidation)

	_, err = flow.Verify(ctx, h.code(t))
	require.NoError(t, err)
	require.True(t, h.svc.IsAuthenticated(ctx))
}

func TestEndToEndErrorKinds(t *testing.T) {
	h := newHarness(t, openLimits())
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		_, err := h.client.Login(ctx, consoleauth.Credentials{
			Username: "alice", Password: "nope", Role: consoleauth.RoleAdministrator,
		})
		require.ErrorIs(t, err, consoleauth.ErrInvalidCredentials)
		require.Equal(t, "Invalid username or password.", err.Error())
	})

	t.Run("locked account", func(t *testing.T) {
		_, err := h.client.Login(ctx, consoleauth.Credentials{
			Username: "locked", Password: "pw", Role: consoleauth.RoleAdministrator,
		})
		require.ErrorIs(t, err, consoleauth.ErrAccountLocked)
	})

	t.Run("wrong passcode then lockout", func(t *testing.T) {
		challenge, err := h.client.Login(ctx, consoleauth.Credentials{
			Username: "alice", Password: "correct horse", Role: consoleauth.RoleAdministrator,
		})
		require.NoError(t, err)

		bad := "000000"
		if h.code(t) == bad {
			bad = "111111"
		}

		for range 2 {
			_, err = h.client.VerifyOTP(ctx, challenge.SessionID, consoleauth.RoleAdministrator, bad)
			require.ErrorIs(t, err, consoleauth.ErrValidation)
			require.Equal(t, "Invalid or expired OTP.", err.Error())
		}

		_, err = h.client.VerifyOTP(ctx, challenge.SessionID, consoleauth.RoleAdministrator, bad)
		require.ErrorIs(t, err, consoleauth.ErrTooManyAttempts)
	})

	t.Run("consumed passcode", func(t *testing.T) {
		challenge, err := h.client.Login(ctx, consoleauth.Credentials{
			Username: "alice", Password: "correct horse", Role: consoleauth.RoleAdministrator,
		})
		require.NoError(t, err)
		code := h.code(t)

		_, err = h.client.VerifyOTP(ctx, challenge.SessionID, consoleauth.RoleAdministrator, code)
		require.NoError(t, err)

		_, err = h.client.VerifyOTP(ctx, challenge.SessionID, consoleauth.RoleAdministrator, code)
		require.ErrorIs(t, err, consoleauth.ErrValidation)
	})

	t.Run("unknown route is a request error", func(t *testing.T) {
		other := consoleauth.NewClient(h.server.URL + "/nowhere")
		_, err := other.Login(ctx, consoleauth.Credentials{
			Username: "alice", Password: "pw", Role: consoleauth.RoleAdministrator,
		})
		require.ErrorIs(t, err, consoleauth.ErrUnexpected)
	})
}

func TestEndToEndRateLimit(t *testing.T) {
	limits := openLimits()
	limits.Login = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	h := newHarness(t, limits)
	ctx := context.Background()

	creds := consoleauth.Credentials{Username: "alice", Password: "nope", Role: consoleauth.RoleAdministrator}
	for range 2 {
		_, err := h.svc.SubmitCredentials(ctx, creds)
		require.ErrorIs(t, err, consoleauth.ErrInvalidCredentials)
	}

	_, err := h.svc.SubmitCredentials(ctx, creds)
	require.ErrorIs(t, err, consoleauth.ErrTooManyAttempts)
	require.Contains(t, err.Error(), "Too many attempts")
}

func TestEndToEndUnreachableBackend(t *testing.T) {
	h := newHarness(t, openLimits())
	ctx := context.Background()

	flow := service.NewLoginFlow(ctx, h.svc, consoleauth.RoleAdministrator)
	_, err := flow.Submit(ctx, "alice", "correct horse")
	require.NoError(t, err)
	_, err = flow.Verify(ctx, h.code(t))
	require.NoError(t, err)

	h.server.Close()

	// Logout still clears local state when the server is gone.
	require.NoError(t, flow.Logout(ctx))
	require.False(t, h.svc.IsAuthenticated(ctx))

	_, err = flow.Submit(ctx, "alice", "correct horse")
	require.ErrorIs(t, err, consoleauth.ErrNetwork)
	require.Equal(t, consoleauth.MsgNetwork, err.Error())
}

func TestRouterHealthAndMetrics(t *testing.T) {
	h := newHarness(t, openLimits())

	resp, err := http.Get(h.server.URL + "/livez")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
