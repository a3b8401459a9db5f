package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/stretchr/testify/require"
)

func newTestFlow(t *testing.T, client *fakeClient, opts ...FlowOption) (*LoginFlow, *SessionService) {
	t.Helper()

	svc, _ := newTestService(t, client, memory.NewStore())
	return NewLoginFlow(context.Background(), svc, consoleauth.RoleAdministrator, opts...), svc
}

func TestLoginFlowHappyPath(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	flow, svc := newTestFlow(t, client)
	ctx := context.Background()

	require.Equal(t, StateAnonymous, flow.State())

	_, err := flow.Submit(ctx, "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, StateCredentialsSubmitted, flow.State())
	require.Equal(t, "sess-1", flow.SessionID())
	require.False(t, svc.IsAuthenticated(ctx))

	identity, err := flow.Verify(ctx, "123456")
	require.NoError(t, err)
	require.Equal(t, StateVerified, flow.State())
	require.Equal(t, "alice", identity.Username)
	require.Empty(t, flow.SessionID())
	require.True(t, svc.IsAuthenticated(ctx))

	got, ok := flow.Identity()
	require.True(t, ok)
	require.Equal(t, identity, got)

	require.NoError(t, flow.Logout(ctx))
	require.Equal(t, StateAnonymous, flow.State())
	require.False(t, svc.IsAuthenticated(ctx))
	_, ok = flow.Identity()
	require.False(t, ok)
}

func TestLoginFlowNoShortcutToVerified(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	flow, _ := newTestFlow(t, client)

	_, err := flow.Verify(context.Background(), "123456")
	require.ErrorIs(t, err, ErrInvalidState)
	require.Zero(t, client.verifyCalls.Load())

	_, err = flow.Resend(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
	require.Zero(t, client.resendCalls.Load())
}

func TestLoginFlowFailedStepKeepsState(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		verify: func(context.Context, string, consoleauth.Role, string) (*consoleauth.Tokens, error) {
			return nil, consoleauth.Translate(consoleauth.Failure{
				Response: &consoleauth.Response{StatusCode: 403, Body: []byte(`{}`)},
			})
		},
	}
	flow, svc := newTestFlow(t, client)
	ctx := context.Background()

	_, err := flow.Submit(ctx, "alice", "pw")
	require.NoError(t, err)

	_, err = flow.Verify(ctx, "123456")
	require.ErrorIs(t, err, consoleauth.ErrAccountLocked)
	require.Equal(t, StateCredentialsSubmitted, flow.State())
	require.Equal(t, "sess-1", flow.SessionID())
	require.False(t, svc.IsAuthenticated(ctx))
}

func TestLoginFlowSubmitFailureStaysAnonymous(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		login: func(context.Context, consoleauth.Credentials) (*consoleauth.LoginChallenge, error) {
			return nil, consoleauth.Translate(consoleauth.Failure{})
		},
	}
	flow, _ := newTestFlow(t, client)

	_, err := flow.Submit(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, consoleauth.ErrNetwork)
	require.Equal(t, StateAnonymous, flow.State())
}

func TestLoginFlowResendAdoptsRotatedID(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		resend: func(_ context.Context, sessionID string, _ consoleauth.Role) (*consoleauth.ResendResult, error) {
			return &consoleauth.ResendResult{SessionID: sessionID + "-r", Rotated: true}, nil
		},
	}
	flow, _ := newTestFlow(t, client)
	ctx := context.Background()

	_, err := flow.Submit(ctx, "alice", "pw")
	require.NoError(t, err)

	_, err = flow.Resend(ctx)
	require.NoError(t, err)
	require.Equal(t, "sess-1-r", flow.SessionID())

	_, err = flow.Resend(ctx)
	require.NoError(t, err)
	require.Equal(t, "sess-1-r-r", flow.SessionID())

	_, err = flow.Verify(ctx, "123456")
	require.NoError(t, err)

	require.Equal(t, []string{"sess-1", "sess-1-r"}, client.resentIDs)
	require.Equal(t, []string{"sess-1-r-r"}, client.verifiedIDs)
}

func TestLoginFlowResendInFlight(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	client := &fakeClient{
		resend: func(_ context.Context, sessionID string, _ consoleauth.Role) (*consoleauth.ResendResult, error) {
			close(entered)
			<-release
			return &consoleauth.ResendResult{SessionID: sessionID}, nil
		},
	}
	flow, _ := newTestFlow(t, client)
	ctx := context.Background()

	_, err := flow.Submit(ctx, "alice", "pw")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = flow.Resend(ctx)
	}()

	<-entered
	_, err = flow.Resend(ctx)
	require.ErrorIs(t, err, ErrResendInFlight)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	require.Equal(t, int32(1), client.resendCalls.Load())

	// The latch is released once the first call returns.
	client.resend = nil
	_, err = flow.Resend(ctx)
	require.NoError(t, err)
}

func TestLoginFlowResendCooldown(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	client := &fakeClient{}
	flow, _ := newTestFlow(t, client, WithResendCooldown(30*time.Second), WithClock(clock))
	ctx := context.Background()

	_, err := flow.Submit(ctx, "alice", "pw")
	require.NoError(t, err)

	_, err = flow.Resend(ctx)
	require.ErrorIs(t, err, ErrResendCooldown)
	require.Zero(t, client.resendCalls.Load())

	advance(31 * time.Second)
	_, err = flow.Resend(ctx)
	require.NoError(t, err)

	_, err = flow.Resend(ctx)
	require.ErrorIs(t, err, ErrResendCooldown)
	require.Equal(t, int32(1), client.resendCalls.Load())
}

func TestLoginFlowWithoutCooldownAllowsImmediateResend(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	flow, _ := newTestFlow(t, client)

	_, err := flow.Submit(context.Background(), "alice", "pw")
	require.NoError(t, err)

	for range 3 {
		_, err = flow.Resend(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), client.resendCalls.Load())
}

func TestLoginFlowLogoutFromAnyState(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	flow, _ := newTestFlow(t, client)
	ctx := context.Background()

	require.NoError(t, flow.Logout(ctx))
	require.Equal(t, StateAnonymous, flow.State())

	_, err := flow.Submit(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, flow.Logout(ctx))
	require.Equal(t, StateAnonymous, flow.State())
	require.Empty(t, flow.SessionID())

	// No session was stored in either case so the server was never called.
	require.Zero(t, client.logoutCalls.Load())
}

func TestLoginFlowStartsVerifiedWithStoredSession(t *testing.T) {
	t.Parallel()

	sessions := memory.NewStore()
	require.NoError(t, sessions.Set(context.Background(), domain.SessionFromTokens(testTokens)))

	client := &fakeClient{}
	svc, _ := newTestService(t, client, sessions)
	flow := NewLoginFlow(context.Background(), svc, consoleauth.RoleAdministrator)

	require.Equal(t, StateVerified, flow.State())
	identity, ok := flow.Identity()
	require.True(t, ok)
	require.Equal(t, "alice", identity.Username)

	_, err := flow.Submit(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, ErrInvalidState)
	require.Zero(t, client.loginCalls.Load())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "anonymous", StateAnonymous.String())
	require.Equal(t, "credentials_submitted", StateCredentialsSubmitted.String())
	require.Equal(t, "verified", StateVerified.String())
	require.Equal(t, "unknown", State(42).String())
}
