package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/regconsole/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("s", 32))

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, err := jwtx.NewHS256Signer(testSecret, "registration-backend")
	require.NoError(t, err)

	now := time.Now()
	claims := jwtx.NewAccessClaims("42", "administrator", "alice", signer.Issuer(), time.Minute, now)

	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := signer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "42", got.Subject)
	require.Equal(t, "administrator", got.UserType)
	require.Equal(t, "alice", got.Username)
	require.NotEmpty(t, got.ID)
}

func TestVerifyRejects(t *testing.T) {
	signer, err := jwtx.NewHS256Signer(testSecret, "iss-a")
	require.NoError(t, err)
	other, err := jwtx.NewHS256Signer([]byte(strings.Repeat("o", 32)), "iss-a")
	require.NoError(t, err)
	wrongIssuer, err := jwtx.NewHS256Signer(testSecret, "iss-b")
	require.NoError(t, err)

	now := time.Now()

	t.Run("bad signature", func(t *testing.T) {
		raw, err := other.Sign(jwtx.NewAccessClaims("1", "administrator", "a", "iss-a", time.Minute, now))
		require.NoError(t, err)

		_, err = signer.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrSignature)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		raw, err := wrongIssuer.Sign(jwtx.NewAccessClaims("1", "administrator", "a", "iss-b", time.Minute, now))
		require.NoError(t, err)

		_, err = signer.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		raw, err := signer.Sign(jwtx.NewAccessClaims("1", "administrator", "a", "iss-a", time.Minute, now.Add(-time.Hour)))
		require.NoError(t, err)

		_, err = signer.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestNewHS256SignerShortSecret(t *testing.T) {
	_, err := jwtx.NewHS256Signer([]byte("short"), "iss")
	require.Error(t, err)
}

func TestPeek(t *testing.T) {
	signer, err := jwtx.NewHS256Signer(testSecret, "iss")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	raw, err := signer.Sign(jwtx.NewAccessClaims("7", "registration_officer", "bob", "iss", time.Hour, now))
	require.NoError(t, err)

	claims, err := jwtx.Peek(raw)
	require.NoError(t, err)
	require.Equal(t, "bob", claims.Username)
	require.Equal(t, now.Add(time.Hour).Unix(), claims.Expiry().Unix())

	_, err = jwtx.Peek("opaque-token")
	require.ErrorIs(t, err, jwtx.ErrMalformed)

	require.True(t, (&jwtx.Claims{}).Expiry().IsZero())
}

func TestVerifyUsesInjectedClock(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued

	signer, err := jwtx.NewHS256Signer(testSecret, "iss", jwtx.WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	raw, err := signer.Sign(jwtx.NewAccessClaims("1", "administrator", "alice", "iss", time.Minute, issued))
	require.NoError(t, err)

	claims, err := signer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)

	clock = issued.Add(2 * time.Minute)
	_, err = signer.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}
