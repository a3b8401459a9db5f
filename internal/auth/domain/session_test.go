package domain_test

import (
	"testing"

	"github.com/aussiebroadwan/regconsole/internal/auth/domain"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/stretchr/testify/require"
)

func TestSessionComplete(t *testing.T) {
	full := domain.Session{
		AccessToken:  "a",
		RefreshToken: "r",
		UserType:     "administrator",
		UserID:       "1",
		Username:     "alice",
	}
	require.True(t, full.Complete())

	for _, key := range domain.SessionKeys() {
		values := full.Values()
		values[key] = ""
		require.False(t, domain.SessionFromValues(values).Complete(), key)
	}

	require.False(t, domain.Session{}.Complete())
}

func TestSessionValuesRoundTrip(t *testing.T) {
	s := domain.SessionFromTokens(consoleauth.Tokens{
		AccessToken:  "a",
		RefreshToken: "r",
		UserType:     "registration_officer",
		UserID:       "42",
		Username:     "bob",
	})

	require.Equal(t, s, domain.SessionFromValues(s.Values()))
	require.Len(t, s.Values(), len(domain.SessionKeys()))
	require.Equal(t, domain.Identity{
		UserType: "registration_officer",
		UserID:   "42",
		Username: "bob",
	}, s.Identity())
}
