package domain

import "github.com/aussiebroadwan/regconsole/pkg/consoleauth"

// Persisted key names. Every driver stores the session under exactly these.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserType     = "user_type"
	KeyUserID       = "user_id"
	KeyUsername     = "username"
)

// SessionKeys lists the persisted keys in a stable order.
func SessionKeys() []string {
	return []string{KeyAccessToken, KeyRefreshToken, KeyUserType, KeyUserID, KeyUsername}
}

// Session is the authenticated session held by the console. Either all five
// fields are set or the console is not authenticated.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserType     string
	UserID       string
	Username     string
}

// SessionFromTokens converts a verified token payload into a Session.
func SessionFromTokens(t consoleauth.Tokens) Session {
	return Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		UserType:     t.UserType,
		UserID:       t.UserID,
		Username:     t.Username,
	}
}

// Complete reports whether every field is present.
func (s Session) Complete() bool {
	return s.AccessToken != "" &&
		s.RefreshToken != "" &&
		s.UserType != "" &&
		s.UserID != "" &&
		s.Username != ""
}

// Values returns the session keyed by persisted name.
func (s Session) Values() map[string]string {
	return map[string]string{
		KeyAccessToken:  s.AccessToken,
		KeyRefreshToken: s.RefreshToken,
		KeyUserType:     s.UserType,
		KeyUserID:       s.UserID,
		KeyUsername:     s.Username,
	}
}

// SessionFromValues is the inverse of Values. Missing keys leave fields empty.
func SessionFromValues(v map[string]string) Session {
	return Session{
		AccessToken:  v[KeyAccessToken],
		RefreshToken: v[KeyRefreshToken],
		UserType:     v[KeyUserType],
		UserID:       v[KeyUserID],
		Username:     v[KeyUsername],
	}
}

// Identity is the non-secret view of a session, safe to display or log.
type Identity struct {
	UserType string
	UserID   string
	Username string
}

// Identity strips the tokens from s.
func (s Session) Identity() Identity {
	return Identity{
		UserType: s.UserType,
		UserID:   s.UserID,
		Username: s.Username,
	}
}
