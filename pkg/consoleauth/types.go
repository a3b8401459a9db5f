package consoleauth

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role selects the authentication audience of a request.
type Role string

const (
	RoleAdministrator       Role = "administrator"
	RoleRegistrationOfficer Role = "registration_officer"
)

// Roles lists every accepted audience tag.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleRegistrationOfficer}
}

// Valid reports whether r is one of the accepted audience tags.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleRegistrationOfficer:
		return true
	default:
		return false
	}
}

// ParseRole converts a user supplied string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// ============================================================================
// Flow values
// ============================================================================

// Credentials is the login form content. It is held only for the duration of
// the submission call.
type Credentials struct {
	Username string
	Password string
	Role     Role
}

// LoginChallenge is the result of a successful credential submission. The
// session id correlates the passcode challenge; it is not proof of
// authentication.
type LoginChallenge struct {
	SessionID string
	Message   string
}

// ResendResult is the result of a passcode resend. SessionID is the
// identifier to use from now on; it equals the previous one when the
// backend did not rotate it.
type ResendResult struct {
	SessionID string
	Message   string
	Rotated   bool
}

// Tokens is the complete payload of a successful passcode verification.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	UserType     string
	UserID       string
	Username     string
}

// missingFields lists the names of empty fields, using the wire names.
func (t Tokens) missingFields() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"access", t.AccessToken},
		{"refresh", t.RefreshToken},
		{"user_type", t.UserType},
		{"user_id", t.UserID},
		{"username", t.Username},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ============================================================================
// Wire types
// ============================================================================

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UserType Role   `json:"user_type"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type verifyOTPRequest struct {
	SessionID string `json:"session_id"`
	OTPCode   string `json:"otp_code"`
	UserType  Role   `json:"user_type"`
}

type verifyOTPResponse struct {
	Access   string     `json:"access"`
	Refresh  string     `json:"refresh"`
	UserType string     `json:"user_type"`
	UserID   flexString `json:"user_id"`
	Username string     `json:"username"`
}

type resendOTPRequest struct {
	SessionID string `json:"session_id"`
	UserType  Role   `json:"user_type"`
}

type resendOTPResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// flexString accepts a JSON string or number. The backend emits numeric
// primary keys for user_id; they are kept in their exact decimal form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user_id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}
