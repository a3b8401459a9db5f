package consoleauth

import (
	"context"
	"net/http"
	"strings"
)

// VerifyOTP answers the passcode challenge identified by sessionID. The code
// must be exactly six digits; anything else is rejected locally.
//
// On success the complete token payload is returned. VerifyOTP does not
// store it; persisting the tokens is the caller's job. A response missing any
// of the five fields is treated as malformed so a partial session can never
// be stored.
func (c *Client) VerifyOTP(ctx context.Context, sessionID string, role Role, code string) (*Tokens, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}
	if err := ValidateOTP(code); err != nil {
		return nil, err
	}

	req := verifyOTPRequest{
		SessionID: sessionID,
		OTPCode:   code,
		UserType:  role,
	}

	var resp verifyOTPResponse
	if err := c.postJSON(ctx, PathVerifyOTP, req, &resp); err != nil {
		return nil, err
	}

	tokens := Tokens{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
		UserType:     resp.UserType,
		UserID:       string(resp.UserID),
		Username:     resp.Username,
	}
	if missing := tokens.missingFields(); len(missing) > 0 {
		return nil, malformed(http.StatusOK, "missing %s", strings.Join(missing, ", "))
	}

	return &tokens, nil
}

// ResendOTP asks the backend to issue a new passcode for sessionID. The
// backend may rotate the session id; callers must use the returned SessionID
// for every later verify or resend call.
//
// Concurrent calls are not deduplicated here.
func (c *Client) ResendOTP(ctx context.Context, sessionID string, role Role) (*ResendResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}

	req := resendOTPRequest{
		SessionID: sessionID,
		UserType:  role,
	}

	var resp resendOTPResponse
	if err := c.postJSON(ctx, PathResendOTP, req, &resp); err != nil {
		return nil, err
	}

	result := &ResendResult{
		SessionID: sessionID,
		Message:   resp.Message,
	}
	if resp.SessionID != "" && resp.SessionID != sessionID {
		result.SessionID = resp.SessionID
		result.Rotated = true
	}

	return result, nil
}
