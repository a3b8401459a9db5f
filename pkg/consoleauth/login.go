package consoleauth

import (
	"context"
	"net/http"
	"strings"
)

// Login submits a username and password for the given audience and returns
// the session id that the passcode challenge must be answered against.
// Empty fields are rejected locally without a request. Nothing is persisted:
// a session id alone is never proof of authentication.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginChallenge, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	req := loginRequest{
		Username: strings.TrimSpace(creds.Username),
		Password: creds.Password,
		UserType: creds.Role,
	}

	var resp loginResponse
	if err := c.postJSON(ctx, PathLogin, req, &resp); err != nil {
		return nil, err
	}

	if resp.SessionID == "" {
		return nil, malformed(http.StatusOK, "missing session_id")
	}

	return &LoginChallenge{
		SessionID: resp.SessionID,
		Message:   resp.Message,
	}, nil
}
