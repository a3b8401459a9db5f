package consoleauth

import (
	"context"
)

// Logout asks the backend to invalidate refreshToken. Any 2xx counts as
// success and the body is ignored. Callers clearing local state should not
// wait on the outcome of this call.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return newLocalValidationError("No refresh token to invalidate.")
	}

	return c.postJSON(ctx, PathLogout, logoutRequest{Refresh: refreshToken}, nil)
}
