/*
Package consoleauth is the client for the registration backend's two-step
console login: username/password submission followed by a six digit
one-time passcode.

# Flows

Every method on Client is a single request. None of them store anything:

	client := consoleauth.NewClient("https://registry.example.com/api/auth")

	// Step 1: credentials. Returns the session id for the passcode challenge.
	challenge, err := client.Login(ctx, consoleauth.Credentials{
		Username: "alice",
		Password: "secret",
		Role:     consoleauth.RoleAdministrator,
	})

	// Optional: ask for a new passcode. Always adopt the returned id.
	resend, err := client.ResendOTP(ctx, challenge.SessionID, consoleauth.RoleAdministrator)
	sessionID := resend.SessionID

	// Step 2: passcode. Returns all five session fields.
	tokens, err := client.VerifyOTP(ctx, sessionID, consoleauth.RoleAdministrator, "123456")

	// Later: best-effort server side invalidation.
	err = client.Logout(ctx, tokens.RefreshToken)

Persisting the tokens returned by VerifyOTP is left to the caller (see
internal/auth/service.SessionService), which keeps this package free of side
effects and easy to test against an httptest server.

# Local validation

Login rejects an empty username or password, and VerifyOTP rejects any code
that is not exactly six ASCII digits, without sending a request. Use
SanitizeOTP on raw input to drop non-digit characters as they are entered.

# Error Handling

Every failure is an *Error carrying one Kind from a closed set:

  - KindNetwork: no response was received (includes timeouts)
  - KindInvalidCredentials: HTTP 401
  - KindAccountLocked: HTTP 403
  - KindTooManyAttempts: HTTP 429
  - KindValidation: HTTP 400
  - KindRequest: any other non-2xx status with a non-empty body
  - KindUnexpected: anything else, such as a 2xx with a malformed body
  - KindLocalValidation: rejected before any request was made

The mapping is an ordered rule table (TranslationRules) evaluated top to
bottom by Translate. Error() returns a message suitable for display:

	tokens, err := client.VerifyOTP(ctx, sessionID, role, code)
	switch {
	case errors.Is(err, consoleauth.ErrAccountLocked):
		// contact an administrator
	case errors.Is(err, consoleauth.ErrTooManyAttempts):
		// wait and retry
	case err != nil:
		fmt.Println(err) // show inline, keep the form editable
	}

The client never retries on its own.
*/
package consoleauth
