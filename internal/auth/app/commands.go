package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/auth/service"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/aussiebroadwan/regconsole/pkg/jwtx"
)

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitFail  = 1
	ExitUsage = 2
)

// resendCommand typed at the passcode prompt asks for a new code.
const resendCommand = "resend"

const usage = `usage: console <command>

commands:
  login    sign in with username, password and one-time passcode
  logout   sign out and forget the stored session
  whoami   show the signed in user
  status   exit 0 when signed in, 1 otherwise
`

// errInputClosed is returned when stdin ends in the middle of a prompt.
var errInputClosed = errors.New("input closed")

// Run executes one console command and returns the process exit code.
func (app *Application) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(app.out, usage)
		return ExitUsage
	}

	defer app.flushMetrics()

	switch args[0] {
	case "login":
		return app.login(ctx)
	case "logout":
		return app.logout(ctx)
	case "whoami":
		return app.whoami(ctx)
	case "status":
		return app.status(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(app.out, usage)
		return ExitOK
	default:
		fmt.Fprintf(app.out, "unknown command %q\n\n%s", args[0], usage)
		return ExitUsage
	}
}

func (app *Application) login(ctx context.Context) int {
	flow := service.NewLoginFlow(ctx, app.sessions, app.role,
		service.WithResendCooldown(app.cfg.ResendCooldown),
	)

	if id, ok := flow.Identity(); ok {
		fmt.Fprintf(app.out, "Already signed in as %s (%s).\n", id.Username, id.UserType)
		return ExitOK
	}

	for {
		if err := app.submitCredentials(ctx, flow); err != nil {
			return app.abort(err)
		}

		err := app.answerChallenge(ctx, flow)
		if err == nil {
			id, _ := flow.Identity()
			fmt.Fprintf(app.out, "Signed in as %s (%s).\n", id.Username, id.UserType)
			return ExitOK
		}
		if !errors.Is(err, consoleauth.ErrTooManyAttempts) {
			return app.abort(err)
		}

		// The challenge is gone; Submit starts a fresh one.
	}
}

// submitCredentials prompts until the backend accepts a username/password
// pair. Failures are shown and the form is asked again.
func (app *Application) submitCredentials(ctx context.Context, flow *service.LoginFlow) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		username, err := app.prompt("Username: ")
		if err != nil {
			return err
		}
		password, err := app.promptPassword("Password: ")
		if err != nil {
			return err
		}

		challenge, err := flow.Submit(ctx, username, password)
		if err != nil {
			if isInterrupted(ctx, err) {
				return err
			}
			fmt.Fprintln(app.out, err)
			continue
		}

		if challenge.Message != "" {
			fmt.Fprintln(app.out, challenge.Message)
		}
		return nil
	}
}

// answerChallenge prompts for the passcode until it is accepted. Typing
// "resend" asks for a new code. A TooManyAttempts failure is returned so the
// caller can restart from the credentials form.
func (app *Application) answerChallenge(ctx context.Context, flow *service.LoginFlow) error {
	fmt.Fprintf(app.out, "Enter the %d-digit code, or %q for a new one.\n", consoleauth.OTPLength, resendCommand)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := app.prompt("Code: ")
		if err != nil {
			return err
		}

		if strings.EqualFold(line, resendCommand) {
			res, err := flow.Resend(ctx)
			switch {
			case err == nil:
				if res.Message != "" {
					fmt.Fprintln(app.out, res.Message)
				} else {
					fmt.Fprintln(app.out, "A new code has been sent.")
				}
			case isInterrupted(ctx, err):
				return err
			case errors.Is(err, consoleauth.ErrTooManyAttempts):
				fmt.Fprintln(app.out, err)
				return err
			default:
				fmt.Fprintln(app.out, err)
			}
			continue
		}

		_, err = flow.Verify(ctx, consoleauth.SanitizeOTP(line))
		switch {
		case err == nil:
			return nil
		case isInterrupted(ctx, err), errors.Is(err, consoleauth.ErrTooManyAttempts):
			fmt.Fprintln(app.out, err)
			return err
		default:
			fmt.Fprintln(app.out, err)
		}
	}
}

func (app *Application) logout(ctx context.Context) int {
	if err := app.sessions.Logout(ctx); err != nil {
		fmt.Fprintf(app.out, "Sign out failed: %v\n", err)
		return ExitFail
	}
	fmt.Fprintln(app.out, "Signed out.")
	return ExitOK
}

func (app *Application) whoami(ctx context.Context) int {
	sess, ok := app.sessions.Current(ctx)
	if !ok {
		fmt.Fprintln(app.out, "Not signed in.")
		return ExitFail
	}

	fmt.Fprintf(app.out, "username:  %s\n", sess.Username)
	fmt.Fprintf(app.out, "user type: %s\n", sess.UserType)
	fmt.Fprintf(app.out, "user id:   %s\n", sess.UserID)
	fmt.Fprintf(app.out, "expires:   %s\n", accessExpiry(sess.AccessToken))
	return ExitOK
}

func (app *Application) status(ctx context.Context) int {
	if app.sessions.IsAuthenticated(ctx) {
		fmt.Fprintln(app.out, "authenticated")
		return ExitOK
	}
	fmt.Fprintln(app.out, "not authenticated")
	return ExitFail
}

// prompt writes label and reads one trimmed line.
func (app *Application) prompt(label string) (string, error) {
	fmt.Fprint(app.out, label)
	if !app.in.Scan() {
		fmt.Fprintln(app.out)
		if err := app.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(app.in.Text()), nil
}

// promptPassword reads a line without echo when stdin is a terminal and
// falls back to prompt otherwise.
func (app *Application) promptPassword(label string) (string, error) {
	if app.termFD < 0 {
		return app.prompt(label)
	}

	fmt.Fprint(app.out, label)
	secret, err := app.readPassword(app.termFD)
	fmt.Fprintln(app.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func (app *Application) abort(err error) int {
	switch {
	case errors.Is(err, errInputClosed):
		app.logger.Debug("login abandoned, input closed")
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(app.out, "Login cancelled.")
	default:
		app.logger.Debug("login failed", "error", err)
	}
	return ExitFail
}

// isInterrupted reports whether err came from the caller going away rather
// than from the backend.
func isInterrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// accessExpiry formats the access token's exp claim for display. The token
// is not verified here.
func accessExpiry(raw string) string {
	claims, err := jwtx.Peek(raw)
	if err != nil || claims.ExpiresAt == nil {
		return "unknown"
	}

	exp := claims.ExpiresAt.Time
	if time.Until(exp) <= 0 {
		return exp.Local().Format(time.RFC3339) + " (expired)"
	}
	return exp.Local().Format(time.RFC3339)
}
