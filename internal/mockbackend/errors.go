package mockbackend

import (
	"net/http"

	"github.com/aussiebroadwan/regconsole/pkg/httpx"
)

// APIError is a failure the backend reports to the console. It renders in
// the backend's two error styles: a single {"detail": ...} message, or
// field-scoped lists such as {"username": ["..."]}.
type APIError struct {
	Status int
	Detail string
	Fields map[string][]string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	for field, msgs := range e.Fields {
		if len(msgs) > 0 {
			return field + ": " + msgs[0]
		}
	}
	return http.StatusText(e.Status)
}

// WriteError writes e as the response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if len(e.Fields) > 0 {
		httpx.WriteFieldErrors(w, e.Status, e.Fields)
		return
	}
	httpx.WriteDetail(w, e.Status, e.Detail)
}

func fieldError(field, msg string) *APIError {
	return &APIError{
		Status: http.StatusBadRequest,
		Fields: map[string][]string{field: {msg}},
	}
}

const msgFieldRequired = "This field is required."

var (
	ErrInvalidCredentials = &APIError{
		Status: http.StatusUnauthorized,
		Detail: "Invalid username or password.",
	}
	ErrAccountLocked = &APIError{
		Status: http.StatusForbidden,
		Detail: "This account has been locked. Contact an administrator.",
	}
	ErrInvalidSession = &APIError{
		Status: http.StatusBadRequest,
		Detail: "Invalid or expired session. Please sign in again.",
	}
	ErrInvalidOTP = &APIError{
		Status: http.StatusBadRequest,
		Detail: "Invalid or expired OTP.",
	}
	ErrTooManyOTPAttempts = &APIError{
		Status: http.StatusTooManyRequests,
		Detail: "Too many incorrect codes. Please sign in again.",
	}
	ErrTooManyResends = &APIError{
		Status: http.StatusTooManyRequests,
		Detail: "Too many codes requested. Please sign in again.",
	}
	ErrInvalidRefreshToken = &APIError{
		Status: http.StatusUnauthorized,
		Detail: "Token is invalid or expired.",
	}
	ErrServer = &APIError{
		Status: http.StatusInternalServerError,
		Detail: "Internal server error.",
	}
)
