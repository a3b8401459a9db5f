package consoleauth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ============================================================================
// Error kinds
// ============================================================================

// Kind classifies a failed flow. The set is closed; every failure returned by
// this package carries exactly one of these.
type Kind string

const (
	KindInvalidCredentials Kind = "InvalidCredentials"
	KindAccountLocked      Kind = "AccountLocked"
	KindTooManyAttempts    Kind = "TooManyAttempts"
	KindValidation         Kind = "ValidationError"
	KindRequest            Kind = "RequestError"
	KindNetwork            Kind = "NetworkError"
	KindUnexpected         Kind = "UnexpectedError"

	// KindLocalValidation is raised before any request is made.
	KindLocalValidation Kind = "LocalValidationError"
)

// Fixed user-facing messages used when the backend does not supply one.
const (
	MsgNetwork            = "Unable to reach the server, check your connection."
	MsgInvalidCredentials = "Invalid username or password."
	MsgAccountLocked      = "Your account is locked. Contact an administrator."
	MsgTooManyAttempts    = "Too many attempts. Please wait and try again."
	MsgValidation         = "Please check the information you entered."
	MsgRequest            = "The request could not be completed."
	MsgUnexpected         = "An unexpected error occurred."
)

// ============================================================================
// Error - the domain error returned to callers
// ============================================================================

// Error is the uniform failure value returned by every flow. Error() is the
// message meant for display; StatusCode and the wrapped cause are kept for
// logging only.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying transport or decode failure.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrAccountLocked)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrAccountLocked      = &Error{Kind: KindAccountLocked}
	ErrTooManyAttempts    = &Error{Kind: KindTooManyAttempts}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrRequest            = &Error{Kind: KindRequest}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrUnexpected         = &Error{Kind: KindUnexpected}
	ErrLocalValidation    = &Error{Kind: KindLocalValidation}
)

// KindOf returns the kind carried by err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// newLocalValidationError builds an error that never reached the network.
func newLocalValidationError(msg string) *Error {
	return &Error{Kind: KindLocalValidation, Message: msg}
}

// ============================================================================
// Translation
// ============================================================================

// Response is the part of a received HTTP response the translator looks at.
type Response struct {
	StatusCode int
	Body       []byte
}

// Failure describes a flow that did not succeed. Response is nil when no
// response was received at all (connection refused, DNS, timeout, cancelled
// context). Err is the raised failure, if any.
type Failure struct {
	Response *Response
	Err      error
}

// Rule maps one class of failure to an error kind. Rules are evaluated in
// order and the first match wins.
type Rule struct {
	Name    string
	Kind    Kind
	Match   func(f Failure, body ErrorBody) bool
	Message func(f Failure, body ErrorBody) string
}

var translationRules = []Rule{
	{
		Name:    "no response",
		Kind:    KindNetwork,
		Match:   func(f Failure, _ ErrorBody) bool { return f.Response == nil },
		Message: func(Failure, ErrorBody) string { return MsgNetwork },
	},
	{
		Name:    "unauthorized",
		Kind:    KindInvalidCredentials,
		Match:   statusIs(http.StatusUnauthorized),
		Message: detailOr(MsgInvalidCredentials),
	},
	{
		Name:    "forbidden",
		Kind:    KindAccountLocked,
		Match:   statusIs(http.StatusForbidden),
		Message: detailOr(MsgAccountLocked),
	},
	{
		Name:    "rate limited",
		Kind:    KindTooManyAttempts,
		Match:   statusIs(http.StatusTooManyRequests),
		Message: detailOr(MsgTooManyAttempts),
	},
	{
		Name:  "bad request",
		Kind:  KindValidation,
		Match: statusIs(http.StatusBadRequest),
		Message: func(_ Failure, body ErrorBody) string {
			for _, field := range []string{"detail", "username", "email", "non_field_errors"} {
				if msg := body.First(field); msg != "" {
					return msg
				}
			}
			return MsgValidation
		},
	},
	{
		Name: "other status with body",
		Kind: KindRequest,
		Match: func(f Failure, body ErrorBody) bool {
			if isSuccess(f.Response.StatusCode) {
				return false
			}
			return body != nil || len(bytes.TrimSpace(f.Response.Body)) > 0
		},
		Message: detailOr(MsgRequest),
	},
	{
		Name:  "malformed",
		Kind:  KindUnexpected,
		Match: func(Failure, ErrorBody) bool { return true },
		Message: func(f Failure, _ ErrorBody) string {
			if f.Err != nil && f.Err.Error() != "" {
				return f.Err.Error()
			}
			return MsgUnexpected
		},
	},
}

// TranslationRules returns the ordered rule table used by Translate.
func TranslationRules() []Rule {
	return append([]Rule(nil), translationRules...)
}

// Translate maps a failure onto exactly one domain error.
func Translate(f Failure) *Error {
	var body ErrorBody
	if f.Response != nil {
		body = ParseErrorBody(f.Response.Body)
	}

	for _, rule := range translationRules {
		if !rule.Match(f, body) {
			continue
		}

		e := &Error{
			Kind:    rule.Kind,
			Message: rule.Message(f, body),
			Err:     f.Err,
		}
		if f.Response != nil {
			e.StatusCode = f.Response.StatusCode
		}
		return e
	}

	// Unreachable: the last rule matches everything.
	return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: f.Err}
}

func statusIs(code int) func(Failure, ErrorBody) bool {
	return func(f Failure, _ ErrorBody) bool {
		return f.Response.StatusCode == code
	}
}

func detailOr(fallback string) func(Failure, ErrorBody) string {
	return func(_ Failure, body ErrorBody) string {
		if msg := body.First("detail"); msg != "" {
			return msg
		}
		return fallback
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// ErrorBody is a decoded JSON object error payload. It is nil when the body
// is empty or not a JSON object.
type ErrorBody map[string]json.RawMessage

// ParseErrorBody decodes b, returning nil unless it is a JSON object.
func ParseErrorBody(b []byte) ErrorBody {
	var body ErrorBody
	if err := json.Unmarshal(b, &body); err != nil {
		return nil
	}
	return body
}

// First returns the message held under key: the string itself, or the first
// non-empty string of a list. Anything else yields "".
func (b ErrorBody) First(key string) string {
	raw, ok := b[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return ""
	}
	for _, item := range list {
		if err := json.Unmarshal(item, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
