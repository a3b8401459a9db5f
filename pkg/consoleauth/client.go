package consoleauth

import (
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every request when the caller does not supply an
// http.Client. A timeout surfaces as KindNetwork.
const DefaultTimeout = 10 * time.Second

// Backend endpoint paths, relative to BaseURL.
const (
	PathLogin     = "/login"
	PathVerifyOTP = "/verify-otp"
	PathResendOTP = "/resend-otp"
	PathLogout    = "/logout"
)

// Client talks to the registration backend's authentication endpoints.
// It holds no session state and never persists anything: every method is a
// single request whose result is returned to the caller.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for baseURL (e.g. "https://host/api/auth").
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// NewClientWithHTTP creates a client using a caller-provided http.Client,
// e.g. one whose transport logs requests.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	c := NewClient(baseURL)
	if hc != nil {
		c.HTTPClient = hc
	}
	return c
}
