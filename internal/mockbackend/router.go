package mockbackend

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/regconsole/internal/metrics"
	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/aussiebroadwan/regconsole/pkg/httpx"
	"github.com/aussiebroadwan/regconsole/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

// RateLimits configures the per-endpoint limiters.
type RateLimits struct {
	Login  httpx.RateLimitConfig
	Verify httpx.RateLimitConfig
	Resend httpx.RateLimitConfig
	Logout httpx.RateLimitConfig
}

// DefaultRateLimits uses the strict profile for credential and passcode
// submission and the moderate profile otherwise.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Login:  httpx.StrictLimit,
		Verify: httpx.StrictLimit,
		Resend: httpx.ModerateLimit,
		Logout: httpx.ModerateLimit,
	}
}

// RateLimitsFromEnv applies RATELIMIT_{LOGIN,VERIFY,RESEND,LOGOUT}_* overrides.
func RateLimitsFromEnv() RateLimits {
	d := DefaultRateLimits()
	return RateLimits{
		Login:  httpx.ParseRateLimitFromEnv("LOGIN", d.Login),
		Verify: httpx.ParseRateLimitFromEnv("VERIFY", d.Verify),
		Resend: httpx.ParseRateLimitFromEnv("RESEND", d.Resend),
		Logout: httpx.ParseRateLimitFromEnv("LOGOUT", d.Logout),
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	backend      *Backend
	gatherer     prometheus.Gatherer
	limits       RateLimits
	prefix       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

// NewRouter mounts the authentication endpoints under prefix (for example
// "/api/auth"). Health and metrics stay at the root.
func NewRouter(
	backend *Backend,
	gatherer prometheus.Gatherer,
	prefix, buildVersion string,
	limits RateLimits,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		backend:      backend,
		gatherer:     gatherer,
		limits:       limits,
		prefix:       strings.TrimSuffix(prefix, "/"),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Backend: r.backend}

	// Credential guessing is limited per IP and per username.
	r.Mux.Handle("POST "+r.prefix+consoleauth.PathLogin,
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.limits.Login, "username"),
		),
	)

	// Resend rotates the session id, so passcode guessing is limited per IP.
	r.Mux.Handle("POST "+r.prefix+consoleauth.PathVerifyOTP,
		httpx.Chain(http.HandlerFunc(h.HandleVerifyOTP),
			httpx.RateLimitByIP(r.limits.Verify),
		),
	)

	r.Mux.Handle("POST "+r.prefix+consoleauth.PathResendOTP,
		httpx.Chain(http.HandlerFunc(h.HandleResendOTP),
			httpx.RateLimitByIP(r.limits.Resend),
		),
	)

	r.Mux.Handle("POST "+r.prefix+consoleauth.PathLogout,
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.limits.Logout),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /metrics", metrics.Handler(r.gatherer))
}
