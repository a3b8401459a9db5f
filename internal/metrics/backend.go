package metrics

import "github.com/prometheus/client_golang/prometheus"

// BackendCollector counts events inside the development backend.
type BackendCollector struct {
	challengesIssued prometheus.Counter
	otpFailures      prometheus.Counter
	challengesPurged prometheus.Counter
	tokensIssued     prometheus.Counter
	tokensRevoked    prometheus.Counter
}

// NewBackendCollector creates a BackendCollector and registers its metrics
// with reg.
func NewBackendCollector(reg prometheus.Registerer) *BackendCollector {
	c := &BackendCollector{
		challengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authmock_challenges_issued_total",
			Help: "Passcode challenges created or rotated.",
		}),
		otpFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authmock_otp_failures_total",
			Help: "Rejected passcodes.",
		}),
		challengesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authmock_challenges_purged_total",
			Help: "Expired challenges removed by housekeeping.",
		}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authmock_tokens_issued_total",
			Help: "Token pairs issued after a successful passcode.",
		}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authmock_tokens_revoked_total",
			Help: "Refresh tokens revoked by logout.",
		}),
	}

	reg.MustRegister(
		c.challengesIssued,
		c.otpFailures,
		c.challengesPurged,
		c.tokensIssued,
		c.tokensRevoked,
	)

	return c
}

func (c *BackendCollector) ChallengeIssued() { c.challengesIssued.Inc() }
func (c *BackendCollector) OTPFailed()       { c.otpFailures.Inc() }
func (c *BackendCollector) ChallengesPurged(n int) {
	c.challengesPurged.Add(float64(n))
}
func (c *BackendCollector) TokensIssued() { c.tokensIssued.Inc() }
func (c *BackendCollector) TokenRevoked() { c.tokensRevoked.Inc() }
