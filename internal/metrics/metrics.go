// Package metrics records authentication flow outcomes with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flow names used as the "flow" label.
const (
	FlowLogin     = "login"
	FlowVerifyOTP = "verify_otp"
	FlowResendOTP = "resend_otp"
	FlowLogout    = "logout"
)

// Outcome labels. Failures of the backend API are labelled with their error
// kind instead.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Recorder is what the session service reports to.
type Recorder interface {
	RecordFlow(flow, outcome string, duration time.Duration)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	flowTotal    *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		flowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regconsole_auth_flow_total",
			Help: "Authentication flows by outcome.",
		}, []string{"flow", "outcome"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regconsole_auth_flow_duration_seconds",
			Help:    "Duration of authentication flows in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow"}),
	}

	reg.MustRegister(c.flowTotal, c.flowDuration)

	return c
}

// RecordFlow counts one completed flow and observes its duration.
func (c *Collector) RecordFlow(flow, outcome string, duration time.Duration) {
	c.flowTotal.WithLabelValues(flow, outcome).Inc()
	c.flowDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordFlow(string, string, time.Duration) {}

// Handler serves the gathered metrics for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
