// Package metrics holds the Prometheus collectors exported by the orchestrator.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verichain",
		Subsystem: "negotiation",
		Name:      "sessions_started_total",
		Help:      "Negotiation sessions opened, by trigger and urgency.",
	}, []string{"trigger", "urgency"})

	SessionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verichain",
		Subsystem: "negotiation",
		Name:      "sessions_resolved_total",
		Help:      "Negotiation sessions that reached a terminal state, by terminal tag.",
	}, []string{"tag"})

	TriggersSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "verichain",
		Subsystem: "monitor",
		Name:      "triggers_suppressed_total",
		Help:      "Stock mutations below threshold that did not open a session because one was already active.",
	})

	ProposalsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verichain",
		Subsystem: "collector",
		Name:      "proposals_total",
		Help:      "Vendor solicitations by outcome (accepted, malformed, failed, timeout).",
	}, []string{"result"})

	CollectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "verichain",
		Subsystem: "collector",
		Name:      "collect_duration_seconds",
		Help:      "Time spent collecting vendor proposals for one session.",
		Buckets: []float64{
			0.01, 0.05, 0.1, 0.25, 0.5,
			1, 2.5, 5, 10, 30, 60, 120,
		},
	}, []string{"partial"})

	CommitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "verichain",
		Subsystem: "negotiation",
		Name:      "commit_failures_total",
		Help:      "Order commits that failed after a session was approved.",
	})
)

// RegisterActiveSessions exposes the live non-terminal session count.
// Registering twice is a no-op.
func RegisterActiveSessions(count func() int) {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "verichain",
		Subsystem: "negotiation",
		Name:      "active_sessions",
		Help:      "Negotiation sessions currently in a non-terminal state.",
	}, func() float64 { return float64(count()) })
	if err := prometheus.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
