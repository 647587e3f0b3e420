package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Start results.
const (
	StartResultSuccess        = "success"
	StartResultInvalid        = "invalid"
	StartResultAlreadyRunning = "already_running"
	StartResultLaunchFailed   = "launch_failed"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "loopcast",
		Subsystem: "session",
		Name:      "active",
		Help:      "Number of sessions holding a registry slot",
	})

	sessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopcast",
		Subsystem: "session",
		Name:      "starts_total",
		Help:      "Start requests by result",
	}, []string{"result"})

	sessionUnexpectedExits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopcast",
		Subsystem: "session",
		Name:      "unexpected_exits_total",
		Help:      "Transcoders that exited without a stop request",
	})

	sessionKills = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopcast",
		Subsystem: "session",
		Name:      "kill_escalations_total",
		Help:      "Stops that needed SIGKILL after the grace period",
	})

	sessionTerminationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopcast",
		Subsystem: "session",
		Name:      "termination_failures_total",
		Help:      "Transcoders that did not exit even after SIGKILL",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "loopcast",
		Subsystem: "session",
		Name:      "duration_seconds",
		Help:      "Lifetime of finished sessions",
		Buckets:   []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 12 * 3600, 24 * 3600},
	})
)

// SessionAdded records a session taking a registry slot.
func SessionAdded() {
	activeSessions.Inc()
}

// SessionRemoved records a session leaving the registry after living for d.
func SessionRemoved(d time.Duration) {
	activeSessions.Dec()
	sessionDuration.Observe(d.Seconds())
}

// RecordStart counts a start request with the given result.
func RecordStart(result string) {
	sessionStarts.WithLabelValues(result).Inc()
}

// RecordUnexpectedExit counts a transcoder exit nobody asked for.
func RecordUnexpectedExit() {
	sessionUnexpectedExits.Inc()
}

// RecordKillEscalation counts a stop that had to fall back to SIGKILL.
func RecordKillEscalation() {
	sessionKills.Inc()
}

// RecordTerminationFailure counts a transcoder that survived SIGKILL.
func RecordTerminationFailure() {
	sessionTerminationFailures.Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}
