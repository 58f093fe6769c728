package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	// toolCallsTotal counts tool invocations by tool and outcome (ok or error kind).
	toolCallsTotal *prometheus.CounterVec

	// toolCallDuration tracks end-to-end tool latency.
	toolCallDuration *prometheus.HistogramVec

	// apiRequestsTotal counts Cybereason API responses by method and HTTP status.
	apiRequestsTotal *prometheus.CounterVec

	reloginsTotal      prometheus.Counter
	loginFailuresTotal prometheus.Counter
	circuitOpenTotal   prometheus.Counter
)

// InitMetrics registers all collectors with the default registry.
// Record* helpers are no-ops until it is called.
func InitMetrics() {
	metricsOnce.Do(func() {
		toolCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybereason_tool_calls_total",
				Help: "Total number of tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		)

		toolCallDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cybereason_tool_call_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tool"},
		)

		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybereason_api_requests_total",
				Help: "Total number of Cybereason API responses by method and status code",
			},
			[]string{"method", "status"},
		)

		reloginsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybereason_relogins_total",
			Help: "Re-authentications triggered by an expired session",
		})

		loginFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybereason_login_failures_total",
			Help: "Failed login attempts",
		})

		circuitOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cybereason_circuit_open_total",
			Help: "Calls rejected or trips caused by the open circuit breaker",
		})
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordToolCall records one tool invocation.
// outcome: "ok" or an error kind such as "ValidationError".
func RecordToolCall(tool, outcome string, d time.Duration) {
	if toolCallsTotal != nil {
		toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	}
	if toolCallDuration != nil {
		toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// RecordAPIRequest records one Cybereason API response.
func RecordAPIRequest(method string, status int) {
	if apiRequestsTotal != nil {
		apiRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
}

// RecordRelogin records a re-authentication after a 401.
func RecordRelogin() {
	if reloginsTotal != nil {
		reloginsTotal.Inc()
	}
}

// RecordLoginFailure records a failed login.
func RecordLoginFailure() {
	if loginFailuresTotal != nil {
		loginFailuresTotal.Inc()
	}
}

// RecordCircuitOpen records a breaker trip or a call rejected while open.
func RecordCircuitOpen() {
	if circuitOpenTotal != nil {
		circuitOpenTotal.Inc()
	}
}
