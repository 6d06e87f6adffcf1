// Package metrics exposes Prometheus instrumentation for the agent's
// resilience paths: rounds, completion retries, compactions, session
// renewals, and rate-limit waits.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type coreMetrics struct {
	roundsTotal            prometheus.Counter
	completionRetriesTotal *prometheus.CounterVec
	compactionsTotal       *prometheus.CounterVec
	toolExecutionsTotal    *prometheus.CounterVec
	toolExecutionDuration  *prometheus.HistogramVec
	sessionRenewalsTotal   *prometheus.CounterVec
	rateLimitWaitSeconds   prometheus.Counter
	rateLimitCyclesTotal   prometheus.Counter
	sessionActive          prometheus.Gauge
}

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
	inst         *coreMetrics
)

func getMetrics() *coreMetrics {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		inst = &coreMetrics{
			roundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "agent_rounds_total",
				Help: "Total completion/tool-execution rounds.",
			}),
			completionRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "completion_retries_total",
				Help: "Total failed completion attempts by provider.",
			}, []string{"provider"}),
			compactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "context_compactions_total",
				Help: "Total context compactions by outcome.",
			}, []string{"outcome"}),
			toolExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total tool executions by tool and status.",
			}, []string{"tool", "status"}),
			toolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Tool execution duration in seconds by tool.",
				Buckets: prometheus.DefBuckets,
			}, []string{"tool"}),
			sessionRenewalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "session_renewals_total",
				Help: "Total remote session creations by cause.",
			}, []string{"cause"}),
			rateLimitWaitSeconds: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rate_limit_wait_seconds_total",
				Help: "Cumulative seconds spent waiting on server rate limits.",
			}),
			rateLimitCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rate_limit_cycles_total",
				Help: "Total rate-limited responses that triggered a wait-and-resubmit.",
			}),
			sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "remote_session_active",
				Help: "Whether a remote session is currently active (1) or not (0).",
			}),
		}

		registry.MustRegister(
			inst.roundsTotal,
			inst.completionRetriesTotal,
			inst.compactionsTotal,
			inst.toolExecutionsTotal,
			inst.toolExecutionDuration,
			inst.sessionRenewalsTotal,
			inst.rateLimitWaitSeconds,
			inst.rateLimitCyclesTotal,
			inst.sessionActive,
		)
	})
	return inst
}

// EnsureRegistered forces metric registration. Safe to call repeatedly.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns an HTTP handler serving the metrics registry
func Handler() http.Handler {
	getMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordRound counts one completed round
func RecordRound() {
	getMetrics().roundsTotal.Inc()
}

// RecordCompletionRetry counts one failed completion attempt
func RecordCompletionRetry(provider string) {
	getMetrics().completionRetriesTotal.WithLabelValues(provider).Inc()
}

// RecordCompaction counts one compaction with its outcome ("ok" or "fallback")
func RecordCompaction(outcome string) {
	getMetrics().compactionsTotal.WithLabelValues(outcome).Inc()
}

// RecordToolExecution counts one tool execution
func RecordToolExecution(tool, status string, seconds float64) {
	m := getMetrics()
	m.toolExecutionsTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordSessionRenewal counts one remote session creation
func RecordSessionRenewal(cause string) {
	getMetrics().sessionRenewalsTotal.WithLabelValues(cause).Inc()
}

// RecordRateLimitWait accumulates time spent sleeping on rate limits
func RecordRateLimitWait(seconds float64) {
	m := getMetrics()
	m.rateLimitWaitSeconds.Add(seconds)
	m.rateLimitCyclesTotal.Inc()
}

// SetSessionActive reflects whether a remote session is live
func SetSessionActive(active bool) {
	if active {
		getMetrics().sessionActive.Set(1)
	} else {
		getMetrics().sessionActive.Set(0)
	}
}
