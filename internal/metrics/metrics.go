// Package metrics exposes Prometheus counters for the orchestration engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec // by mode
	QuestionsAsked    prometheus.Counter
	FallbacksInjected prometheus.Counter
	DefaultsSubbed    prometheus.Counter
	ForcedCompletions prometheus.Counter
	RateLimited       prometheus.Counter
	BackendFailures   prometheus.Counter
	SummariesOK       prometheus.Counter
	SummariesRejected prometheus.Counter
}

// Default returns the process-wide Metrics, registering collectors on first
// use. sync.Once guards against duplicate registration panics.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = &Metrics{
			SessionsStarted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "interviewd_sessions_started_total",
					Help: "Interview sessions created",
				},
				[]string{"mode"},
			),
			QuestionsAsked: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_questions_asked_total",
				Help: "Interviewer turns appended to transcripts",
			}),
			FallbacksInjected: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_fallbacks_injected_total",
				Help: "Coverage fallback questions injected",
			}),
			DefaultsSubbed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_default_questions_total",
				Help: "Default questions substituted for blank backend output",
			}),
			ForcedCompletions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_forced_completions_total",
				Help: "Turn requests answered with a forced-completion signal",
			}),
			RateLimited: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_rate_limited_total",
				Help: "Orchestration calls rejected by the session call limiter",
			}),
			BackendFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_backend_failures_total",
				Help: "Failed calls to the narrative backend",
			}),
			SummariesOK: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_summaries_persisted_total",
				Help: "Summary documents validated and persisted",
			}),
			SummariesRejected: promauto.NewCounter(prometheus.CounterOpts{
				Name: "interviewd_summaries_rejected_total",
				Help: "Summary outputs rejected by validation",
			}),
		}
	})
	return defaultMetrics
}
