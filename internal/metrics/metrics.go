package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

var (
	// ChatSends counts optimistic deliveries by result (ok, error).
	ChatSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "sends_total",
		Help:      "Optimistic chat sends by final result.",
	}, []string{"result"})

	// ChatPolls counts message poll fetches by outcome (unchanged, changed, stale, error).
	ChatPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "polls_total",
		Help:      "Chat message poll fetches by outcome.",
	}, []string{"outcome"})

	// InboxPolls counts conversation list refreshes by outcome.
	InboxPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "inbox_polls_total",
		Help:      "Conversation list poll fetches by outcome.",
	}, []string{"outcome"})

	// OpenSessions tracks chat windows open across all viewers.
	OpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "open_sessions",
		Help:      "Chat sessions currently open.",
	})

	// UpstreamLatency observes outbound HTTP calls.
	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to upstream APIs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "endpoint", "code"})
)

func init() {
	prometheus.MustRegister(ChatSends, ChatPolls, InboxPolls, OpenSessions, UpstreamLatency)
}

// ObserveUpstream records one outbound call.
func ObserveUpstream(service, endpoint, code string, started time.Time) {
	UpstreamLatency.WithLabelValues(service, endpoint, code).Observe(time.Since(started).Seconds())
}
