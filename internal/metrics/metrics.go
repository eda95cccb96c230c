// Package metrics provides Prometheus metrics for the stage engine and its transports.
// Labels stay low-cardinality: no match or player ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRequestsTotal counts player requests by the code they settled to.
	StageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageengine_requests_total",
		Help: "Total number of player requests handled, by result code.",
	}, []string{"code"})

	// StageTransitionsTotal counts sub-stage checkouts by reason.
	StageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageengine_transitions_total",
		Help: "Total number of sub-stage transitions, by checkout reason.",
	}, []string{"reason"})

	// StageStalledTotal counts auto-resolve loops cut off at the round limit.
	StageStalledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stageengine_stalled_total",
		Help: "Total number of auto-resolve loops that hit the round limit.",
	})

	// MatchesTotal counts finished matches by how they ended.
	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageengine_matches_total",
		Help: "Total number of matches that ended, by result (over, aborted).",
	}, []string{"result"})

	// ActiveMatches tracks matches currently running in this process.
	ActiveMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stageengine_active_matches",
		Help: "Current number of running matches.",
	})

	// MessagesPublishedTotal counts outgoing chat messages by kind (broadcast, tell, reply).
	MessagesPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageengine_messages_published_total",
		Help: "Total number of outgoing chat messages, by kind.",
	}, []string{"kind"})

	// TransportConnected is 1 while the MQTT transport is connected.
	TransportConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stageengine_transport_connected",
		Help: "Whether the MQTT transport is connected (1) or not (0).",
	})

	// HTTPRequestDuration observes operator API latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stageengine_http_request_duration_seconds",
		Help:    "Operator API request latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
