// Package metrics exposes Prometheus counters and gauges for the N4
// core, grounded on the example corpus's promauto call-site idiom.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "n4_messages_received_total",
		Help: "PFCP messages received, by message type.",
	}, []string{"message_type"})

	ResponsesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "n4_responses_sent_total",
		Help: "PFCP responses sent, by the message type of the request answered.",
	}, []string{"message_type"})

	DispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "n4_dispatch_errors_total",
		Help: "Dispatch failures, by error kind.",
	}, []string{"kind"})

	RetransmissionsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "n4_retransmissions_deduped_total",
		Help: "Requests recognized as retransmissions and replayed from cache.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "n4_active_sessions",
		Help: "Number of currently established PFCP sessions.",
	})

	ActivePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "n4_active_peers",
		Help: "Number of peers currently in ASSOCIATED state.",
	})

	// DatapathCallDuration is registered but no call site observes it, so
	// the histogram stays empty.
	DatapathCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "n4_datapath_call_duration_seconds",
		Help:    "Latency of calls against the datapath control interface, by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// RecordMessage increments the received counter for msgType.
func RecordMessage(msgType string) {
	MessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordResponse increments the sent counter for msgType, the type name
// of the request the response answers.
func RecordResponse(msgType string) {
	ResponsesSent.WithLabelValues(msgType).Inc()
}

// RecordError increments the dispatch error counter for kind.
func RecordError(kind string) {
	DispatchErrors.WithLabelValues(kind).Inc()
}

// SetActiveSessions sets the active session gauge.
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}

// SetActivePeers sets the active peer gauge.
func SetActivePeers(n int) {
	ActivePeers.Set(float64(n))
}
