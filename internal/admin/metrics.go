package admin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the connection manager and
// session engine record against, following
// iranpsc-microservice-metarang/shared/pkg/metrics's promauto pattern.
type Metrics struct {
	ConnectionsTotal    prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	AnswersProcessed    prometheus.Counter
	BroadcastDrops      prometheus.Counter
	SessionsActive      prometheus.Gauge
	QuestionDispatchDur prometheus.Histogram
}

// NewMetrics registers and returns the server's metric collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "quiznet",
			Name:      "connections_total",
			Help:      "Total TCP connections accepted since startup.",
		}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiznet",
			Name:      "connections_active",
			Help:      "Currently connected TCP clients.",
		}),
		AnswersProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "quiznet",
			Name:      "answers_processed_total",
			Help:      "Total question/answer requests accepted.",
		}),
		BroadcastDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "quiznet",
			Name:      "broadcast_drops_total",
			Help:      "Clients disconnected due to a full send queue during broadcast.",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiznet",
			Name:      "sessions_active",
			Help:      "Currently non-finished game sessions.",
		}),
		QuestionDispatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quiznet",
			Name:      "question_dispatch_seconds",
			Help:      "Time between a question's dispatch and its results broadcast.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
