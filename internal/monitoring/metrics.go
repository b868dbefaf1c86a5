package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the fulfillment core
type Metrics struct {
	OrderTransitions    *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	JobsSent            prometheus.Counter
	JobsFailed          *prometheus.CounterVec
	JobsRetried         prometheus.Counter
	LeasesReclaimed     prometheus.Counter
	QueueDepth          *prometheus.GaugeVec
	SendDuration        prometheus.Histogram
	CampaignsDispatched prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metrics := &Metrics{
		OrderTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Total number of applied order transitions",
			},
			[]string{"to"},
		),
		TransitionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_rejected_total",
				Help: "Total number of rejected order transitions",
			},
			[]string{"reason"},
		),
		JobsSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notification_jobs_sent_total",
				Help: "Total number of notification jobs delivered",
			},
		),
		JobsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_jobs_failed_total",
				Help: "Total number of terminally failed notification jobs",
			},
			[]string{"kind"}, // permanent, exhausted
		),
		JobsRetried: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notification_jobs_retried_total",
				Help: "Total number of transient failures scheduled for retry",
			},
		),
		LeasesReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notification_leases_reclaimed_total",
				Help: "Total number of expired job leases reclaimed",
			},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "notification_queue_depth",
				Help: "Current number of jobs per queue state",
			},
			[]string{"status"},
		),
		SendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notification_send_duration_seconds",
				Help:    "Time taken by the send channel per delivery",
				Buckets: prometheus.DefBuckets,
			},
		),
		CampaignsDispatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campaigns_dispatched_total",
				Help: "Total number of campaign dispatches that expanded into jobs",
			},
		),
	}

	// Register all metrics
	prometheus.MustRegister(
		metrics.OrderTransitions,
		metrics.TransitionsRejected,
		metrics.JobsSent,
		metrics.JobsFailed,
		metrics.JobsRetried,
		metrics.LeasesReclaimed,
		metrics.QueueDepth,
		metrics.SendDuration,
		metrics.CampaignsDispatched,
	)

	return metrics
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
