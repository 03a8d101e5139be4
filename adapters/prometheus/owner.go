package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/connbox-go/core/actor"
	"github.com/codewandler/connbox-go/core/metrics"
)

type ownerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	panicTotal      *prometheus.CounterVec
	abandonedTotal  *prometheus.CounterVec
	mailboxDepth    *prometheus.GaugeVec
	droppedTotal    *prometheus.CounterVec
	terminatedTotal *prometheus.CounterVec
}

// NewOwnerMetrics registers the owner collectors on reg.
func NewOwnerMetrics(reg prometheus.Registerer) actor.OwnerMetrics {
	m := &ownerMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "connbox_request_duration_seconds",
			Help:    "Time the owner spent executing a request against its resource",
			Buckets: defaultBuckets,
		}, []string{"kind"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connbox_requests_total",
			Help: "Total number of requests executed",
		}, []string{"kind", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connbox_resource_panics_total",
			Help: "Total number of recovered resource panics",
		}, []string{"kind"}),

		abandonedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connbox_replies_abandoned_total",
			Help: "Replies produced after the caller stopped waiting",
		}, []string{"kind"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "connbox_mailbox_depth",
			Help: "Requests waiting in the mailbox",
		}, []string{"owner_id"}),

		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connbox_replies_dropped_total",
			Help: "Queued requests dropped unserved when the owner terminated",
		}, []string{"owner_id"}),

		terminatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connbox_owners_terminated_total",
			Help: "Owner terminations by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.requestDuration,
		m.requestsTotal,
		m.panicTotal,
		m.abandonedTotal,
		m.mailboxDepth,
		m.droppedTotal,
		m.terminatedTotal,
	)

	return m
}

func (m *ownerMetrics) RequestDuration(kind string) metrics.Timer {
	return newTimer(m.requestDuration.WithLabelValues(kind))
}

func (m *ownerMetrics) RequestProcessed(kind string, success bool) {
	m.requestsTotal.WithLabelValues(kind, boolToStr(success)).Inc()
}

func (m *ownerMetrics) RequestPanic(kind string) {
	m.panicTotal.WithLabelValues(kind).Inc()
}

func (m *ownerMetrics) ReplyAbandoned(kind string) {
	m.abandonedTotal.WithLabelValues(kind).Inc()
}

func (m *ownerMetrics) MailboxDepth(ownerID string, depth int) {
	m.mailboxDepth.WithLabelValues(ownerID).Set(float64(depth))
}

func (m *ownerMetrics) RepliesDropped(ownerID string, n int) {
	m.droppedTotal.WithLabelValues(ownerID).Add(float64(n))
}

func (m *ownerMetrics) OwnerTerminated(reason string) {
	m.terminatedTotal.WithLabelValues(reason).Inc()
}

var _ actor.OwnerMetrics = (*ownerMetrics)(nil)
