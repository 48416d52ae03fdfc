package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	CheckoutSucceeded = "succeeded"
	CheckoutRejected  = "rejected"
	CheckoutFailed    = "failed"
)

// StorefrontMetrics counts the business events operators watch.
type StorefrontMetrics struct {
	checkouts          *prometheus.CounterVec
	statusUpdates      *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
	notificationFailed *prometheus.CounterVec
	emitFailures       *prometheus.CounterVec
}

func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	m := &StorefrontMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sf_checkouts_total",
			Help: "Checkout submissions by outcome.",
		}, []string{"result"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sf_order_status_updates_total",
			Help: "Accepted order status transitions by target status.",
		}, []string{"status"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sf_notifications_sent_total",
			Help: "Emails handed to the mail provider by kind.",
		}, []string{"kind"}),
		notificationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sf_notifications_failed_total",
			Help: "Emails that failed to render or send by kind.",
		}, []string{"kind"}),
		emitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sf_notification_emit_failures_total",
			Help: "Notification intents that could not be queued by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.checkouts, m.statusUpdates, m.notificationsSent, m.notificationFailed, m.emitFailures)
	return m
}

func (m *StorefrontMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *StorefrontMetrics) IncStatusUpdate(status string) {
	if m == nil || m.statusUpdates == nil {
		return
	}
	m.statusUpdates.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *StorefrontMetrics) IncNotificationSent(kind string) {
	if m == nil || m.notificationsSent == nil {
		return
	}
	m.notificationsSent.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *StorefrontMetrics) IncNotificationFailed(kind string) {
	if m == nil || m.notificationFailed == nil {
		return
	}
	m.notificationFailed.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *StorefrontMetrics) IncEmitFailure(kind string) {
	if m == nil || m.emitFailures == nil {
		return
	}
	m.emitFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}
