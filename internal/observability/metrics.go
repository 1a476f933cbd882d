// Package observability provides prometheus metrics for notification
// dispatch and ERP synchronization.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all prometheus collectors for the application. It
// implements the observer interfaces consumed by the notification service
// and the sync worker.
type Metrics struct {
	notificationsCreated    *prometheus.CounterVec
	notificationsSuppressed *prometheus.CounterVec
	channelSends            *prometheus.CounterVec

	syncCycles              *prometheus.CounterVec
	syncRecordsDeduped      prometheus.Counter
	syncConsecutiveFailures prometheus.Gauge
}

// NewMetrics creates and registers all collectors with the registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_notifications_created_total",
			Help: "Total number of notification records created",
		}, []string{"type"}),
		notificationsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_notifications_suppressed_total",
			Help: "Total number of notifications suppressed by user preference",
		}, []string{"reason"}),
		channelSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_channel_sends_total",
			Help: "Total number of channel delivery attempts by outcome",
		}, []string{"channel", "outcome"}),
		syncCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_sync_cycles_total",
			Help: "Total number of ERP sync cycles by outcome",
		}, []string{"outcome"}),
		syncRecordsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifier_sync_records_deduped_total",
			Help: "Total number of ERP records suppressed by the dedup cache",
		}),
		syncConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notifier_sync_consecutive_failures",
			Help: "Number of consecutive failed ERP sync cycles",
		}),
	}

	collectors := []prometheus.Collector{
		m.notificationsCreated,
		m.notificationsSuppressed,
		m.channelSends,
		m.syncCycles,
		m.syncRecordsDeduped,
		m.syncConsecutiveFailures,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NotificationCreated counts a created notification record.
func (m *Metrics) NotificationCreated(notifType string) {
	m.notificationsCreated.WithLabelValues(notifType).Inc()
}

// NotificationSuppressed counts a preference-suppressed notification.
func (m *Metrics) NotificationSuppressed(reason string) {
	m.notificationsSuppressed.WithLabelValues(reason).Inc()
}

// ChannelSend counts one channel delivery attempt.
func (m *Metrics) ChannelSend(channel string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.channelSends.WithLabelValues(channel, outcome).Inc()
}

// SyncCycleCompleted counts a successful sync cycle and resets the
// consecutive-failure gauge.
func (m *Metrics) SyncCycleCompleted() {
	m.syncCycles.WithLabelValues("success").Inc()
	m.syncConsecutiveFailures.Set(0)
}

// SyncCycleFailed counts a failed sync cycle.
func (m *Metrics) SyncCycleFailed() {
	m.syncCycles.WithLabelValues("failure").Inc()
	m.syncConsecutiveFailures.Inc()
}

// SyncRecordDeduped counts an ERP record suppressed by the dedup cache.
func (m *Metrics) SyncRecordDeduped() {
	m.syncRecordsDeduped.Inc()
}
