package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexogym_checkins_total",
			Help: "Check-in attempts by access method and outcome",
		},
		[]string{"method", "result"}, // manual|qr|biometric|courtesy , admitted|<reason code>
	)

	StreakTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexogym_streak_transitions_total",
			Help: "Streak transitions applied at check-in",
		},
		[]string{"kind"}, // credited|preserved|reset|unchanged
	)

	ReconcileIdentitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexogym_reconcile_identities_total",
			Help: "Identities visited by the nightly reconciler by decision",
		},
		[]string{"decision"}, // reset|preserved|raced
	)

	NotificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexogym_notification_failures_total",
			Help: "Notification deliveries that failed",
		},
		[]string{"sink"}, // kafka|webhook
	)

	OutboxRelayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexogym_outbox_relayed_total",
			Help: "Outbox rows handed to Kafka by the relay",
		},
		[]string{"result"}, // published|failed
	)

	HistoryRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexogym_history_rows_total",
			Help: "Entry events copied into ClickHouse by the history writer",
		},
		[]string{"result"}, // written|skipped
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		CheckinsTotal,
		StreakTransitionsTotal,
		ReconcileIdentitiesTotal,
		NotificationFailuresTotal,
		OutboxRelayedTotal,
		HistoryRowsTotal,
	)
}
