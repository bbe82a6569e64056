package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts finished actions by kind and outcome.
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "igwarmup",
			Name:      "actions_total",
			Help:      "Finished actions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// ActionDuration observes wall time per action.
	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "igwarmup",
			Name:      "action_duration_seconds",
			Help:      "Wall time of each action, session setup included.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"action"},
	)

	// SessionsOpened and SessionsClosed must stay equal at rest.
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "igwarmup",
		Name:      "browser_sessions_opened_total",
		Help:      "Browser sessions opened.",
	})
	SessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "igwarmup",
		Name:      "browser_sessions_closed_total",
		Help:      "Browser sessions closed.",
	})
)
