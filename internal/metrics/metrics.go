package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CSRFFetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blog_web",
		Name:      "csrf_token_fetches_total",
		Help:      "CSRF tokens fetched from the API.",
	})

	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog_web",
		Name:      "session_transitions_total",
		Help:      "Session store state transitions by target status.",
	}, []string{"to"})

	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog_web",
		Name:      "guard_decisions_total",
		Help:      "Route guard outcomes.",
	}, []string{"outcome"})

	PresenceActiveUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blog_web",
		Name:      "presence_active_users",
		Help:      "Last active user count reported by the API.",
	})

	PresenceConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog_web",
		Name:      "presence_connections_total",
		Help:      "Presence websocket dial attempts by result.",
	}, []string{"result"})

	LiveVisitors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blog_web",
		Name:      "live_visitors",
		Help:      "Visitor bundles currently held in memory.",
	})
)
