package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dialogix",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Currently open websocket connections.",
	})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialogix",
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Inbound events dispatched, by event name.",
	}, []string{"event"})

	metricEventFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialogix",
		Subsystem: "ws",
		Name:      "event_failures_total",
		Help:      "Handler failures swallowed from the caller's perspective, by event name.",
	}, []string{"event"})

	metricUnauthorized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dialogix",
		Subsystem: "ws",
		Name:      "unauthorized_total",
		Help:      "Events rejected on unauthenticated connections.",
	})
)
