// Package metrics holds the Prometheus collectors shared by the client SDK and the hub.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Session instruments the credential refresh path.
type Session struct {
	RefreshCalls  *prometheus.CounterVec // outcome=success|failure
	QueuedWaiters prometheus.Counter
	StaleRetries  prometheus.Counter
	Invalidations prometheus.Counter
	Unauthorized  prometheus.Counter
}

// NewSession builds the collectors and registers them when reg is non-nil.
func NewSession(reg prometheus.Registerer) *Session {
	m := &Session{
		RefreshCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "session",
			Name:      "refresh_calls_total",
			Help:      "Refresh endpoint calls by outcome.",
		}, []string{"outcome"}),
		QueuedWaiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "session",
			Name:      "refresh_waiters_total",
			Help:      "Requests that waited on an in-flight refresh.",
		}),
		StaleRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "session",
			Name:      "stale_token_retries_total",
			Help:      "Requests retried with a token refreshed after they were sent.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "session",
			Name:      "invalidations_total",
			Help:      "Global session invalidations.",
		}),
		Unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "session",
			Name:      "unauthorized_after_retry_total",
			Help:      "Requests still unauthenticated after their single retry.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RefreshCalls, m.QueuedWaiters, m.StaleRetries, m.Invalidations, m.Unauthorized)
	}
	return m
}

// Realtime instruments the client channel.
type Realtime struct {
	Reconnects     prometheus.Counter
	DroppedSends   prometheus.Counter
	EventsReceived *prometheus.CounterVec // event
}

func NewRealtime(reg prometheus.Registerer) *Realtime {
	m := &Realtime{
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "reconnects_total",
			Help:      "Successful reconnects after a dropped connection.",
		}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "dropped_sends_total",
			Help:      "Outbound events dropped because no connection was up.",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "events_received_total",
			Help:      "Inbound events by name.",
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(m.Reconnects, m.DroppedSends, m.EventsReceived)
	}
	return m
}

// Hub instruments the server-side websocket hub.
type Hub struct {
	Connections   prometheus.Gauge
	EventsEmitted *prometheus.CounterVec // event
	NotesCreated  prometheus.Counter
}

func NewHub(reg prometheus.Registerer) *Hub {
	m := &Hub{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collab",
			Subsystem: "hub",
			Name:      "connections",
			Help:      "Open websocket connections on this instance.",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "hub",
			Name:      "events_emitted_total",
			Help:      "Room events emitted by name.",
		}, []string{"event"}),
		NotesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "hub",
			Name:      "notes_created_total",
			Help:      "Notes accepted from sendMessage.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.EventsEmitted, m.NotesCreated)
	}
	return m
}
