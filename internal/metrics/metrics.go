// Package metrics holds the prometheus collectors shared by the client and the
// relay. They register with the default registry on import.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatsync"

var (
	EventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Decoded frames delivered by event sources.",
		},
		[]string{"channel", "type"},
	)
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Inbound frames dropped before reaching a handler.",
		},
		[]string{"channel", "reason"},
	)
	Reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connections re-established after a close or dial failure.",
		},
		[]string{"channel"},
	)
	CacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Updater applications per cache store.",
		},
		[]string{"store"},
	)
	Sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Optimistic sends by outcome.",
		},
		[]string{"result"},
	)
	RelayClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Websocket clients registered with the relay hub.",
		},
	)
	RelayBroadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcasts_total",
			Help:      "Frames fanned out by the relay hub, by topic kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(EventsReceived)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(Reconnects)
	prometheus.MustRegister(CacheWrites)
	prometheus.MustRegister(Sends)
	prometheus.MustRegister(RelayClients)
	prometheus.MustRegister(RelayBroadcasts)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
