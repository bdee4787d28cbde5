package util

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsRegistry returns a registry exposing Stats as Prometheus
// collectors under the proxvoice namespace.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	counter := func(name, help string, load func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "proxvoice",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(load()) })
	}

	reg.MustRegister(
		counter("peers_added_total", "Peers added to the audible set.", Stats.PeersAdded.Load),
		counter("peers_removed_total", "Peers removed from the audible set.", Stats.PeersRemoved.Load),
		counter("links_connected_total", "Voice links that reached the connected state.", Stats.LinksConnected.Load),
		counter("signal_failures_total", "SDP exchanges with the relay that failed.", Stats.SignalFailures.Load),
		counter("audio_sent_bytes_total", "Encoded audio bytes sent.", Stats.BytesSent.Load),
		counter("audio_received_bytes_total", "Encoded audio bytes received.", Stats.BytesRecv.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "proxvoice",
			Name:      "active_peers",
			Help:      "Peers currently in the audible set.",
		}, func() float64 { return float64(Stats.ActivePeers()) }),
	)
	return reg
}

// MetricsHandler serves reg in the Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
