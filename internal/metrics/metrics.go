// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swim_adsb_opensky_requests_total",
			Help: "OpenSky API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	publishedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swim_adsb_published_messages_total",
			Help: "Messages published to the broker by topic.",
		},
		[]string{"topic"},
	)

	publishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swim_adsb_publish_errors_total",
			Help: "Failed publishes by topic.",
		},
		[]string{"topic"},
	)

	archiveErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swim_adsb_archive_errors_total",
			Help: "Failed archive inserts.",
		},
	)
)

func init() {
	prometheus.MustRegister(providerRequestsTotal)
	prometheus.MustRegister(publishedMessagesTotal)
	prometheus.MustRegister(publishErrorsTotal)
	prometheus.MustRegister(archiveErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ProviderRequest records one OpenSky API call.
func ProviderRequest(endpoint string, ok bool) {
	outcome := "error"
	if ok {
		outcome = "success"
	}
	providerRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// MessagePublished records one successful publish.
func MessagePublished(topic string) {
	publishedMessagesTotal.WithLabelValues(topic).Inc()
}

// PublishFailed records one failed publish.
func PublishFailed(topic string) {
	publishErrorsTotal.WithLabelValues(topic).Inc()
}

// ArchiveFailed records one failed archive insert.
func ArchiveFailed() {
	archiveErrorsTotal.Inc()
}
