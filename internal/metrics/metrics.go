// Package metrics exposes the pipeline's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchRequests counts outgoing HTTP requests per target host.
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfinder_fetch_requests_total",
		Help: "Number of HTTP requests sent, by target host",
	}, []string{"host"})

	// FetchRetries counts transport-level send failures that were retried.
	FetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfinder_fetch_retries_total",
		Help: "Number of transport errors retried, by target host",
	}, []string{"host"})

	// SourceLookups counts adapter lookups by source and outcome
	// (match, no_match, error).
	SourceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfinder_source_lookups_total",
		Help: "Number of external source lookups, by source and outcome",
	}, []string{"source", "outcome"})

	// FeedPolls counts feed poll passes.
	FeedPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealfinder_feed_polls_total",
		Help: "Number of marketplace feed polls",
	})

	// ListingsInserted counts first-sighting inserts into the catalog.
	ListingsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealfinder_listings_inserted_total",
		Help: "Number of listings inserted into the catalog",
	})

	// ListingsUpdated counts re-sighting updates.
	ListingsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealfinder_listings_updated_total",
		Help: "Number of listings updated in the catalog",
	})

	// ListingsDeleted counts sweeper deletions.
	ListingsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealfinder_listings_deleted_total",
		Help: "Number of listings removed by the staleness sweeper",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
