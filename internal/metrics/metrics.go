// Package metrics provides Prometheus counters for the watchlist, catalog and remote store.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Outcome label values.
const (
	OutcomeSuccess    = "success"
	OutcomeRetry      = "retry"
	OutcomeFailure    = "failure"
	OutcomeRejected   = "rejected"
	OutcomeDuplicate  = "duplicate"
	OutcomeNotFound   = "not_found"
	OutcomeOffline    = "offline"
	OutcomeSuperseded = "superseded"
)

var (
	// WatchlistFetchTotal counts fetch attempts, by outcome.
	WatchlistFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_watchlist_fetch_attempts_total",
		Help: "Total number of watchlist fetch attempts, by outcome.",
	}, []string{"outcome"})

	// WatchlistMutationTotal counts add and remove requests, by operation and outcome.
	WatchlistMutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_watchlist_mutations_total",
		Help: "Total number of watchlist mutations, by operation and outcome.",
	}, []string{"op", "outcome"})

	// WatchlistItems tracks the size of the confirmed membership set.
	WatchlistItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_watchlist_items",
		Help: "Current number of movies in the signed-in user's watchlist.",
	})

	// CatalogFetchTotal counts catalog loads, by outcome.
	CatalogFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_catalog_fetch_total",
		Help: "Total number of catalog fetches, by outcome.",
	}, []string{"outcome"})

	// RESTRequestTotal counts REST store round-trips, by method and status class.
	RESTRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_rest_requests_total",
		Help: "Total number of REST store requests, by method and status class.",
	}, []string{"method", "status"})
)

// RecordFetch increments the watchlist fetch counter.
func RecordFetch(outcome string) {
	WatchlistFetchTotal.WithLabelValues(outcome).Inc()
}

// RecordMutation increments the watchlist mutation counter.
func RecordMutation(op, outcome string) {
	WatchlistMutationTotal.WithLabelValues(op, outcome).Inc()
}

// SetWatchlistItems records the current membership size.
func SetWatchlistItems(n int) {
	WatchlistItems.Set(float64(n))
}

// RecordCatalogFetch increments the catalog fetch counter.
func RecordCatalogFetch(outcome string) {
	CatalogFetchTotal.WithLabelValues(outcome).Inc()
}

// RecordRESTRequest increments the REST request counter. A zero status means the request never got a response.
func RecordRESTRequest(method string, status int) {
	class := "error"
	if status > 0 {
		class = fmt.Sprintf("%dxx", status/100)
	}
	RESTRequestTotal.WithLabelValues(method, class).Inc()
}

// Dump writes every marquee metric in the Prometheus text format.
func Dump(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "marquee_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
