package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and access Prometheus metrics.
var (
	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "discovery",
			Name:      "search_queries_total",
			Help:      "Total number of executed search queries",
		},
		[]string{"aggregated", "status"},
	)

	SearchQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "discovery",
			Name:      "search_query_duration_seconds",
			Help:      "Search query duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"aggregated"},
	)

	AccessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "discovery",
			Name:      "access_decisions_total",
			Help:      "Total access decisions by outcome",
		},
		[]string{"privilege", "decision"},
	)

	TermCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "discovery",
			Name:      "term_cache_total",
			Help:      "Term list cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchQueriesTotal)
	prometheus.MustRegister(SearchQueryDuration)
	prometheus.MustRegister(AccessDecisionsTotal)
	prometheus.MustRegister(TermCacheTotal)
	searchMetricsRegistered = true
}
