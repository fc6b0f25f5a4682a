package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and retention pipeline metrics.
var (
	ItemsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "items_fetched_total",
			Help:      "Total feed entries fetched, before dedup",
		},
		[]string{"source"},
	)

	ItemsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "items_inserted_total",
			Help:      "Total items newly inserted after dedup",
		},
		[]string{"source"},
	)

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "fetch_errors_total",
			Help:      "Total feed fetch failures",
		},
		[]string{"source"},
	)

	RetentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "retention_runs_total",
			Help:      "Total retention policy runs",
		},
		[]string{"policy", "status"},
	)

	RetentionReclaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "retention_reclaimed_total",
			Help:      "Total rows degraded, evicted or pruned by retention",
		},
		[]string{"policy", "action"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers the pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(ItemsFetchedTotal)
	prometheus.MustRegister(ItemsInsertedTotal)
	prometheus.MustRegister(FetchErrorsTotal)
	prometheus.MustRegister(RetentionRunsTotal)
	prometheus.MustRegister(RetentionReclaimedTotal)
	pipelineMetricsRegistered = true
}
