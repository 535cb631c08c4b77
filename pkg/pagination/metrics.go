package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the pagination controller and batch fetcher.
var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefeed_controller_operations_total",
		Help: "Controller operations invoked, by operation",
	}, []string{"op"})

	fetchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefeed_controller_fetches_total",
		Help: "Controller fetch completions by mode and outcome",
	}, []string{"mode", "outcome"})

	staleCompletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefeed_controller_stale_completions_total",
		Help: "Fetch completions discarded because a newer fetch superseded them",
	})

	itemsLoaded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pagefeed_controller_items",
		Help: "Items currently held by the controller, by resource",
	}, []string{"resource"})

	batchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefeed_batch_pages_total",
		Help: "Pages fetched by the batch fetcher, by outcome",
	}, []string{"outcome"})
)
