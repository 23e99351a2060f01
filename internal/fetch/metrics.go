package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tilesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "georaster_tiles_fetched_total",
		Help: "Tiles downloaded and decoded successfully.",
	})
	tilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "georaster_tiles_failed_total",
		Help: "Tile downloads that failed and aborted a mosaic.",
	})
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "georaster_grid_fetch_duration_seconds",
		Help:    "Wall time to fetch all tiles of one grid.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)
