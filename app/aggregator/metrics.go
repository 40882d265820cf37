package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rss_mosaic",
		Name:      "source_fetch_failures_total",
		Help:      "Feed sources that contributed no articles because fetching failed.",
	}, []string{"source"})

	aggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rss_mosaic",
		Name:      "aggregations_total",
		Help:      "Completed aggregations by mode and outcome.",
	}, []string{"mode", "outcome"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rss_mosaic",
		Name:      "aggregation_duration_seconds",
		Help:      "Wall time of a full aggregation.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"mode"})

	aggregatedArticles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rss_mosaic",
		Name:      "aggregated_articles",
		Help:      "Articles returned by the most recent aggregation.",
	}, []string{"mode"})
)
