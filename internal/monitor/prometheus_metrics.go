package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics flattens the intake API collector maps into a single
// tag-indexed view used at registration time.
func PrometheusMetrics() map[MetricTag]prometheus.Collector {
	metrics := make(map[MetricTag]prometheus.Collector)

	for tag, summaryVec := range SummaryVecMetrics {
		metrics[tag] = summaryVec
	}

	for tag, counter := range CounterMetrics {
		metrics[tag] = counter
	}

	for tag, histogramVec := range HistogramVecMetrics {
		metrics[tag] = histogramVec
	}

	for tag, counterVec := range CounterVecMetrics {
		metrics[tag] = counterVec
	}

	return metrics
}

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	HttpRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "zdw", Subsystem: "http", Name: string(HttpRequestDurationTag),
		Help: "HTTP requests durations, sliding window = 10m",
	},
		[]string{"status", "route", "method"},
	),
}

var CounterMetrics = map[MetricTag]prometheus.Counter{}

var HistogramVecMetrics = map[MetricTag]*prometheus.HistogramVec{}

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	JobsCreatedCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zdw", Subsystem: "intake", Name: string(JobsCreatedCounterTag),
		Help: "A counter of deposit watch jobs accepted by the intake API",
	},
		TickerLabelNames,
	),
	StatusCacheCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zdw", Subsystem: "intake", Name: string(StatusCacheCounterTag),
		Help: "A counter of status lookup cache hits and misses",
	},
		StatusCacheLabelNames,
	),
}
