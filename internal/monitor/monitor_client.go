package monitor

import (
	"net/http"
	"time"
)

// MonitorClient is implemented by the Prometheus backends of both daemons.
// The intake API records HTTP request durations and intake counters; the
// watcher records pass durations, job outcomes, webhook deliveries and
// wallet RPC errors through the generic duration/counter methods.
type MonitorClient interface {
	GetMetricType() MetricType
	GetMetricHttpHandler() http.Handler
	MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels)
	MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string)
	MonitorCounters(tag MetricTag, labels map[string]string)
	MonitorHistogram(value float64, tag MetricTag, labels map[string]string)
}
