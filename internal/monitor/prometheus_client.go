package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// prometheusClient backs the intake API daemon's /metrics endpoint.
type prometheusClient struct {
	httpHandler http.Handler
}

var _ MonitorClient = (*prometheusClient)(nil)

func (prometheusClient) GetMetricType() MetricType {
	return MetricTypePrometheus
}

func (p *prometheusClient) GetMetricHttpHandler() http.Handler {
	return p.httpHandler
}

func (p *prometheusClient) MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels) {
	SummaryVecMetrics[HttpRequestDurationTag].With(prometheus.Labels{
		"status": labels.Status,
		"route":  labels.Route,
		"method": labels.Method,
	}).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) {
	SummaryVecMetrics[tag].With(labels).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorHistogram(value float64, tag MetricTag, labels map[string]string) {
	HistogramVecMetrics[tag].With(labels).Observe(value)
}

// MonitorCounters increments the labeled counter vector for the tag, or the
// plain counter when no labels are given.
func (p *prometheusClient) MonitorCounters(tag MetricTag, labels map[string]string) {
	if len(labels) != 0 {
		counterVecMetric, ok := CounterVecMetrics[tag]
		if !ok {
			log.Errorf("metric not registered in Prometheus CounterVecMetrics: %s", tag)
			return
		}
		counterVecMetric.With(labels).Inc()
		return
	}

	counterMetric, ok := CounterMetrics[tag]
	if !ok {
		log.Errorf("metric not registered in Prometheus CounterMetrics: %s", tag)
		return
	}
	counterMetric.Inc()
}

// NewPrometheusClient registers every intake API metric tag on a fresh
// registry. A tag with no collector is a programming error and fails startup.
func NewPrometheusClient() (*prometheusClient, error) {
	metricsRegistry := prometheus.NewRegistry()

	collectorsByTag := PrometheusMetrics()
	for _, tag := range MetricTag("").ListAll() {
		collector, ok := collectorsByTag[tag]
		if !ok {
			return nil, fmt.Errorf("metric not registered in prometheus metrics: %s", tag)
		}
		metricsRegistry.MustRegister(collector)
	}

	return &prometheusClient{httpHandler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})}, nil
}
