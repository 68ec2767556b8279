package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/support/log"
)

type watcherPrometheusClient struct {
	httpHandler http.Handler
}

// Metrics is a logrus hook-compliant struct that records metrics about logging
// when added to a logrus.Logger
type Metrics map[logrus.Level]prometheus.Counter

// Fire is triggered by logrus, in response to a logging event
func (m *Metrics) Fire(e *logrus.Entry) error {
	(*m)[e.Level].Inc()
	return nil
}

// Levels returns the logging levels that will trigger this hook to run.  In
// this case, all of them.
func (m *Metrics) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.PanicLevel,
	}
}

func (watcherPrometheusClient) GetMetricType() MetricType {
	return MetricTypeWatcherPrometheus
}

func (p *watcherPrometheusClient) GetMetricHttpHandler() http.Handler {
	return p.httpHandler
}

func (p *watcherPrometheusClient) MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels) {
	SummaryVecMetrics[HttpRequestDurationTag].With(prometheus.Labels{
		"status": labels.Status,
		"route":  labels.Route,
		"method": labels.Method,
	}).Observe(duration.Seconds())
}

func (p *watcherPrometheusClient) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) {
	summary := WatcherSummaryVecMetrics[tag]
	summary.With(labels).Observe(duration.Seconds())
}

func (p *watcherPrometheusClient) MonitorCounters(tag MetricTag, labels map[string]string) {
	if len(labels) != 0 {
		if counterVecMetric, ok := WatcherCounterVecMetrics[tag]; ok {
			counterVecMetric.With(labels).Inc()
		} else {
			log.Errorf("metric not registered in prometheus metrics: %s", tag)
		}
	} else {
		log.Errorf("metric not registered in prometheus metrics: %s", tag)
	}
}

func (p *watcherPrometheusClient) MonitorHistogram(value float64, tag MetricTag, labels map[string]string) {
	histogram := HistogramVecMetrics[tag]
	histogram.With(labels).Observe(value)
}

// NewWatcherPrometheusClient registers Prometheus metrics for the deposit watcher daemon
func NewWatcherPrometheusClient() (*watcherPrometheusClient, error) {
	// register Prometheus metrics
	metricsRegistry := prometheus.NewRegistry()

	// register default Prometheus metrics
	metricsRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsRegistry.MustRegister(collectors.NewGoCollector())

	var watcherMetricTag MetricTag
	for _, tag := range watcherMetricTag.ListAllWatcherMetricTags() {
		if watcherSummaryVecMetric, ok := WatcherSummaryVecMetrics[tag]; ok {
			metricsRegistry.MustRegister(watcherSummaryVecMetric)
		} else if watcherCounterVecMetric, ok := WatcherCounterVecMetrics[tag]; ok {
			metricsRegistry.MustRegister(watcherCounterVecMetric)
		} else {
			return nil, fmt.Errorf("metric not registered in prometheus metrics: %s", tag)
		}
	}

	// create a logging hook that increments a Prometheus counter for each log level
	logCounterHook := &Metrics{
		logrus.WarnLevel: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zdw", Subsystem: "log", Name: "warn_total",
		}),
		logrus.ErrorLevel: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zdw", Subsystem: "log", Name: "error_total",
		}),
		logrus.PanicLevel: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zdw", Subsystem: "log", Name: "panic_total",
		}),
	}

	for _, metric := range *logCounterHook {
		metricsRegistry.MustRegister(metric)
	}

	// add the logCounterHook to the logger
	log.DefaultLogger.AddHook(logCounterHook)

	return &watcherPrometheusClient{httpHandler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})}, nil
}

// Ensuring that promtheusClient is implementing MonitorClient interface
var _ MonitorClient = (*watcherPrometheusClient)(nil)
