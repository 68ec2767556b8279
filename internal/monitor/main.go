package monitor

import (
	"fmt"
	"strings"
)

type MetricType string

const (
	// MetricTypePrometheus serves the intake API daemon's metrics.
	MetricTypePrometheus MetricType = "PROMETHEUS"
	// MetricTypeWatcherPrometheus serves the watcher daemon's metrics.
	MetricTypeWatcherPrometheus MetricType = "WATCHER_PROMETHEUS"
)

func ParseMetricType(metricTypeStr string) (MetricType, error) {
	mType := MetricType(strings.ToUpper(metricTypeStr))

	switch mType {
	case MetricTypePrometheus, MetricTypeWatcherPrometheus:
		return mType, nil
	default:
		return "", fmt.Errorf("invalid metric type %q", mType)
	}
}

type MetricOptions struct {
	MetricType  MetricType
	Environment string
}

func GetClient(opts MetricOptions) (MonitorClient, error) {
	switch opts.MetricType {
	case MetricTypePrometheus:
		return NewPrometheusClient()
	case MetricTypeWatcherPrometheus:
		return NewWatcherPrometheusClient()
	default:
		return nil, fmt.Errorf("unknown metric type: %q", opts.MetricType)
	}
}
