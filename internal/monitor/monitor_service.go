package monitor

import (
	"fmt"
	"net/http"
	"time"
)

type MonitorServiceInterface interface {
	Start(opts MetricOptions) error
	GetMetricType() (MetricType, error)
	GetMetricHttpHandler() (http.Handler, error)
	MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels) error
	MonitorCounters(tag MetricTag, labels map[string]string) error
	MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) error
	MonitorHistogram(value float64, tag MetricTag, labels map[string]string) error
}

var _ MonitorServiceInterface = (*MonitorService)(nil)

// MonitorService guards a MonitorClient behind nil checks so callers can
// record metrics unconditionally even when metrics were never started.
type MonitorService struct {
	MonitorClient MonitorClient
}

func (m *MonitorService) Start(opts MetricOptions) error {
	if m.MonitorClient != nil {
		return fmt.Errorf("service already initialized")
	}

	monitorClient, err := GetClient(opts)
	if err != nil {
		return fmt.Errorf("error creating monitor client: %w", err)
	}
	m.MonitorClient = monitorClient

	return nil
}

// record runs f against the client, or reports the uninitialized state.
func (m *MonitorService) record(f func(client MonitorClient)) error {
	if m.MonitorClient == nil {
		return fmt.Errorf("client was not initialized")
	}
	f(m.MonitorClient)
	return nil
}

func (m *MonitorService) GetMetricType() (MetricType, error) {
	if m.MonitorClient == nil {
		return "", fmt.Errorf("client was not initialized")
	}
	return m.MonitorClient.GetMetricType(), nil
}

func (m *MonitorService) GetMetricHttpHandler() (http.Handler, error) {
	if m.MonitorClient == nil {
		return nil, fmt.Errorf("client was not initialized")
	}
	return m.MonitorClient.GetMetricHttpHandler(), nil
}

func (m *MonitorService) MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels) error {
	return m.record(func(client MonitorClient) {
		client.MonitorHttpRequestDuration(duration, labels)
	})
}

func (m *MonitorService) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) error {
	return m.record(func(client MonitorClient) {
		client.MonitorDuration(duration, tag, labels)
	})
}

func (m *MonitorService) MonitorCounters(tag MetricTag, labels map[string]string) error {
	return m.record(func(client MonitorClient) {
		client.MonitorCounters(tag, labels)
	})
}

func (m *MonitorService) MonitorHistogram(value float64, tag MetricTag, labels map[string]string) error {
	return m.record(func(client MonitorClient) {
		client.MonitorHistogram(value, tag, labels)
	})
}
