package monitor

import "github.com/prometheus/client_golang/prometheus"

var WatcherSummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	WatcherPassDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "zdw",
		Subsystem: "watcher",
		Name:      string(WatcherPassDurationTag),
		Help:      "Duration (seconds) of a full polling pass over one ticker's pending jobs",
	},
		TickerLabelNames,
	),
}

var WatcherCounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	WatcherJobsProcessedCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zdw",
		Subsystem: "watcher",
		Name:      string(WatcherJobsProcessedCounterTag),
		Help:      "Count of deposit jobs processed by the watcher, by outcome",
	},
		WatcherJobLabelNames,
	),
	WebhookDeliveriesCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zdw",
		Subsystem: "webhook",
		Name:      string(WebhookDeliveriesCounterTag),
		Help:      "Count of webhook delivery attempts, by result",
	},
		WebhookDeliveryLabelNames,
	),
	WalletRPCErrorsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zdw",
		Subsystem: "wallet_rpc",
		Name:      string(WalletRPCErrorsCounterTag),
		Help:      "Count of wallet RPC related errors",
	},
		WalletRPCErrorLabelNames,
	),
}
