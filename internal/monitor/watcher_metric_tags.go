package monitor

const (
	// Metric Tags
	WatcherPassDurationTag         MetricTag = "pass_duration_seconds"
	WatcherJobsProcessedCounterTag MetricTag = "jobs_processed_count"
	WebhookDeliveriesCounterTag    MetricTag = "deliveries_count"
	WalletRPCErrorsCounterTag      MetricTag = "error_count"

	// Metric Labels
	WebhookResultDeliveredLabel string = "delivered"
	WebhookResultFailedLabel    string = "failed"
)

func (m MetricTag) ListAllWatcherMetricTags() []MetricTag {
	return []MetricTag{
		WatcherPassDurationTag,
		WatcherJobsProcessedCounterTag,
		WebhookDeliveriesCounterTag,
		WalletRPCErrorsCounterTag,
	}
}
