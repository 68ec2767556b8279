package monitor

type MetricTag string

const (
	HttpRequestDurationTag MetricTag = "requests_duration_seconds"
	// Intake API:
	JobsCreatedCounterTag MetricTag = "jobs_created_counter"
	StatusCacheCounterTag MetricTag = "status_cache_counter"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		HttpRequestDurationTag,
		JobsCreatedCounterTag,
		StatusCacheCounterTag,
	}
}
