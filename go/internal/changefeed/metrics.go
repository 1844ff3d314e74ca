package changefeed

// MetricsCollector records change feed activity.
type MetricsCollector interface {
	RecordChange(table, op string)
	RecordResync(reason string)
	RecordFeedError(stage string)
}

// NoOpMetricsCollector is used when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordChange(table, op string) {}
func (NoOpMetricsCollector) RecordResync(reason string)    {}
func (NoOpMetricsCollector) RecordFeedError(stage string)  {}
