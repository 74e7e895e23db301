package metrics

import "time"

// NoopCollector は何も記録しないMetricsCollector実装。
// テストおよびメトリクス無効時に使用する。
type NoopCollector struct{}

// NewNoopCollector はNoopCollectorを生成する。
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (*NoopCollector) RecordReviewSubmitted()            {}
func (*NoopCollector) RecordSubmissionFailure(string)    {}
func (*NoopCollector) RecordMediaUploaded(int)           {}
func (*NoopCollector) RecordMediaUploadFailure()         {}
func (*NoopCollector) RecordSubmitLatency(time.Duration) {}
func (*NoopCollector) RecordAuthFailure()                {}
func (*NoopCollector) RecordHTTPStatus(int)              {}

// compile-time interface check
var _ MetricsCollector = (*NoopCollector)(nil)
