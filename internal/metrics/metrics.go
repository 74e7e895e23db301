// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordReviewSubmitted()
	RecordSubmissionFailure(reason string)
	RecordMediaUploaded(count int)
	RecordMediaUploadFailure()
	RecordSubmitLatency(d time.Duration)
	RecordAuthFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reviewSubmitted prometheus.Counter
	submitFail      *prometheus.CounterVec
	mediaUploaded   prometheus.Counter
	mediaUploadFail prometheus.Counter
	submitLatency   prometheus.Histogram
	authFail        prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reviewSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookclub_review_submit_total",
			Help: "レビュー投稿成功の合計数",
		}),
		submitFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookclub_review_submit_fail_total",
			Help: "レビュー投稿失敗の合計数（理由別）",
		}, []string{"reason"}),
		mediaUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookclub_media_upload_total",
			Help: "アップロードされたメディアファイルの合計数",
		}),
		mediaUploadFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookclub_media_upload_fail_total",
			Help: "メディアアップロード失敗の合計数",
		}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookclub_submit_latency_seconds",
			Help:    "レビュー投稿フローのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookclub_auth_fail_total",
			Help: "認証失敗（プロバイダー拒否・到達不能）の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookclub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.reviewSubmitted,
		c.submitFail,
		c.mediaUploaded,
		c.mediaUploadFail,
		c.submitLatency,
		c.authFail,
		c.httpStatus,
	)

	return c
}

// RecordReviewSubmitted はレビュー投稿成功を記録する。
func (c *Collector) RecordReviewSubmitted() {
	c.reviewSubmitted.Inc()
}

// RecordSubmissionFailure はレビュー投稿失敗を理由付きで記録する。
func (c *Collector) RecordSubmissionFailure(reason string) {
	c.submitFail.WithLabelValues(reason).Inc()
}

// RecordMediaUploaded はアップロードされたメディアファイル数を記録する。
func (c *Collector) RecordMediaUploaded(count int) {
	c.mediaUploaded.Add(float64(count))
}

// RecordMediaUploadFailure はメディアアップロード失敗を記録する。
func (c *Collector) RecordMediaUploadFailure() {
	c.mediaUploadFail.Inc()
}

// RecordSubmitLatency はレビュー投稿フローのレイテンシを記録する。
func (c *Collector) RecordSubmitLatency(d time.Duration) {
	c.submitLatency.Observe(d.Seconds())
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure() {
	c.authFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
