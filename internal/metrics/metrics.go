// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/pinflow/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインやワーカー層から利用する。
type MetricsCollector interface {
	RecordCycle(outcome model.CycleOutcome, d time.Duration)
	RecordPublish(succeeded bool)
	RecordCatalogFallback()
	RecordWritten()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	publishSuccess  prometheus.Counter
	publishFail     prometheus.Counter
	catalogFallback prometheus.Counter
	recordsWritten  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinflow_cycles_total",
			Help: "投稿サイクルの結果別の合計数",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinflow_cycle_duration_seconds",
			Help:    "投稿サイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		publishSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinflow_publish_success_total",
			Help: "ピン公開成功の合計数",
		}),
		publishFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinflow_publish_fail_total",
			Help: "ピン公開失敗の合計数",
		}),
		catalogFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinflow_catalog_fallback_total",
			Help: "フォールバック検索が行われた合計数",
		}),
		recordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinflow_records_written_total",
			Help: "書き込まれた投稿レコードの合計数",
		}),
	}

	reg.MustRegister(
		c.cycles,
		c.cycleDuration,
		c.publishSuccess,
		c.publishFail,
		c.catalogFallback,
		c.recordsWritten,
	)

	return c
}

// RecordCycle はサイクルの結果と所要時間を記録する。
func (c *Collector) RecordCycle(outcome model.CycleOutcome, d time.Duration) {
	c.cycles.WithLabelValues(string(outcome)).Inc()
	c.cycleDuration.Observe(d.Seconds())
}

// RecordPublish はピン公開の成否を記録する。
func (c *Collector) RecordPublish(succeeded bool) {
	if succeeded {
		c.publishSuccess.Inc()
		return
	}
	c.publishFail.Inc()
}

// RecordCatalogFallback はフォールバック検索の発生を記録する。
func (c *Collector) RecordCatalogFallback() {
	c.catalogFallback.Inc()
}

// RecordWritten は投稿レコードの書き込みを記録する。
func (c *Collector) RecordWritten() {
	c.recordsWritten.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
