// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ルート遷移の結果ラベル
const (
	RouteResolved = "resolved"
	RouteNotFound = "not_found"
)

// コンテンツ読み込みの結果ラベル
const (
	LoadSuccess = "success"
	LoadError   = "error"
	LoadStale   = "stale"
)

// サインインの結果ラベル
const (
	SignInSuccess   = "success"
	SignInMalformed = "malformed"
	SignInRejected  = "rejected"
	SignInFailed    = "failed"
)

// Recorder はメトリクス記録のインターフェース。
// ルーター、コンテンツローダー、セッションコントローラーから利用する。
type Recorder interface {
	RecordRouteChange(result string)
	RecordContentLoad(outcome string)
	RecordLoadLatency(duration time.Duration)
	RecordSignIn(outcome string)
	RecordSignOut()
	RecordThemeToggle()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	routeChanges *prometheus.CounterVec
	contentLoads *prometheus.CounterVec
	loadLatency  prometheus.Histogram
	signIns      *prometheus.CounterVec
	signOuts     prometheus.Counter
	themeToggles prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		routeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_route_changes_total",
			Help: "結果別のルート遷移数",
		}, []string{"result"}),
		contentLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_content_loads_total",
			Help: "結果別のコンテンツ読み込み数",
		}, []string{"outcome"}),
		loadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "appshell_content_load_latency_seconds",
			Help:    "コンテンツ読み込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_sign_ins_total",
			Help: "結果別のサインイン数",
		}, []string{"outcome"}),
		signOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appshell_sign_outs_total",
			Help: "サインアウトの合計数",
		}),
		themeToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appshell_theme_toggles_total",
			Help: "テーマ切替の合計数",
		}),
	}

	reg.MustRegister(
		c.routeChanges,
		c.contentLoads,
		c.loadLatency,
		c.signIns,
		c.signOuts,
		c.themeToggles,
	)

	return c
}

// RecordRouteChange はルート遷移を記録する。
func (c *Collector) RecordRouteChange(result string) {
	c.routeChanges.WithLabelValues(result).Inc()
}

// RecordContentLoad はコンテンツ読み込みの結果を記録する。
func (c *Collector) RecordContentLoad(outcome string) {
	c.contentLoads.WithLabelValues(outcome).Inc()
}

// RecordLoadLatency はコンテンツ読み込みのレイテンシを記録する。
func (c *Collector) RecordLoadLatency(duration time.Duration) {
	c.loadLatency.Observe(duration.Seconds())
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(outcome string) {
	c.signIns.WithLabelValues(outcome).Inc()
}

// RecordSignOut はサインアウトを記録する。
func (c *Collector) RecordSignOut() {
	c.signOuts.Inc()
}

// RecordThemeToggle はテーマ切替を記録する。
func (c *Collector) RecordThemeToggle() {
	c.themeToggles.Inc()
}

// NopRecorder は何も記録しないRecorder。テストやメトリクス無効時に使用する。
type NopRecorder struct{}

func (NopRecorder) RecordRouteChange(string)       {}
func (NopRecorder) RecordContentLoad(string)       {}
func (NopRecorder) RecordLoadLatency(time.Duration) {}
func (NopRecorder) RecordSignIn(string)            {}
func (NopRecorder) RecordSignOut()                 {}
func (NopRecorder) RecordThemeToggle()             {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = NopRecorder{}
)
