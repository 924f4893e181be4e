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
// ミドルウェアやサービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordMagicLinkIssued()
	RecordSessionCreated()
	RecordRoleProvisioned(role string)
	RecordRoleSelected(role string)
	RecordCleanupDeleted(kind string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	magicLinks      prometheus.Counter
	sessionsCreated prometheus.Counter
	provisioned     *prometheus.CounterVec
	selected        *prometheus.CounterVec
	cleanupDeleted  *prometheus.CounterVec
	withdrawn       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomfinder_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomfinder_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		magicLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomfinder_magic_links_issued_total",
			Help: "発行したマジックリンクの合計数",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomfinder_sessions_created_total",
			Help: "作成したセッションの合計数",
		}),
		provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomfinder_roles_provisioned_total",
			Help: "サインアップ時のロールから自動作成したロールレコード数",
		}, []string{"role"}),
		selected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomfinder_roles_selected_total",
			Help: "ユーザーが自分で選択したロール数",
		}, []string{"role"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomfinder_cleanup_deleted_total",
			Help: "クリーンアップで削除したレコード数",
		}, []string{"kind"}),
		withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomfinder_accounts_withdrawn_total",
			Help: "退会したアカウント数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.magicLinks,
		c.sessionsCreated,
		c.provisioned,
		c.selected,
		c.cleanupDeleted,
		c.withdrawn,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordMagicLinkIssued はマジックリンクの発行を記録する。
func (c *Collector) RecordMagicLinkIssued() {
	c.magicLinks.Inc()
}

// RecordSessionCreated はセッションの作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordRoleProvisioned はロールの自動作成を記録する。
func (c *Collector) RecordRoleProvisioned(role string) {
	c.provisioned.WithLabelValues(role).Inc()
}

// RecordRoleSelected はロールの自己選択を記録する。
func (c *Collector) RecordRoleSelected(role string) {
	c.selected.WithLabelValues(role).Inc()
}

// RecordCleanupDeleted はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordCleanupDeleted(kind string, count int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(count))
}

// RecordAccountWithdrawn は退会を記録する。
func (c *Collector) RecordAccountWithdrawn() {
	c.withdrawn.Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordMagicLinkIssued() {}
func (Nop) RecordSessionCreated() {}
func (Nop) RecordRoleProvisioned(string) {}
func (Nop) RecordRoleSelected(string) {}
func (Nop) RecordCleanupDeleted(string, int64) {}
func (Nop) RecordAccountWithdrawn() {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
