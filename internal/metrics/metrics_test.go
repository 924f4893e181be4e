package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名のメトリクスファミリーを返す。見つからない場合はnil。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordMagicLinkIssued_IncrementsCounter はマジックリンク発行カウンタが増加することを検証する。
func TestRecordMagicLinkIssued_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMagicLinkIssued()
	c.RecordMagicLinkIssued()

	mf := findMetric(t, reg, "roomfinder_magic_links_issued_total")
	if mf == nil {
		t.Fatal("roomfinder_magic_links_issued_total metric not found")
	}
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("magic_links_issued_total = %v, want 2", val)
	}
}

// TestRecordSessionCreated_IncrementsCounter はセッション作成カウンタが増加することを検証する。
func TestRecordSessionCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCreated()

	mf := findMetric(t, reg, "roomfinder_sessions_created_total")
	if mf == nil {
		t.Fatal("roomfinder_sessions_created_total metric not found")
	}
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("sessions_created_total = %v, want 1", val)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はステータスコード別にカウントされることを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)

	mf := findMetric(t, reg, "roomfinder_http_status_total")
	if mf == nil {
		t.Fatal("roomfinder_http_status_total metric not found")
	}

	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "status_code")] = m.GetCounter().GetValue()
	}
	if counts["200"] != 2 {
		t.Errorf("status 200 count = %v, want 2", counts["200"])
	}
	if counts["403"] != 1 {
		t.Errorf("status 403 count = %v, want 1", counts["403"])
	}
}

// TestRecordRoleProvisionedAndSelected_UseRoleLabel はロール別にカウントされることを検証する。
func TestRecordRoleProvisionedAndSelected_UseRoleLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRoleProvisioned("room_owner")
	c.RecordRoleSelected("room_finder")
	c.RecordRoleSelected("room_finder")

	provisioned := findMetric(t, reg, "roomfinder_roles_provisioned_total")
	if provisioned == nil {
		t.Fatal("roomfinder_roles_provisioned_total metric not found")
	}
	if got := labelValue(provisioned.GetMetric()[0], "role"); got != "room_owner" {
		t.Errorf("provisioned role label = %q, want room_owner", got)
	}

	selected := findMetric(t, reg, "roomfinder_roles_selected_total")
	if selected == nil {
		t.Fatal("roomfinder_roles_selected_total metric not found")
	}
	if val := selected.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("roles_selected_total = %v, want 2", val)
	}
}

// TestRecordRequestLatency_ObservesHistogram はヒストグラムに記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	mf := findMetric(t, reg, "roomfinder_request_latency_seconds")
	if mf == nil {
		t.Fatal("roomfinder_request_latency_seconds metric not found")
	}
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.14 || h.GetSampleSum() > 0.16 {
		t.Errorf("sample sum = %v, want ~0.15", h.GetSampleSum())
	}
}

// TestRecordCleanupDeleted_AddsCount はクリーンアップ削除件数が加算されることを検証する。
func TestRecordCleanupDeleted_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCleanupDeleted("sessions", 3)
	c.RecordCleanupDeleted("sessions", 4)

	mf := findMetric(t, reg, "roomfinder_cleanup_deleted_total")
	if mf == nil {
		t.Fatal("roomfinder_cleanup_deleted_total metric not found")
	}
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 7 {
		t.Errorf("cleanup_deleted_total = %v, want 7", val)
	}
}

func TestRecordAccountWithdrawn_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordAccountWithdrawn()

	mf := findMetric(t, reg, "roomfinder_accounts_withdrawn_total")
	if mf == nil {
		t.Fatal("roomfinder_accounts_withdrawn_total metric not found")
	}
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("accounts_withdrawn_total = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はHandlerがテキスト形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSessionCreated()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "roomfinder_sessions_created_total 1") {
		t.Errorf("body does not contain sessions counter: %s", body)
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はインターフェースを満たすことを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
	var _ MetricsCollector = Nop{}
}

// TestMultipleCollectors_IndependentRegistries はレジストリごとに独立して登録できることを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()

	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordMagicLinkIssued()

	if mf := findMetric(t, reg2, "roomfinder_magic_links_issued_total"); mf != nil {
		if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 0 {
			t.Errorf("reg2 counter = %v, want 0", val)
		}
	}
}
