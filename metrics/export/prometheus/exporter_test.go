package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/adminauth"
	promclient "github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot adminauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() adminauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: adminauth.MetricsSnapshot{
			Counters: map[adminauth.MetricID]uint64{
				adminauth.MetricRotationSuccess: 7,
				adminauth.MetricRevokedHit:      3,
			},
			Histograms: map[adminauth.MetricID][]uint64{
				adminauth.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: adminauth.MetricsSnapshot{
			Counters:   map[adminauth.MetricID]uint64{},
			Histograms: map[adminauth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	out := NewPrometheusExporterFromSource(sampleSource()).Render()

	for _, want := range []string{
		"adminauth_rotation_success_total 7",
		"adminauth_revoked_hit_total 3",
		"adminauth_logout_total 0",
		"adminauth_verify_latency_seconds_bucket{le=\"0.005\"} 1",
		"adminauth_verify_latency_seconds_bucket{le=\"+Inf\"} 36",
		"adminauth_verify_latency_seconds_count 36",
		"adminauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsHistogramWhenLatencyDisabled(t *testing.T) {
	src := sampleSource()
	src.snapshot.Histograms = map[adminauth.MetricID][]uint64{}
	out := NewPrometheusExporterFromSource(src).Render()
	if strings.Contains(out, "adminauth_verify_latency_seconds") {
		t.Fatalf("expected no histogram, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(sampleSource())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCollectorGathers(t *testing.T) {
	reg := promclient.NewRegistry()
	if err := reg.Register(NewCollector(sampleSource())); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var sawRotation, sawLatency, sawDropped bool
	for _, mf := range families {
		switch mf.GetName() {
		case "adminauth_rotation_success_total":
			sawRotation = true
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 7 {
				t.Fatalf("expected rotation counter 7, got %v", v)
			}
		case "adminauth_verify_latency_seconds":
			sawLatency = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 36 {
				t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
			}
			if got := h.GetBucket()[0].GetCumulativeCount(); got != 1 {
				t.Fatalf("expected first bucket 1, got %d", got)
			}
		case "adminauth_audit_dropped_total":
			sawDropped = true
		}
	}
	if !sawRotation || !sawLatency || !sawDropped {
		t.Fatalf("missing families: rotation=%v latency=%v dropped=%v", sawRotation, sawLatency, sawDropped)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(sampleSource())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
