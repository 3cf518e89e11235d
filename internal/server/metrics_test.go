package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/54b3r/docqa-go/internal/rag"
)

// findMetric returns the first metric in family name whose labels include
// every name/value pair in labels.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels ...string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				matched := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						matched = true
					}
				}
				if !matched {
					continue metrics
				}
			}
			return m
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels...)
	if m == nil {
		t.Fatalf("%s%v not found in gathered metrics", name, labels)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels...)
	if m == nil {
		t.Fatalf("%s%v not found in gathered metrics", name, labels)
	}
	return m.GetGauge().GetValue()
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil, nil)

	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "docqa_retrieval_capability") {
		t.Error("capability gauge missing from /metrics output")
	}
}

func Test_Metrics_CapabilityGauge(t *testing.T) {
	t.Parallel()

	cases := []struct {
		capability rag.Capability
		semantic   float64
		keyword    float64
	}{
		{rag.CapabilitySemantic, 1, 0},
		{rag.CapabilityKeyword, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.capability.String(), func(t *testing.T) {
			t.Parallel()
			_, reg := newTestServer(t, &fakeAgent{capability: tc.capability}, nil)
			if v := gaugeValue(t, reg, "docqa_retrieval_capability", "capability", "semantic"); v != tc.semantic {
				t.Errorf("semantic = %v, want %v", v, tc.semantic)
			}
			if v := gaugeValue(t, reg, "docqa_retrieval_capability", "capability", "keyword"); v != tc.keyword {
				t.Errorf("keyword = %v, want %v", v, tc.keyword)
			}
		})
	}
}

func Test_Metrics_HTTPRequestsCounted(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, nil, nil)

	do(t, s, http.MethodGet, "/api/health", "")
	do(t, s, http.MethodGet, "/api/health", "")
	do(t, s, http.MethodPost, "/api/ask", `{}`)

	if v := counterValue(t, reg, "docqa_http_requests_total", "handler", "health", "code", "200"); v != 2 {
		t.Errorf("health 200 count = %v, want 2", v)
	}
	if v := counterValue(t, reg, "docqa_http_requests_total", "handler", "ask", "code", "400"); v != 1 {
		t.Errorf("ask 400 count = %v, want 1", v)
	}
}

func Test_Metrics_RateLimitedCounted(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, nil, &Config{RateLimit: 0.001, RateBurst: 1})

	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{}`))
		req.RemoteAddr = "10.1.1.1:5000"
		s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}
	if v := counterValue(t, reg, "docqa_http_rate_limited_total"); v != 2 {
		t.Errorf("rate limited = %v, want 2", v)
	}
}
