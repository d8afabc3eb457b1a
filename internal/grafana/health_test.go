package grafana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// grafanaMetrics is a trimmed sample of Grafana's own /metrics exposition.
const grafanaMetrics = `
# HELP grafana_build_info A metric with a constant '1' value labeled by version, revision, branch, and goversion from which Grafana was built
# TYPE grafana_build_info gauge
grafana_build_info{branch="HEAD",edition="oss",goversion="go1.21.8",revision="03f502a94d",version="10.4.1"} 1

# HELP go_goroutines Number of goroutines that currently exist.
# TYPE go_goroutines gauge
go_goroutines 214
`

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			t.Errorf("path: got %q, want /metrics", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(grafanaMetrics))
	}))
	defer srv.Close()

	h := testClient(srv).Probe(context.Background())
	if !h.Reachable {
		t.Fatalf("Reachable: got false (%s), want true", h.Error)
	}
	if h.Version != "10.4.1" {
		t.Errorf("Version: got %q, want 10.4.1", h.Version)
	}
	if h.Goroutines != 214 {
		t.Errorf("Goroutines: got %v, want 214", h.Goroutines)
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := testClient(srv).Probe(context.Background())
	if h.Reachable {
		t.Fatal("Reachable: got true, want false for a 502")
	}
	if h.Error == "" {
		t.Error("Error: got empty, want the probe failure reason")
	}
}
