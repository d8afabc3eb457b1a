package grafana

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Health is what the /metrics probe learned about the Grafana instance.
type Health struct {
	Reachable  bool    `json:"reachable"`
	Version    string  `json:"version,omitempty"`
	Goroutines float64 `json:"goroutines,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Probe scrapes the Grafana /metrics endpoint and extracts build and
// runtime information. The metrics endpoint lives at the server root, not
// under /api. Probe never fails hard: an unreachable instance is reported
// in the result so a provisioning pass can still be attempted.
func (c *Client) Probe(ctx context.Context) Health {
	metricsURL := strings.TrimSuffix(c.baseURL, "/api") + "/metrics"

	mfs, err := c.fetchMetrics(ctx, metricsURL)
	if err != nil {
		return Health{Reachable: false, Error: err.Error()}
	}

	h := Health{Reachable: true}
	if mf := mfs["grafana_build_info"]; mf != nil && len(mf.GetMetric()) > 0 {
		for _, l := range mf.GetMetric()[0].GetLabel() {
			if l.GetName() == "version" {
				h.Version = l.GetValue()
			}
		}
	}
	if mf := mfs["go_goroutines"]; mf != nil && len(mf.GetMetric()) > 0 {
		h.Goroutines = mf.GetMetric()[0].GetGauge().GetValue()
	}
	return h
}

// fetchMetrics performs an HTTP GET to rawURL and parses the Prometheus
// text exposition into metric families.
func (c *Client) fetchMetrics(ctx context.Context, rawURL string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r. A partial result
// with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}
