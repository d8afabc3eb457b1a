package api

import (
	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/provision"
)

// RunRequest is the body of POST /api/v1/provision/run.
type RunRequest struct {
	Mode string `json:"mode"`
}

// RunResponse is the payload for POST /api/v1/provision/run. Error is set
// when the pass could not proceed past the build step.
type RunResponse struct {
	Result *provision.PassResult `json:"result"`
	Error  string                `json:"error,omitempty"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Catalog map[string]int `json:"catalog"`
	Grafana grafana.Health `json:"grafana"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
