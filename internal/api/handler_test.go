package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ACTRIS-CCRES/infra-hkd/internal/catalog"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/provision"
)

type fakeProvisioner struct {
	last    *provision.PassResult
	ranMode provision.Mode
	err     error
}

func (f *fakeProvisioner) Run(_ context.Context, mode provision.Mode) (*provision.PassResult, error) {
	f.ranMode = mode
	state := provision.StateDone
	if f.err != nil {
		state = provision.StateFailed
	}
	f.last = &provision.PassResult{ID: "pass-1", Mode: mode, State: state}
	return f.last, f.err
}

func (f *fakeProvisioner) Last() *provision.PassResult { return f.last }

type fakeProber struct{ health grafana.Health }

func (f fakeProber) Probe(context.Context) grafana.Health { return f.health }

func newTestHandler(prov *fakeProvisioner, probe fakeProber) (*catalog.Store, http.Handler) {
	st := catalog.NewStore()
	return st, New(st, prov, probe)
}

func request(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

// --- catalog CRUD -----------------------------------------------------------

func TestStations_CRUDLifecycle(t *testing.T) {
	_, h := newTestHandler(&fakeProvisioner{}, fakeProber{})

	// Create: the store assigns the ID.
	w := request(t, h, http.MethodPost, "/api/v1/stations", `{"name":"sirta","latitude":48.7}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	var created catalog.Station
	decode(t, w, &created)
	if created.ID != 1 || created.Name != "sirta" {
		t.Fatalf("created: got %+v, want id 1 name sirta", created)
	}

	// List.
	w = request(t, h, http.MethodGet, "/api/v1/stations", "")
	var list []catalog.Station
	decode(t, w, &list)
	if len(list) != 1 {
		t.Fatalf("list: got %d stations, want 1", len(list))
	}

	// Get by ID.
	w = request(t, h, http.MethodGet, "/api/v1/stations/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d, want 200", w.Code)
	}

	// Update: the path decides the record, not the body.
	w = request(t, h, http.MethodPut, "/api/v1/stations/1", `{"id":99,"name":"sirta","altitude":156}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var updated catalog.Station
	decode(t, w, &updated)
	if updated.ID != 1 || updated.Altitude != 156 {
		t.Errorf("updated: got %+v, want id 1 altitude 156", updated)
	}

	// Delete, then 404.
	w = request(t, h, http.MethodDelete, "/api/v1/stations/1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", w.Code)
	}
	w = request(t, h, http.MethodGet, "/api/v1/stations/1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
}

func TestStations_UnknownIDAndBadID(t *testing.T) {
	_, h := newTestHandler(&fakeProvisioner{}, fakeProber{})

	if w := request(t, h, http.MethodGet, "/api/v1/stations/7", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", w.Code)
	}
	if w := request(t, h, http.MethodPut, "/api/v1/stations/7", `{"name":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("update unknown id: got %d, want 404", w.Code)
	}
	if w := request(t, h, http.MethodGet, "/api/v1/stations/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want 400", w.Code)
	}
}

func TestAlerts_InvalidDefinitionRejected(t *testing.T) {
	_, h := newTestHandler(&fakeProvisioner{}, fakeProber{})

	// No trigger pair at all.
	w := request(t, h, http.MethodPost, "/api/v1/alerts", `{"title":"Low Battery","parameter_id":1}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid alert: got %d, want 422 (body %s)", w.Code, w.Body.String())
	}

	w = request(t, h, http.MethodPost, "/api/v1/alerts",
		`{"title":"Low Battery","parameter_id":1,"min":{"value":11.5,"condition":"lt"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("valid alert: got %d, want 201 (body %s)", w.Code, w.Body.String())
	}
}

func TestCollections_MethodNotAllowed(t *testing.T) {
	_, h := newTestHandler(&fakeProvisioner{}, fakeProber{})

	if w := request(t, h, http.MethodDelete, "/api/v1/stations", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE on collection: got %d, want 405", w.Code)
	}
	if w := request(t, h, http.MethodPost, "/api/v1/stations/1", `{}`); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST on item: got %d, want 405", w.Code)
	}
}

// --- provisioning -----------------------------------------------------------

func TestProvisionRun_DefaultsToMerge(t *testing.T) {
	prov := &fakeProvisioner{}
	_, h := newTestHandler(prov, fakeProber{})

	w := request(t, h, http.MethodPost, "/api/v1/provision/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("run: got %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if prov.ranMode != provision.ModeMerge {
		t.Errorf("mode: got %s, want merge", prov.ranMode)
	}
	var resp RunResponse
	decode(t, w, &resp)
	if resp.Result == nil || resp.Result.State != provision.StateDone {
		t.Errorf("result: got %+v, want a done pass", resp.Result)
	}
}

func TestProvisionRun_ReplaceMode(t *testing.T) {
	prov := &fakeProvisioner{}
	_, h := newTestHandler(prov, fakeProber{})

	w := request(t, h, http.MethodPost, "/api/v1/provision/run", `{"mode":"replace"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("run: got %d, want 200", w.Code)
	}
	if prov.ranMode != provision.ModeReplace {
		t.Errorf("mode: got %s, want replace", prov.ranMode)
	}
}

func TestProvisionRun_UnknownModeRejected(t *testing.T) {
	prov := &fakeProvisioner{}
	_, h := newTestHandler(prov, fakeProber{})

	w := request(t, h, http.MethodPost, "/api/v1/provision/run", `{"mode":"delete-everything"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("run: got %d, want 400", w.Code)
	}
	if prov.last != nil {
		t.Error("a pass ran despite the invalid mode")
	}
}

func TestProvisionRun_BuildFailureReported(t *testing.T) {
	prov := &fakeProvisioner{err: &provision.BuildError{Object: "alert \"Low Battery\"", Err: context.Canceled}}
	_, h := newTestHandler(prov, fakeProber{})

	w := request(t, h, http.MethodPost, "/api/v1/provision/run", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("run: got %d, want 422 (body %s)", w.Code, w.Body.String())
	}
	var resp RunResponse
	decode(t, w, &resp)
	if resp.Error == "" {
		t.Error("error: empty, want the build failure message")
	}
}

func TestProvisionStatus(t *testing.T) {
	prov := &fakeProvisioner{}
	_, h := newTestHandler(prov, fakeProber{})

	if w := request(t, h, http.MethodGet, "/api/v1/provision/status", ""); w.Code != http.StatusNotFound {
		t.Errorf("status before any pass: got %d, want 404", w.Code)
	}

	request(t, h, http.MethodPost, "/api/v1/provision/run", "")

	w := request(t, h, http.MethodGet, "/api/v1/provision/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var res provision.PassResult
	decode(t, w, &res)
	if res.ID != "pass-1" {
		t.Errorf("pass id: got %q, want pass-1", res.ID)
	}
}

// --- health -----------------------------------------------------------------

func TestHealth(t *testing.T) {
	st, h := newTestHandler(&fakeProvisioner{}, fakeProber{health: grafana.Health{Reachable: true, Version: "10.4.2"}})
	st.PutStation(catalog.Station{Name: "sirta"})

	w := request(t, h, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health: got %d, want 200", w.Code)
	}
	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want ok", resp.Status)
	}
	if resp.Catalog["stations"] != 1 {
		t.Errorf("stations count: got %d, want 1", resp.Catalog["stations"])
	}
	if resp.Grafana.Version != "10.4.2" {
		t.Errorf("grafana version: got %q", resp.Grafana.Version)
	}
}

func TestHealth_UnreachableGrafanaIsDegraded(t *testing.T) {
	_, h := newTestHandler(&fakeProvisioner{}, fakeProber{health: grafana.Health{Reachable: false, Error: "connection refused"}})

	w := request(t, h, http.MethodGet, "/api/v1/health", "")
	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status: got %q, want degraded", resp.Status)
	}
}
