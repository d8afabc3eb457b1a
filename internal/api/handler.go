package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ACTRIS-CCRES/infra-hkd/internal/catalog"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/provision"
)

// Provisioner is the slice of the provisioning engine the API needs.
type Provisioner interface {
	Run(ctx context.Context, mode provision.Mode) (*provision.PassResult, error)
	Last() *provision.PassResult
}

// Prober reports the health of the Grafana instance.
type Prober interface {
	Probe(ctx context.Context) grafana.Health
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads and writes catalog records through the store and triggers
// provisioning passes through the provisioner.
type Handler struct {
	store *catalog.Store
	prov  Provisioner
	probe Prober
	mux   *http.ServeMux
}

// New creates a Handler wired to the given store, provisioner and prober,
// and registers all routes.
func New(st *catalog.Store, prov Provisioner, probe Prober) http.Handler {
	h := &Handler{store: st, prov: prov, probe: probe, mux: http.NewServeMux()}

	mount(h.mux, "/api/v1/stations", collection[catalog.Station]{
		name: "station",
		list: st.Stations,
		get:  st.Station,
		put:  func(v catalog.Station) (catalog.Station, error) { return st.PutStation(v), nil },
		del:  st.DeleteStation,
		id:   func(v *catalog.Station) *int { return &v.ID },
	})
	mount(h.mux, "/api/v1/instrument-models", collection[catalog.InstrumentModel]{
		name: "instrument model",
		list: st.Models,
		get:  st.Model,
		put:  func(v catalog.InstrumentModel) (catalog.InstrumentModel, error) { return st.PutModel(v), nil },
		del:  st.DeleteModel,
		id:   func(v *catalog.InstrumentModel) *int { return &v.ID },
	})
	mount(h.mux, "/api/v1/instruments", collection[catalog.Instrument]{
		name: "instrument",
		list: st.Instruments,
		get:  st.Instrument,
		put:  func(v catalog.Instrument) (catalog.Instrument, error) { return st.PutInstrument(v), nil },
		del:  st.DeleteInstrument,
		id:   func(v *catalog.Instrument) *int { return &v.ID },
	})
	mount(h.mux, "/api/v1/parameters", collection[catalog.Parameter]{
		name: "parameter",
		list: st.Parameters,
		get:  st.Parameter,
		put:  func(v catalog.Parameter) (catalog.Parameter, error) { return st.PutParameter(v), nil },
		del:  st.DeleteParameter,
		id:   func(v *catalog.Parameter) *int { return &v.ID },
	})
	mount(h.mux, "/api/v1/alerts", collection[catalog.AlertDef]{
		name: "alert",
		list: st.Alerts,
		get:  st.Alert,
		put:  st.PutAlert,
		del:  st.DeleteAlert,
		id:   func(v *catalog.AlertDef) *int { return &v.ID },
	})
	mount(h.mux, "/api/v1/contacts", collection[catalog.Contact]{
		name: "contact",
		list: st.Contacts,
		get:  st.Contact,
		put:  func(v catalog.Contact) (catalog.Contact, error) { return st.PutContact(v), nil },
		del:  st.DeleteContact,
		id:   func(v *catalog.Contact) *int { return &v.ID },
	})

	h.mux.HandleFunc("/api/v1/provision/run", h.provisionRun)
	h.mux.HandleFunc("/api/v1/provision/status", h.provisionStatus)
	h.mux.HandleFunc("/api/v1/health", h.health)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- catalog CRUD -----------------------------------------------------------

// collection adapts one catalog record type to the generic CRUD handlers.
// put validates where the store validates (alert definitions); id gives the
// handlers access to the record's ID field.
type collection[T any] struct {
	name string
	list func() []T
	get  func(int) (T, bool)
	put  func(T) (T, error)
	del  func(int) bool
	id   func(*T) *int
}

// mount registers the collection at base (list, create) and base+"/" (get,
// update, delete by ID).
func mount[T any](mux *http.ServeMux, base string, col collection[T]) {
	mux.HandleFunc(base, col.collectionHandler)
	mux.HandleFunc(base+"/", col.itemHandler(base+"/"))
}

// collectionHandler serves GET (list) and POST (create) on the collection.
func (col collection[T]) collectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, col.list())
	case http.MethodPost:
		var v T
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		// New records get a store-assigned ID.
		*col.id(&v) = 0
		out, err := col.put(v)
		if err != nil {
			jsonErr(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		jsonResp(w, http.StatusCreated, out)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// itemHandler serves GET, PUT and DELETE on one record, addressed by ID.
func (col collection[T]) itemHandler(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, prefix))
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid "+col.name+" id")
			return
		}

		switch r.Method {
		case http.MethodGet:
			v, ok := col.get(id)
			if !ok {
				jsonErr(w, http.StatusNotFound, col.name+" not found")
				return
			}
			jsonResp(w, http.StatusOK, v)
		case http.MethodPut:
			if _, ok := col.get(id); !ok {
				jsonErr(w, http.StatusNotFound, col.name+" not found")
				return
			}
			var v T
			if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
				jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
				return
			}
			// The path, not the body, decides which record is written.
			*col.id(&v) = id
			out, err := col.put(v)
			if err != nil {
				jsonErr(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			jsonResp(w, http.StatusOK, out)
		case http.MethodDelete:
			if !col.del(id) {
				jsonErr(w, http.StatusNotFound, col.name+" not found")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// --- provisioning -----------------------------------------------------------

// provisionRun handles POST /api/v1/provision/run — one synchronous
// provisioning pass. The body selects the mode; an empty body means merge.
func (h *Handler) provisionRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req := RunRequest{Mode: string(provision.ModeMerge)}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	mode := provision.Mode(req.Mode)
	if mode != provision.ModeMerge && mode != provision.ModeReplace {
		jsonErr(w, http.StatusBadRequest, "mode must be \"merge\" or \"replace\"")
		return
	}

	res, err := h.prov.Run(r.Context(), mode)
	if err != nil {
		// The pass could not proceed (a catalog record failed to build).
		jsonResp(w, http.StatusUnprocessableEntity, RunResponse{Result: res, Error: err.Error()})
		return
	}
	jsonResp(w, http.StatusOK, RunResponse{Result: res})
}

// provisionStatus handles GET /api/v1/provision/status — the last pass result.
func (h *Handler) provisionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := h.prov.Last()
	if res == nil {
		jsonErr(w, http.StatusNotFound, "no provisioning pass has run yet")
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// health handles GET /api/v1/health — catalog record counts and the live
// Grafana probe.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{
		Status:  "ok",
		Catalog: h.store.Counts(),
		Grafana: h.probe.Probe(r.Context()),
	}
	if !resp.Grafana.Reachable {
		resp.Status = "degraded"
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
