// Package api implements the HTTP REST API for hkd-server.
//
// New(store, provisioner, prober) returns an http.Handler that serves:
//
//	/api/v1/stations            — catalog CRUD (list, create, get, update, delete)
//	/api/v1/instrument-models   — catalog CRUD
//	/api/v1/instruments         — catalog CRUD
//	/api/v1/parameters          — catalog CRUD
//	/api/v1/alerts              — catalog CRUD; invalid definitions are rejected with 422
//	/api/v1/contacts            — catalog CRUD
//	POST /api/v1/provision/run  — one synchronous provisioning pass; body {"mode": "merge"|"replace"}
//	GET  /api/v1/provision/status — the last pass result; 404 before the first pass
//	GET  /api/v1/health         — catalog record counts and the Grafana probe
//
// Collections answer GET (list) and POST (create, ID assigned by the store);
// items at /{id} answer GET, PUT (the path decides the record written) and
// DELETE. All endpoints respond with Content-Type: application/json and 405
// for unsupported methods.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
