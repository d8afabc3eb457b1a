// Package config loads and validates the hkd-server YAML configuration:
// HTTP listener, catalog file location, and the Grafana connection
// (base URL, authentication, datasource, rate limits).
//
// Secrets are never written in the file itself — the config names the
// environment variables that hold them (basic-auth username/password or a
// bearer token) and they are resolved at request time.
package config
