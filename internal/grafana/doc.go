// Package grafana speaks the Grafana HTTP API: folders, ruler rule groups,
// the alertmanager configuration document, and dashboards.
//
// The package has two halves. The model types (Folder, RuleGroup, Rule,
// AlertmanagerDocument, Dashboard, ...) mirror the wire format of the
// provisioning endpoints. The Client performs the HTTP calls: fetches
// require a 200, mutations additionally accept the soft-conflict statuses
// 409 ("already exists") and 412 ("created by another writer"), which
// Grafana returns when a create races another writer.
//
// The client never retries. Failures carry the raw response body so the
// caller can decide what to do.
package grafana
