// Package provision converges Grafana toward the catalog.
//
// A pass has four phases. Build derives the desired objects (folders, rule
// groups, contact points, notification routes, dashboards) from a catalog
// snapshot — pure, no I/O. Fetch reads the current remote documents. The
// reconcilers compute new documents from remote + desired: merge mode
// patches matching entries by title/name and preserves everything else,
// replace mode rebuilds a folder's rule configuration from scratch. Push
// sends the minimal set of mutating calls.
//
// Categories fail independently: a push error in one category leaves the
// others converging, and the next pass self-heals because passes are
// stateless and idempotent.
package provision
