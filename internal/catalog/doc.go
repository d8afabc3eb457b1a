// Package catalog holds the measurement-network metadata: stations,
// instrument models, deployed instruments, monitored parameters, alert
// definitions and alerting contacts. It provides a thread-safe in-memory
// store with YAML file persistence.
//
// Records are plain data. The provisioning engine consumes them only
// through immutable Snapshot values — it never mutates the catalog.
package catalog
