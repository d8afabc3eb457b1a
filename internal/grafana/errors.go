package grafana

import "fmt"

// Acceptable response statuses for mutating calls. 409 and 412 are soft
// conflicts: the target already exists or was created concurrently, which
// for an idempotent provisioning pass is a success.
const (
	statusOK            = 200
	statusAccepted      = 202
	statusExists        = 409
	statusCreatedByPeer = 412
)

// acceptable reports whether a mutating call's status counts as success.
func acceptable(status int) bool {
	switch status {
	case statusOK, statusAccepted, statusExists, statusCreatedByPeer:
		return true
	}
	return false
}

// FetchError reports a GET that returned a status other than 200.
type FetchError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("grafana: fetch %s: unexpected status %d: %s", e.Endpoint, e.Status, e.Body)
}

// PushError reports a POST or DELETE that returned a non-acceptable status.
// Body holds the raw response for diagnostics.
type PushError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *PushError) Error() string {
	return fmt.Sprintf("grafana: push %s: unexpected status %d: %s", e.Endpoint, e.Status, e.Body)
}

// ReferenceError reports a push rejected because the document references
// something the remote side does not know — typically a notification route
// naming a contact point that was never created. It is distinct from a
// transport failure: the request reached Grafana and was understood.
type ReferenceError struct {
	Key  string // the referenced identifier, when known
	Push *PushError
}

func (e *ReferenceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("grafana: unresolved reference %q: %v", e.Key, e.Push)
	}
	return fmt.Sprintf("grafana: unresolved reference: %v", e.Push)
}

func (e *ReferenceError) Unwrap() error { return e.Push }
