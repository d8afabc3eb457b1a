package grafana

import (
	"fmt"
	"strings"
)

// FluxQuery builds an InfluxDB flux query as a range + filter chain.
// Filters are applied in insertion order.
type FluxQuery struct {
	bucket  string
	start   string
	stop    string
	filters []fluxFilter
}

type fluxFilter struct {
	on   string
	what string
}

// NewFluxQuery starts a query reading from bucket.
func NewFluxQuery(bucket string) *FluxQuery {
	return &FluxQuery{bucket: bucket}
}

// Range sets the query window. Pass Grafana time variables
// ("v.timeRangeStart") or flux durations ("-1h"). An empty stop is omitted.
func (q *FluxQuery) Range(start, stop string) *FluxQuery {
	q.start = start
	q.stop = stop
	return q
}

// Filter appends a `r["on"] == "what"` filter step.
func (q *FluxQuery) Filter(on, what string) *FluxQuery {
	q.filters = append(q.filters, fluxFilter{on: on, what: what})
	return q
}

// Build renders the query. It fails when no range was provided — flux
// refuses unbounded reads.
func (q *FluxQuery) Build() (string, error) {
	if q.start == "" {
		return "", fmt.Errorf("flux query on bucket %q: a range is required", q.bucket)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)", q.bucket)
	if q.stop != "" {
		fmt.Fprintf(&b, "\n    |> range(start: %s, stop: %s)", q.start, q.stop)
	} else {
		fmt.Fprintf(&b, "\n    |> range(start: %s)", q.start)
	}
	for _, f := range q.filters {
		fmt.Fprintf(&b, "\n    |> filter(fn: (r) => r[%q] == %q)", f.on, f.what)
	}
	return b.String(), nil
}
