package grafana

import "fmt"

// Alert rule states Grafana accepts for the no-data and execution-error cases.
const (
	StateNoData   = "NoData"
	StateAlerting = "Alerting"
	StateError    = "Error"
	StateOK       = "OK"
)

// The expression pseudo-datasource used by classic conditions.
const ExprDatasourceUID = "__expr__"

// RulerDocument is the body of GET /ruler/grafana/api/v1/rules:
// folder title → rule groups stored under that folder.
type RulerDocument map[string][]RuleGroup

// RuleGroup is a named, independently scheduled set of alert rules sharing
// one evaluation interval.
type RuleGroup struct {
	Name     string `json:"name"`
	Interval string `json:"interval,omitempty"`
	Rules    []Rule `json:"rules"`
}

// Rule is one alert rule as the ruler endpoint represents it. The outer
// fields (for, labels, annotations) belong to the alertmanager side; the
// Grafana-specific definition nests under grafana_alert.
type Rule struct {
	Expr         string            `json:"expr"`
	For          string            `json:"for,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	GrafanaAlert GrafanaAlert      `json:"grafana_alert"`
}

// Title returns the rule's identity: the nested alert title. Rule titles are
// unique within one folder+group on the remote side.
func (r Rule) Title() string { return r.GrafanaAlert.Title }

// GrafanaAlert is the Grafana-managed alert definition inside a Rule.
// Server-assigned fields (id, uid, version, ...) are carried through so a
// fetched rule survives a round trip unchanged.
type GrafanaAlert struct {
	Title        string       `json:"title"`
	Condition    string       `json:"condition"`
	Data         []AlertQuery `json:"data"`
	NoDataState  string       `json:"no_data_state,omitempty"`
	ExecErrState string       `json:"exec_err_state,omitempty"`

	ID              int64  `json:"id,omitempty"`
	UID             string `json:"uid,omitempty"`
	OrgID           int64  `json:"orgId,omitempty"`
	RuleGroup       string `json:"rule_group,omitempty"`
	NamespaceUID    string `json:"namespace_uid,omitempty"`
	IntervalSeconds int    `json:"intervalSeconds,omitempty"`
	Version         int    `json:"version,omitempty"`
	Updated         string `json:"updated,omitempty"`
	IsPaused        bool   `json:"is_paused,omitempty"`
	Provenance      string `json:"provenance,omitempty"`
}

// Validate checks the refId chain invariant: the condition and every
// expression input must reference a refId present in the rule's own data
// list, and refIds must be unique within the rule.
func (a GrafanaAlert) Validate() error {
	refs := make(map[string]bool, len(a.Data))
	for _, q := range a.Data {
		if q.RefID == "" {
			return fmt.Errorf("rule %q: query entry without refId", a.Title)
		}
		if refs[q.RefID] {
			return fmt.Errorf("rule %q: duplicate refId %q", a.Title, q.RefID)
		}
		refs[q.RefID] = true
	}
	if !refs[a.Condition] {
		return fmt.Errorf("rule %q: condition %q does not reference a refId in the rule's data", a.Title, a.Condition)
	}
	for _, q := range a.Data {
		if expr, ok := q.Model["expression"].(string); ok && expr != "" && !refs[expr] {
			return fmt.Errorf("rule %q: expression %q of %q does not reference a refId in the rule's data", a.Title, expr, q.RefID)
		}
	}
	return nil
}

// AlertQuery is one entry of a rule's evaluation chain: either a datasource
// query or an expression step. Model carries the entry's full definition as
// loose JSON — its schema differs per datasource.
type AlertQuery struct {
	RefID             string            `json:"refId"`
	QueryType         string            `json:"queryType"`
	RelativeTimeRange RelativeTimeRange `json:"relativeTimeRange"`
	DatasourceUID     string            `json:"datasourceUid"`
	Model             map[string]any    `json:"model"`
}

// RelativeTimeRange is a look-back window in seconds relative to now.
type RelativeTimeRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// NextRefID returns the alphabetically next unused single-letter refId given
// the refIds already taken. It panics past "Z" — rule chains never get
// anywhere near 26 steps.
func NextRefID(taken map[string]bool) string {
	for c := 'A'; c <= 'Z'; c++ {
		id := string(c)
		if !taken[id] {
			return id
		}
	}
	panic("grafana: refId space exhausted")
}

// QueryTarget builds the data entry for a datasource query.
func QueryTarget(refID, datasourceUID, datasourceType, query string, window RelativeTimeRange) AlertQuery {
	return AlertQuery{
		RefID:             refID,
		RelativeTimeRange: window,
		DatasourceUID:     datasourceUID,
		Model: map[string]any{
			"refId":         refID,
			"query":         query,
			"datasource":    map[string]any{"type": datasourceType, "uid": datasourceUID},
			"hide":          false,
			"intervalMs":    300000,
			"maxDataPoints": 100,
		},
	}
}

// ClassicCondition is one evaluator of a classic-condition expression step.
type ClassicCondition struct {
	// InputRefID names the query the condition reads from.
	InputRefID string
	// Reducer collapses the query's series to one value ("last", "avg", ...).
	Reducer string
	// Evaluator is the comparison ("gt" or "lt") against Threshold.
	Evaluator string
	Threshold float64
}

func (c ClassicCondition) model() map[string]any {
	return map[string]any{
		"evaluator": map[string]any{"params": []any{c.Threshold}, "type": c.Evaluator},
		"operator":  map[string]any{"type": "or"},
		"query":     map[string]any{"params": []any{c.InputRefID}},
		"reducer":   map[string]any{"params": []any{}, "type": c.Reducer},
		"type":      "query",
	}
}

// ClassicConditionStep builds the data entry for a classic-condition
// expression evaluating one or more conditions over earlier entries.
func ClassicConditionStep(refID, inputRefID string, conditions []ClassicCondition, window RelativeTimeRange) AlertQuery {
	models := make([]any, 0, len(conditions))
	for _, c := range conditions {
		models = append(models, c.model())
	}
	return AlertQuery{
		RefID:             refID,
		RelativeTimeRange: window,
		DatasourceUID:     ExprDatasourceUID,
		Model: map[string]any{
			"refId":         refID,
			"type":          "classic_conditions",
			"datasource":    map[string]any{"type": ExprDatasourceUID, "uid": ExprDatasourceUID},
			"expression":    inputRefID,
			"conditions":    models,
			"hide":          false,
			"intervalMs":    1000,
			"maxDataPoints": 43200,
		},
	}
}

// FormatDuration renders whole seconds in Grafana's compact duration
// notation: "30s", "5m", "2h". Units only appear when the value divides
// evenly, matching what the UI writes.
func FormatDuration(seconds int) string {
	switch {
	case seconds <= 0:
		return "0s"
	case seconds%3600 == 0:
		return fmt.Sprintf("%dh", seconds/3600)
	case seconds%60 == 0:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
