package provision

import (
	"fmt"
	"sort"

	"github.com/ACTRIS-CCRES/infra-hkd/internal/catalog"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
)

// Panel layout constants: panels stack vertically, 16 of 24 grid columns wide.
const (
	panelWidth  = 16
	panelHeight = 8
)

// Label keys stamped on every provisioned alert rule. Notification routes
// match on these.
const (
	LabelStation = "STATION"
	LabelGroup   = "GROUP"
	LabelLevel   = "LEVEL"
)

// BuildConfig carries the datasource the generated queries read from.
type BuildConfig struct {
	DatasourceUID  string
	DatasourceName string
	InfluxBucket   string
}

// BuildError reports a catalog record that cannot be turned into a valid
// desired object. It is raised before any network call.
type BuildError struct {
	Object string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("provision: build %s: %v", e.Object, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// DesiredState is everything one pass wants to exist remotely.
// Folder titles key the per-folder collections; folders are created before
// anything that references them.
type DesiredState struct {
	Folders       []grafana.Folder
	RuleGroups    map[string][]grafana.RuleGroup
	ContactPoints []grafana.ContactPointConfig
	Routes        []grafana.Route
	Dashboards    map[string][]grafana.Dashboard
}

// Build derives the desired state from a catalog snapshot. It is pure and
// deterministic: same snapshot, same output. One folder and one rule group
// per station, one dashboard per (station, instrument model), one rule per
// (instrument, alert definition), one contact point and one route per
// contact group.
func Build(snap *catalog.Snapshot, cfg BuildConfig) (*DesiredState, error) {
	ds := &DesiredState{
		RuleGroups: make(map[string][]grafana.RuleGroup),
		Dashboards: make(map[string][]grafana.Dashboard),
	}

	for _, station := range snap.Stations {
		ds.Folders = append(ds.Folders, grafana.Folder{Title: station.Name})

		group, err := buildStationGroup(snap, station, cfg)
		if err != nil {
			return nil, err
		}
		if len(group.Rules) > 0 {
			ds.RuleGroups[station.Name] = []grafana.RuleGroup{group}
		}

		dashboards := buildStationDashboards(snap, station, cfg)
		if len(dashboards) > 0 {
			ds.Dashboards[station.Name] = dashboards
		}
	}

	members := snap.GroupMembers()
	groups := make([]string, 0, len(members))
	for g := range members {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		// The full membership list, recomputed every pass. Pushing this
		// contact point replaces the remote address list outright.
		ds.ContactPoints = append(ds.ContactPoints, grafana.EmailContactPoint(g, members[g], false))
		ds.Routes = append(ds.Routes, grafana.Route{
			Receiver:       g,
			ObjectMatchers: [][3]string{grafana.Matcher(LabelGroup, grafana.MatchEqual, g)},
		})
	}

	return ds, nil
}

// buildStationGroup builds the station's rule group: one rule per active
// instrument per alert definition on its model's parameters.
func buildStationGroup(snap *catalog.Snapshot, station catalog.Station, cfg BuildConfig) (grafana.RuleGroup, error) {
	group := grafana.RuleGroup{
		Name:     station.Name,
		Interval: "5m",
	}

	minFrequency := 0
	for _, inst := range snap.InstrumentsAt(station.ID) {
		model, ok := snap.ModelByID(inst.ModelID)
		if !ok {
			return group, &BuildError{
				Object: fmt.Sprintf("instrument %d", inst.ID),
				Err:    fmt.Errorf("unknown instrument model %d", inst.ModelID),
			}
		}
		for _, param := range snap.ParametersOfModel(model.ID) {
			for _, def := range snap.AlertsOfParameter(param.ID) {
				rule, err := buildRule(station, model, inst, param, def, cfg)
				if err != nil {
					return group, err
				}
				group.Rules = append(group.Rules, rule)

				freq := def.EvalUnit.Seconds(def.EvalFrequency)
				if freq > 0 && (minFrequency == 0 || freq < minFrequency) {
					minFrequency = freq
				}
			}
		}
	}

	// The group evaluates at the fastest frequency any of its rules asks for.
	if minFrequency > 0 {
		group.Interval = grafana.FormatDuration(minFrequency)
	}
	return group, nil
}

// buildRule turns one alert definition into a Grafana alert rule: a flux
// query step ("A") feeding a classic condition step (next free refId) that
// holds one evaluator per configured trigger pair.
func buildRule(station catalog.Station, model catalog.InstrumentModel, inst catalog.Instrument,
	param catalog.Parameter, def catalog.AlertDef, cfg BuildConfig) (grafana.Rule, error) {

	if err := def.Validate(); err != nil {
		return grafana.Rule{}, &BuildError{Object: fmt.Sprintf("alert %q", def.Title), Err: err}
	}

	query, err := grafana.NewFluxQuery(cfg.InfluxBucket).
		Range("v.timeRangeStart", "v.timeRangeStop").
		Filter("_measurement", model.Model).
		Filter("_field", param.Name).
		Filter("site", station.Name).
		Build()
	if err != nil {
		return grafana.Rule{}, &BuildError{Object: fmt.Sprintf("alert %q", def.Title), Err: err}
	}

	window := grafana.RelativeTimeRange{From: def.EvalUnit.Seconds(def.EvalDuration)}

	var conditions []grafana.ClassicCondition
	if def.Min.Set() {
		conditions = append(conditions, grafana.ClassicCondition{
			InputRefID: "A",
			Reducer:    reducer(def.Method),
			Evaluator:  evaluator(def.Min.Condition),
			Threshold:  *def.Min.Value,
		})
	}
	if def.Max.Set() {
		conditions = append(conditions, grafana.ClassicCondition{
			InputRefID: "A",
			Reducer:    reducer(def.Method),
			Evaluator:  evaluator(def.Max.Condition),
			Threshold:  *def.Max.Value,
		})
	}

	queryStep := grafana.QueryTarget("A", cfg.DatasourceUID, "influxdb", query, window)
	conditionRef := grafana.NextRefID(map[string]bool{"A": true})
	conditionStep := grafana.ClassicConditionStep(conditionRef, "A", conditions, window)

	alert := grafana.GrafanaAlert{
		Title:        def.Title,
		Condition:    conditionRef,
		Data:         []grafana.AlertQuery{queryStep, conditionStep},
		NoDataState:  grafana.StateNoData,
		ExecErrState: grafana.StateError,
	}
	if err := alert.Validate(); err != nil {
		return grafana.Rule{}, &BuildError{Object: fmt.Sprintf("alert %q", def.Title), Err: err}
	}

	annotations := map[string]string{"summary": def.Summary}
	if def.Description != "" {
		annotations["description"] = def.Description
	}

	return grafana.Rule{
		For: grafana.FormatDuration(def.ForUnit.Seconds(def.ForDuration)),
		Labels: map[string]string{
			LabelStation: station.Name,
			LabelGroup:   inst.ContactGroup,
			LabelLevel:   string(def.Level),
		},
		Annotations:  annotations,
		GrafanaAlert: alert,
	}, nil
}

// buildStationDashboards builds one dashboard per distinct instrument model
// deployed at the station, one timeseries panel per parameter.
func buildStationDashboards(snap *catalog.Snapshot, station catalog.Station, cfg BuildConfig) []grafana.Dashboard {
	seen := make(map[int]bool)
	var dashboards []grafana.Dashboard

	for _, inst := range snap.InstrumentsAt(station.ID) {
		if seen[inst.ModelID] {
			continue
		}
		seen[inst.ModelID] = true

		model, ok := snap.ModelByID(inst.ModelID)
		if !ok {
			continue
		}

		var panels []grafana.Panel
		for i, param := range snap.ParametersOfModel(model.ID) {
			query, err := grafana.NewFluxQuery(cfg.InfluxBucket).
				Range("v.timeRangeStart", "v.timeRangeStop").
				Filter("_measurement", model.Model).
				Filter("_field", param.Name).
				Filter("site", station.Name).
				Build()
			if err != nil {
				continue
			}
			panels = append(panels, grafana.TimeseriesPanel(
				i+1,
				fmt.Sprintf("%s [%s]", param.Name, param.Unit),
				query,
				"influxdb",
				cfg.DatasourceUID,
				grafana.GridPos{H: panelHeight, W: panelWidth, X: 0, Y: i * panelHeight},
			))
		}
		if len(panels) == 0 {
			continue
		}

		dashboards = append(dashboards, grafana.Dashboard{
			Title:       model.Model,
			Description: model.Description,
			Tags:        []string{model.Model},
			Timezone:    "browser",
			Panels:      panels,
		})
	}
	return dashboards
}

// reducer maps a catalog evaluation method to the Grafana classic reducer.
func reducer(m catalog.EvalMethod) string {
	if m == "" {
		return "last"
	}
	return string(m)
}

// evaluator maps a catalog trigger operator to the Grafana classic
// evaluator. Classic conditions only know strict comparisons, so the
// -or-equal variants collapse onto them.
func evaluator(op catalog.Operator) string {
	switch op {
	case catalog.OpLower, catalog.OpLowerEqual:
		return "lt"
	default:
		return "gt"
	}
}
