package provision

import (
	"errors"
	"strings"
	"testing"

	"github.com/ACTRIS-CCRES/infra-hkd/internal/catalog"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
)

func floatPtr(v float64) *float64 { return &v }

func testSnapshot() *catalog.Snapshot {
	return &catalog.Snapshot{
		Stations: []catalog.Station{
			{ID: 1, Name: "Station1", Latitude: 48.7, Longitude: 2.2, Altitude: 156},
		},
		Models: []catalog.InstrumentModel{
			{ID: 1, Model: "CHM15K", Description: "Ceilometer", Manufacturer: "Lufft"},
		},
		Instruments: []catalog.Instrument{
			{ID: 1, PID: "https://hdl.handle.net/21.12132/3.abc", StationID: 1, ModelID: 1, ContactGroup: "ops", Active: true},
		},
		Parameters: []catalog.Parameter{
			{ID: 1, Name: "battery_voltage", Unit: "V", ModelID: 1},
			{ID: 2, Name: "internal_temperature", Unit: "degC", ModelID: 1},
		},
		Alerts: []catalog.AlertDef{
			{
				ID: 1, Title: "Low Battery", ParameterID: 1,
				Method:       catalog.EvalLast,
				EvalDuration: 10, EvalFrequency: 5, EvalUnit: catalog.UnitMinute,
				Summary: "Battery voltage is low", Level: catalog.LevelWarning,
				Min:         catalog.Trigger{Value: floatPtr(11.5), Condition: catalog.OpLower},
				ForDuration: 3, ForUnit: catalog.UnitMinute,
			},
		},
		Contacts: []catalog.Contact{
			{ID: 1, Name: "Alice", Email: "a@example.org", Groups: []string{"ops"}},
			{ID: 2, Name: "Bob", Email: "b@example.org", Groups: []string{"ops", "science"}},
		},
	}
}

func testBuildConfig() BuildConfig {
	return BuildConfig{DatasourceUID: "ChyluIf4k", DatasourceName: "InfluxDB", InfluxBucket: "hkd"}
}

func TestBuild_FoldersAndGroups(t *testing.T) {
	ds, err := Build(testSnapshot(), testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(ds.Folders) != 1 || ds.Folders[0].Title != "Station1" {
		t.Fatalf("folders: got %+v, want one folder Station1", ds.Folders)
	}

	groups := ds.RuleGroups["Station1"]
	if len(groups) != 1 {
		t.Fatalf("rule groups for Station1: got %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Name != "Station1" {
		t.Errorf("group name: got %q, want Station1", g.Name)
	}
	if g.Interval != "5m" {
		t.Errorf("group interval: got %q, want 5m (fastest eval frequency)", g.Interval)
	}
	if len(g.Rules) != 1 {
		t.Fatalf("rules: got %d, want 1", len(g.Rules))
	}
}

func TestBuild_RuleShape(t *testing.T) {
	ds, err := Build(testSnapshot(), testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rule := ds.RuleGroups["Station1"][0].Rules[0]

	if rule.Title() != "Low Battery" {
		t.Errorf("title: got %q, want Low Battery", rule.Title())
	}
	if rule.For != "3m" {
		t.Errorf("for: got %q, want 3m", rule.For)
	}
	wantLabels := map[string]string{LabelStation: "Station1", LabelGroup: "ops", LabelLevel: "warning"}
	for k, want := range wantLabels {
		if got := rule.Labels[k]; got != want {
			t.Errorf("label %s: got %q, want %q", k, got, want)
		}
	}
	if got := rule.Annotations["summary"]; got != "Battery voltage is low" {
		t.Errorf("summary: got %q", got)
	}

	alert := rule.GrafanaAlert
	if err := alert.Validate(); err != nil {
		t.Fatalf("built alert does not validate: %v", err)
	}
	if len(alert.Data) != 2 {
		t.Fatalf("data steps: got %d, want 2 (query + condition)", len(alert.Data))
	}
	query, cond := alert.Data[0], alert.Data[1]
	if query.RefID != "A" || cond.RefID != "B" || alert.Condition != "B" {
		t.Errorf("refId chain: got %s -> %s condition %s, want A -> B condition B",
			query.RefID, cond.RefID, alert.Condition)
	}
	if query.DatasourceUID != "ChyluIf4k" {
		t.Errorf("query datasource: got %q, want ChyluIf4k", query.DatasourceUID)
	}
	if cond.DatasourceUID != grafana.ExprDatasourceUID {
		t.Errorf("condition datasource: got %q, want %q", cond.DatasourceUID, grafana.ExprDatasourceUID)
	}
	if query.RelativeTimeRange.From != 600 {
		t.Errorf("window: got %d, want 600 (10 minutes)", query.RelativeTimeRange.From)
	}

	flux := query.Model["query"].(string)
	for _, want := range []string{`from(bucket: "hkd")`, `r["_measurement"] == "CHM15K"`, `r["_field"] == "battery_voltage"`, `r["site"] == "Station1"`} {
		if !strings.Contains(flux, want) {
			t.Errorf("flux query missing %s:\n%s", want, flux)
		}
	}

	conditions := cond.Model["conditions"].([]any)
	if len(conditions) != 1 {
		t.Fatalf("conditions: got %d, want 1 (only min trigger set)", len(conditions))
	}
	c := conditions[0].(map[string]any)
	if typ := c["evaluator"].(map[string]any)["type"]; typ != "lt" {
		t.Errorf("evaluator: got %v, want lt", typ)
	}
	if red := c["reducer"].(map[string]any)["type"]; red != "last" {
		t.Errorf("reducer: got %v, want last", red)
	}
}

func TestBuild_BothTriggersTwoConditions(t *testing.T) {
	snap := testSnapshot()
	snap.Alerts[0].Max = catalog.Trigger{Value: floatPtr(14.2), Condition: catalog.OpGreater}

	ds, err := Build(snap, testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cond := ds.RuleGroups["Station1"][0].Rules[0].GrafanaAlert.Data[1]
	conditions := cond.Model["conditions"].([]any)
	if len(conditions) != 2 {
		t.Fatalf("conditions: got %d, want 2 (min and max)", len(conditions))
	}
}

func TestBuild_InvalidAlertFailsBeforeIO(t *testing.T) {
	snap := testSnapshot()
	snap.Alerts[0].Min = catalog.Trigger{}

	_, err := Build(snap, testBuildConfig())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("got %v, want a BuildError", err)
	}
	if !strings.Contains(buildErr.Object, "Low Battery") {
		t.Errorf("object: got %q, want the alert title named", buildErr.Object)
	}
}

func TestBuild_InactiveInstrumentSkipped(t *testing.T) {
	snap := testSnapshot()
	snap.Instruments[0].Active = false

	ds, err := Build(snap, testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(ds.RuleGroups) != 0 {
		t.Errorf("rule groups: got %d, want none for an inactive instrument", len(ds.RuleGroups))
	}
	if len(ds.Dashboards) != 0 {
		t.Errorf("dashboards: got %d, want none for an inactive instrument", len(ds.Dashboards))
	}
	// The folder is still desired: stations exist independently of deployments.
	if len(ds.Folders) != 1 {
		t.Errorf("folders: got %d, want 1", len(ds.Folders))
	}
}

func TestBuild_Dashboards(t *testing.T) {
	ds, err := Build(testSnapshot(), testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dashboards := ds.Dashboards["Station1"]
	if len(dashboards) != 1 {
		t.Fatalf("dashboards: got %d, want 1 (one per model)", len(dashboards))
	}
	d := dashboards[0]
	if d.Title != "CHM15K" {
		t.Errorf("title: got %q, want CHM15K", d.Title)
	}
	if len(d.Panels) != 2 {
		t.Fatalf("panels: got %d, want 2 (one per parameter)", len(d.Panels))
	}
	if d.Panels[0].Title != "battery_voltage [V]" {
		t.Errorf("panel title: got %q", d.Panels[0].Title)
	}
	if d.Panels[1].GridPos.Y != panelHeight {
		t.Errorf("second panel y: got %d, want %d (stacked)", d.Panels[1].GridPos.Y, panelHeight)
	}
}

func TestBuild_ContactPointsAndRoutes(t *testing.T) {
	ds, err := Build(testSnapshot(), testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(ds.ContactPoints) != 2 {
		t.Fatalf("contact points: got %d, want 2 (ops, science)", len(ds.ContactPoints))
	}
	ops := ds.ContactPoints[0]
	if ops.Name != "ops" || ops.Type != "email" {
		t.Errorf("first contact point: got %s/%s, want ops/email", ops.Name, ops.Type)
	}
	if got := ops.Settings["addresses"]; got != "a@example.org;b@example.org" {
		t.Errorf("ops addresses: got %q", got)
	}

	if len(ds.Routes) != 2 {
		t.Fatalf("routes: got %d, want 2", len(ds.Routes))
	}
	route := ds.Routes[0]
	if route.Receiver != "ops" {
		t.Errorf("route receiver: got %q, want ops", route.Receiver)
	}
	want := grafana.Matcher(LabelGroup, grafana.MatchEqual, "ops")
	if len(route.ObjectMatchers) != 1 || route.ObjectMatchers[0] != want {
		t.Errorf("route matchers: got %v, want %v", route.ObjectMatchers, want)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(testSnapshot(), testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build(testSnapshot(), testBuildConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(ChangedGroups(a.RuleGroups["Station1"], b.RuleGroups["Station1"])) != 0 {
		t.Errorf("two builds of the same snapshot differ")
	}
}
