package grafana

import "testing"

func chainedAlert() GrafanaAlert {
	return GrafanaAlert{
		Title:     "Low Battery",
		Condition: "B",
		Data: []AlertQuery{
			QueryTarget("A", "ChyluIf4k", "influxdb", `from(bucket: "hkd")`, RelativeTimeRange{From: 600}),
			ClassicConditionStep("B", "A", []ClassicCondition{
				{InputRefID: "A", Reducer: "last", Evaluator: "lt", Threshold: 11.5},
			}, RelativeTimeRange{From: 600}),
		},
	}
}

func TestGrafanaAlertValidate(t *testing.T) {
	if err := chainedAlert().Validate(); err != nil {
		t.Errorf("Validate: %v, want nil for a well-formed chain", err)
	}

	a := chainedAlert()
	a.Condition = "C"
	if err := a.Validate(); err == nil {
		t.Error("Validate: expected error when condition references a missing refId")
	}

	a = chainedAlert()
	a.Data[1].RefID = "A"
	a.Data[1].Model["refId"] = "A"
	if err := a.Validate(); err == nil {
		t.Error("Validate: expected error for duplicate refIds")
	}

	a = chainedAlert()
	a.Data[1].Model["expression"] = "Z"
	if err := a.Validate(); err == nil {
		t.Error("Validate: expected error when an expression input is missing from the chain")
	}
}

func TestNextRefID(t *testing.T) {
	if got := NextRefID(map[string]bool{}); got != "A" {
		t.Errorf("NextRefID(empty): got %q, want A", got)
	}
	if got := NextRefID(map[string]bool{"A": true}); got != "B" {
		t.Errorf("NextRefID(A taken): got %q, want B", got)
	}
	if got := NextRefID(map[string]bool{"A": true, "B": true, "D": true}); got != "C" {
		t.Errorf("NextRefID(gap at C): got %q, want C", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0s"},
		{-5, "0s"},
		{45, "45s"},
		{60, "1m"},
		{300, "5m"},
		{90, "90s"},
		{3600, "1h"},
		{7200, "2h"},
		{5400, "90m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d): got %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
