package catalog

import "testing"

func TestAlertDefValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AlertDef)
		wantErr bool
	}{
		{"min pair only", func(a *AlertDef) {}, false},
		{"max pair only", func(a *AlertDef) {
			a.Min = Trigger{}
			a.Max = Trigger{Value: floatPtr(14.2), Condition: OpGreater}
		}, false},
		{"both pairs", func(a *AlertDef) {
			a.Max = Trigger{Value: floatPtr(14.2), Condition: OpGreater}
		}, false},
		{"no pair at all", func(a *AlertDef) {
			a.Min = Trigger{}
		}, true},
		{"min value without condition", func(a *AlertDef) {
			a.Min = Trigger{Value: floatPtr(11.5)}
		}, true},
		{"min condition without value", func(a *AlertDef) {
			a.Min = Trigger{Condition: OpLower}
		}, true},
		{"unknown condition", func(a *AlertDef) {
			a.Min = Trigger{Value: floatPtr(11.5), Condition: Operator("between")}
		}, true},
		{"unknown method", func(a *AlertDef) {
			a.Method = EvalMethod("p95")
		}, true},
		{"missing title", func(a *AlertDef) {
			a.Title = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAlert("Low Battery", 1)
			tt.mutate(&a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate: got err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationUnitSeconds(t *testing.T) {
	if got := UnitMinute.Seconds(10); got != 600 {
		t.Errorf("10 minutes: got %d seconds, want 600", got)
	}
	if got := UnitHour.Seconds(1.5); got != 5400 {
		t.Errorf("1.5 hours: got %d seconds, want 5400", got)
	}
	if got := UnitSecond.Seconds(42); got != 42 {
		t.Errorf("42 seconds: got %d, want 42", got)
	}
	if got := UnitDay.Seconds(2); got != 172800 {
		t.Errorf("2 days: got %d seconds, want 172800", got)
	}
}
