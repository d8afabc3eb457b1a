package catalog

import (
	"fmt"
	"sort"
)

// Operator is a comparison operator used by alert trigger conditions.
type Operator string

const (
	OpGreater      Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLower        Operator = "lt"
	OpLowerEqual   Operator = "lte"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpGreater, OpGreaterEqual, OpLower, OpLowerEqual:
		return true
	}
	return false
}

// EvalMethod is the reducer applied to a parameter's samples before the
// trigger condition is evaluated.
type EvalMethod string

const (
	EvalLast   EvalMethod = "last"
	EvalAvg    EvalMethod = "avg"
	EvalMin    EvalMethod = "min"
	EvalMax    EvalMethod = "max"
	EvalSum    EvalMethod = "sum"
	EvalCount  EvalMethod = "count"
	EvalMedian EvalMethod = "median"
)

// Valid reports whether m is a known evaluation method.
func (m EvalMethod) Valid() bool {
	switch m {
	case EvalLast, EvalAvg, EvalMin, EvalMax, EvalSum, EvalCount, EvalMedian:
		return true
	}
	return false
}

// Level is the severity attached to an alert's notification message.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// DurationUnit is the unit of the numeric duration fields on AlertDef.
type DurationUnit string

const (
	UnitSecond DurationUnit = "second"
	UnitMinute DurationUnit = "minute"
	UnitHour   DurationUnit = "hour"
	UnitDay    DurationUnit = "day"
)

// Seconds converts value expressed in unit u to whole seconds.
// An unknown unit is treated as seconds.
func (u DurationUnit) Seconds(value float64) int {
	switch u {
	case UnitMinute:
		return int(value * 60)
	case UnitHour:
		return int(value * 60 * 60)
	case UnitDay:
		return int(value * 60 * 60 * 24)
	default:
		return int(value)
	}
}

// Station is one measurement site of the network.
type Station struct {
	ID        int     `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	Altitude  float64 `yaml:"altitude" json:"altitude"`
}

// InstrumentModel describes a kind of instrument (e.g. CHM15K, BASTA).
type InstrumentModel struct {
	ID           int    `yaml:"id" json:"id"`
	Model        string `yaml:"model" json:"model"`
	Description  string `yaml:"description" json:"description"`
	Manufacturer string `yaml:"manufacturer" json:"manufacturer"`
}

// Instrument is one physical instrument deployed at a station.
type Instrument struct {
	ID           int    `yaml:"id" json:"id"`
	PID          string `yaml:"pid" json:"pid"`
	StationID    int    `yaml:"station_id" json:"station_id"`
	ModelID      int    `yaml:"model_id" json:"model_id"`
	ContactGroup string `yaml:"contact_group" json:"contact_group"`
	Active       bool   `yaml:"active" json:"active"`
}

// Parameter is one housekeeping variable reported by an instrument model.
type Parameter struct {
	ID      int    `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Unit    string `yaml:"unit" json:"unit"`
	ModelID int    `yaml:"model_id" json:"model_id"`
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Trigger is one half of an alert's firing condition: the parameter value
// compared against a threshold. Value and Condition must be set together.
type Trigger struct {
	Value     *float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Condition Operator `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Set reports whether the trigger is fully specified.
func (t Trigger) Set() bool { return t.Value != nil && t.Condition != "" }

// half reports whether the trigger is only partially specified.
func (t Trigger) half() bool {
	return (t.Value != nil) != (t.Condition != "")
}

// AlertDef defines one alert attached to a parameter. At least one of Min
// and Max must be a complete trigger pair.
type AlertDef struct {
	ID          int        `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	ParameterID int        `yaml:"parameter_id" json:"parameter_id"`
	Method      EvalMethod `yaml:"method" json:"method"`

	// EvalDuration is the look-back window of the reducer, EvalFrequency
	// the pause between evaluations, both expressed in EvalUnit.
	EvalDuration  float64      `yaml:"eval_duration" json:"eval_duration"`
	EvalFrequency float64      `yaml:"eval_frequency" json:"eval_frequency"`
	EvalUnit      DurationUnit `yaml:"eval_unit" json:"eval_unit"`

	Summary     string `yaml:"summary" json:"summary"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Level       Level  `yaml:"level" json:"level"`

	Min Trigger `yaml:"min,omitempty" json:"min,omitempty"`
	Max Trigger `yaml:"max,omitempty" json:"max,omitempty"`

	// ForDuration is how long the condition must hold before the alert
	// fires, expressed in ForUnit.
	ForDuration float64      `yaml:"for_duration" json:"for_duration"`
	ForUnit     DurationUnit `yaml:"for_unit" json:"for_unit"`
}

// Validate checks the alert definition's internal consistency.
func (a AlertDef) Validate() error {
	if a.Title == "" {
		return fmt.Errorf("alert %d: title is required", a.ID)
	}
	if !a.Min.Set() && !a.Max.Set() {
		return fmt.Errorf("alert %q: either a minimum or a maximum trigger pair (value and condition) must be provided", a.Title)
	}
	if a.Min.half() {
		return fmt.Errorf("alert %q: min value and min condition must be provided together", a.Title)
	}
	if a.Max.half() {
		return fmt.Errorf("alert %q: max value and max condition must be provided together", a.Title)
	}
	if a.Min.Set() && !a.Min.Condition.Valid() {
		return fmt.Errorf("alert %q: unknown min condition %q", a.Title, a.Min.Condition)
	}
	if a.Max.Set() && !a.Max.Condition.Valid() {
		return fmt.Errorf("alert %q: unknown max condition %q", a.Title, a.Max.Condition)
	}
	if a.Method != "" && !a.Method.Valid() {
		return fmt.Errorf("alert %q: unknown evaluation method %q", a.Title, a.Method)
	}
	return nil
}

// Contact is one person notified on alerts, member of zero or more named
// contact groups.
type Contact struct {
	ID     int      `yaml:"id" json:"id"`
	Name   string   `yaml:"name" json:"name"`
	Email  string   `yaml:"email" json:"email"`
	Groups []string `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// Snapshot is an immutable copy of the whole catalog, sorted by ID.
// It is the only view of the catalog the provisioning engine sees.
type Snapshot struct {
	Stations    []Station
	Models      []InstrumentModel
	Instruments []Instrument
	Parameters  []Parameter
	Alerts      []AlertDef
	Contacts    []Contact
}

// ModelByID returns the instrument model with the given ID, if present.
func (s *Snapshot) ModelByID(id int) (InstrumentModel, bool) {
	for _, m := range s.Models {
		if m.ID == id {
			return m, true
		}
	}
	return InstrumentModel{}, false
}

// ParametersOfModel returns all parameters declared for one instrument model.
func (s *Snapshot) ParametersOfModel(modelID int) []Parameter {
	var out []Parameter
	for _, p := range s.Parameters {
		if p.ModelID == modelID {
			out = append(out, p)
		}
	}
	return out
}

// InstrumentsAt returns the active instruments deployed at one station.
func (s *Snapshot) InstrumentsAt(stationID int) []Instrument {
	var out []Instrument
	for _, in := range s.Instruments {
		if in.StationID == stationID && in.Active {
			out = append(out, in)
		}
	}
	return out
}

// AlertsOfParameter returns the alert definitions attached to one parameter.
func (s *Snapshot) AlertsOfParameter(parameterID int) []AlertDef {
	var out []AlertDef
	for _, a := range s.Alerts {
		if a.ParameterID == parameterID {
			out = append(out, a)
		}
	}
	return out
}

// GroupMembers returns, per contact group name, the sorted e-mail addresses
// of its current members. The full membership is always recomputed — callers
// must never patch a single address into an existing list.
func (s *Snapshot) GroupMembers() map[string][]string {
	members := make(map[string][]string)
	for _, c := range s.Contacts {
		for _, g := range c.Groups {
			members[g] = append(members[g], c.Email)
		}
	}
	for g := range members {
		sort.Strings(members[g])
	}
	return members
}
