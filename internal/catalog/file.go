package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileSchema is the on-disk YAML layout of a catalog snapshot.
type fileSchema struct {
	Stations    []Station         `yaml:"stations"`
	Models      []InstrumentModel `yaml:"instrument_models"`
	Instruments []Instrument      `yaml:"instruments"`
	Parameters  []Parameter       `yaml:"parameters"`
	Alerts      []AlertDef        `yaml:"alerts"`
	Contacts    []Contact         `yaml:"contacts"`
}

// LoadFile reads a catalog snapshot from a YAML file and validates every
// alert definition in it. Records keep the IDs written in the file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}

	var f fileSchema
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}

	for _, a := range f.Alerts {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %q: %w", path, err)
		}
	}

	return &Snapshot{
		Stations:    f.Stations,
		Models:      f.Models,
		Instruments: f.Instruments,
		Parameters:  f.Parameters,
		Alerts:      f.Alerts,
		Contacts:    f.Contacts,
	}, nil
}

// SaveFile writes the snapshot to path as YAML.
func SaveFile(path string, snap *Snapshot) error {
	f := fileSchema{
		Stations:    snap.Stations,
		Models:      snap.Models,
		Instruments: snap.Instruments,
		Parameters:  snap.Parameters,
		Alerts:      snap.Alerts,
		Contacts:    snap.Contacts,
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("catalog: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("catalog: write %q: %w", path, err)
	}
	return nil
}
