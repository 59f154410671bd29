// Package replay is the regression gate that certifies knowledge-base
// edits. It re-runs fixed scenarios through the verdict assembler under a
// baseline and a candidate ontology snapshot and diffs the normalized
// verdicts; fingerprinted scenarios must change in exactly the allowlisted
// way. Gate failures are structured results, never panics, so promotion
// tooling can report every mismatch.
package replay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vigil/internal/types"
)

// Mode controls how a scenario is gated.
type Mode string

const (
	// ModeLegacy scenarios may change in any way between snapshots.
	ModeLegacy Mode = "legacy"
	// ModeFingerprinted scenarios must match their expected fingerprint
	// exactly: before/after risk levels and added/removed term sets.
	ModeFingerprinted Mode = "fingerprinted"
)

// Fingerprint is the allowlisted change for one fingerprinted scenario.
type Fingerprint struct {
	RiskBefore     types.RiskLevel `yaml:"risk_before"`
	RiskAfter      types.RiskLevel `yaml:"risk_after"`
	AddedMatches   []string        `yaml:"added_matches"`
	RemovedMatches []string        `yaml:"removed_matches"`
}

// ScenarioEvent is one fixture event. Timestamps are optional; matching is
// time-independent and omitted timestamps share the scenario epoch.
type ScenarioEvent struct {
	ID        string          `yaml:"id"`
	Type      types.EventType `yaml:"type"`
	Timestamp time.Time       `yaml:"timestamp,omitempty"`
	Label     string          `yaml:"label"`
}

// ScenarioProfile is the fixture profile a scenario is evaluated under.
type ScenarioProfile struct {
	Allergies   []string `yaml:"allergies"`
	Medications []string `yaml:"medications"`
}

// Scenario is one fixed replay case.
type Scenario struct {
	ID      string          `yaml:"id"`
	Mode    Mode            `yaml:"mode"`
	Profile ScenarioProfile `yaml:"profile"`
	Events  []ScenarioEvent `yaml:"events"`
	Expect  *Fingerprint    `yaml:"expect,omitempty"`
}

// Suite is a YAML-defined collection of replay scenarios.
type Suite struct {
	Version   int        `yaml:"version"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadSuite reads a scenario suite from disk.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario suite %s: %w", path, err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario suite %s: %w", path, err)
	}
	for i, sc := range s.Scenarios {
		if sc.ID == "" {
			return nil, fmt.Errorf("scenario %d has no id", i)
		}
		if sc.Mode == "" {
			s.Scenarios[i].Mode = ModeLegacy
		}
	}
	return &s, nil
}

// check materializes the scenario fixture as an assembler input.
func (sc Scenario) check() (types.Profile, types.Check) {
	profile := types.Profile{
		ID:          "replay:" + sc.ID,
		Allergies:   sc.Profile.Allergies,
		Medications: sc.Profile.Medications,
	}
	check := types.Check{ID: sc.ID, ProfileID: profile.ID}
	for i, ev := range sc.Events {
		id := ev.ID
		if id == "" {
			id = fmt.Sprintf("%s-ev%d", sc.ID, i+1)
		}
		check.Events = append(check.Events, types.Event{
			ID:        id,
			Type:      ev.Type,
			Timestamp: ev.Timestamp,
			Label:     ev.Label,
		})
	}
	return profile, check
}
