package replay

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vigil/internal/registry"
	"vigil/internal/taxonomy"
	"vigil/internal/types"
	"vigil/internal/verdict"
)

// NormalizedVerdict is the comparison shape a verdict is reduced to before
// diffing: risk level, sorted matched terms and the snapshot version.
type NormalizedVerdict struct {
	RiskLevel       types.RiskLevel `json:"riskLevel"`
	MatchedTerms    []string        `json:"matchedTerms"`
	TaxonomyVersion string          `json:"taxonomyVersion"`
}

// Normalize reduces a verdict for comparison.
func Normalize(v types.Verdict) NormalizedVerdict {
	var terms []string
	for _, m := range v.Matched {
		terms = append(terms, m.Terms()...)
	}
	return NormalizedVerdict{
		RiskLevel:       v.RiskLevel,
		MatchedTerms:    types.SortedUnique(terms),
		TaxonomyVersion: v.Meta.TaxonomyVersion,
	}
}

// ScenarioDiff is the gate outcome for one scenario.
type ScenarioDiff struct {
	ScenarioID       string            `json:"scenarioId"`
	Mode             Mode              `json:"mode"`
	Before           NormalizedVerdict `json:"before"`
	After            NormalizedVerdict `json:"after"`
	RiskLevelChanged bool              `json:"riskLevelChanged"`
	AddedMatches     []string          `json:"addedMatches"`
	RemovedMatches   []string          `json:"removedMatches"`
	Passed           bool              `json:"passed"`
	Reasons          []string          `json:"reasons,omitempty"`
}

// Report is the structured replay-diff result consumed by promotion
// tooling.
type Report struct {
	ReportID         string         `json:"reportId"`
	BaselineVersion  string         `json:"baselineVersion"`
	CandidateVersion string         `json:"candidateVersion"`
	Scenarios        []ScenarioDiff `json:"scenarios"`
	Passed           bool           `json:"passed"`
}

// Gate runs scenarios against a baseline and a candidate snapshot.
type Gate struct {
	baseline  *verdict.Assembler
	candidate *verdict.Assembler
}

// NewGate builds a gate from the two snapshots under comparison. The live
// snapshot is never mutated; the candidate is always a separate load.
func NewGate(baseline, candidate *taxonomy.Snapshot, reg *registry.Registry) *Gate {
	return &Gate{
		baseline:  verdict.New(baseline, reg),
		candidate: verdict.New(candidate, reg),
	}
}

// Run evaluates every scenario under both snapshots. Scenarios are
// independent, so they run concurrently; results stay index-addressed for
// deterministic output order.
func (g *Gate) Run(ctx context.Context, suite *Suite) (*Report, error) {
	report := &Report{
		ReportID:         uuid.NewString(),
		BaselineVersion:  g.baseline.Snapshot().Version(),
		CandidateVersion: g.candidate.Snapshot().Version(),
		Scenarios:        make([]ScenarioDiff, len(suite.Scenarios)),
		Passed:           true,
	}

	eg, _ := errgroup.WithContext(ctx)
	for i, sc := range suite.Scenarios {
		i, sc := i, sc
		eg.Go(func() error {
			report.Scenarios[i] = g.runScenario(sc)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, d := range report.Scenarios {
		if !d.Passed {
			report.Passed = false
			break
		}
	}
	return report, nil
}

func (g *Gate) runScenario(sc Scenario) ScenarioDiff {
	profile, check := sc.check()

	before := Normalize(g.baseline.Evaluate(profile, check))
	after := Normalize(g.candidate.Evaluate(profile, check))

	diff := ScenarioDiff{
		ScenarioID:       sc.ID,
		Mode:             sc.Mode,
		Before:           before,
		After:            after,
		RiskLevelChanged: before.RiskLevel != after.RiskLevel,
		AddedMatches:     subtract(after.MatchedTerms, before.MatchedTerms),
		RemovedMatches:   subtract(before.MatchedTerms, after.MatchedTerms),
	}

	switch sc.Mode {
	case ModeLegacy:
		diff.Passed = true
	case ModeFingerprinted:
		diff.Reasons = g.checkFingerprint(sc, diff)
		diff.Passed = len(diff.Reasons) == 0
	default:
		diff.Reasons = []string{fmt.Sprintf("unknown gate mode %q", sc.Mode)}
	}
	return diff
}

// checkFingerprint compares the observed diff against the allowlisted one,
// collecting every mismatch rather than stopping at the first.
func (g *Gate) checkFingerprint(sc Scenario, diff ScenarioDiff) []string {
	if sc.Expect == nil {
		return []string{"fingerprinted scenario missing expected fingerprint"}
	}

	var reasons []string
	if diff.Before.RiskLevel != sc.Expect.RiskBefore {
		reasons = append(reasons, fmt.Sprintf("riskBefore mismatch: expected %s, got %s",
			sc.Expect.RiskBefore, diff.Before.RiskLevel))
	}
	if diff.After.RiskLevel != sc.Expect.RiskAfter {
		reasons = append(reasons, fmt.Sprintf("riskAfter mismatch: expected %s, got %s",
			sc.Expect.RiskAfter, diff.After.RiskLevel))
	}

	sorted := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	empty := cmpopts.EquateEmpty()
	if !cmp.Equal(sc.Expect.AddedMatches, diff.AddedMatches, sorted, empty) {
		reasons = append(reasons, fmt.Sprintf("addedMatches mismatch: expected %v, got %v",
			sc.Expect.AddedMatches, diff.AddedMatches))
	}
	if !cmp.Equal(sc.Expect.RemovedMatches, diff.RemovedMatches, sorted, empty) {
		reasons = append(reasons, fmt.Sprintf("removedMatches mismatch: expected %v, got %v",
			sc.Expect.RemovedMatches, diff.RemovedMatches))
	}
	return reasons
}

// subtract returns the sorted terms present in a but not in b.
func subtract(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := inB[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
