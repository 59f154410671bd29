// Package verdict assembles a risk verdict for one submitted check from
// the profile's declared allergies and medications. Pure and synchronous:
// same profile, events and snapshot version always produce the same
// verdict.
package verdict

import (
	"fmt"
	"strings"

	"vigil/internal/registry"
	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

// Severity contributions for rule kinds whose severity is not a category
// weight. Cross-reactive hits sit just above the unknown-category default;
// interactions carry a flat medium weight.
const (
	interactionSeverity  = 50
	crossSeverityBase    = taxonomy.DefaultSeverity
	crossSeverityCeiling = 100
)

// Assembler evaluates checks against one ontology snapshot and registry.
type Assembler struct {
	snapshot *taxonomy.Snapshot
	registry *registry.Registry
}

// New returns an assembler bound to the given snapshot and registry.
func New(s *taxonomy.Snapshot, r *registry.Registry) *Assembler {
	return &Assembler{snapshot: s, registry: r}
}

// Snapshot exposes the bound ontology snapshot (the replay gate swaps it).
func (a *Assembler) Snapshot() *taxonomy.Snapshot { return a.snapshot }

// Evaluate produces the verdict for one check. Malformed or incomplete
// events contribute nothing; they never fail the evaluation.
func (a *Assembler) Evaluate(profile types.Profile, check types.Check) types.Verdict {
	expanded := a.snapshot.ExpandAllergies(profile.Allergies)

	var (
		matched  []types.MatchedEntry
		severity int
		reasons  []string
		crossHit bool
	)

	for _, ev := range check.Events {
		if ev.Label == "" {
			continue
		}
		switch ev.Type {
		case types.EventMeal:
			if allergen, ok := a.snapshot.MatchAllergen(ev.Label, expanded); ok {
				entry, sev := a.allergyEntry(allergen)
				matched = append(matched, entry)
				severity = max(severity, sev)
				reasons = append(reasons, fmt.Sprintf("detected %s in %q", allergen, ev.Label))
				continue
			}
			// Lower-confidence pass runs against the raw allergy list,
			// only when the meal produced no direct match.
			if cm, ok := a.snapshot.CrossReactiveMatch(profile.Allergies, ev.Label); ok {
				matched = append(matched, crossEntry(cm))
				severity = max(severity, crossSeverity(cm.Modifier))
				reasons = append(reasons, fmt.Sprintf("%s may cross-react with %s allergy", cm.MatchedTerm, cm.Source))
				crossHit = true
			}
		case types.EventMedication:
			for _, current := range profile.Medications {
				class, evTerm, curTerm, ok := a.registry.SameClass(ev.Label, current)
				if !ok || evTerm == curTerm {
					continue
				}
				matched = append(matched, types.MatchedEntry{
					Rule:     types.RuleMedicationInteraction,
					RuleCode: types.RuleCodeMedicationInteraction,
					Interaction: &types.InteractionDetail{
						Medication:    evTerm,
						ConflictsWith: curTerm,
						Class:         class,
					},
				})
				severity = max(severity, interactionSeverity)
				reasons = append(reasons, fmt.Sprintf("%s and %s are both %s", evTerm, curTerm, class))
			}
		}
	}

	risk := aggregateRisk(matched)
	reasoning := "no allergen or interaction risk detected"
	if len(reasons) > 0 {
		reasoning = strings.Join(reasons, "; ")
	}
	if risk == types.RiskNone {
		severity = 0
	}

	return types.Verdict{
		RiskLevel: risk,
		Reasoning: reasoning,
		Matched:   matched,
		Meta: types.VerdictMeta{
			Severity:        severity,
			TaxonomyVersion: a.snapshot.Version(),
			TraceID:         check.ID + ":" + a.snapshot.Version(),
			CrossReactive:   crossHit,
		},
	}
}

func (a *Assembler) allergyEntry(allergen string) (types.MatchedEntry, int) {
	sev := taxonomy.DefaultSeverity
	category := ""
	if p, ok := a.snapshot.CategoryOf(allergen); ok {
		sev = p.Severity
		category = p.Key
	}
	return types.MatchedEntry{
		Rule:     types.RuleAllergyMatch,
		RuleCode: types.RuleCodeAllergyMatch,
		Allergy: &types.AllergyDetail{
			Allergen:        allergen,
			MatchedCategory: category,
			Severity:        sev,
		},
	}, sev
}

func crossEntry(cm taxonomy.CrossMatch) types.MatchedEntry {
	return types.MatchedEntry{
		Rule:     types.RuleCrossReactive,
		RuleCode: types.RuleCodeCrossReactive,
		CrossReactive: &types.CrossReactiveDetail{
			Source:      cm.Source,
			MatchedTerm: cm.MatchedTerm,
			Modifier:    cm.Modifier,
		},
	}
}

func crossSeverity(modifier int) int {
	sev := crossSeverityBase + modifier
	if sev > crossSeverityCeiling {
		sev = crossSeverityCeiling
	}
	if sev < 0 {
		sev = 0
	}
	return sev
}

// aggregateRisk applies the fixed precedence: any direct allergy match is
// high; cross-reactive and interaction hits are capped at medium, never
// presented with direct-match urgency.
func aggregateRisk(matched []types.MatchedEntry) types.RiskLevel {
	risk := types.RiskNone
	for _, m := range matched {
		switch m.Rule {
		case types.RuleAllergyMatch:
			return types.RiskHigh
		case types.RuleCrossReactive, types.RuleMedicationInteraction:
			risk = types.RiskMedium
		}
	}
	return risk
}
