// Package types provides shared type definitions used across vigil packages.
// This package exists to break import cycles between the assembler, the
// aggregators and the replay gate. Types in this package are foundational
// data structures with no complex dependencies.
package types

import (
	"sort"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventType classifies a logged event.
type EventType string

const (
	EventMeal       EventType = "meal"
	EventMedication EventType = "medication"
	EventSupplement EventType = "supplement"
	EventSymptom    EventType = "symptom"
)

// Ingestible reports whether the event type can act as a trigger
// (everything the user takes in, as opposed to a symptom they report).
func (t EventType) Ingestible() bool {
	switch t {
	case EventMeal, EventMedication, EventSupplement:
		return true
	}
	return false
}

// Event is one immutable logged occurrence. Events are produced by the
// extraction layer upstream and consumed read-only here.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
}

// Check is one submission: a batch of events evaluated together.
type Check struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	Timestamp time.Time `json:"timestamp"`
	Events    []Event   `json:"events"`
}

// TimelineEntry pairs an event with the check it arrived in. The event
// store returns these ordered by event timestamp.
type TimelineEntry struct {
	CheckID string `json:"checkId"`
	Event   Event  `json:"event"`
}

// Profile carries the declared allergies and current medications used by
// the verdict assembler.
type Profile struct {
	ID          string   `json:"id"`
	Allergies   []string `json:"allergies"`
	Medications []string `json:"medications"`
}

// =============================================================================
// VERDICTS
// =============================================================================

// RiskLevel is the three-valued outcome of a check evaluation.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels for max-aggregation (none < medium < high).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	}
	return 0
}

// RuleKind discriminates the matched-entry union.
type RuleKind string

const (
	RuleAllergyMatch          RuleKind = "allergy_match"
	RuleCrossReactive         RuleKind = "cross_reactive"
	RuleMedicationInteraction RuleKind = "medication_interaction"
)

// Stable rule codes cited on every matched entry so stored verdicts can be
// audited by machine without re-running the engine.
const (
	RuleCodeAllergyMatch          = "ALLERGY_MATCH_V1"
	RuleCodeCrossReactive         = "CROSS_REACTIVE_V1"
	RuleCodeMedicationInteraction = "MED_INTERACTION_V1"
)

// AllergyDetail is the payload of an allergy_match entry.
type AllergyDetail struct {
	Allergen        string `json:"allergen"`
	MatchedCategory string `json:"matchedCategory,omitempty"`
	Severity        int    `json:"severity"`
}

// CrossReactiveDetail is the payload of a cross_reactive entry.
type CrossReactiveDetail struct {
	Source      string `json:"source"`
	MatchedTerm string `json:"matchedTerm"`
	Modifier    int    `json:"modifier"`
}

// InteractionDetail is the payload of a medication_interaction entry.
type InteractionDetail struct {
	Medication    string `json:"medication"`
	ConflictsWith string `json:"conflictsWith"`
	Class         string `json:"class"`
}

// MatchedEntry is one rule citation inside a verdict. Exactly one detail
// pointer is set, selected by Rule; switching on Rule gives exhaustiveness
// when a new rule kind is added.
type MatchedEntry struct {
	Rule     RuleKind `json:"rule"`
	RuleCode string   `json:"ruleCode"`

	Allergy       *AllergyDetail       `json:"allergy,omitempty"`
	CrossReactive *CrossReactiveDetail `json:"crossReactive,omitempty"`
	Interaction   *InteractionDetail   `json:"interaction,omitempty"`
}

// Terms returns the contributing terms of the entry. A medication
// interaction contributes both sides of the pair.
func (m MatchedEntry) Terms() []string {
	switch m.Rule {
	case RuleAllergyMatch:
		if m.Allergy != nil {
			return []string{m.Allergy.Allergen}
		}
	case RuleCrossReactive:
		if m.CrossReactive != nil {
			return []string{m.CrossReactive.MatchedTerm}
		}
	case RuleMedicationInteraction:
		if m.Interaction != nil {
			return []string{m.Interaction.Medication, m.Interaction.ConflictsWith}
		}
	}
	return nil
}

// VerdictMeta ties a verdict to the exact ontology snapshot that produced
// it. Populated on every verdict, including none-risk ones.
type VerdictMeta struct {
	Severity        int    `json:"severity"`
	TaxonomyVersion string `json:"taxonomyVersion"`
	TraceID         string `json:"traceId"`
	CrossReactive   bool   `json:"crossReactive,omitempty"`
}

// Verdict is the immutable outcome of evaluating one check.
type Verdict struct {
	RiskLevel RiskLevel      `json:"riskLevel"`
	Reasoning string         `json:"reasoning"`
	Matched   []MatchedEntry `json:"matched"`
	Meta      VerdictMeta    `json:"meta"`
}

// StoredVerdict is a persisted verdict with the check it belongs to, as
// returned by the event store for vigilance aggregation.
type StoredVerdict struct {
	CheckID   string    `json:"checkId"`
	Timestamp time.Time `json:"timestamp"`
	Verdict   Verdict   `json:"verdict"`
}

// =============================================================================
// INSIGHTS
// =============================================================================

// InsightType classifies a mined temporal pattern.
type InsightType string

const (
	InsightTriggerSymptom     InsightType = "trigger_symptom"
	InsightRepeatedSymptom    InsightType = "repeated_symptom"
	InsightMedicationCluster  InsightType = "medication_symptom_cluster"
	InsightFunctionalStacking InsightType = "functional_stacking"
)

// Insight is one ranked pattern surfaced from the timeline. Insights are
// pure read-time derivations and are never persisted.
type Insight struct {
	Type               InsightType `json:"type"`
	Trigger            string      `json:"trigger,omitempty"`
	Symptom            string      `json:"symptom,omitempty"`
	Medication         string      `json:"medication,omitempty"`
	Symptoms           []string    `json:"symptoms,omitempty"`
	Class              string      `json:"class,omitempty"`
	Terms              []string    `json:"terms,omitempty"`
	SupportingEventIDs []string    `json:"supportingEventIds"`
	Priority           string      `json:"priority"`
	Score              int         `json:"score"`
	ProximityBucket    string      `json:"proximityBucket,omitempty"`
	HoursDelta         float64     `json:"hoursDelta,omitempty"`
	WhyIncluded        []string    `json:"whyIncluded"`
}

// =============================================================================
// VIGILANCE
// =============================================================================

// VigilanceTrigger is the single top-weighted contributing check, used for
// a headline banner upstream.
type VigilanceTrigger struct {
	CheckID          string    `json:"checkId"`
	Timestamp        time.Time `json:"timestamp"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	WeightedSeverity int       `json:"weightedSeverity"`
	MatchedTerms     []string  `json:"matchedTerms"`
}

// PressureSource is one term's aggregated contribution to the vigilance
// score, used for an attribution detail view.
type PressureSource struct {
	Term           string   `json:"term"`
	WeightedScore  int      `json:"weightedScore"`
	Count          int      `json:"count"`
	RecentCheckIDs []string `json:"recentCheckIds"`
}

// AggregationMeta records how a vigilance state was computed.
type AggregationMeta struct {
	Method      string    `json:"method"`
	TopN        int       `json:"topN"`
	WindowHours int       `json:"windowHours"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
	CheckCount  int       `json:"checkCount"`
}

// VigilanceState is the decayed risk summary for a profile. Ephemeral,
// recomputed per request.
type VigilanceState struct {
	VigilanceScore  int               `json:"vigilanceScore"`
	VigilanceActive bool              `json:"vigilanceActive"`
	Trigger         *VigilanceTrigger `json:"trigger,omitempty"`
	PressureSources []PressureSource  `json:"pressureSources"`
	Aggregation     AggregationMeta   `json:"aggregation"`
}

// SortedUnique returns a sorted, deduplicated copy of terms.
func SortedUnique(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
