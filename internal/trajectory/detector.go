// Package trajectory mines a profile's recent timeline for temporal
// patterns: trigger->symptom pairs, repeated symptoms, medication symptom
// clusters and functional stacking. Each detector is a standalone pass
// producing the shared Insight representation; one explicit post-processing
// stage suppresses, scores and ranks the combined output.
package trajectory

import (
	"sort"

	"vigil/internal/config"
	"vigil/internal/evidence"
	"vigil/internal/registry"
	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

// Proximity buckets for trigger->symptom gaps.
const (
	BucketStrong = "strong"
	BucketMedium = "medium"
	BucketWeak   = "weak"
)

// Gate and annotation labels recorded in whyIncluded. Every emitted
// insight names the exact conditions it satisfied.
const (
	WhyProximityStrong = "proximity_strong"
	WhyAllergenTrigger = "allergen_trigger"
	WhyUniqueTrigger   = "unique_trigger"
	WhyRecurred        = "recurring_symptom"
	WhyClusterSize     = "multi_symptom_cluster"
	WhyStackedClass    = "stacked_functional_class"
	WhyLiftBoost       = "lift_boost"
	WhyZeroHitPenalty  = "zero_hit_penalty"
)

// Detector runs the pattern passes over one request's timeline.
type Detector struct {
	cfg      config.TrajectoryConfig
	snapshot *taxonomy.Snapshot
	registry *registry.Registry
}

// New returns a detector bound to a snapshot and registry.
func New(cfg config.TrajectoryConfig, s *taxonomy.Snapshot, r *registry.Registry) *Detector {
	return &Detector{cfg: cfg, snapshot: s, registry: r}
}

// Detect produces the ranked insights for a timeline. The timeline must be
// ordered by event timestamp and already restricted to the lookback
// window; knownAllergies is the profile's raw allergy list. idx may be nil
// when no evidence re-scoring is wanted.
func (d *Detector) Detect(timeline []types.TimelineEntry, knownAllergies []string, idx *evidence.Index) []types.Insight {
	expanded := d.snapshot.ExpandAllergies(knownAllergies)

	clusters, covered := d.detectClusters(timeline)
	pairs := d.detectTriggerSymptom(timeline, expanded)
	repeated := d.detectRepeatedSymptoms(timeline)
	stacked := d.detectStacking(timeline)

	// Suppression: a pairwise insight already explained by an emitted
	// medication cluster adds noise, not signal.
	kept := pairs[:0]
	for _, ins := range pairs {
		if covered[pairLabel{ins.Trigger, ins.Symptom}] {
			continue
		}
		kept = append(kept, ins)
	}

	insights := make([]types.Insight, 0, len(kept)+len(repeated)+len(clusters)+len(stacked))
	insights = append(insights, kept...)
	insights = append(insights, repeated...)
	insights = append(insights, clusters...)
	insights = append(insights, stacked...)

	d.score(insights, idx)

	sort.SliceStable(insights, func(i, j int) bool {
		if insights[i].Score != insights[j].Score {
			return insights[i].Score > insights[j].Score
		}
		// More selective insights win ties.
		return len(insights[i].SupportingEventIDs) < len(insights[j].SupportingEventIDs)
	})
	return insights
}

type pairLabel struct {
	trigger string
	symptom string
}
