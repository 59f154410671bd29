package trajectory

import (
	"vigil/internal/evidence"
	"vigil/internal/types"
)

// Base scores per insight type. Clusters outrank pairwise associations,
// which outrank stacking and plain recurrence.
const (
	baseCluster  = 60
	baseTrigger  = 50
	baseStacking = 45
	baseRepeated = 40

	supportBonus  = 10
	allergenBonus = 10
	liftBonus     = 10
	zeroHitMalus  = 10

	minSupportForBonus = 3
)

// score assigns the final score, priority hint and evidence annotations to
// every insight in place.
func (d *Detector) score(insights []types.Insight, idx *evidence.Index) {
	for i := range insights {
		ins := &insights[i]

		switch ins.Type {
		case types.InsightMedicationCluster:
			ins.Score = baseCluster
		case types.InsightTriggerSymptom:
			ins.Score = baseTrigger
		case types.InsightFunctionalStacking:
			ins.Score = baseStacking
		case types.InsightRepeatedSymptom:
			ins.Score = baseRepeated
		}

		if len(ins.SupportingEventIDs) >= minSupportForBonus {
			ins.Score += supportBonus
		}
		if hasWhy(ins, WhyAllergenTrigger) {
			ins.Score += allergenBonus
		}

		if idx != nil && ins.Type == types.InsightTriggerSymptom {
			stats := idx.Stats(ins.Trigger, ins.Symptom)
			if stats.Hits > 0 && stats.Lift >= d.cfg.LiftBoostThreshold {
				ins.Score += liftBonus
				ins.WhyIncluded = append(ins.WhyIncluded, WhyLiftBoost)
			}
			if stats.Hits == 0 && stats.Exposures >= d.cfg.ZeroHitExposureMin {
				ins.Score -= zeroHitMalus
				ins.WhyIncluded = append(ins.WhyIncluded, WhyZeroHitPenalty)
			}
		}

		ins.Priority = priorityFor(ins.Score)
	}
}

func priorityFor(score int) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 50:
		return "medium"
	default:
		return "low"
	}
}

func hasWhy(ins *types.Insight, why string) bool {
	for _, w := range ins.WhyIncluded {
		if w == why {
			return true
		}
	}
	return false
}
