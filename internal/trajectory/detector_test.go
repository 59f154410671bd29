package trajectory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/config"
	"vigil/internal/evidence"
	"vigil/internal/registry"
	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

const kbFixture = `
version: "test"
parents:
  - key: tree_nut
    severity: 90
    children:
      - almond
      - walnut
`

var epoch = time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	snapshot, err := taxonomy.Parse([]byte(kbFixture))
	require.NoError(t, err)
	return New(config.DefaultConfig().Trajectory, snapshot, registry.New())
}

func entry(checkID, eventID string, evType types.EventType, label string, offset time.Duration) types.TimelineEntry {
	return types.TimelineEntry{
		CheckID: checkID,
		Event:   types.Event{ID: eventID, Type: evType, Timestamp: epoch.Add(offset), Label: label},
	}
}

func TestDetectTriggerSymptomBucketUpgrade(t *testing.T) {
	d := newDetector(t)
	timeline := []types.TimelineEntry{
		entry("c1", "g1", types.EventMeal, "almond granola", 0),
		entry("c1", "s1", types.EventSymptom, "rash", 10*time.Hour),
		entry("c2", "g2", types.EventMeal, "almond granola", 48*time.Hour),
		entry("c2", "s2", types.EventSymptom, "rash", 50*time.Hour),
	}

	insights := d.Detect(timeline, []string{"tree_nut"}, nil)

	require.Len(t, insights, 1)
	ins := insights[0]
	assert.Equal(t, types.InsightTriggerSymptom, ins.Type)
	assert.Equal(t, "almond granola", ins.Trigger)
	assert.Equal(t, "rash", ins.Symptom)
	assert.Equal(t, BucketStrong, ins.ProximityBucket, "the strongest observed bucket wins")
	assert.Equal(t, 2.0, ins.HoursDelta)
	assert.ElementsMatch(t, []string{"g1", "s1", "g2", "s2"}, ins.SupportingEventIDs)
	assert.Contains(t, ins.WhyIncluded, WhyProximityStrong)
	assert.Contains(t, ins.WhyIncluded, WhyAllergenTrigger)
	assert.NotContains(t, ins.WhyIncluded, WhyUniqueTrigger, "two exposures are not unique")

	// base 50 + support bonus + allergen bonus
	assert.Equal(t, 70, ins.Score)
	assert.Equal(t, "high", ins.Priority)
}

func TestDetectUngatedPairsAreDropped(t *testing.T) {
	d := newDetector(t)
	// Two exposures, weak proximity, no allergen relation: no gate fires.
	timeline := []types.TimelineEntry{
		entry("c1", "e1", types.EventMeal, "toast", 0),
		entry("c2", "e2", types.EventMeal, "toast", 24*time.Hour),
		entry("c3", "e3", types.EventSymptom, "rash", 40*time.Hour),
	}

	assert.Empty(t, d.Detect(timeline, nil, nil))
}

func TestDetectUniqueTriggerGate(t *testing.T) {
	d := newDetector(t)
	timeline := []types.TimelineEntry{
		entry("c1", "e1", types.EventMeal, "durian", 0),
		entry("c2", "e2", types.EventSymptom, "nausea", 20*time.Hour),
	}

	insights := d.Detect(timeline, nil, nil)

	require.Len(t, insights, 1)
	ins := insights[0]
	assert.Equal(t, BucketWeak, ins.ProximityBucket)
	assert.Equal(t, []string{WhyUniqueTrigger}, ins.WhyIncluded)
	assert.Equal(t, 50, ins.Score)
	assert.Equal(t, "medium", ins.Priority)
}

func TestDetectClusterSuppressesPairwise(t *testing.T) {
	d := newDetector(t)
	timeline := []types.TimelineEntry{
		entry("c1", "m1", types.EventMedication, "ibuprofen", 0),
		entry("c1", "s1", types.EventSymptom, "headache", 1*time.Hour),
		entry("c1", "s2", types.EventSymptom, "nausea", 2*time.Hour),
	}

	insights := d.Detect(timeline, nil, nil)

	require.Len(t, insights, 1, "the cluster subsumes its pairwise insights")
	ins := insights[0]
	assert.Equal(t, types.InsightMedicationCluster, ins.Type)
	assert.Equal(t, "ibuprofen", ins.Medication)
	assert.Equal(t, []string{"headache", "nausea"}, ins.Symptoms)
	assert.ElementsMatch(t, []string{"m1", "s1", "s2"}, ins.SupportingEventIDs)
	assert.Contains(t, ins.WhyIncluded, WhyClusterSize)
	assert.Contains(t, ins.WhyIncluded, "distinct_symptoms=2")

	// base 60 + support bonus
	assert.Equal(t, 70, ins.Score)
	assert.Equal(t, "high", ins.Priority)
}

func TestDetectRepeatedSymptoms(t *testing.T) {
	d := newDetector(t)

	t.Run("three distinct checks emit", func(t *testing.T) {
		timeline := []types.TimelineEntry{
			entry("c1", "s1", types.EventSymptom, "headache", 0),
			entry("c2", "s2", types.EventSymptom, "Headache", 24*time.Hour),
			entry("c3", "s3", types.EventSymptom, "headache", 48*time.Hour),
		}

		insights := d.Detect(timeline, nil, nil)

		require.Len(t, insights, 1)
		ins := insights[0]
		assert.Equal(t, types.InsightRepeatedSymptom, ins.Type)
		assert.Equal(t, "headache", ins.Symptom)
		assert.Equal(t, []string{"s1", "s2", "s3"}, ins.SupportingEventIDs)
		assert.Contains(t, ins.WhyIncluded, WhyRecurred)
		assert.Contains(t, ins.WhyIncluded, "distinct_checks=3")
		assert.Equal(t, 50, ins.Score)
		assert.Equal(t, "medium", ins.Priority)
	})

	t.Run("repeats within one check do not count", func(t *testing.T) {
		timeline := []types.TimelineEntry{
			entry("c1", "s1", types.EventSymptom, "headache", 0),
			entry("c1", "s2", types.EventSymptom, "headache", 1*time.Hour),
			entry("c1", "s3", types.EventSymptom, "headache", 2*time.Hour),
		}
		assert.Empty(t, d.Detect(timeline, nil, nil))
	})

	t.Run("two checks are below the threshold", func(t *testing.T) {
		timeline := []types.TimelineEntry{
			entry("c1", "s1", types.EventSymptom, "headache", 0),
			entry("c2", "s2", types.EventSymptom, "headache", 24*time.Hour),
		}
		assert.Empty(t, d.Detect(timeline, nil, nil))
	})
}

func TestDetectFunctionalStacking(t *testing.T) {
	d := newDetector(t)
	timeline := []types.TimelineEntry{
		entry("c1", "m1", types.EventMedication, "ibuprofen 200mg", 0),
		entry("c1", "m2", types.EventSupplement, "aspirin", 1*time.Hour),
	}

	insights := d.Detect(timeline, nil, nil)

	require.Len(t, insights, 1)
	ins := insights[0]
	assert.Equal(t, types.InsightFunctionalStacking, ins.Type)
	assert.Equal(t, "nsaid", ins.Class)
	assert.Equal(t, []string{"aspirin", "ibuprofen"}, ins.Terms)
	assert.ElementsMatch(t, []string{"m1", "m2"}, ins.SupportingEventIDs)
	assert.Contains(t, ins.WhyIncluded, WhyStackedClass)
	assert.Contains(t, ins.WhyIncluded, "distinct_terms=2")
	assert.Equal(t, 45, ins.Score)
	assert.Equal(t, "low", ins.Priority)
}

func TestDetectStackingNeedsDistinctTerms(t *testing.T) {
	d := newDetector(t)
	timeline := []types.TimelineEntry{
		entry("c1", "m1", types.EventMedication, "ibuprofen", 0),
		entry("c2", "m2", types.EventMedication, "ibuprofen 400mg", 24*time.Hour),
	}
	assert.Empty(t, d.Detect(timeline, nil, nil))
}

func TestDetectLiftBoost(t *testing.T) {
	d := newDetector(t)
	timeline := []types.TimelineEntry{
		entry("c1", "e1", types.EventMeal, "lentil soup", 0),
		entry("c1", "e2", types.EventSymptom, "hives", 2*time.Hour),
		entry("c2", "e3", types.EventMeal, "lentil soup", 24*time.Hour),
		entry("c2", "e4", types.EventSymptom, "hives", 26*time.Hour),
		entry("c3", "e5", types.EventMeal, "rice bowl", 30*time.Hour),
		entry("c3", "e6", types.EventMeal, "salad", 31*time.Hour),
		entry("c3", "e7", types.EventMeal, "toast", 32*time.Hour),
		entry("c3", "e8", types.EventMeal, "banana", 33*time.Hour),
		entry("c3", "e9", types.EventMeal, "oatmeal", 34*time.Hour),
		entry("c3", "e10", types.EventMeal, "soup", 35*time.Hour),
	}
	idx := evidence.NewIndex(timeline, 12*time.Hour)

	insights := d.Detect(timeline, nil, idx)

	require.Len(t, insights, 1)
	ins := insights[0]
	assert.Equal(t, "lentil soup", ins.Trigger)
	assert.Equal(t, "hives", ins.Symptom)
	assert.Contains(t, ins.WhyIncluded, WhyLiftBoost)
	// base 50 + support bonus + lift bonus
	assert.Equal(t, 70, ins.Score)
	assert.Equal(t, "high", ins.Priority)
}

func TestDetectZeroHitPenalty(t *testing.T) {
	d := newDetector(t)
	// Three almond-milk exposures, and the only symptom sits well outside
	// the evidence hit window of every one of them.
	timeline := []types.TimelineEntry{
		entry("c1", "a1", types.EventMeal, "almond milk", 0),
		entry("c2", "a2", types.EventMeal, "almond milk", 24*time.Hour),
		entry("c3", "a3", types.EventMeal, "almond milk", 48*time.Hour),
		entry("c4", "s1", types.EventSymptom, "bloating", 61*time.Hour),
	}
	idx := evidence.NewIndex(timeline, 12*time.Hour)

	insights := d.Detect(timeline, []string{"tree_nut"}, idx)

	require.Len(t, insights, 1)
	ins := insights[0]
	assert.Equal(t, BucketWeak, ins.ProximityBucket)
	assert.Contains(t, ins.WhyIncluded, WhyAllergenTrigger)
	assert.Contains(t, ins.WhyIncluded, WhyZeroHitPenalty)
	// base 50 + support bonus + allergen bonus - zero-hit penalty
	assert.Equal(t, 60, ins.Score)
	assert.Equal(t, "medium", ins.Priority)
}

func TestDetectRankingIsStable(t *testing.T) {
	d := newDetector(t)
	// A cluster (scores 70) and a stacking insight (scores 45) in one pass.
	timeline := []types.TimelineEntry{
		entry("c1", "m1", types.EventMedication, "sertraline", 0),
		entry("c1", "s1", types.EventSymptom, "insomnia", 1*time.Hour),
		entry("c1", "s2", types.EventSymptom, "dizziness", 2*time.Hour),
		entry("c2", "m2", types.EventMedication, "melatonin", 24*time.Hour),
		entry("c2", "m3", types.EventSupplement, "valerian", 25*time.Hour),
	}

	first := d.Detect(timeline, nil, nil)
	require.Len(t, first, 2)
	assert.Equal(t, types.InsightMedicationCluster, first[0].Type)
	assert.Equal(t, types.InsightFunctionalStacking, first[1].Type)
	assert.GreaterOrEqual(t, first[0].Score, first[1].Score)

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, d.Detect(timeline, nil, nil))
	}
}
