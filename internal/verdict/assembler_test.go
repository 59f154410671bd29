package verdict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/registry"
	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	snapshot, err := taxonomy.Load("../../kb/taxonomy.yaml")
	require.NoError(t, err)
	return New(snapshot, registry.New())
}

func mealCheck(id string, labels ...string) types.Check {
	check := types.Check{ID: id, ProfileID: "p1", Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)}
	for i, label := range labels {
		check.Events = append(check.Events, types.Event{
			ID:        check.ID + "-ev" + string(rune('a'+i)),
			Type:      types.EventMeal,
			Timestamp: check.Timestamp,
			Label:     label,
		})
	}
	return check
}

func TestEvaluateDirectAllergyMatch(t *testing.T) {
	a := newAssembler(t)
	profile := types.Profile{ID: "p1", Allergies: []string{"tree_nut"}}

	v := a.Evaluate(profile, mealCheck("chk-1", "pistachio ice cream"))

	assert.Equal(t, types.RiskHigh, v.RiskLevel)
	require.Len(t, v.Matched, 1)
	m := v.Matched[0]
	assert.Equal(t, types.RuleAllergyMatch, m.Rule)
	assert.Equal(t, types.RuleCodeAllergyMatch, m.RuleCode)
	require.NotNil(t, m.Allergy)
	assert.Equal(t, "pistachio", m.Allergy.Allergen)
	assert.Equal(t, "tree_nut", m.Allergy.MatchedCategory)
	assert.Equal(t, 90, m.Allergy.Severity)

	assert.Equal(t, 90, v.Meta.Severity)
	assert.Equal(t, "2026.08.1", v.Meta.TaxonomyVersion)
	assert.Equal(t, "chk-1:2026.08.1", v.Meta.TraceID)
	assert.False(t, v.Meta.CrossReactive)
	assert.Contains(t, v.Reasoning, `detected pistachio in "pistachio ice cream"`)
}

func TestEvaluateCrossReactive(t *testing.T) {
	a := newAssembler(t)
	profile := types.Profile{ID: "p1", Allergies: []string{"tree_nut"}}

	v := a.Evaluate(profile, mealCheck("chk-2", "mango smoothie"))

	assert.Equal(t, types.RiskMedium, v.RiskLevel, "cross-reactive hits never escalate to high")
	require.Len(t, v.Matched, 1)
	m := v.Matched[0]
	assert.Equal(t, types.RuleCrossReactive, m.Rule)
	require.NotNil(t, m.CrossReactive)
	assert.Equal(t, "tree_nut", m.CrossReactive.Source)
	assert.Equal(t, "mango", m.CrossReactive.MatchedTerm)
	assert.Equal(t, 15, m.CrossReactive.Modifier)

	assert.Equal(t, 65, v.Meta.Severity, "cross severity is base plus modifier")
	assert.True(t, v.Meta.CrossReactive)
	assert.Contains(t, v.Reasoning, "mango may cross-react with tree_nut allergy")
}

func TestEvaluateDirectMatchSkipsCrossPass(t *testing.T) {
	a := newAssembler(t)
	profile := types.Profile{ID: "p1", Allergies: []string{"tree_nut"}}

	// One event containing both a direct child and a cross-reactive term:
	// the direct match wins and the cross pass never runs for that event.
	v := a.Evaluate(profile, mealCheck("chk-3", "cashew and mango salad"))

	assert.Equal(t, types.RiskHigh, v.RiskLevel)
	require.Len(t, v.Matched, 1)
	assert.Equal(t, types.RuleAllergyMatch, v.Matched[0].Rule)
	assert.False(t, v.Meta.CrossReactive)
}

func TestEvaluateMedicationInteraction(t *testing.T) {
	a := newAssembler(t)
	profile := types.Profile{ID: "p1", Medications: []string{"warfarin"}}

	check := types.Check{ID: "chk-4", ProfileID: "p1", Events: []types.Event{
		{ID: "e1", Type: types.EventMedication, Label: "heparin injection"},
	}}
	v := a.Evaluate(profile, check)

	assert.Equal(t, types.RiskMedium, v.RiskLevel)
	require.Len(t, v.Matched, 1)
	m := v.Matched[0]
	assert.Equal(t, types.RuleMedicationInteraction, m.Rule)
	require.NotNil(t, m.Interaction)
	assert.Equal(t, "heparin", m.Interaction.Medication)
	assert.Equal(t, "warfarin", m.Interaction.ConflictsWith)
	assert.Equal(t, "anticoagulant", m.Interaction.Class)
	assert.Equal(t, 50, v.Meta.Severity)
	assert.Contains(t, v.Reasoning, "heparin and warfarin are both anticoagulant")
}

func TestEvaluateNoSelfInteraction(t *testing.T) {
	a := newAssembler(t)
	profile := types.Profile{ID: "p1", Medications: []string{"warfarin"}}

	check := types.Check{ID: "chk-5", ProfileID: "p1", Events: []types.Event{
		{ID: "e1", Type: types.EventMedication, Label: "warfarin 5mg"},
	}}
	v := a.Evaluate(profile, check)

	assert.Equal(t, types.RiskNone, v.RiskLevel, "a medication does not interact with itself")
	assert.Empty(t, v.Matched)
}

func TestEvaluateAllergyBeatsInteraction(t *testing.T) {
	a := newAssembler(t)
	profile := types.Profile{ID: "p1", Allergies: []string{"legume"}, Medications: []string{"warfarin"}}

	check := types.Check{ID: "chk-6", ProfileID: "p1", Events: []types.Event{
		{ID: "e1", Type: types.EventMeal, Label: "peanut butter toast"},
		{ID: "e2", Type: types.EventMedication, Label: "heparin"},
	}}
	v := a.Evaluate(profile, check)

	assert.Equal(t, types.RiskHigh, v.RiskLevel, "any direct allergy match dominates")
	assert.Len(t, v.Matched, 2)
	assert.Equal(t, 70, v.Meta.Severity, "severity is the max of contributing entries")
}

func TestEvaluateNoRisk(t *testing.T) {
	a := newAssembler(t)

	t.Run("clean meal", func(t *testing.T) {
		v := a.Evaluate(types.Profile{ID: "p1", Allergies: []string{"tree_nut"}}, mealCheck("chk-7", "rice bowl"))
		assert.Equal(t, types.RiskNone, v.RiskLevel)
		assert.Empty(t, v.Matched)
		assert.Equal(t, 0, v.Meta.Severity)
		assert.Equal(t, "no allergen or interaction risk detected", v.Reasoning)
		assert.Equal(t, "chk-7:2026.08.1", v.Meta.TraceID, "none verdicts still carry full provenance")
	})

	t.Run("empty profile", func(t *testing.T) {
		v := a.Evaluate(types.Profile{ID: "p1"}, mealCheck("chk-8", "pistachio ice cream"))
		assert.Equal(t, types.RiskNone, v.RiskLevel)
	})

	t.Run("empty labels are skipped", func(t *testing.T) {
		check := types.Check{ID: "chk-9", Events: []types.Event{{ID: "e1", Type: types.EventMeal}}}
		v := a.Evaluate(types.Profile{ID: "p1", Allergies: []string{"tree_nut"}}, check)
		assert.Equal(t, types.RiskNone, v.RiskLevel)
	})

	t.Run("symptom events never match", func(t *testing.T) {
		check := types.Check{ID: "chk-10", Events: []types.Event{
			{ID: "e1", Type: types.EventSymptom, Label: "cashew curry"},
		}}
		v := a.Evaluate(types.Profile{ID: "p1", Allergies: []string{"tree_nut"}}, check)
		assert.Equal(t, types.RiskNone, v.RiskLevel)
	})
}

func TestEvaluateAliasAndPluralResolution(t *testing.T) {
	a := newAssembler(t)

	t.Run("plural meal label", func(t *testing.T) {
		v := a.Evaluate(types.Profile{ID: "p1", Allergies: []string{"tree_nut"}}, mealCheck("chk-11", "roasted almonds"))
		assert.Equal(t, types.RiskHigh, v.RiskLevel)
		require.Len(t, v.Matched, 1)
		assert.Equal(t, "almond", v.Matched[0].Allergy.Allergen)
	})

	t.Run("alias in profile", func(t *testing.T) {
		v := a.Evaluate(types.Profile{ID: "p1", Allergies: []string{"filbert"}}, mealCheck("chk-12", "hazelnut spread"))
		assert.Equal(t, types.RiskHigh, v.RiskLevel)
		require.Len(t, v.Matched, 1)
		assert.Equal(t, "hazelnut", v.Matched[0].Allergy.Allergen)
	})

	t.Run("uncategorized allergen falls back to default severity", func(t *testing.T) {
		v := a.Evaluate(types.Profile{ID: "p1", Allergies: []string{"mangoes"}}, mealCheck("chk-13", "mango"))
		assert.Equal(t, types.RiskHigh, v.RiskLevel)
		require.Len(t, v.Matched, 1)
		assert.Equal(t, "mango", v.Matched[0].Allergy.Allergen)
		assert.Empty(t, v.Matched[0].Allergy.MatchedCategory)
		assert.Equal(t, taxonomy.DefaultSeverity, v.Matched[0].Allergy.Severity)
	})
}

func TestEvaluateDeterminism(t *testing.T) {
	a := newAssembler(t)
	profile := types.Profile{ID: "p1", Allergies: []string{"tree_nut", "shellfish"}, Medications: []string{"warfarin"}}
	check := mealCheck("chk-14", "mango smoothie", "prawn toast")

	first := a.Evaluate(profile, check)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.Evaluate(profile, check))
	}
}
