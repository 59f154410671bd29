package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeIngestible(t *testing.T) {
	assert.True(t, EventMeal.Ingestible())
	assert.True(t, EventMedication.Ingestible())
	assert.True(t, EventSupplement.Ingestible())
	assert.False(t, EventSymptom.Ingestible())
	assert.False(t, EventType("note").Ingestible())
}

func TestRiskLevelRank(t *testing.T) {
	assert.Greater(t, RiskHigh.Rank(), RiskMedium.Rank())
	assert.Greater(t, RiskMedium.Rank(), RiskNone.Rank())
	assert.Equal(t, 0, RiskLevel("bogus").Rank())
}

func TestMatchedEntryTerms(t *testing.T) {
	t.Run("allergy", func(t *testing.T) {
		m := MatchedEntry{Rule: RuleAllergyMatch, Allergy: &AllergyDetail{Allergen: "cashew"}}
		assert.Equal(t, []string{"cashew"}, m.Terms())
	})

	t.Run("cross reactive", func(t *testing.T) {
		m := MatchedEntry{Rule: RuleCrossReactive, CrossReactive: &CrossReactiveDetail{MatchedTerm: "mango"}}
		assert.Equal(t, []string{"mango"}, m.Terms())
	})

	t.Run("interaction contributes both sides", func(t *testing.T) {
		m := MatchedEntry{Rule: RuleMedicationInteraction, Interaction: &InteractionDetail{
			Medication: "heparin", ConflictsWith: "warfarin",
		}}
		assert.Equal(t, []string{"heparin", "warfarin"}, m.Terms())
	})

	t.Run("missing detail yields nothing", func(t *testing.T) {
		assert.Nil(t, MatchedEntry{Rule: RuleAllergyMatch}.Terms())
	})
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"almond", "mango", "peanut"},
		SortedUnique([]string{"peanut", "mango", "almond", "peanut"}))
	assert.Empty(t, SortedUnique(nil))
}
