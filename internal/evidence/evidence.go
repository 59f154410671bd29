// Package evidence precomputes exposure/hit/lift statistics for every
// (trigger, symptom) label pair in a profile's window. The index is built
// once per request from two bulk reads and serves O(1) per-pair lookups;
// downstream insight scoring boosts high-lift associations and penalizes
// frequently-eaten, never-followed triggers.
package evidence

import (
	"math"
	"time"

	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

// Stats summarizes the evidence for one (trigger, symptom) pair.
type Stats struct {
	Exposures    int     `json:"exposures"`
	Hits         int     `json:"hits"`
	BaselineRate float64 `json:"baselineRate"`
	Lift         float64 `json:"lift"`
}

type pairKey struct {
	trigger string
	symptom string
}

// Index holds the precomputed statistics for one profile+window.
type Index struct {
	pairs     map[pairKey]Stats
	exposures map[string]int
}

// NewIndex builds the index from a time-ordered timeline. hitWindow is the
// post-trigger interval in which a symptom counts as a hit.
func NewIndex(timeline []types.TimelineEntry, hitWindow time.Duration) *Index {
	var ingestibles, symptoms []types.Event
	for _, entry := range timeline {
		switch {
		case entry.Event.Type.Ingestible():
			ingestibles = append(ingestibles, entry.Event)
		case entry.Event.Type == types.EventSymptom:
			symptoms = append(symptoms, entry.Event)
		}
	}

	idx := &Index{
		pairs:     make(map[pairKey]Stats),
		exposures: make(map[string]int),
	}

	triggerTimes := make(map[string][]time.Time)
	for _, ev := range ingestibles {
		label := taxonomy.NormalizeToken(ev.Label)
		if label == "" {
			continue
		}
		idx.exposures[label]++
		triggerTimes[label] = append(triggerTimes[label], ev.Timestamp)
	}

	symptomCounts := make(map[string]int)
	symptomTimes := make(map[string][]time.Time)
	for _, ev := range symptoms {
		label := taxonomy.NormalizeToken(ev.Label)
		if label == "" {
			continue
		}
		symptomCounts[label]++
		symptomTimes[label] = append(symptomTimes[label], ev.Timestamp)
	}

	totalIngestible := len(ingestibles)
	for trigger, exposures := range idx.exposures {
		for symptom, count := range symptomCounts {
			hits := countHits(triggerTimes[trigger], symptomTimes[symptom], hitWindow)
			baseline := 0.0
			if totalIngestible > 0 {
				baseline = float64(count) / float64(totalIngestible)
			}
			lift := 0.0
			if len(triggerTimes[trigger]) > 0 && baseline > 0 {
				lift = round2((float64(hits) / float64(exposures)) / baseline)
			}
			idx.pairs[pairKey{trigger, symptom}] = Stats{
				Exposures:    exposures,
				Hits:         hits,
				BaselineRate: round2(baseline),
				Lift:         lift,
			}
		}
	}

	return idx
}

// Stats returns the precomputed statistics for a pair; the zero value when
// the pair was never observed in the window.
func (i *Index) Stats(trigger, symptom string) Stats {
	return i.pairs[pairKey{taxonomy.NormalizeToken(trigger), taxonomy.NormalizeToken(symptom)}]
}

// Exposures returns how often a trigger label occurred in the window.
func (i *Index) Exposures(trigger string) int {
	return i.exposures[taxonomy.NormalizeToken(trigger)]
}

// countHits counts symptom occurrences that fall within the hit window
// after any occurrence of the trigger. Each symptom occurrence counts at
// most once.
func countHits(triggers, symptoms []time.Time, window time.Duration) int {
	hits := 0
	for _, s := range symptoms {
		for _, t := range triggers {
			delta := s.Sub(t)
			if delta > 0 && delta <= window {
				hits++
				break
			}
		}
	}
	return hits
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
