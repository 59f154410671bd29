package trajectory

import (
	"fmt"
	"sort"

	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

// detectClusters finds medications followed by two or more distinct
// symptom labels inside the window. It returns the cluster insights plus
// the set of (medication, symptom) pairs they subsume, which the caller
// uses to suppress redundant pairwise insights.
func (d *Detector) detectClusters(timeline []types.TimelineEntry) ([]types.Insight, map[pairLabel]bool) {
	type cluster struct {
		symptoms map[string]struct{}
		eventIDs []string
		seenIDs  map[string]struct{}
	}
	clusters := make(map[string]*cluster)

	for i, med := range timeline {
		if med.Event.Type != types.EventMedication {
			continue
		}
		medication := taxonomy.NormalizeToken(med.Event.Label)
		if medication == "" {
			continue
		}
		c, ok := clusters[medication]
		if !ok {
			c = &cluster{symptoms: make(map[string]struct{}), seenIDs: make(map[string]struct{})}
			clusters[medication] = c
		}
		addID(c.seenIDs, &c.eventIDs, med.Event.ID)

		for _, sym := range timeline[i+1:] {
			if sym.Event.Type != types.EventSymptom || !sym.Event.Timestamp.After(med.Event.Timestamp) {
				continue
			}
			symptom := taxonomy.NormalizeToken(sym.Event.Label)
			if symptom == "" {
				continue
			}
			c.symptoms[symptom] = struct{}{}
			addID(c.seenIDs, &c.eventIDs, sym.Event.ID)
		}
	}

	medications := make([]string, 0, len(clusters))
	for m := range clusters {
		medications = append(medications, m)
	}
	sort.Strings(medications)

	covered := make(map[pairLabel]bool)
	var out []types.Insight
	for _, medication := range medications {
		c := clusters[medication]
		if len(c.symptoms) < 2 {
			continue
		}
		symptoms := make([]string, 0, len(c.symptoms))
		for s := range c.symptoms {
			symptoms = append(symptoms, s)
			covered[pairLabel{medication, s}] = true
		}
		sort.Strings(symptoms)

		out = append(out, types.Insight{
			Type:               types.InsightMedicationCluster,
			Medication:         medication,
			Symptoms:           symptoms,
			SupportingEventIDs: c.eventIDs,
			WhyIncluded: []string{
				WhyClusterSize,
				fmt.Sprintf("distinct_symptoms=%d", len(symptoms)),
			},
		})
	}
	return out, covered
}

// detectStacking emits an insight when two or more distinct terms of the
// same functional class were taken inside the window.
func (d *Detector) detectStacking(timeline []types.TimelineEntry) []types.Insight {
	type stack struct {
		terms    map[string]struct{}
		eventIDs []string
		seenIDs  map[string]struct{}
	}
	stacks := make(map[string]*stack)

	for _, entry := range timeline {
		if entry.Event.Type != types.EventMedication && entry.Event.Type != types.EventSupplement {
			continue
		}
		class, term, ok := d.registry.ClassOf(entry.Event.Label)
		if !ok {
			continue
		}
		s, found := stacks[class]
		if !found {
			s = &stack{terms: make(map[string]struct{}), seenIDs: make(map[string]struct{})}
			stacks[class] = s
		}
		s.terms[term] = struct{}{}
		addID(s.seenIDs, &s.eventIDs, entry.Event.ID)
	}

	classes := make([]string, 0, len(stacks))
	for c := range stacks {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	var out []types.Insight
	for _, class := range classes {
		s := stacks[class]
		if len(s.terms) < 2 {
			continue
		}
		terms := make([]string, 0, len(s.terms))
		for t := range s.terms {
			terms = append(terms, t)
		}
		sort.Strings(terms)

		out = append(out, types.Insight{
			Type:               types.InsightFunctionalStacking,
			Class:              class,
			Terms:              terms,
			SupportingEventIDs: s.eventIDs,
			WhyIncluded: []string{
				WhyStackedClass,
				fmt.Sprintf("distinct_terms=%d", len(terms)),
			},
		})
	}
	return out
}

func addID(seen map[string]struct{}, ids *[]string, id string) {
	if id == "" {
		return
	}
	if _, ok := seen[id]; ok {
		return
	}
	seen[id] = struct{}{}
	*ids = append(*ids, id)
}
