package trajectory

import (
	"fmt"
	"sort"

	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

// detectRepeatedSymptoms groups symptom events by normalized label and
// emits an insight once a label recurs across enough distinct checks.
func (d *Detector) detectRepeatedSymptoms(timeline []types.TimelineEntry) []types.Insight {
	type group struct {
		eventIDs []string
		checks   map[string]struct{}
	}
	groups := make(map[string]*group)

	for _, entry := range timeline {
		if entry.Event.Type != types.EventSymptom {
			continue
		}
		label := taxonomy.NormalizeToken(entry.Event.Label)
		if label == "" {
			continue
		}
		g, ok := groups[label]
		if !ok {
			g = &group{checks: make(map[string]struct{})}
			groups[label] = g
		}
		if entry.Event.ID != "" {
			g.eventIDs = append(g.eventIDs, entry.Event.ID)
		}
		g.checks[entry.CheckID] = struct{}{}
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var out []types.Insight
	for _, label := range labels {
		g := groups[label]
		if len(g.checks) < d.cfg.MinRepeatCount {
			continue
		}
		out = append(out, types.Insight{
			Type:               types.InsightRepeatedSymptom,
			Symptom:            label,
			SupportingEventIDs: g.eventIDs,
			WhyIncluded: []string{
				WhyRecurred,
				fmt.Sprintf("distinct_checks=%d", len(g.checks)),
			},
		})
	}
	return out
}
