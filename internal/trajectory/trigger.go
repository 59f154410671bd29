package trajectory

import (
	"time"

	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

type pairCandidate struct {
	trigger    string
	symptom    string
	bucket     string
	hoursDelta float64
	eventIDs   []string
	seenIDs    map[string]struct{}
	gates      []string
}

// detectTriggerSymptom builds one candidate per (normalized trigger,
// normalized symptom) pair, keeping the strongest proximity bucket ever
// observed for that pair, then gates out noisy non-specific triggers.
func (d *Detector) detectTriggerSymptom(timeline []types.TimelineEntry, expanded map[string]struct{}) []types.Insight {
	exposureCount := make(map[string]int)
	for _, entry := range timeline {
		if entry.Event.Type.Ingestible() {
			exposureCount[taxonomy.NormalizeToken(entry.Event.Label)]++
		}
	}

	candidates := make(map[pairLabel]*pairCandidate)
	var order []pairLabel

	for i, trig := range timeline {
		if !trig.Event.Type.Ingestible() {
			continue
		}
		trigger := taxonomy.NormalizeToken(trig.Event.Label)
		if trigger == "" {
			continue
		}
		for _, sym := range timeline[i+1:] {
			if sym.Event.Type != types.EventSymptom {
				continue
			}
			if !sym.Event.Timestamp.After(trig.Event.Timestamp) {
				continue
			}
			symptom := taxonomy.NormalizeToken(sym.Event.Label)
			if symptom == "" {
				continue
			}

			delta := sym.Event.Timestamp.Sub(trig.Event.Timestamp)
			hours := delta.Hours()
			bucket := d.bucketFor(delta)

			key := pairLabel{trigger, symptom}
			c, ok := candidates[key]
			if !ok {
				c = &pairCandidate{
					trigger: trigger, symptom: symptom,
					bucket: bucket, hoursDelta: hours,
					seenIDs: make(map[string]struct{}),
				}
				candidates[key] = c
				order = append(order, key)
			} else if stronger(bucket, c.bucket) || (bucket == c.bucket && hours < c.hoursDelta) {
				c.bucket = bucket
				c.hoursDelta = hours
			}
			c.addEvent(trig.Event.ID)
			c.addEvent(sym.Event.ID)
		}
	}

	var out []types.Insight
	for _, key := range order {
		c := candidates[key]

		var gates []string
		if c.bucket == BucketStrong {
			gates = append(gates, WhyProximityStrong)
		}
		if _, ok := d.snapshot.MatchAllergen(c.trigger, expanded); ok {
			gates = append(gates, WhyAllergenTrigger)
		}
		if exposureCount[c.trigger] == 1 {
			gates = append(gates, WhyUniqueTrigger)
		}
		if len(gates) == 0 {
			continue
		}

		out = append(out, types.Insight{
			Type:               types.InsightTriggerSymptom,
			Trigger:            c.trigger,
			Symptom:            c.symptom,
			SupportingEventIDs: c.eventIDs,
			ProximityBucket:    c.bucket,
			HoursDelta:         c.hoursDelta,
			WhyIncluded:        gates,
		})
	}
	return out
}

func (c *pairCandidate) addEvent(id string) {
	if id == "" {
		return
	}
	if _, ok := c.seenIDs[id]; ok {
		return
	}
	c.seenIDs[id] = struct{}{}
	c.eventIDs = append(c.eventIDs, id)
}

func (d *Detector) bucketFor(delta time.Duration) string {
	switch {
	case delta <= time.Duration(d.cfg.StrongWindowHours)*time.Hour:
		return BucketStrong
	case delta <= time.Duration(d.cfg.MediumWindowHours)*time.Hour:
		return BucketMedium
	default:
		return BucketWeak
	}
}

func bucketRank(b string) int {
	switch b {
	case BucketStrong:
		return 2
	case BucketMedium:
		return 1
	}
	return 0
}

func stronger(a, b string) bool {
	return bucketRank(a) > bucketRank(b)
}
