// Package vigilance folds a profile's recent persisted verdicts into one
// time-decayed 0-100 score with ranked pressure sources. Fully
// deterministic given identical inputs and the same "now".
package vigilance

import (
	"math"
	"sort"
	"time"

	"vigil/internal/config"
	"vigil/internal/taxonomy"
	"vigil/internal/types"
)

// AggregationMethod names the only aggregation currently implemented.
const AggregationMethod = "topN_sum"

// Aggregator computes vigilance states under one configuration.
type Aggregator struct {
	cfg config.VigilanceConfig
}

// New returns an aggregator for the given configuration.
func New(cfg config.VigilanceConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

type contribution struct {
	verdict  types.StoredVerdict
	weighted int
	terms    []string
}

// Aggregate computes the vigilance state for the given persisted verdicts
// at the given instant.
func (a *Aggregator) Aggregate(verdicts []types.StoredVerdict, now time.Time) types.VigilanceState {
	window := time.Duration(a.cfg.WindowHours) * time.Hour

	var contribs []contribution
	for _, sv := range verdicts {
		if sv.Verdict.RiskLevel == types.RiskNone {
			continue
		}
		age := now.Sub(sv.Timestamp)
		if age > window {
			continue
		}
		raw := a.rawSeverity(sv.Verdict)
		weighted := int(math.Round(float64(raw) * decayWeight(hoursSince(now, sv.Timestamp))))

		var terms []string
		for _, m := range sv.Verdict.Matched {
			terms = append(terms, m.Terms()...)
		}
		contribs = append(contribs, contribution{
			verdict:  sv,
			weighted: weighted,
			terms:    types.SortedUnique(terms),
		})
	}

	state := types.VigilanceState{
		PressureSources: []types.PressureSource{},
		Aggregation: types.AggregationMeta{
			Method:      AggregationMethod,
			TopN:        a.cfg.TopN,
			WindowHours: a.cfg.WindowHours,
			EvaluatedAt: now,
			CheckCount:  len(contribs),
		},
	}
	if len(contribs) == 0 {
		return state
	}

	weights := make([]int, len(contribs))
	for i, c := range contribs {
		weights[i] = c.weighted
	}
	sort.Sort(sort.Reverse(sort.IntSlice(weights)))
	score := 0
	for i := 0; i < len(weights) && i < a.cfg.TopN; i++ {
		score += weights[i]
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	state.VigilanceScore = score
	state.VigilanceActive = score >= a.cfg.ActiveThreshold

	top := contribs[0]
	for _, c := range contribs[1:] {
		if c.weighted > top.weighted ||
			(c.weighted == top.weighted && c.verdict.Timestamp.After(top.verdict.Timestamp)) {
			top = c
		}
	}
	state.Trigger = &types.VigilanceTrigger{
		CheckID:          top.verdict.CheckID,
		Timestamp:        top.verdict.Timestamp,
		RiskLevel:        top.verdict.Verdict.RiskLevel,
		WeightedSeverity: top.weighted,
		MatchedTerms:     top.terms,
	}

	state.PressureSources = a.pressureSources(contribs)
	return state
}

// rawSeverity reads meta.severity, falling back to the per-level constant
// for older persisted verdicts that predate the field.
func (a *Aggregator) rawSeverity(v types.Verdict) int {
	if v.Meta.Severity > 0 {
		return v.Meta.Severity
	}
	switch v.RiskLevel {
	case types.RiskHigh:
		return a.cfg.HighSeverityFallback
	default:
		return a.cfg.MediumSeverityFallback
	}
}

// hoursSince clamps negative (future-dated) ages to zero.
func hoursSince(now, ts time.Time) float64 {
	h := now.Sub(ts).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// decayWeight is a step function by age bucket, chosen for auditability
// over continuous decay.
func decayWeight(hours float64) float64 {
	switch {
	case hours <= 1:
		return 1.0
	case hours <= 6:
		return 0.75
	case hours <= 12:
		return 0.5
	default:
		return 0.25
	}
}

// pressureSources flattens matched terms across every in-window verdict
// (deduped per check), groups by normalized term and ranks the groups.
func (a *Aggregator) pressureSources(contribs []contribution) []types.PressureSource {
	// Most recent first so supporting check ids come out newest-first.
	byRecency := make([]contribution, len(contribs))
	copy(byRecency, contribs)
	sort.SliceStable(byRecency, func(i, j int) bool {
		return byRecency[i].verdict.Timestamp.After(byRecency[j].verdict.Timestamp)
	})

	type source struct {
		weighted int
		count    int
		checkIDs []string
	}
	sources := make(map[string]*source)
	for _, c := range byRecency {
		for _, term := range c.terms {
			key := taxonomy.NormalizeToken(term)
			s, ok := sources[key]
			if !ok {
				s = &source{}
				sources[key] = s
			}
			s.weighted += c.weighted
			s.count++
			if len(s.checkIDs) < 3 {
				s.checkIDs = append(s.checkIDs, c.verdict.CheckID)
			}
		}
	}

	out := make([]types.PressureSource, 0, len(sources))
	for term, s := range sources {
		out = append(out, types.PressureSource{
			Term:           term,
			WeightedScore:  s.weighted,
			Count:          s.count,
			RecentCheckIDs: s.checkIDs,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeightedScore != out[j].WeightedScore {
			return out[i].WeightedScore > out[j].WeightedScore
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}
