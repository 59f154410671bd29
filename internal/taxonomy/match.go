package taxonomy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CrossMatch is a lower-confidence hit through a cross-reactive relation.
type CrossMatch struct {
	Source      string
	MatchedTerm string
	Modifier    int
}

// ExpandAllergies derives the per-request allergen membership set from the
// profile's declared allergies. Parent-category entries expand to all of
// their children; direct terms pass through singular-normalized, resolved
// through the alias index when the ontology knows them. The result is
// recomputed on every call: the active snapshot may change between calls
// and a cached set would pin verdicts to a stale ontology.
func (s *Snapshot) ExpandAllergies(profileAllergies []string) map[string]struct{} {
	expanded := make(map[string]struct{}, len(profileAllergies))
	for _, raw := range profileAllergies {
		n := NormalizeToken(raw)
		if n == "" {
			continue
		}
		if p, ok := s.lookupParent(n); ok {
			for _, child := range p.Children {
				expanded[child] = struct{}{}
			}
			continue
		}
		if c, ok := s.aliasIndex[n]; ok {
			expanded[c] = struct{}{}
			continue
		}
		singular := Singularize(n)
		if c, ok := s.aliasIndex[singular]; ok {
			expanded[c] = struct{}{}
			continue
		}
		expanded[singular] = struct{}{}
	}
	return expanded
}

// MatchAllergen runs a word-boundary, phrase-safe search of every
// candidate form of the expanded set against the text, longest literal
// form first so that multi-word phrases win over substrings they contain.
// It returns the matched canonical term, never the literal form found.
func (s *Snapshot) MatchAllergen(text string, expanded map[string]struct{}) (string, bool) {
	normalized := NormalizeToken(text)
	if normalized == "" || len(expanded) == 0 {
		return "", false
	}

	type candidate struct {
		form      string
		canonical string
	}
	candidates := make([]candidate, 0, len(expanded)*2)
	for canonical := range expanded {
		for _, form := range s.formsFor(canonical) {
			candidates = append(candidates, candidate{form: form, canonical: canonical})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].form) != len(candidates[j].form) {
			return len(candidates[i].form) > len(candidates[j].form)
		}
		return candidates[i].form < candidates[j].form
	})

	for _, c := range candidates {
		if containsPhrase(normalized, c.form) {
			return c.canonical, true
		}
	}
	return "", false
}

// CrossReactiveMatch tests the text against relations whose source equals
// one of the user's raw (unexpanded) allergies, directly or after plural
// normalization. The first relation hit wins, in declaration order.
func (s *Snapshot) CrossReactiveMatch(userAllergies []string, text string) (CrossMatch, bool) {
	normalized := NormalizeToken(text)
	if normalized == "" {
		return CrossMatch{}, false
	}

	for _, rel := range s.relations {
		if !s.allergyNamesSource(userAllergies, rel.Source) {
			continue
		}
		set := make(map[string]struct{}, len(rel.Related))
		for _, term := range rel.Related {
			set[term] = struct{}{}
		}
		if term, ok := s.MatchAllergen(normalized, set); ok {
			return CrossMatch{Source: rel.Source, MatchedTerm: term, Modifier: rel.Modifier}, true
		}
	}
	return CrossMatch{}, false
}

func (s *Snapshot) allergyNamesSource(userAllergies []string, source string) bool {
	for _, a := range userAllergies {
		n := NormalizeToken(a)
		if n == source || Singularize(n) == source {
			return true
		}
		if spacesToUnderscores(n) == source {
			return true
		}
	}
	return false
}

// formsFor returns the literal search forms for a canonical term: the
// canonical itself, a naive singular/plural variant of the canonical form
// only, and its registered aliases verbatim. Aliases get no plural
// inference: "mangoe" must never reach "mangoes".
func (s *Snapshot) formsFor(canonical string) []string {
	forms := []string{canonical}
	if strings.HasSuffix(canonical, "s") {
		forms = append(forms, Singularize(canonical))
	} else {
		forms = append(forms, canonical+"s")
	}
	forms = append(forms, s.aliasesFor[canonical]...)
	return forms
}

// ContainsTerm reports whether term occurs in text on word boundaries
// after normalization. This is the substring check the trajectory detector
// and the functional-class registry lean on.
func ContainsTerm(text, term string) bool {
	return containsPhrase(NormalizeToken(text), NormalizeToken(term))
}

// containsPhrase reports whether form occurs in text on word boundaries.
// "nut" inside "nutritional" is not a hit; "brazil nut" inside
// "roasted brazil nut mix" is.
func containsPhrase(text, form string) bool {
	if form == "" {
		return false
	}
	for i := 0; i+len(form) <= len(text); {
		j := strings.Index(text[i:], form)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(form)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		i = start + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
