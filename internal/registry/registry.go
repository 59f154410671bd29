// Package registry is the static term-to-functional-class lookup used by
// the interaction and stacking rules. Like the taxonomy it is versioned,
// hand-curated, loaded once and immutable within a version.
package registry

import (
	"sort"

	"vigil/internal/taxonomy"
)

// Registry maps medication/supplement terms to their functional class.
type Registry struct {
	classOf map[string]string   // term -> class
	terms   map[string][]string // class -> sorted terms
	ordered []string            // terms longest-first for label scans
}

// defaultTable is the shipped registry. Terms within a class stay sorted
// and duplicate-free, same guardrail as the taxonomy.
var defaultTable = map[string][]string{
	"anticoagulant": {"apixaban", "heparin", "warfarin"},
	"antihistamine": {"cetirizine", "diphenhydramine", "loratadine"},
	"nsaid":         {"aspirin", "diclofenac", "ibuprofen", "naproxen"},
	"sedative":      {"melatonin", "valerian"},
	"ssri":          {"citalopram", "fluoxetine", "sertraline"},
	"stimulant":     {"caffeine", "modafinil", "pseudoephedrine"},
}

// New returns the registry built from the shipped table.
func New() *Registry {
	return NewFromTable(defaultTable)
}

// NewFromTable builds a registry from an explicit class->terms table.
func NewFromTable(table map[string][]string) *Registry {
	r := &Registry{
		classOf: make(map[string]string),
		terms:   make(map[string][]string, len(table)),
	}
	for class, terms := range table {
		normalized := make([]string, 0, len(terms))
		for _, t := range terms {
			term := taxonomy.NormalizeToken(t)
			normalized = append(normalized, term)
			r.classOf[term] = class
			r.ordered = append(r.ordered, term)
		}
		sort.Strings(normalized)
		r.terms[class] = normalized
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		if len(r.ordered[i]) != len(r.ordered[j]) {
			return len(r.ordered[i]) > len(r.ordered[j])
		}
		return r.ordered[i] < r.ordered[j]
	})
	return r
}

// ClassOf scans a free-form label for a registered term, longest term
// first, and returns the class plus the canonical term matched.
func (r *Registry) ClassOf(label string) (class, term string, ok bool) {
	n := taxonomy.NormalizeToken(label)
	if exact, found := r.classOf[taxonomy.Singularize(n)]; found {
		return exact, taxonomy.Singularize(n), true
	}
	for _, t := range r.ordered {
		if taxonomy.ContainsTerm(n, t) {
			return r.classOf[t], t, true
		}
	}
	return "", "", false
}

// SameClass reports whether two labels resolve into the same functional
// class, returning the class and both resolved terms.
func (r *Registry) SameClass(a, b string) (class, termA, termB string, ok bool) {
	classA, termA, okA := r.ClassOf(a)
	classB, termB, okB := r.ClassOf(b)
	if !okA || !okB || classA != classB {
		return "", "", "", false
	}
	return classA, termA, termB, true
}

// Terms returns the sorted terms of a class, nil when unknown.
func (r *Registry) Terms(class string) []string {
	return r.terms[class]
}

// Classes returns all class names, sorted.
func (r *Registry) Classes() []string {
	out := make([]string, 0, len(r.terms))
	for c := range r.terms {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
