// Package taxonomy owns the allergen ontology: parent categories, child
// terms, the alias table and cross-reactive relations. A Snapshot is built
// once from a versioned knowledge-base file and is immutable afterwards; a
// new ontology version is a new Snapshot, never an in-place mutation.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultSeverity is the fallback for categories the ontology does not
// know. Unknown lookups degrade, they never fail a request.
const DefaultSeverity = 50

// ErrMissingVersion marks a knowledge-base snapshot that cannot be tied to
// a taxonomy version. This is fatal: verdicts must never cite a guessed
// version.
var ErrMissingVersion = errors.New("knowledge base snapshot missing version")

// ParentCategory groups canonical child terms under a severity weight.
type ParentCategory struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Severity int      `yaml:"severity"`
	Children []string `yaml:"children"`
}

// Alias maps one registered spelling to its canonical term. Alias matching
// is exact only; no plural inference is ever applied to aliases.
type Alias struct {
	Term      string `yaml:"term"`
	Canonical string `yaml:"canonical"`
}

// CrossReactiveRelation is a secondary, lower-confidence association from
// a source allergy to related terms, with an integer risk modifier.
type CrossReactiveRelation struct {
	Source   string   `yaml:"source"`
	Modifier int      `yaml:"modifier"`
	Related  []string `yaml:"related"`
}

type snapshotFile struct {
	Version        string                  `yaml:"version"`
	Parents        []ParentCategory        `yaml:"parents"`
	Aliases        []Alias                 `yaml:"aliases"`
	CrossReactive  []CrossReactiveRelation `yaml:"cross_reactive"`
	AllowedOverlap []string                `yaml:"allowed_overlap"`
}

// Snapshot is the compiled, immutable form of one knowledge-base version.
// All lookup structures are folded once at load time.
type Snapshot struct {
	version        string
	parents        map[string]ParentCategory
	parentKeys     []string
	relations      []CrossReactiveRelation
	aliasIndex     map[string]string   // registered form -> canonical
	aliasesFor     map[string][]string // canonical -> exact alias forms
	childParents   map[string][]string // canonical child -> sorted parent keys
	allowedOverlap map[string]bool

	raw snapshotFile // retained for guardrail validation
}

// Load reads and compiles a knowledge-base snapshot from a YAML file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %s: %w", path, err)
	}
	return s, nil
}

// Parse compiles a snapshot from raw YAML. A missing version field is
// fatal; an incomplete ontology is not.
func Parse(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base YAML: %w", err)
	}
	return build(f)
}

func build(f snapshotFile) (*Snapshot, error) {
	if f.Version == "" {
		return nil, ErrMissingVersion
	}

	s := &Snapshot{
		version:        f.Version,
		parents:        make(map[string]ParentCategory, len(f.Parents)),
		relations:      make([]CrossReactiveRelation, 0, len(f.CrossReactive)),
		aliasIndex:     make(map[string]string),
		aliasesFor:     make(map[string][]string),
		childParents:   make(map[string][]string),
		allowedOverlap: make(map[string]bool, len(f.AllowedOverlap)),
		raw:            f,
	}

	for _, t := range f.AllowedOverlap {
		s.allowedOverlap[NormalizeToken(t)] = true
	}

	for _, p := range f.Parents {
		key := NormalizeToken(p.Key)
		children := make([]string, 0, len(p.Children))
		for _, c := range p.Children {
			child := NormalizeToken(c)
			children = append(children, child)
			s.aliasIndex[child] = child
			s.childParents[child] = append(s.childParents[child], key)
		}
		sort.Strings(children)
		s.parents[key] = ParentCategory{Key: key, Label: p.Label, Severity: p.Severity, Children: children}
		s.parentKeys = append(s.parentKeys, key)
	}
	sort.Strings(s.parentKeys)
	for _, parents := range s.childParents {
		sort.Strings(parents)
	}

	for _, r := range f.CrossReactive {
		rel := CrossReactiveRelation{
			Source:   NormalizeToken(r.Source),
			Modifier: r.Modifier,
			Related:  make([]string, 0, len(r.Related)),
		}
		for _, t := range r.Related {
			term := NormalizeToken(t)
			rel.Related = append(rel.Related, term)
			if _, ok := s.aliasIndex[term]; !ok {
				s.aliasIndex[term] = term
			}
		}
		sort.Strings(rel.Related)
		s.relations = append(s.relations, rel)
	}

	for _, a := range f.Aliases {
		term := NormalizeToken(a.Term)
		canonical := NormalizeToken(a.Canonical)
		s.aliasIndex[term] = canonical
		s.aliasesFor[canonical] = append(s.aliasesFor[canonical], term)
	}
	for _, forms := range s.aliasesFor {
		sort.Strings(forms)
	}

	return s, nil
}

// Version returns the taxonomy version the snapshot was built from.
func (s *Snapshot) Version() string { return s.version }

// Relations returns the cross-reactive relations in declaration order.
func (s *Snapshot) Relations() []CrossReactiveRelation { return s.relations }

// ResolveCanonical resolves a token to its canonical term through the
// precompiled alias index. Unknown tokens resolve to nothing; canonical
// terms are never invented.
func (s *Snapshot) ResolveCanonical(token string) (string, bool) {
	c, ok := s.aliasIndex[NormalizeToken(token)]
	return c, ok
}

// IsParent reports whether key names a parent category. Profile entries
// may spell the key with spaces instead of underscores.
func (s *Snapshot) IsParent(key string) bool {
	_, ok := s.lookupParent(key)
	return ok
}

func (s *Snapshot) lookupParent(key string) (ParentCategory, bool) {
	n := NormalizeToken(key)
	if p, ok := s.parents[n]; ok {
		return p, true
	}
	p, ok := s.parents[spacesToUnderscores(n)]
	return p, ok
}

func spacesToUnderscores(s string) string {
	out := []byte(s)
	for i := range out {
		if out[i] == ' ' {
			out[i] = '_'
		}
	}
	return string(out)
}

// Children returns the sorted canonical children of a parent category.
func (s *Snapshot) Children(key string) []string {
	p, ok := s.lookupParent(key)
	if !ok {
		return nil
	}
	return p.Children
}

// CategoryOf returns the parent category of a canonical term. When a child
// is declared under two parents the higher-severity one wins (key order
// breaks ties) so that matched severities are deterministic.
func (s *Snapshot) CategoryOf(canonical string) (ParentCategory, bool) {
	keys := s.childParents[NormalizeToken(canonical)]
	if len(keys) == 0 {
		return ParentCategory{}, false
	}
	best := s.parents[keys[0]]
	for _, k := range keys[1:] {
		if p := s.parents[k]; p.Severity > best.Severity {
			best = p
		}
	}
	return best, true
}

// SeverityOf returns the severity weight of a parent category, falling
// back to DefaultSeverity for categories the ontology does not know.
func (s *Snapshot) SeverityOf(key string) int {
	p, ok := s.lookupParent(key)
	if !ok {
		return DefaultSeverity
	}
	return p.Severity
}

// Validate runs the ontology guardrails. These protect hand-curated data
// at review time (tests, lint tooling); the live engine assumes a snapshot
// that passed them.
func (s *Snapshot) Validate() error {
	var errs []error

	if len(s.raw.Parents) == 0 {
		errs = append(errs, errors.New("no parent categories declared"))
	}

	seenChild := make(map[string]string)
	for _, p := range s.raw.Parents {
		if len(p.Children) == 0 {
			errs = append(errs, fmt.Errorf("parent %q has no children", p.Key))
		}
		if p.Severity < 0 || p.Severity > 100 {
			errs = append(errs, fmt.Errorf("parent %q severity %d out of [0,100]", p.Key, p.Severity))
		}
		if err := sortedUniqueList(p.Children); err != nil {
			errs = append(errs, fmt.Errorf("parent %q children: %w", p.Key, err))
		}
		for _, c := range p.Children {
			child := NormalizeToken(c)
			if prev, dup := seenChild[child]; dup && prev != p.Key {
				if !s.allowedOverlap[child] {
					errs = append(errs, fmt.Errorf("child %q in both %q and %q without declared overlap", child, prev, p.Key))
				}
			}
			seenChild[child] = p.Key
		}
	}

	for _, r := range s.raw.CrossReactive {
		if err := sortedUniqueList(r.Related); err != nil {
			errs = append(errs, fmt.Errorf("cross-reactive %q related: %w", r.Source, err))
		}
	}

	seenAlias := make(map[string]string)
	for _, a := range s.raw.Aliases {
		term := NormalizeToken(a.Term)
		canonical := NormalizeToken(a.Canonical)
		if prev, dup := seenAlias[term]; dup && prev != canonical {
			errs = append(errs, fmt.Errorf("alias %q maps to both %q and %q", term, prev, canonical))
		}
		seenAlias[term] = canonical
	}

	return errors.Join(errs...)
}

func sortedUniqueList(list []string) error {
	for i := 1; i < len(list); i++ {
		if list[i] == list[i-1] {
			return fmt.Errorf("duplicate entry %q", list[i])
		}
		if list[i] < list[i-1] {
			return fmt.Errorf("not sorted at %q", list[i])
		}
	}
	return nil
}
