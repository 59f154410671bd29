// Package audit re-derives guardrail violations over persisted verdicts
// with a small Datalog program. The engine itself never produces a verdict
// that violates these rules; the audit exists so promotion tooling can
// prove that about any stored archive, including ones written by older
// engine versions.
package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"vigil/internal/types"
)

// guardrails is the audit program. EDB facts are asserted from the verdict
// archive; the violation predicate is the audit's entire output surface.
const guardrails = `
Decl verdict_risk(CheckId, Risk).
Decl match_count(CheckId, N).
Decl direct_match_count(CheckId, N).
Decl severity(CheckId, S).
Decl risky(CheckId).
Decl violation(CheckId, Reason).

risky(C) :- verdict_risk(C, /high).
risky(C) :- verdict_risk(C, /medium).

violation(C, "high risk without direct allergy match") :-
  verdict_risk(C, /high), direct_match_count(C, 0).
violation(C, "non-none risk without matched entries") :-
  risky(C), match_count(C, 0).
violation(C, "severity below zero") :-
  severity(C, S), :lt(S, 0).
violation(C, "severity above 100") :-
  severity(C, S), :lt(100, S).
`

// Violation is one derived guardrail breach.
type Violation struct {
	CheckID string `json:"checkId"`
	Reason  string `json:"reason"`
}

// Run asserts the verdict archive as facts and evaluates the guardrail
// program to fixpoint, returning every derived violation sorted by check
// id then reason.
func Run(verdicts []types.StoredVerdict) ([]Violation, error) {
	unit, err := parse.Unit(strings.NewReader(guardrails))
	if err != nil {
		return nil, fmt.Errorf("failed to parse audit program: %w", err)
	}
	program, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze audit program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, sv := range verdicts {
		for _, atom := range factsFor(sv) {
			store.Add(atom)
		}
	}

	if err := engine.EvalProgram(program, store); err != nil {
		return nil, fmt.Errorf("failed to evaluate audit program: %w", err)
	}

	var out []Violation
	for pred := range program.Decls {
		if pred.Symbol != "violation" {
			continue
		}
		err = store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
			if len(a.Args) != 2 {
				return nil
			}
			checkID, ok1 := stringArg(a.Args[0])
			reason, ok2 := stringArg(a.Args[1])
			if ok1 && ok2 {
				out = append(out, Violation{CheckID: checkID, Reason: reason})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read violations: %w", err)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckID != out[j].CheckID {
			return out[i].CheckID < out[j].CheckID
		}
		return out[i].Reason < out[j].Reason
	})
	return out, nil
}

// factsFor flattens one stored verdict into EDB atoms.
func factsFor(sv types.StoredVerdict) []ast.Atom {
	risk, err := ast.Name("/" + string(sv.Verdict.RiskLevel))
	if err != nil {
		return nil
	}

	direct := 0
	for _, m := range sv.Verdict.Matched {
		if m.Rule == types.RuleAllergyMatch {
			direct++
		}
	}

	id := ast.String(sv.CheckID)
	return []ast.Atom{
		ast.NewAtom("verdict_risk", id, risk),
		ast.NewAtom("match_count", id, ast.Number(int64(len(sv.Verdict.Matched)))),
		ast.NewAtom("direct_match_count", id, ast.Number(int64(direct))),
		ast.NewAtom("severity", id, ast.Number(int64(sv.Verdict.Meta.Severity))),
	}
}

func stringArg(t ast.BaseTerm) (string, bool) {
	c, ok := t.(ast.Constant)
	if !ok {
		return "", false
	}
	switch c.Type {
	case ast.StringType, ast.NameType:
		return c.Symbol, true
	}
	return "", false
}
