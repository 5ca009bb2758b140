package parsergen

import (
	"fmt"
	"strings"

	"github.com/dekarrin/gentab/internal/util"
)

// ComputeNullable runs the standard fixed-point nullable computation: a
// nonterminal is nullable if it has a production whose every symbol is
// itself nullable (terminals are never nullable; an action-only or empty
// production makes its nonterminal nullable), per spec.md §4.I.
func ComputeNullable(g *Grammar) util.StringSet {
	nullable := make(util.StringSet, len(g.Order))
	for {
		changed := false
		for _, name := range g.Order {
			if nullable[name] {
				continue
			}
			nt := g.NonTerminals[name]
			for _, prod := range nt.Rules {
				if prodIsNullable(prod, nullable) {
					nullable[name] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}
	return nullable
}

func prodIsNullable(p *Production, nullable util.StringSet) bool {
	for _, s := range p.Symbols {
		if s.IsTerminal() {
			return false
		}
		if !nullable[s.NonTerm.Name] {
			return false
		}
	}
	return true
}

// ComputeFirstSets computes FIRST(nt) for every nonterminal: the set of
// terminals that can begin some derivation of nt, chaining through a
// production's leading run of nullable nonterminals rather than stopping at
// the first symbol, per spec.md §4.J's lookahead requirements (this is what
// lets the nullable occurrences EliminateNullables leaves in place, i.e.
// every non-tail one, still be decided at decision-state construction).
func ComputeFirstSets(g *Grammar, nullable util.StringSet) map[string]util.StringSet {
	first := make(map[string]util.StringSet, len(g.Order))
	for _, name := range g.Order {
		first[name] = util.StringSet{}
	}
	for {
		changed := false
		for _, name := range g.Order {
			nt := g.NonTerminals[name]
			dst := first[name]
			for _, p := range nt.Rules {
				for _, s := range p.Symbols {
					if s.IsTerminal() {
						if !dst[s.Terminal.Name] {
							dst[s.Terminal.Name] = true
							changed = true
						}
						break
					}
					for t := range first[s.NonTerm.Name] {
						if !dst[t] {
							dst[t] = true
							changed = true
						}
					}
					if !nullable[s.NonTerm.Name] {
						break
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return first
}

// productionLeadingTerminals returns the set of terminals that can begin p,
// chaining through a leading run of nullable nonterminals the same way
// ComputeFirstSets does, and reports whether p can also match without
// consuming a lookahead terminal at all (an empty production, or one whose
// every symbol is nullable) — the "epsilon transition" case of spec.md
// §4.J, grounded on jellycc/parser/ll/lhtable.py's convert_state loop.
func productionLeadingTerminals(p *Production, first map[string]util.StringSet, nullable util.StringSet) (terms util.StringSet, isEpsilon bool) {
	terms = util.StringSet{}
	for _, s := range p.Symbols {
		if s.IsTerminal() {
			terms[s.Terminal.Name] = true
			return terms, false
		}
		for t := range first[s.NonTerm.Name] {
			terms[t] = true
		}
		if !nullable[s.NonTerm.Name] {
			return terms, false
		}
	}
	return terms, true
}

// EliminateLeftRecursion removes immediate left recursion from every
// nonterminal (spec.md §4.I): a nonterminal A with rules
// A -> A a1 | A a2 | ... | b1 | b2 | ...
// becomes
// A  -> b1 A' | b2 A' | ...
// A' -> a1 A' | a2 A' | ε
// Indirect left recursion (through an intermediate nonterminal) is not
// rewritten; grammars relying on it must be rewritten by the grammar
// author, matching jellycc/parser/ll/builder.py's documented scope.
func EliminateLeftRecursion(g *Grammar) {
	names := append([]string(nil), g.Order...)
	for _, name := range names {
		nt := g.NonTerminals[name]
		var alpha, beta []*Production
		for _, p := range nt.Rules {
			if len(p.Symbols) > 0 && !p.Symbols[0].IsTerminal() && p.Symbols[0].NonTerm == nt {
				rest := append([]SymbolRef(nil), p.Symbols[1:]...)
				alpha = append(alpha, &Production{Loc: p.Loc, Symbols: rest, Action: p.Action})
			} else {
				beta = append(beta, p)
			}
		}
		if len(alpha) == 0 {
			continue
		}

		tail := &NonTerminal{Loc: nt.Loc, Name: nt.Name + "'", Type: nt.Type, Synthetic: true}
		g.Add(tail)

		var ntRules, tailRules []*Production
		for _, b := range beta {
			sym := append(append([]SymbolRef(nil), b.Symbols...), SymbolRef{Loc: nt.Loc, NonTerm: tail})
			ntRules = append(ntRules, &Production{Loc: b.Loc, Symbols: sym, Action: b.Action})
		}
		for _, a := range alpha {
			sym := append(append([]SymbolRef(nil), a.Symbols...), SymbolRef{Loc: nt.Loc, NonTerm: tail})
			tailRules = append(tailRules, &Production{Loc: a.Loc, Symbols: sym, Action: a.Action})
		}
		tailRules = append(tailRules, &Production{Loc: nt.Loc}) // ε

		nt.Rules = ntRules
		tail.Rules = tailRules
	}
}

// LeftFactor factors out a common leading symbol shared by two or more
// productions of the same nonterminal into a synthetic continuation
// nonterminal, the single-symbol-lookahead case of spec.md §4.I's
// left-factoring pass.
func LeftFactor(g *Grammar) {
	names := append([]string(nil), g.Order...)
	for _, name := range names {
		leftFactorOne(g, g.NonTerminals[name])
	}
}

func leftFactorOne(g *Grammar, nt *NonTerminal) {
	for {
		groups := map[string][]*Production{}
		var order []string
		for _, p := range nt.Rules {
			key := "$eps$"
			if len(p.Symbols) > 0 {
				key = symKey(p.Symbols[0])
			}
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], p)
		}

		factored := false
		var newRules []*Production
		for _, key := range order {
			grp := groups[key]
			if key == "$eps$" || len(grp) < 2 {
				newRules = append(newRules, grp...)
				continue
			}
			factored = true
			cont := &NonTerminal{Loc: nt.Loc, Name: fmt.Sprintf("%s~%s", nt.Name, sanitize(key)), Synthetic: true, Type: NewTypeVariable(nt.Loc, "")}
			g.Add(cont)
			for _, p := range grp {
				rest := append([]SymbolRef(nil), p.Symbols[1:]...)
				cont.Rules = append(cont.Rules, &Production{Loc: p.Loc, Symbols: rest, Action: p.Action})
			}
			newRules = append(newRules, &Production{
				Loc:     grp[0].Loc,
				Symbols: []SymbolRef{grp[0].Symbols[0], {Loc: nt.Loc, NonTerm: cont}},
			})
		}
		nt.Rules = newRules
		if !factored {
			return
		}
	}
}

func symKey(s SymbolRef) string {
	if s.IsTerminal() {
		return "T:" + s.Terminal.Name
	}
	return "N:" + s.NonTerm.Name
}

func sanitize(key string) string {
	return strings.NewReplacer(":", "_", "$", "_").Replace(key)
}

// EliminateUnitProductions inlines "A -> B" unit rules (a single
// nonterminal symbol, no action) by splicing B's own rules directly into
// A, repeating until no unit rules remain, per spec.md §4.I. A cycle of
// unit rules (A -> B -> A) is left as a semantic error for the caller to
// report rather than looping forever.
func EliminateUnitProductions(g *Grammar) error {
	for _, name := range g.Order {
		nt := g.NonTerminals[name]
		visited := util.StringSet{name: true}
		for {
			idx := -1
			for i, p := range nt.Rules {
				if isUnitProduction(p) {
					idx = i
					break
				}
			}
			if idx == -1 {
				break
			}
			target := nt.Rules[idx].Symbols[0].NonTerm
			if visited[target.Name] {
				return fmt.Errorf("unit-production cycle involving %q", target.Name)
			}
			visited[target.Name] = true

			nt.Rules = append(nt.Rules[:idx], nt.Rules[idx+1:]...)
			nt.Rules = append(nt.Rules, target.Rules...)
		}
	}
	return nil
}

func isUnitProduction(p *Production) bool {
	return p.Action == nil && len(p.Symbols) == 1 && !p.Symbols[0].IsTerminal() && p.Symbols[0].Capture == ""
}

// MergeEquivalentShapes collapses synthetic nonterminals that ended up with
// byte-for-byte identical rule shapes (same sequence of symbol references,
// same action text) into one, the grammar-side analogue of DFA
// minimization's partition refinement (spec.md §4.I "shape-based state
// merging"), grounded on lexgen.Minimize's signature-refinement loop.
func MergeEquivalentShapes(g *Grammar) {
	sigOf := func(nt *NonTerminal) string {
		var sb strings.Builder
		for _, p := range nt.Rules {
			for _, s := range p.Symbols {
				sb.WriteString(symKey(s))
				sb.WriteByte(' ')
			}
			sb.WriteByte('|')
			if p.Action != nil {
				sb.WriteString(p.Action.Text)
			}
			sb.WriteByte(';')
		}
		return sb.String()
	}

	repFor := map[string]*NonTerminal{}
	replace := map[string]*NonTerminal{}
	for _, name := range g.Order {
		nt := g.NonTerminals[name]
		if !nt.Synthetic {
			continue
		}
		sig := sigOf(nt)
		if existing, ok := repFor[sig]; ok {
			replace[nt.Name] = existing
			continue
		}
		repFor[sig] = nt
	}
	if len(replace) == 0 {
		return
	}

	for _, name := range g.Order {
		nt := g.NonTerminals[name]
		for _, p := range nt.Rules {
			for i, s := range p.Symbols {
				if s.IsTerminal() {
					continue
				}
				if rep, ok := replace[s.NonTerm.Name]; ok {
					p.Symbols[i].NonTerm = rep
				}
			}
		}
	}

	newOrder := make([]string, 0, len(g.Order))
	for _, name := range g.Order {
		if _, dropped := replace[name]; dropped {
			delete(g.NonTerminals, name)
			continue
		}
		newOrder = append(newOrder, name)
	}
	g.Order = newOrder
}

// EliminateNullables implements spec.md §4.I step 2. For every nullable
// nonterminal it first records a nullable witness: the ordered sequence of
// actions fired by one of its own empty-deriving productions (recursing
// into any nullable nonterminal that production itself references). Then,
// for every production anywhere in the grammar that ends in a nullable
// nonterminal, it adds further versions of that production with its
// trailing nullable occurrences deleted one at a time (see
// expandNullableOccurrences; a nullable occurrence that is followed by a
// non-nullable symbol is not rewritten) and the witness actions spliced
// into its own action —
// since this IR's Production carries a single trailing action, the spliced
// result is a synthesized action whose text is the witness actions' text
// followed by the original action's, in order, matching the seed test's
// "executes f, g, h exactly once, in the declared order" requirement.
// Productions that end up with no symbols at all are kept: such a
// production, carrying the spliced witness action, is the nonterminal's
// empty alternative. This pass removes no production.
func EliminateNullables(g *Grammar) {
	nullable := ComputeNullable(g)
	witness := map[string][]*Action{}
	for _, name := range g.Order {
		if nullable[name] {
			computeWitness(name, g, nullable, witness, util.StringSet{})
		}
	}
	if len(witness) == 0 {
		return
	}

	nextID := maxActionID(g) + 1
	for _, name := range g.Order {
		nt := g.NonTerminals[name]
		nt.Rules = expandNullableOccurrences(nt.Rules, nullable, witness, &nextID)
	}
}

// computeWitness returns the action sequence of one empty derivation of the
// nonterminal named name, memoizing into witness as it goes. A nonterminal
// caught mid-recursion (a nullable cycle) contributes no actions of its own
// rather than looping forever.
func computeWitness(name string, g *Grammar, nullable util.StringSet, witness map[string][]*Action, visiting util.StringSet) []*Action {
	if w, ok := witness[name]; ok {
		return w
	}
	if visiting[name] {
		return nil
	}
	visiting[name] = true

	var result []*Action
	nt := g.NonTerminals[name]
	for _, p := range nt.Rules {
		if !prodIsNullable(p, nullable) {
			continue
		}
		var acts []*Action
		for _, s := range p.Symbols {
			acts = append(acts, computeWitness(s.NonTerm.Name, g, nullable, witness, visiting)...)
		}
		if p.Action != nil {
			acts = append(acts, p.Action)
		}
		result = acts
		break
	}
	delete(visiting, name)
	witness[name] = result
	return result
}

// expandNullableOccurrences implements EliminateNullables's rewrite over one
// nonterminal's rule list: for each production, repeatedly strip a nullable
// nonterminal occurrence from the *tail* and splice its witness actions in
// ahead of whatever trailing action has accumulated so far, stopping at the
// first non-nullable (or terminal, or already-empty) tail.
//
// Only the tail occurrence is ever eliminated, deliberately mirroring
// EliminateSingletons's own tail-only restriction: a production carries at
// most one trailing Action (template.go's "at most one action block" rule),
// so merging a witness into it is only order-preserving when nothing in the
// production still executes after the eliminated occurrence. A nullable
// symbol that isn't in tail position needs no rewrite at all — its own
// LHState already exposes an epsilon/default edge that fires its witness
// action at the correct point when called, the same mechanism
// ComputeFirstSets's doc comment describes as already folding nullable
// handling into decision-state construction.
func expandNullableOccurrences(rules []*Production, nullable util.StringSet, witness map[string][]*Action, nextID *int) []*Production {
	var result []*Production
	for _, p := range rules {
		result = append(result, p)
		cur := p
		for len(cur.Symbols) > 0 {
			last := cur.Symbols[len(cur.Symbols)-1]
			if last.IsTerminal() || !nullable[last.NonTerm.Name] {
				break
			}
			next := &Production{
				Loc:     cur.Loc,
				Symbols: append([]SymbolRef(nil), cur.Symbols[:len(cur.Symbols)-1]...),
				Action:  spliceWitness(cur.Action, witness[last.NonTerm.Name], nextID),
			}
			result = append(result, next)
			cur = next
		}
	}
	return result
}

// spliceWitness concatenates wit's action text and captures ahead of orig's,
// in order, as one synthesized Action. Returns orig unchanged when wit is
// empty (the deleted occurrence contributed no actions).
func spliceWitness(orig *Action, wit []*Action, nextID *int) *Action {
	if len(wit) == 0 {
		return orig
	}
	var parts []string
	var captures []string
	loc := wit[0].Loc
	for _, w := range wit {
		parts = append(parts, w.Text)
		captures = append(captures, w.Captures...)
	}
	if orig != nil {
		parts = append(parts, orig.Text)
		captures = append(captures, orig.Captures...)
		loc = orig.Loc
	}
	id := *nextID
	*nextID++
	return &Action{Loc: loc, ID: id, Text: strings.Join(parts, "\n"), Captures: captures, Type: NewTypeVariable(loc, "")}
}

func maxActionID(g *Grammar) int {
	max := -1
	for _, name := range g.Order {
		for _, p := range g.NonTerminals[name].Rules {
			if p.Action != nil && p.Action.ID > max {
				max = p.Action.ID
			}
		}
	}
	return max
}

// EliminateSingletons implements spec.md §4.I step 5's singleton
// elimination: a synthetic, non-entry nonterminal with exactly one
// production is fully inlined into each of its call sites and then removed,
// the same no-choice-indirection removal EliminateUnitProductions performs
// for a bare "A -> B" rule, generalized to productions with more than one
// symbol. An occurrence is only inlined when doing so doesn't reorder
// action-firing relative to the uninlined grammar: either the singleton's
// own production carries no action, or the occurrence is the last symbol of
// its enclosing production (so appending the singleton's action ahead of
// the enclosing one, as spliceWitness-style concatenation does, still fires
// it at the same point a MACall to it would have) — the "restricted to
// patterns that preserve the language" scope spec.md §4.I calls out for
// this pass and for unit-production elimination alike. A singleton left
// with an un-inlinable occurrence is kept rather than deleted.
func EliminateSingletons(g *Grammar) {
	for pass := 0; pass < 20; pass++ {
		changed := false
		for _, name := range append([]string(nil), g.Order...) {
			nt, ok := g.NonTerminals[name]
			if !ok || !nt.Synthetic || len(nt.Rules) != 1 || isRootNonTerm(g, name) || g.Start == nt {
				continue
			}
			if inlineSingleton(g, name, nt.Rules[0]) {
				delete(g.NonTerminals, name)
				changed = true
			}
		}
		if !changed {
			break
		}
		newOrder := make([]string, 0, len(g.Order))
		for _, name := range g.Order {
			if _, ok := g.NonTerminals[name]; ok {
				newOrder = append(newOrder, name)
			}
		}
		g.Order = newOrder
	}
}

func isRootNonTerm(g *Grammar, name string) bool {
	for _, r := range g.Roots {
		if r == name {
			return true
		}
	}
	return false
}

// inlineSingleton splices single (the sole production of the nonterminal
// named name) into every reference to name elsewhere in the grammar, and
// reports whether every occurrence could be inlined (the only case in which
// the caller may delete the nonterminal itself).
func inlineSingleton(g *Grammar, name string, single *Production) bool {
	fullyInlined := true
	for _, otherName := range g.Order {
		if otherName == name {
			continue
		}
		other := g.NonTerminals[otherName]
		for pi, p := range other.Rules {
			for {
				idx := indexOfRef(p, name)
				if idx == -1 {
					break
				}
				if single.Action != nil && idx != len(p.Symbols)-1 {
					fullyInlined = false
					break
				}
				p = spliceSingleton(p, idx, single)
				other.Rules[pi] = p
			}
		}
	}
	return fullyInlined
}

func indexOfRef(p *Production, name string) int {
	for i, s := range p.Symbols {
		if !s.IsTerminal() && s.NonTerm.Name == name {
			return i
		}
	}
	return -1
}

func spliceSingleton(p *Production, idx int, single *Production) *Production {
	newSyms := make([]SymbolRef, 0, len(p.Symbols)-1+len(single.Symbols))
	newSyms = append(newSyms, p.Symbols[:idx]...)
	newSyms = append(newSyms, single.Symbols...)
	newSyms = append(newSyms, p.Symbols[idx+1:]...)

	action := p.Action
	if single.Action != nil {
		action = mergeActions(single.Action, p.Action)
	}
	return &Production{Loc: p.Loc, Symbols: newSyms, Action: action}
}

func mergeActions(first, second *Action) *Action {
	if second == nil {
		return first
	}
	return &Action{
		Loc:      second.Loc,
		ID:       second.ID,
		Text:     first.Text + "\n" + second.Text,
		Captures: append(append([]string(nil), first.Captures...), second.Captures...),
		Type:     second.Type,
	}
}

// FilterUnreachable implements spec.md §4.I step 7: drops every nonterminal
// not reachable from one of the grammar's exposed entry points, the
// grammar-IR analogue of lhtable.go's reachableOrder, run once the other
// I-phase rewrites have settled so leftover scaffolding a later pass made
// dead (e.g. a left-factor tail state an equivalent-shape merge superseded)
// doesn't survive into the LH table.
func FilterUnreachable(g *Grammar) {
	seen := util.StringSet{}
	var queue []string
	for _, name := range g.Roots {
		if !seen[name] {
			seen[name] = true
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		nt := g.NonTerminals[name]
		if nt == nil {
			continue
		}
		for _, p := range nt.Rules {
			for _, s := range p.Symbols {
				if s.IsTerminal() || seen[s.NonTerm.Name] {
					continue
				}
				seen[s.NonTerm.Name] = true
				queue = append(queue, s.NonTerm.Name)
			}
		}
	}

	newOrder := make([]string, 0, len(seen))
	for _, name := range g.Order {
		if seen[name] {
			newOrder = append(newOrder, name)
			continue
		}
		delete(g.NonTerminals, name)
	}
	g.Order = newOrder
}
