package parsergen

import (
	"fmt"

	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/symbol"
	"github.com/dekarrin/gentab/internal/util"
)

// MegaActionKind distinguishes the three step shapes an LH-table edge can be
// built from (spec.md §4.J), grounded on jellycc/parser/ll/lhtable.py's
// Shift marker and Action-carrying transition nodes.
type MegaActionKind int

const (
	// MAShift consumes one input token that has already been verified to
	// match (either the terminal that selected this edge, or a terminal
	// later in the same production, which needs no further lookahead check).
	MAShift MegaActionKind = iota
	// MACall invokes the sub-parse for another nonterminal; the engine
	// pushes a return frame (this edge, the index of the step after the
	// call) and resumes at Callee's entry state.
	MACall
	// MARun fires a user action against the capture values accumulated so
	// far; it consumes no input.
	MARun
)

// MegaAction is one step of an LH-table edge. Two Shift steps for the same
// terminal, or two Run steps for the same *Action, are the same object:
// interning keeps the emitted table small the way jellycc's megaaction cache
// does for its LLTransition objects. Call steps are not interned; each is a
// fresh MegaAction with ID -1.
type MegaAction struct {
	ID       int
	Kind     MegaActionKind
	Terminal *symbol.Terminal // set when Kind == MAShift
	Callee   int              // LHState index, set when Kind == MACall
	Act      *Action          // set when Kind == MARun
}

// LHEdge is the ordered run of steps the engine executes after choosing a
// production at a decision state: ordinary straight-line symbol-matching and
// action-firing require no further lookahead decisions within a production,
// so the whole chain is inlined as data here rather than materialized as one
// addressable state per step (jellycc's "non-shift-chain inlining").
type LHEdge struct {
	Steps []*MegaAction
}

// LHState is one decision point: given the current lookahead terminal,
// which production's edge to take. At most one Default edge may exist (the
// nonterminal's nullable/epsilon alternative, chosen when the lookahead
// matches none of the explicit Terminals), enforced at build time as an
// LL(1)-determinism requirement.
type LHState struct {
	ID      int
	NonTerm string
	Edges   map[string]*LHEdge // keyed by terminal name
	Default *LHEdge
}

// LHTable is the complete LL parse table for a grammar: one LHState per
// reachable nonterminal, renumbered densely in reachability order (spec.md
// §4.J), grounded on jellycc/parser/ll/lhtable.py's filter_states pass.
type LHTable struct {
	States []*LHState
	Start  int

	// Entries maps every exposed entry-point nonterminal's name (spec.md
	// §4.F/§6 "entry-state indices") to its LHState index.
	Entries map[string]int
}

// lhBuilder accumulates megaaction interning state and the entry-state index
// for every nonterminal while BuildLHTable walks the grammar.
type lhBuilder struct {
	grammar   *Grammar
	first     map[string]util.StringSet
	nullable  util.StringSet
	entryOf   map[string]int
	states    []*LHState
	megaCache map[string]*MegaAction
	nextMega  int
}

// BuildLHTable compiles a refactored Grammar (post component-I: nullable
// elimination, left-recursion elimination, left-factoring, unit-production
// elimination, shape merging) into an LHTable, per spec.md §4.J.
//
// Call chains of up to 4 nonterminal hops, where every intermediate
// nonterminal has exactly one production (so no lookahead decision is lost
// by skipping its entry state), are flattened directly into the caller's
// edge instead of emitting a MACall step — jellycc's bounded-depth
// state-stack splitting, recast here as a bounded-depth inlining pass rather
// than the reverse (splitting an already-flat chain back apart).
func BuildLHTable(g *Grammar) (*LHTable, error) {
	nullable := ComputeNullable(g)
	first := ComputeFirstSets(g, nullable)

	b := &lhBuilder{
		grammar:   g,
		first:     first,
		nullable:  nullable,
		entryOf:   make(map[string]int, len(g.Order)),
		megaCache: make(map[string]*MegaAction),
	}

	// Reserve a dense, reachability-ordered state id for every nonterminal
	// transitively reachable from Start before filling in edges, so MACall
	// steps can reference a callee's final id regardless of visitation
	// order (mirrors filter_states's renumber-after-reachability shape).
	order, err := reachableOrder(g)
	if err != nil {
		return nil, err
	}
	for i, name := range order {
		b.entryOf[name] = i
		b.states = append(b.states, &LHState{ID: i, NonTerm: name, Edges: map[string]*LHEdge{}})
	}

	for _, name := range order {
		nt := g.NonTerminals[name]
		state := b.states[b.entryOf[name]]
		if err := b.fillState(nt, state); err != nil {
			return nil, err
		}
	}

	entries := make(map[string]int, len(g.Roots))
	for _, name := range g.Roots {
		entries[name] = b.entryOf[name]
	}
	return &LHTable{States: b.states, Start: b.entryOf[g.Start.Name], Entries: entries}, nil
}

// reachableOrder returns every nonterminal name reachable from any of g's
// entry points via production symbols, in deterministic BFS discovery order
// (spec.md §4.J determinism requirement).
func reachableOrder(g *Grammar) ([]string, error) {
	if g.Start == nil || len(g.Roots) == 0 {
		return nil, gtberr.Internal("grammar has no entry-point nonterminal")
	}
	seen := util.StringSet{}
	var queue []string
	for _, name := range g.Roots {
		if !seen[name] {
			seen[name] = true
			queue = append(queue, name)
		}
	}
	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		nt := g.NonTerminals[name]
		if nt == nil {
			return nil, gtberr.Internal("reachable nonterminal %q has no definition", name)
		}
		for _, p := range nt.Rules {
			for _, s := range p.Symbols {
				if s.IsTerminal() {
					continue
				}
				if !seen[s.NonTerm.Name] {
					seen[s.NonTerm.Name] = true
					queue = append(queue, s.NonTerm.Name)
				}
			}
		}
	}
	return order, nil
}

func (b *lhBuilder) fillState(nt *NonTerminal, state *LHState) error {
	type candidate struct {
		prod  *Production
		terms util.StringSet
		eps   bool
	}
	var cands []candidate
	for _, p := range nt.Rules {
		terms, eps := productionLeadingTerminals(p, b.first, b.nullable)
		cands = append(cands, candidate{prod: p, terms: terms, eps: eps})
	}

	byTerm := map[string]*Production{}
	var defaultProd *Production
	var conflicts util.StringSet
	for _, c := range cands {
		if c.eps {
			if defaultProd != nil {
				return gtberr.New(c.prod.Loc, "nonterminal %q has more than one nullable/default alternative, not LL(1)-decidable", nt.Name)
			}
			defaultProd = c.prod
			continue
		}
		for t := range c.terms {
			if existing, ok := byTerm[t]; ok && existing != c.prod {
				if conflicts == nil {
					conflicts = util.StringSet{}
				}
				conflicts[t] = true
				continue
			}
			byTerm[t] = c.prod
		}
	}
	if len(conflicts) > 0 {
		return gtberr.New(nt.Rules[0].Loc, "nonterminal %q is ambiguous on lookahead %s, not LL(1)-decidable", nt.Name, util.MakeTextList(util.OrderedKeys(conflicts)))
	}

	terminalNames := util.OrderedKeys(byTerm)

	for _, t := range terminalNames {
		edge, err := b.buildEdge(byTerm[t], 0)
		if err != nil {
			return err
		}
		state.Edges[t] = edge
	}
	if defaultProd != nil {
		edge, err := b.buildEdge(defaultProd, 0)
		if err != nil {
			return err
		}
		state.Default = edge
	}
	return nil
}

// buildEdge compiles a production's symbol sequence (plus its trailing
// action, if any) into a flat MegaAction run, inlining calls into
// single-production callees up to 4 levels deep (inlineDepth is the current
// level).
func (b *lhBuilder) buildEdge(p *Production, inlineDepth int) (*LHEdge, error) {
	edge := &LHEdge{}
	for _, s := range p.Symbols {
		if s.IsTerminal() {
			edge.Steps = append(edge.Steps, b.internShift(s.Terminal))
			continue
		}
		if inlineDepth < 4 && len(s.NonTerm.Rules) == 1 {
			sub, err := b.buildEdge(s.NonTerm.Rules[0], inlineDepth+1)
			if err != nil {
				return nil, err
			}
			edge.Steps = append(edge.Steps, sub.Steps...)
			continue
		}
		id, ok := b.entryOf[s.NonTerm.Name]
		if !ok {
			return nil, gtberr.Internal("nonterminal %q referenced but not in reachable set", s.NonTerm.Name)
		}
		edge.Steps = append(edge.Steps, &MegaAction{ID: -1, Kind: MACall, Callee: id})
	}
	if p.Action != nil {
		edge.Steps = append(edge.Steps, b.internRun(p.Action))
	}
	return edge, nil
}

func (b *lhBuilder) internShift(t *symbol.Terminal) *MegaAction {
	key := "S:" + t.Name
	if m, ok := b.megaCache[key]; ok {
		return m
	}
	m := &MegaAction{ID: b.nextMega, Kind: MAShift, Terminal: t}
	b.nextMega++
	b.megaCache[key] = m
	return m
}

func (b *lhBuilder) internRun(a *Action) *MegaAction {
	key := fmt.Sprintf("R:%d", a.ID)
	if m, ok := b.megaCache[key]; ok {
		return m
	}
	m := &MegaAction{ID: b.nextMega, Kind: MARun, Act: a}
	b.nextMega++
	b.megaCache[key] = m
	return m
}
