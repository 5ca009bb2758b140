package parsergen

import (
	"sort"

	"github.com/dekarrin/gentab/internal/util"
)

// RecoverySet is the error-recovery policy attached to one nonterminal's
// decision state (spec.md §4.K), grounded on
// jellycc/parser/ll/recovery.py's two-strategy model:
//
//   - Insert: the lookahead terminal is in this nonterminal's own FOLLOW
//     set, so the cheapest explanation is that the nonterminal was simply
//     omitted from the input. The engine does not consume the token; it
//     treats the nonterminal as having matched empty and pops back to its
//     caller. Cost 1 (one assumed token).
//   - Sync: the wider, SCC-shared resynchronization set. When the lookahead
//     is in neither an edge nor Insert, the engine discards input tokens
//     (cost 1 per token discarded, unknown ahead of time) until it finds one
//     in Sync, then pops — the classic panic-mode recovery.
//
// Sync is shared across every nonterminal in the same call-graph SCC: a
// panic triggered deep in a mutually recursive cluster of nonterminals
// resyncs at a point meaningful to the whole cluster, not just the one
// nonterminal parsing was in when the error was detected.
type RecoverySet struct {
	Insert util.StringSet
	Sync   util.StringSet
}

const (
	recoveryCostInsert = 1
	recoveryCostSkip   = 1
)

// InsertCost and SkipCost are exported so an emitter can report the
// assumed edit cost of a recovery action without recomputing the policy.
func (r *RecoverySet) InsertCost() int { return recoveryCostInsert }
func (r *RecoverySet) SkipCost() int   { return recoveryCostSkip }

// BuildRecoverySets computes a RecoverySet for every nonterminal in g,
// per spec.md §4.K.
func BuildRecoverySets(g *Grammar) map[string]*RecoverySet {
	nullable := ComputeNullable(g)
	first := ComputeFirstSets(g, nullable)
	follow := ComputeFollowSets(g, first, nullable)

	graph := callGraph(g)
	comps := computeCallSCCs(g.Order, graph)

	sets := make(map[string]*RecoverySet, len(g.Order))
	for _, comp := range comps {
		union := util.StringSet{}
		for _, name := range comp {
			for t := range follow[name] {
				union[t] = true
			}
		}
		for _, name := range comp {
			insert := util.StringSet{}
			for t := range follow[name] {
				insert[t] = true
			}
			sets[name] = &RecoverySet{Insert: insert, Sync: union}
		}
	}
	return sets
}

// ComputeFollowSets computes FOLLOW(nt) for every nonterminal: the set of
// terminals that can immediately follow some derivation of nt, seeded with
// the grammar's EOF terminal on the start symbol, per spec.md §4.K.
func ComputeFollowSets(g *Grammar, first map[string]util.StringSet, nullable util.StringSet) map[string]util.StringSet {
	follow := make(map[string]util.StringSet, len(g.Order))
	for _, name := range g.Order {
		follow[name] = util.StringSet{}
	}
	if eof := g.Terminals.EOF(); eof != nil && g.Start != nil {
		follow[g.Start.Name][eof.Name] = true
	}

	for {
		changed := false
		for _, name := range g.Order {
			nt := g.NonTerminals[name]
			for _, p := range nt.Rules {
				for i, s := range p.Symbols {
					if s.IsTerminal() {
						continue
					}
					dst := follow[s.NonTerm.Name]
					suffixNullable := true
					for _, s2 := range p.Symbols[i+1:] {
						if s2.IsTerminal() {
							if !dst[s2.Terminal.Name] {
								dst[s2.Terminal.Name] = true
								changed = true
							}
							suffixNullable = false
							break
						}
						for t := range first[s2.NonTerm.Name] {
							if !dst[t] {
								dst[t] = true
								changed = true
							}
						}
						if !nullable[s2.NonTerm.Name] {
							suffixNullable = false
							break
						}
					}
					if suffixNullable {
						// the owning nonterminal's own FOLLOW propagates to
						// the trailing symbol; snapshot the keys first since
						// dst may alias follow[name] (s.NonTerm.Name == name).
						for _, t := range util.OrderedKeys(follow[name]) {
							if !dst[t] {
								dst[t] = true
								changed = true
							}
						}
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return follow
}

// callGraph maps each nonterminal to the distinct nonterminals referenced
// anywhere in its productions, in deterministic (sorted) order.
func callGraph(g *Grammar) map[string][]string {
	out := make(map[string][]string, len(g.Order))
	for _, name := range g.Order {
		nt := g.NonTerminals[name]
		seen := util.StringSet{}
		for _, p := range nt.Rules {
			for _, s := range p.Symbols {
				if s.IsTerminal() || seen[s.NonTerm.Name] {
					continue
				}
				seen[s.NonTerm.Name] = true
				out[name] = append(out[name], s.NonTerm.Name)
			}
		}
		sort.Strings(out[name])
	}
	return out
}

// computeCallSCCs runs Tarjan's algorithm over the nonterminal call graph,
// visiting in declaration order for determinism, grounded on the same
// algorithm automaton.ComputeSCCs runs over the lexer's NFA ε-graph
// (spec.md §4.B), specialized here to a string-keyed grammar graph instead
// of automaton.Graph's integer state ids.
func computeCallSCCs(order []string, graph map[string][]string) [][]string {
	t := &callTarjan{
		graph:   graph,
		index:   map[string]int{},
		low:     map[string]int{},
		onStack: util.StringSet{},
	}
	for _, name := range order {
		if _, ok := t.index[name]; !ok {
			t.strongconnect(name)
		}
	}
	return t.comps
}

type callTarjan struct {
	graph   map[string][]string
	index   map[string]int
	low     map[string]int
	onStack util.StringSet
	stack   util.Stack[string]
	counter int
	comps   [][]string
}

func (t *callTarjan) strongconnect(v string) {
	t.index[v] = t.counter
	t.low[v] = t.counter
	t.counter++
	t.stack.Push(v)
	t.onStack[v] = true

	for _, w := range t.graph[v] {
		if _, ok := t.index[w]; !ok {
			t.strongconnect(w)
			if t.low[w] < t.low[v] {
				t.low[v] = t.low[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.low[v] {
				t.low[v] = t.index[w]
			}
		}
	}

	if t.low[v] == t.index[v] {
		var comp []string
		for {
			w := t.stack.Pop()
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		sort.Strings(comp)
		t.comps = append(t.comps, comp)
	}
}
