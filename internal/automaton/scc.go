package automaton

import "sort"

// SCC is one strongly connected component of an NFA's ε-graph: the set of
// NFA state indices in the component, plus its ε-closure closure — the
// frozen set of SCCs (by index into the owning SCCGraph's SCC list)
// reachable from this SCC through any number of ε-edges, this SCC included;
// it is built from the closures of the SCCs one ε-edge away and computed
// once per SCC instead of once per state (spec.md §4.B design rationale).
type SCC struct {
	States  []int
	Closure []int // indices into SCCs, including this SCC itself
}

// SCCGraph is the set of all SCCs of an NFA's ε-graph, reachable from a
// given start state, plus the closure-of-closures of each.
type SCCGraph struct {
	SCCs    []SCC
	stateOf map[int]int // NFA state index -> SCC index
}

// ComputeSCCs runs Tarjan's algorithm on the ε-graph of g restricted to the
// states reachable from start, then computes each SCC's ε-closure closure in
// reverse topological order (spec.md §4.B steps 2-3).
func ComputeSCCs(g *Graph, start int) *SCCGraph {
	reachable := g.Reachable(start)
	reachSet := make(map[int]bool, len(reachable))
	for _, s := range reachable {
		reachSet[s] = true
	}

	t := &tarjan{
		g:       g,
		reach:   reachSet,
		index:   make(map[int]int),
		lowlink: make(map[int]int),
		onStack: make(map[int]bool),
	}
	for _, s := range reachable {
		if _, ok := t.index[s]; !ok {
			t.strongconnect(s)
		}
	}

	sg := &SCCGraph{stateOf: make(map[int]int)}
	// t.sccs is built in the order components are completed, which for
	// Tarjan's algorithm is reverse topological order already.
	for i, comp := range t.sccs {
		sort.Ints(comp)
		sg.SCCs = append(sg.SCCs, SCC{States: comp})
		for _, s := range comp {
			sg.stateOf[s] = i
		}
	}

	// Now that every SCC has a stable index, compute closures: for SCC i (in
	// the reverse-topological completion order, so every SCC it can reach is
	// already finished), union its own index with the closures of every SCC
	// directly ε-reachable from one of its states.
	for i := range sg.SCCs {
		seen := map[int]bool{i: true}
		for _, s := range sg.SCCs[i].States {
			for _, eps := range g.states[s].Eps {
				j := sg.stateOf[eps]
				if j == i || seen[j] {
					continue
				}
				for _, k := range sg.SCCs[j].Closure {
					seen[k] = true
				}
				seen[j] = true
			}
		}
		closure := make([]int, 0, len(seen))
		for k := range seen {
			closure = append(closure, k)
		}
		sort.Ints(closure)
		sg.SCCs[i].Closure = closure
	}

	return sg
}

// SCCOf returns the SCC index owning NFA state s.
func (sg *SCCGraph) SCCOf(s int) int {
	return sg.stateOf[s]
}

// ClosureStates returns every NFA state in the ε-closure of SCC index i,
// i.e. the union of States over every SCC in i's Closure.
func (sg *SCCGraph) ClosureStates(i int) []int {
	var out []int
	for _, j := range sg.SCCs[i].Closure {
		out = append(out, sg.SCCs[j].States...)
	}
	sort.Ints(out)
	return out
}

type tarjan struct {
	g       *Graph
	reach   map[int]bool
	index   map[int]int
	lowlink map[int]int
	onStack map[int]bool
	stack   []int
	counter int
	sccs    [][]int
}

func (t *tarjan) strongconnect(v int) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.states[v].Eps {
		if !t.reach[w] {
			continue
		}
		if _, ok := t.index[w]; !ok {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var comp []int
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, comp)
	}
}
