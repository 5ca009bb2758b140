package lexgen

import (
	"github.com/dekarrin/gentab/internal/automaton"
	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/symbol"
	"github.com/dekarrin/gentab/internal/util"
)

// Keyword pairs an owning terminal with every literal byte string that
// leads from the DFA's start state to an accepting state for it (spec.md §3
// "Keyword").
type Keyword struct {
	Terminal *symbol.Terminal
	Strings  []string
}

func distinctTargets(st State) []int {
	seen := util.KeySet[int]{}
	var out []int
	for _, t := range st.Trans {
		if t == -1 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ComputePathCounts fills in PathCount for every state reachable from
// dfa.Start (spec.md §4.C step 1-2): the number of distinct finite byte
// strings from Start to that state, or nil if unbounded because the state
// lies downstream of a cycle in the transition graph.
func ComputePathCounts(dfa *DFA) {
	adj := func(n int) []int { return distinctTargets(dfa.States[n]) }
	reachable := bfsReachable(dfa.Start, adj)

	sccs := tarjanSCC(reachable, adj)
	sccOf := make(map[int]int)
	cyclic := make(util.KeySet[int])
	for i, comp := range sccs {
		for _, n := range comp {
			sccOf[n] = i
		}
		if len(comp) > 1 {
			cyclic[i] = true
		} else {
			n := comp[0]
			for _, b := range dfa.States[n].Trans {
				if b == n {
					cyclic[i] = true
					break
				}
			}
		}
	}

	unbounded := make(util.KeySet[int])
	for _, n := range reachable {
		if cyclic[sccOf[n]] {
			unbounded[n] = true
		}
	}
	// propagate forward: anything reachable from an unbounded node is itself
	// unbounded (spec.md §4.C: "infinite in-cycles mark their downstream
	// states' path-count as unbounded").
	for n := range unbounded {
		for _, m := range bfsReachable(n, adj) {
			unbounded[m] = true
		}
	}

	bounded := make([]int, 0, len(reachable))
	for _, n := range reachable {
		if !unbounded[n] {
			bounded = append(bounded, n)
		}
	}

	indeg := make(map[int]int)
	for _, n := range bounded {
		indeg[n] = 0
	}
	for _, p := range bounded {
		for b, t := range dfa.States[p].Trans {
			_ = b
			if t != -1 && !unbounded[t] {
				indeg[t]++
			}
		}
	}

	counts := make(map[int]int)
	counts[dfa.Start] = 1

	var queue []int
	for _, n := range bounded {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	processed := make(util.KeySet[int])
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if processed[u] {
			continue
		}
		processed[u] = true
		if _, ok := counts[u]; !ok {
			counts[u] = 0
		}
		for _, t := range dfa.States[u].Trans {
			if t == -1 || unbounded[t] {
				continue
			}
			counts[t] += counts[u]
			indeg[t]--
			if indeg[t] == 0 {
				queue = append(queue, t)
			}
		}
	}

	for _, n := range reachable {
		if unbounded[n] {
			dfa.States[n].PathCount = nil
			continue
		}
		c := counts[n]
		dfa.States[n].PathCount = &c
	}
}

// ExtractKeywords implements spec.md §4.C steps 3-6. threshold <= 0 disables
// the mechanism entirely (spec.md §3 default). errRule is used to rewrite
// keyword-only states that have no non-keyword accept reachable from them.
func ExtractKeywords(dfa *DFA, threshold int, errRule *symbol.Terminal, diag *gtberr.Diagnostics) map[string]*Keyword {
	keywords := make(map[string]*Keyword)
	if threshold <= 0 {
		return keywords
	}

	ruleSum := make(map[string]*int)
	ruleTerm := make(map[string]*symbol.Terminal)
	ruleStates := make(map[string][]int)

	for i, st := range dfa.States {
		if st.Accept == nil {
			continue
		}
		name := st.Accept.Terminal.Name
		ruleTerm[name] = st.Accept.Terminal
		ruleStates[name] = append(ruleStates[name], i)
		if st.PathCount == nil {
			ruleSum[name] = nil
			continue
		}
		if sum, ok := ruleSum[name]; ok {
			if sum == nil {
				continue
			}
			*sum += *st.PathCount
		} else {
			v := *st.PathCount
			ruleSum[name] = &v
		}
	}

	for name, sum := range ruleSum {
		if sum != nil && *sum == 0 {
			diag.Warn("useless lexer rule %q: zero paths to its accept state", name)
		}
	}

	promoted := make(util.StringSet)
	for name, sum := range ruleSum {
		if sum != nil && *sum <= threshold {
			promoted[name] = true
		}
	}

	for name := range promoted {
		kw := &Keyword{Terminal: ruleTerm[name]}
		for _, s := range ruleStates[name] {
			kw.Strings = append(kw.Strings, enumeratePaths(dfa, s)...)
		}
		keywords[name] = kw
	}

	// step 6: rewrite keyword-accepting states.
	for name := range promoted {
		for _, s := range ruleStates[name] {
			dfa.States[s].Accept = nearestNonKeywordAccept(dfa, s, promoted, errRule)
		}
	}

	return keywords
}

// enumeratePaths performs a depth-first traversal of the reversed
// transition graph starting from accepting state s, yielding each path from
// Start to s as a string (spec.md §4.C step 4).
func enumeratePaths(dfa *DFA, s int) []string {
	reverse := make(map[int][]struct {
		from int
		b    byte
	})
	for p, st := range dfa.States {
		for b, t := range st.Trans {
			if t == -1 {
				continue
			}
			reverse[t] = append(reverse[t], struct {
				from int
				b    byte
			}{p, byte(b)})
		}
	}

	var out []string
	var walk func(cur int, suffix []byte, visited util.KeySet[int])
	walk = func(cur int, suffix []byte, visited util.KeySet[int]) {
		if cur == dfa.Start {
			rev := make([]byte, len(suffix))
			for i, b := range suffix {
				rev[len(suffix)-1-i] = b
			}
			out = append(out, string(rev))
			return
		}
		for _, edge := range reverse[cur] {
			if visited[edge.from] {
				continue // avoid infinite loop on cycles; keywords are only
				// promoted when the bounded path count makes this safe.
			}
			visited[edge.from] = true
			walk(edge.from, append(suffix, edge.b), visited)
			delete(visited, edge.from)
		}
	}
	walk(s, nil, util.KeySet[int]{s: true})
	return out
}

// nearestNonKeywordAccept performs a forward BFS from s looking for the
// nearest state whose accept is neither nil nor a promoted keyword rule
// (spec.md §4.C step 6); falls back to errRule if none is found.
func nearestNonKeywordAccept(dfa *DFA, s int, promoted util.StringSet, errRule *symbol.Terminal) *automaton.Rule {
	visited := util.KeySet[int]{s: true}
	queue := []int{s}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range dfa.States[cur].Trans {
			if t == -1 || visited[t] {
				continue
			}
			visited[t] = true
			if acc := dfa.States[t].Accept; acc != nil && !promoted[acc.Terminal.Name] {
				return acc
			}
			queue = append(queue, t)
		}
	}
	if errRule == nil {
		return nil
	}
	return &automaton.Rule{Terminal: errRule}
}
