// Package lexgen implements components B, C, D and E of the generator: the
// SCC-accelerated DFA builder, the keyword extractor, the Hopcroft-style
// minimizer, and the lexer table preparation pass (column-equivalence-class
// compression plus error-state injection).
package lexgen

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dekarrin/gentab/internal/automaton"
	"github.com/dekarrin/gentab/internal/util"
)

// State is one DFA state (spec.md §3 "DFA state"): 256 optional outgoing
// transitions indexed by byte value, an optional accept rule, a
// representative pointer used by minimization, and an optional path count
// used by keyword extraction.
type State struct {
	Trans [256]int // -1 = no transition (blank)
	Accept *automaton.Rule

	// Rep is the representative state index assigned during minimization;
	// -1 until minimization runs.
	Rep int

	// PathCount is the number of distinct input paths from the DFA's start
	// state to this state; nil means unbounded (an infinite in-cycle lies
	// on some path to it). Populated by ComputePathCounts, consumed by the
	// keyword extractor (spec.md §4.C).
	PathCount *int
}

func newState() State {
	s := State{Rep: -1}
	for i := range s.Trans {
		s.Trans[i] = -1
	}
	return s
}

// DFA is the output of subset construction: States indexed by first-visit
// order in the BFS from Start (spec.md §5 determinism requirement).
type DFA struct {
	States []State
	Start  int
}

// closureKey canonicalizes a sorted, deduplicated NFA-state set for use as a
// map key identifying the DFA (pre-)state it corresponds to.
func closureKey(states []int) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

// Build runs subset construction over nfa starting at its Start state,
// using SCC-precomputed ε-closures instead of a fresh per-state closure
// walk (spec.md §4.B). Accept rules are read from the NFA states' Rule
// fields; their Order field breaks accept-rule ties (see bestAccept).
func Build(nfa *automaton.Graph) *DFA {
	sg := automaton.ComputeSCCs(nfa, nfa.Start)

	closureOf := func(nfaStates []int) []int {
		seen := util.KeySet[int]{}
		for _, s := range nfaStates {
			for _, cs := range sg.ClosureStates(sg.SCCOf(s)) {
				seen[cs] = true
			}
		}
		out := make([]int, 0, len(seen))
		for s := range seen {
			out = append(out, s)
		}
		sort.Ints(out)
		return out
	}

	startClosure := closureOf([]int{nfa.Start})

	dfa := &DFA{}
	keyToIndex := make(map[string]int)
	closures := make(map[int][]int) // dfa state index -> nfa state set

	addState := func(nfaSet []int) int {
		key := closureKey(nfaSet)
		if idx, ok := keyToIndex[key]; ok {
			return idx
		}
		idx := len(dfa.States)
		st := newState()
		st.Accept = bestAccept(nfa, nfaSet)
		dfa.States = append(dfa.States, st)
		keyToIndex[key] = idx
		closures[idx] = nfaSet
		return idx
	}

	dfa.Start = addState(startClosure)

	// BFS worklist over DFA state indices, in discovery order, which is what
	// gives the first-visit numbering spec.md §5 requires.
	var worklist []int
	worklist = append(worklist, dfa.Start)
	processed := util.KeySet[int]{}

	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]
		if processed[cur] {
			continue
		}
		processed[cur] = true

		nfaSet := closures[cur]

		for b := 0; b < 256; b++ {
			var targets []int
			for _, s := range nfaSet {
				for _, tr := range nfa.State(s).Trans {
					if tr.Set.Has(byte(b)) {
						targets = append(targets, tr.To)
					}
				}
			}
			if len(targets) == 0 {
				continue // blank transition, per spec.md §4.B step 5
			}
			succ := closureOf(targets)
			nextIdx := addState(succ)
			dfa.States[cur].Trans[b] = nextIdx
			if !processed[nextIdx] {
				worklist = append(worklist, nextIdx)
			}
		}
	}

	return dfa
}

// bestAccept picks the NFA rule of minimum declaration Order among
// accepting NFA states present in nfaSet, ties broken by declaration order
// (spec.md §4.B step 6, §8 "Accept precedence").
func bestAccept(nfa *automaton.Graph, nfaSet []int) *automaton.Rule {
	var best *automaton.Rule
	for _, s := range nfaSet {
		r := nfa.State(s).Rule
		if r == nil {
			continue
		}
		if best == nil || r.Order < best.Order {
			best = r
		}
	}
	return best
}
