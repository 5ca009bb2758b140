package lexgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dekarrin/gentab/internal/util"
)

// Minimize runs Hopcroft-style partition refinement on dfa (spec.md §4.D)
// and returns a brand new DFA graph — it never mutates the input (spec.md
// §5 shared-resource policy: minimization produces a fresh structure here;
// elsewhere in the pipeline, e.g. keyword rewriting and recovery, the
// convention is in-place mutation, per component).
func Minimize(dfa *DFA) *DFA {
	n := len(dfa.States)

	acceptKey := func(i int) string {
		acc := dfa.States[i].Accept
		if acc == nil {
			return ""
		}
		return acc.Terminal.Name
	}

	blockOf := make([]int, n)
	{
		keyToBlock := map[string]int{}
		keys := make([]string, n)
		for i := 0; i < n; i++ {
			keys[i] = acceptKey(i)
		}
		sortedDistinct := distinctSorted(keys)
		for id, k := range sortedDistinct {
			keyToBlock[k] = id
		}
		for i := 0; i < n; i++ {
			blockOf[i] = keyToBlock[keys[i]]
		}
	}

	for {
		type sigKey struct {
			old int
			sig string
		}
		sigOf := make([]sigKey, n)
		for i := 0; i < n; i++ {
			var sb strings.Builder
			for b := 0; b < 256; b++ {
				t := dfa.States[i].Trans[b]
				if t == -1 {
					sb.WriteString("-1,")
				} else {
					fmt.Fprintf(&sb, "%d,", blockOf[t])
				}
			}
			sigOf[i] = sigKey{old: blockOf[i], sig: sb.String()}
		}

		keyString := func(k sigKey) string { return fmt.Sprintf("%d|%s", k.old, k.sig) }

		keys := make([]string, n)
		for i := 0; i < n; i++ {
			keys[i] = keyString(sigOf[i])
		}
		sortedDistinct := distinctSorted(keys)
		keyToBlock := map[string]int{}
		for id, k := range sortedDistinct {
			keyToBlock[k] = id
		}

		newBlockOf := make([]int, n)
		for i := 0; i < n; i++ {
			newBlockOf[i] = keyToBlock[keys[i]]
		}

		if len(sortedDistinct) == numDistinct(blockOf) {
			blockOf = newBlockOf
			break
		}
		blockOf = newBlockOf
	}

	numBlocks := numDistinct(blockOf)

	// choose, per block, the smallest original state index as representative,
	// for deterministic output-state numbering (spec.md §5).
	repOf := make([]int, numBlocks)
	for i := range repOf {
		repOf[i] = -1
	}
	for i := 0; i < n; i++ {
		b := blockOf[i]
		if repOf[b] == -1 || i < repOf[b] {
			repOf[b] = i
		}
	}

	// renumber blocks by representative's original index, ascending, with
	// the start state's block forced to index 0.
	order := make([]int, numBlocks)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, c int) bool {
		if order[a] == blockOf[dfa.Start] {
			return true
		}
		if order[c] == blockOf[dfa.Start] {
			return false
		}
		return repOf[order[a]] < repOf[order[c]]
	})
	finalIndex := make([]int, numBlocks)
	for newIdx, oldBlock := range order {
		finalIndex[oldBlock] = newIdx
	}

	out := &DFA{Start: finalIndex[blockOf[dfa.Start]]}
	out.States = make([]State, numBlocks)
	for oldBlock, newIdx := range finalIndex {
		rep := repOf[oldBlock]
		st := newState()
		st.Accept = dfa.States[rep].Accept
		for b := 0; b < 256; b++ {
			t := dfa.States[rep].Trans[b]
			if t == -1 {
				continue
			}
			st.Trans[b] = finalIndex[blockOf[t]]
		}
		out.States[newIdx] = st
	}

	return out
}

func distinctSorted(keys []string) []string {
	seen := util.StringSet{}
	var out []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func numDistinct(xs []int) int {
	seen := util.KeySet[int]{}
	for _, x := range xs {
		seen[x] = true
	}
	return len(seen)
}
