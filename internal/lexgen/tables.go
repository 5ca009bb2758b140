package lexgen

import (
	"strings"

	"github.com/dekarrin/gentab/internal/automaton"
	"github.com/dekarrin/gentab/internal/symbol"
	"github.com/dekarrin/gentab/internal/util"
)

// Renumber reassigns state indices by a deterministic preorder visit from
// Start (spec.md §4.E step 1), returning a fresh DFA.
func Renumber(dfa *DFA) *DFA {
	order := make([]int, 0, len(dfa.States))
	visited := make(util.KeySet[int])
	var visit func(int)
	visit = func(s int) {
		if visited[s] {
			return
		}
		visited[s] = true
		order = append(order, s)
		for _, t := range dfa.States[s].Trans {
			if t != -1 {
				visit(t)
			}
		}
	}
	visit(dfa.Start)
	// states unreachable from Start (shouldn't occur post subset-construction,
	// but minimization's block representative choice can't introduce any
	// either) are appended defensively so no state is silently dropped.
	for i := range dfa.States {
		visit(i)
	}

	newIndex := make([]int, len(dfa.States))
	for newIdx, old := range order {
		newIndex[old] = newIdx
	}

	out := &DFA{Start: newIndex[dfa.Start]}
	out.States = make([]State, len(order))
	for _, old := range order {
		st := dfa.States[old]
		ns := newState()
		ns.Accept = st.Accept
		ns.PathCount = st.PathCount
		for b, t := range st.Trans {
			if t != -1 {
				ns.Trans[b] = newIndex[t]
			}
		}
		out.States[newIndex[old]] = ns
	}
	return out
}

// InjectErrorState appends an error state that self-loops on every byte and
// reroutes every remaining blank transition in the automaton to it, then
// fills the accept of every other non-accepting state with errRule so a
// failed match surfaces an error token rather than looping forever (spec.md
// §4.E step 3, §8 "Error totality"). Mutates dfa in place and also returns
// it, matching the DFA minimizer's own "fresh structure vs. in-place" split
// (spec.md §5): unlike Minimize, this step is specified as a mutation.
func InjectErrorState(dfa *DFA, errRule *symbol.Terminal) *DFA {
	errIdx := len(dfa.States)
	errState := newState()
	errState.Accept = &automaton.Rule{Terminal: errRule}
	for b := range errState.Trans {
		errState.Trans[b] = errIdx
	}
	dfa.States = append(dfa.States, errState)

	for i := 0; i < errIdx; i++ {
		st := &dfa.States[i]
		for b := range st.Trans {
			if st.Trans[b] == -1 {
				st.Trans[b] = errIdx
			}
		}
		if i != dfa.Start && st.Accept == nil {
			st.Accept = &automaton.Rule{Terminal: errRule}
		}
	}
	return dfa
}

// EqClasses partitions the 256-byte alphabet into equivalence classes: two
// bytes are in the same class iff, for every DFA state, they transition to
// the same target (spec.md §4.E step 2, §8 "Equivalence-class
// correctness"). Class returns the class index for each byte, 0-based, in
// a deterministic order (class 0 is always the class containing byte 0).
type EqClasses struct {
	Class    [256]int
	NumClass int
}

func ComputeEqClasses(dfa *DFA) EqClasses {
	sigOf := make([]string, 256)
	for b := 0; b < 256; b++ {
		var sb strings.Builder
		for _, st := range dfa.States {
			if st.Trans[b] == -1 {
				sb.WriteString("x,")
			} else {
				sb.WriteString(itoa(st.Trans[b]))
				sb.WriteByte(',')
			}
		}
		sigOf[b] = sb.String()
	}

	var classIDs [256]int
	seen := make(map[string]int)
	next := 0
	for b := 0; b < 256; b++ {
		id, ok := seen[sigOf[b]]
		if !ok {
			id = next
			seen[sigOf[b]] = id
			next++
		}
		classIDs[b] = id
	}

	return EqClasses{Class: classIDs, NumClass: next}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Tables is the emitter-facing contract of spec.md §6 "Emitted tables"
// (lexer side): byte→class table, transition table, accept table, all
// shaped for an external code-emitter to serialize. It is produced by
// BuildTables and never interpreted by this generator (spec.md §1
// Non-goals).
type Tables struct {
	EqClasses EqClasses

	// TransTable is laid out [class][state]: for each (class, state), the
	// target state index shifted left one bit; the low bit is set when the
	// transition was a dead transition redirected to the error state by
	// InjectErrorState (spec.md §4.E step 2 artifact description).
	TransTable [][]int

	// AcceptTable holds the terminal value per state, 0 if non-accepting.
	AcceptTable []int

	NumStates int
	ErrorState int
}

// BuildTables assembles the final lexer table contract from a DFA that has
// already been through InjectErrorState. wasDead records, per (state,
// original byte), whether the pre-injection transition was blank — needed
// to set the low "redirected" bit correctly, since after injection every
// transition looks the same as a normal one.
func BuildTables(dfa *DFA, eq EqClasses, wasDead func(state, byte int) bool, errorState int) Tables {
	t := Tables{
		EqClasses:  eq,
		NumStates:  len(dfa.States),
		ErrorState: errorState,
	}

	// pick one representative byte per class to read the (shared) target.
	repByte := make([]int, eq.NumClass)
	for b := 0; b < 256; b++ {
		repByte[eq.Class[b]] = b
	}

	t.TransTable = make([][]int, eq.NumClass)
	for c := 0; c < eq.NumClass; c++ {
		row := make([]int, len(dfa.States))
		b := repByte[c]
		for s := range dfa.States {
			target := dfa.States[s].Trans[b]
			entry := target << 1
			if wasDead != nil && wasDead(s, b) {
				entry |= 1
			}
			row[s] = entry
		}
		t.TransTable[c] = row
	}

	t.AcceptTable = make([]int, len(dfa.States))
	for s, st := range dfa.States {
		if st.Accept != nil {
			t.AcceptTable[s] = st.Accept.Terminal.Value
		}
	}

	return t
}
