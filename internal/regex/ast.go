// Package regex implements component A of the generator: the regex AST and
// the Thompson-style ε-NFA builder that turns it into automaton.Graph
// fragments, grounded on ictiobus/lex/regex.go's createSingleSymbolFA /
// createJuxtapositionFA / createKleeneStarFA / createAlternationFA
// combinators, generalized from single-symbol string automata to byte-set
// automata.
package regex

import "github.com/dekarrin/gentab/internal/automaton"

// Kind tags a Term variant.
type Kind int

const (
	Empty Kind = iota
	Char
	Concat
	Choice
	Star
	Ref
)

// Term is a regex AST node (spec.md §3 "Regex term"): a tagged variant over
// {Empty, Char(set of byte values), Concat(l,r), Choice(l,r), Star(inner),
// Ref(fragment-name)}.
type Term struct {
	Kind Kind

	Set automaton.ByteSet // Char

	L, R *Term // Concat, Choice

	Inner *Term // Star

	FragmentName string // Ref
}

func NewEmpty() *Term { return &Term{Kind: Empty} }

func NewChar(set automaton.ByteSet) *Term { return &Term{Kind: Char, Set: set} }

func NewConcat(l, r *Term) *Term {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	return &Term{Kind: Concat, L: l, R: r}
}

func NewChoice(l, r *Term) *Term { return &Term{Kind: Choice, L: l, R: r} }

func NewStar(inner *Term) *Term { return &Term{Kind: Star, Inner: inner} }

func NewRef(name string) *Term { return &Term{Kind: Ref, FragmentName: name} }

// NewPlus desugars `inner+` to `inner inner*`, matching the textual grammar
// body operators listed in spec.md §4.F.
func NewPlus(inner *Term) *Term {
	return NewConcat(inner, NewStar(inner))
}

// NewOptional desugars `inner?` to `inner|ε`.
func NewOptional(inner *Term) *Term {
	return NewChoice(inner, NewEmpty())
}

// NewRepeat desugars `inner{m,n}` (n == -1 means unbounded, i.e. {m,}) into
// concatenations/stars.
func NewRepeat(inner *Term, m, n int) *Term {
	var out *Term
	for i := 0; i < m; i++ {
		out = NewConcat(out, inner)
	}
	if n < 0 {
		out = NewConcat(out, NewStar(inner))
		return out
	}
	for i := m; i < n; i++ {
		out = NewConcat(out, NewOptional(inner))
	}
	if out == nil {
		return NewEmpty()
	}
	return out
}
