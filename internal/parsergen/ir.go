// Package parsergen implements components G through K of the generator:
// template instantiation, type unification, LL refactoring, LH-table
// construction, and panic/sync error-recovery cost computation (spec.md
// §4.G-§4.K), grounded on jellycc/parser/template.py,
// jellycc/parser/ll/builder.py, jellycc/parser/ll/lhtable.py and
// jellycc/parser/ll/recovery.py.
package parsergen

import (
	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/symbol"
)

// SymbolRef is one element of an instantiated production's right-hand side:
// either a terminal or a (by-then-concrete, non-template) nonterminal,
// carrying the capture name it was bound to in the grammar source, if any.
type SymbolRef struct {
	Loc      gtberr.Location
	Capture  string
	Terminal *symbol.Terminal // nil if this ref is a nonterminal
	NonTerm  *NonTerminal     // nil if this ref is a terminal
}

func (r SymbolRef) IsTerminal() bool { return r.Terminal != nil }

func (r SymbolRef) Name() string {
	if r.Terminal != nil {
		return r.Terminal.Name
	}
	return r.NonTerm.Name
}

// Action is an instantiated action: the raw source text plus the ordered
// capture bindings visible to it (spec.md §3 "Action"), mirroring
// jellycc/parser/template.py's type_stack accumulation.
type Action struct {
	Loc      gtberr.Location
	ID       int // stable identity assigned in deterministic instantiation order, for megaaction hash-consing
	Text     string
	Captures []string // capture names visible, in left-to-right order; "" for uncaptured slots
	Type     *TypeVar
}

// Production is one instantiated alternative of a NonTerminal's body.
type Production struct {
	Loc     gtberr.Location
	Symbols []SymbolRef
	Action  *Action

	// Nullable/First/decision metadata populated by later components; left
	// zero-valued until llrefactor/lhtable runs.
	Nullable bool
}

// NonTerminal is a fully instantiated (template-args resolved) grammar
// symbol: either an original un-parameterized rule, or one concrete
// instantiation of a parameterized one (name rendered as "Base[v1,v2,...]",
// per jellycc/parser/template.py's TemplateNonTerminal._create_instance).
type NonTerminal struct {
	Loc   gtberr.Location
	Name  string
	Rules []*Production
	Type  *TypeVar

	// synthetic marks nonterminals introduced by llrefactor (left-recursion
	// elimination, left-factoring) rather than present in the source grammar.
	Synthetic bool
}

// Grammar is the flat, template-free intermediate representation shared by
// components H through K.
type Grammar struct {
	Terminals    *symbol.Table
	NonTerminals map[string]*NonTerminal
	Order        []string // declaration/instantiation order, for determinism
	Start        *NonTerminal

	// Roots holds every exposed entry-point nonterminal's name, in
	// [parser.expose] declaration order (spec.md §4.F/§6 "entry-state
	// indices" — plural, since a grammar may expose more than one parse
	// entry point). Start == NonTerminals[Roots[0]].
	Roots []string
}

func NewGrammar(terms *symbol.Table) *Grammar {
	return &Grammar{Terminals: terms, NonTerminals: make(map[string]*NonTerminal)}
}

func (g *Grammar) Add(nt *NonTerminal) {
	if _, exists := g.NonTerminals[nt.Name]; exists {
		return
	}
	g.NonTerminals[nt.Name] = nt
	g.Order = append(g.Order, nt.Name)
}

func (g *Grammar) Get(name string) *NonTerminal { return g.NonTerminals[name] }
