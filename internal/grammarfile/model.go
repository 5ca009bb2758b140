// Package grammarfile implements component F: a recursive-descent parser
// for the declarative grammar description of spec.md §4.F / §6, grounded on
// ictiobus/fishi.go's section/state lexer-and-loader shape (generalized
// from a markdown-embedded format to the section-header format spec.md
// names) and jellycc/project/parser.py / jellycc/utils/parser.py for the
// escape-sequence and regex-body micro-grammars.
package grammarfile

import (
	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/regex"
	"github.com/dekarrin/gentab/internal/symbol"
)

// LexerRule is one line of a [lexer.grammar] section: a regex body bound to
// a named terminal.
type LexerRule struct {
	Loc      gtberr.Location
	Order    int
	Terminal string
	Pattern  *regex.Term
}

// Symbol is one element of a production's right-hand side: either a
// terminal/nonterminal reference (possibly template-parameterized) or an
// inline action block.
type Symbol struct {
	Loc gtberr.Location

	// Capture is the optional "$name=" binding name; empty if the symbol is
	// not captured.
	Capture string

	// Name is the referenced terminal or nonterminal name. Empty when Action
	// is set.
	Name string

	// Args are the template arguments for a parameterized nonterminal
	// reference (e.g. Nt[args]); nil for ordinary references.
	Args []Expr

	// Action holds the raw source text of an inline `{{ ... }}`-style action
	// block, when this Symbol is an action rather than a grammar reference.
	Action *ActionText
}

// ActionText is the raw text and result type annotation of a parser action,
// prior to template substitution and type inference (spec.md §3 "Action").
type ActionText struct {
	Loc  gtberr.Location
	Text string

	// ResultCapture is the capture name this action's value is exposed
	// under, if the production names one.
	ResultCapture string
}

// Production is one alternative of a nonterminal's body: an ordered
// sequence of Symbols, plus an optional trailing `where` condition used by
// template instantiation.
type Production struct {
	Loc     gtberr.Location
	Symbols []Symbol
	Where   *Expr // nil if unconditional
}

// NonterminalRule is one [parser.grammar] entry: a (possibly
// template-parameterized) nonterminal name and its productions.
type NonterminalRule struct {
	Loc         gtberr.Location
	Name        string
	Params      []string // template parameter names, e.g. Nt[n] -> Params=["n"]
	Productions []Production
}

// TypeDecl is one [parser.types] entry: Name bound to a raw type expression
// (Void when Expr == "").
type TypeDecl struct {
	Loc  gtberr.Location
	Name string
	Expr string
}

// VMArg / VMAction mirror the [parser.vm_args] / [parser.vm_actions]
// sections: named raw hook signatures the actions section may invoke.
type VMArg struct {
	Loc  gtberr.Location
	Name string
	Type string
}

type VMAction struct {
	Loc     gtberr.Location
	Name    string
	Args    []VMArg
	Returns string
}

// File is the fully parsed grammar description (spec.md §4.F): every
// section's content, prior to template instantiation (component G).
type File struct {
	Fragments map[string]*regex.Term
	LexRules  []LexerRule
	Terminals *symbol.Table

	Types     []TypeDecl
	VMArgs    []VMArg
	VMActions []VMAction

	Nonterminals []NonterminalRule
	Exposed      []string

	Header string
	Source string
}

func newFile() *File {
	return &File{
		Fragments: make(map[string]*regex.Term),
		Terminals: symbol.NewTable(),
	}
}
