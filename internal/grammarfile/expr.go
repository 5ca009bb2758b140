package grammarfile

import (
	"strconv"
	"strings"

	"github.com/dekarrin/gentab/internal/gtberr"
)

// ExprKind distinguishes the node types of the small `where`-clause /
// template-argument expression language of spec.md §4.G ("where clause
// evaluation"), grounded on jellycc/project/template.py's expression
// evaluator.
type ExprKind int

const (
	ExprInt ExprKind = iota
	ExprIdent
	ExprUnary
	ExprBinary
)

// Expr is a node of a `where`/template-argument expression. Leaves are
// either integer literals or bare identifiers (template parameter
// references); interior nodes are unary ("not") or binary operators.
//
// Binary precedence, low to high: "or" < "and" < comparisons
// (==, !=, <, <=, >, >=) < additive (+, -).
type Expr struct {
	Loc  gtberr.Location
	Kind ExprKind

	IntVal int
	Ident  string

	Op   string // "or", "and", "not", "==", "!=", "<", "<=", ">", ">=", "+", "-"
	L, R *Expr  // R is nil for ExprUnary
}

// Eval evaluates the expression against a binding of template parameter
// names to integer values, per spec.md §4.G: integers are truthy when
// nonzero, and every operator yields an integer (comparisons and boolean
// operators yield 0 or 1) so a where-clause result can itself feed back
// into another arithmetic expression.
func (e *Expr) Eval(env map[string]int) (int, error) {
	if e == nil {
		return 1, nil // absent where-clause is unconditionally true
	}
	switch e.Kind {
	case ExprInt:
		return e.IntVal, nil
	case ExprIdent:
		v, ok := env[e.Ident]
		if !ok {
			return 0, gtberr.New(e.Loc, "undefined template parameter %q", e.Ident)
		}
		return v, nil
	case ExprUnary:
		v, err := e.L.Eval(env)
		if err != nil {
			return 0, err
		}
		if e.Op == "not" {
			return boolToInt(v == 0), nil
		}
		if e.Op == "-" {
			return -v, nil
		}
		return 0, gtberr.New(e.Loc, "unknown unary operator %q", e.Op)
	case ExprBinary:
		l, err := e.L.Eval(env)
		if err != nil {
			return 0, err
		}
		// short-circuit or/and, per the spec's precedence table.
		if e.Op == "or" {
			if l != 0 {
				return 1, nil
			}
			r, err := e.R.Eval(env)
			if err != nil {
				return 0, err
			}
			return boolToInt(r != 0), nil
		}
		if e.Op == "and" {
			if l == 0 {
				return 0, nil
			}
			r, err := e.R.Eval(env)
			if err != nil {
				return 0, err
			}
			return boolToInt(r != 0), nil
		}
		r, err := e.R.Eval(env)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case "==":
			return boolToInt(l == r), nil
		case "!=":
			return boolToInt(l != r), nil
		case "<":
			return boolToInt(l < r), nil
		case "<=":
			return boolToInt(l <= r), nil
		case ">":
			return boolToInt(l > r), nil
		case ">=":
			return boolToInt(l >= r), nil
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		default:
			return 0, gtberr.New(e.Loc, "unknown binary operator %q", e.Op)
		}
	}
	return 0, gtberr.New(e.Loc, "malformed expression node")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// exprParser is a small recursive-descent/Pratt parser over the
// `where`/template-arg expression language, operating directly on raw
// source text extracted by the section parser.
type exprParser struct {
	toks []exprTok
	pos  int
	file string
	line int
}

type exprTok struct {
	text string
	ival int
	kind int // 0=ident,1=int,2=sym
	col  int
}

func parseExpr(file string, line int, text string) (*Expr, error) {
	toks, err := lexExprTokens(file, line, text)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks, file: file, line: line}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, p.errf("unexpected trailing input in expression: %q", p.cur().text)
	}
	return e, nil
}

// parseExprArgs splits a template-argument list "a, b+1, c" on top-level
// commas and parses each element.
func parseExprArgs(file string, line int, text string) ([]*Expr, error) {
	parts := splitTopLevelCommas(text)
	out := make([]*Expr, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		e, err := parseExpr(file, line, part)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func splitTopLevelCommas(text string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range text {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, text[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, text[start:])
	return out
}

func lexExprTokens(file string, line int, text string) ([]exprTok, error) {
	runes := []rune(text)
	var out []exprTok
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == ' ' || r == '\t' {
			i++
			continue
		}
		if r >= '0' && r <= '9' {
			start := i
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
			s := string(runes[start:i])
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, gtberr.NewLexical(gtberr.Location{File: file, Line: line, Col: start + 1}, "malformed integer %q", s)
			}
			out = append(out, exprTok{text: s, ival: v, kind: 1, col: start + 1})
			continue
		}
		if isIdentStart(r) {
			start := i
			for i < len(runes) && isIdentCont(runes[i]) {
				i++
			}
			out = append(out, exprTok{text: string(runes[start:i]), kind: 0, col: start + 1})
			continue
		}
		// two-char operators
		if i+1 < len(runes) {
			two := string(runes[i : i+2])
			switch two {
			case "==", "!=", "<=", ">=":
				out = append(out, exprTok{text: two, kind: 2, col: i + 1})
				i += 2
				continue
			}
		}
		switch r {
		case '(', ')', '<', '>', '+', '-':
			out = append(out, exprTok{text: string(r), kind: 2, col: i + 1})
			i++
		default:
			return nil, gtberr.NewLexical(gtberr.Location{File: file, Line: line, Col: i + 1}, "unexpected character %q in expression", string(r))
		}
	}
	return out, nil
}

func (p *exprParser) cur() exprTok {
	if p.pos >= len(p.toks) {
		return exprTok{kind: -1}
	}
	return p.toks[p.pos]
}

func (p *exprParser) loc() gtberr.Location {
	c := p.cur()
	return gtberr.Location{File: p.file, Line: p.line, Col: c.col}
}

func (p *exprParser) errf(format string, args ...any) error {
	return gtberr.NewLexical(p.loc(), format, args...)
}

func (p *exprParser) atKeyword(kw string) bool {
	c := p.cur()
	return c.kind == 0 && c.text == kw
}

func (p *exprParser) atSym(sym string) bool {
	c := p.cur()
	return c.kind == 2 && c.text == sym
}

func (p *exprParser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") {
		loc := p.loc()
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Expr{Loc: loc, Kind: ExprBinary, Op: "or", L: left, R: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (*Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") {
		loc := p.loc()
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Expr{Loc: loc, Kind: ExprBinary, Op: "and", L: left, R: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *exprParser) parseComparison() (*Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	c := p.cur()
	if c.kind == 2 && comparisonOps[c.text] {
		loc := p.loc()
		op := c.text
		p.pos++
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Expr{Loc: loc, Kind: ExprBinary, Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *exprParser) parseAdditive() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atSym("+") || p.atSym("-") {
		loc := p.loc()
		op := p.cur().text
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Expr{Loc: loc, Kind: ExprBinary, Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (*Expr, error) {
	if p.atKeyword("not") {
		loc := p.loc()
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Loc: loc, Kind: ExprUnary, Op: "not", L: inner}, nil
	}
	if p.atSym("-") {
		loc := p.loc()
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Loc: loc, Kind: ExprUnary, Op: "-", L: inner}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (*Expr, error) {
	c := p.cur()
	loc := p.loc()
	switch {
	case c.kind == 1:
		p.pos++
		return &Expr{Loc: loc, Kind: ExprInt, IntVal: c.ival}, nil
	case c.kind == 0:
		p.pos++
		return &Expr{Loc: loc, Kind: ExprIdent, Ident: c.text}, nil
	case c.kind == 2 && c.text == "(":
		p.pos++
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.atSym(")") {
			return nil, p.errf("expected ')'")
		}
		p.pos++
		return e, nil
	default:
		return nil, p.errf("unexpected token in expression")
	}
}
