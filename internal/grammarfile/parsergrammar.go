package grammarfile

import (
	"strings"

	"github.com/dekarrin/gentab/internal/gtberr"
)

// parseParserGrammarSection parses [parser.grammar]: one or more
// (possibly template-parameterized) nonterminal rules, each a `|`-separated
// list of productions. A production is a sequence of symbol references and
// inline `{{ ... }}` action blocks, with an optional trailing `where`
// clause restricting which template-parameter bindings it applies to
// (spec.md §4.F "parser grammar", §4.G template instantiation).
func parseParserGrammarSection(s *scanner, f *File) error {
	if err := expectNewlineOrEOF(s); err != nil {
		return err
	}
	for {
		if peekIsSectionAhead(s) {
			return nil
		}
		s.skipLineSpaceAndComments()
		r, ok := s.peekRune()
		if !ok {
			return nil
		}
		if r == '\n' {
			s.advance()
			continue
		}

		rule, err := parseOneNonterminalRule(s)
		if err != nil {
			return err
		}
		f.Nonterminals = append(f.Nonterminals, *rule)
	}
}

func parseOneNonterminalRule(s *scanner) (*NonterminalRule, error) {
	nameTok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if nameTok.kind != tokIdent {
		return nil, errUnexpected(nameTok, "a nonterminal name")
	}
	rule := &NonterminalRule{Loc: nameTok.loc, Name: nameTok.text}

	next, err := s.Next()
	if err != nil {
		return nil, err
	}
	if next.kind == tokSym && next.text == "[" {
		for {
			p, err := s.Next()
			if err != nil {
				return nil, err
			}
			if p.kind == tokSym && p.text == "]" {
				break
			}
			if p.kind != tokIdent {
				return nil, errUnexpected(p, "a template parameter name")
			}
			rule.Params = append(rule.Params, p.text)
			sep, err := s.Next()
			if err != nil {
				return nil, err
			}
			if sep.kind == tokSym && sep.text == "]" {
				break
			}
			if !(sep.kind == tokSym && sep.text == ",") {
				return nil, errUnexpected(sep, "',' or ']'")
			}
		}
		next, err = s.Next()
		if err != nil {
			return nil, err
		}
	}
	if !(next.kind == tokSym && next.text == "=") {
		return nil, errUnexpected(next, "'='")
	}

	for {
		prod, err := parseOneProduction(s)
		if err != nil {
			return nil, err
		}
		rule.Productions = append(rule.Productions, *prod)

		if !peekPipeAhead(s) {
			return rule, nil
		}
		consumeBlankLinesAndPipe(s)
	}
}

// peekPipeAhead reports whether, after skipping blank lines and leading
// line space, the scanner sits at a `|` continuation marker for the
// current nonterminal rule's production list.
func peekPipeAhead(s *scanner) bool {
	save := *s
	defer func() { *s = save }()
	for {
		s.skipLineSpaceAndComments()
		r, ok := s.peekRune()
		if !ok {
			return false
		}
		if r == '\n' {
			s.advance()
			continue
		}
		return r == '|'
	}
}

func consumeBlankLinesAndPipe(s *scanner) {
	for {
		s.skipLineSpaceAndComments()
		r, ok := s.peekRune()
		if !ok {
			return
		}
		if r == '\n' {
			s.advance()
			continue
		}
		s.advance() // the '|'
		return
	}
}

func parseOneProduction(s *scanner) (*Production, error) {
	prod := &Production{}
	if len(prod.Symbols) == 0 {
		// the production's location is the scanner's position where it
		// starts, which is also where an empty production (an explicit
		// epsilon alternative) sits.
		prod.Loc = s.loc()
	}

	for {
		s.skipLineSpaceAndComments()
		r, ok := s.peekRune()
		if !ok || r == '\n' {
			return prod, nil
		}
		if r == '|' {
			return prod, nil
		}

		if isIdentStart(r) {
			save := *s
			tok, err := s.Next()
			if err != nil {
				return nil, err
			}
			if tok.text == "where" {
				body, loc := readRestOfLine(s)
				expr, err := parseExpr(loc.File, loc.Line, strings.TrimSpace(body))
				if err != nil {
					return nil, err
				}
				prod.Where = expr
				return prod, nil
			}
			*s = save
		}

		if r == '{' {
			loc := s.loc()
			raw, err := s.scanAction(loc)
			if err != nil {
				return nil, err
			}
			action := &ActionText{Loc: loc, Text: raw}
			if arrowAhead(s) {
				consumeArrow(s)
				capTok, err := s.Next()
				if err != nil {
					return nil, err
				}
				if capTok.kind != tokIdent {
					return nil, errUnexpected(capTok, "a capture name")
				}
				action.ResultCapture = capTok.text
			}
			prod.Symbols = append(prod.Symbols, Symbol{Loc: loc, Action: action})
			continue
		}

		sym, err := parseOneSymbol(s)
		if err != nil {
			return nil, err
		}
		prod.Symbols = append(prod.Symbols, *sym)
	}
}

func arrowAhead(s *scanner) bool {
	save := *s
	defer func() { *s = save }()
	s.skipLineSpaceAndComments()
	return s.peekTwo() == "->"
}

func consumeArrow(s *scanner) {
	s.skipLineSpaceAndComments()
	s.advance()
	s.advance()
}

func parseOneSymbol(s *scanner) (*Symbol, error) {
	loc := s.loc()
	sym := &Symbol{Loc: loc}

	r, ok := s.peekRune()
	if ok && r == '$' {
		s.advance()
		nameTok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if nameTok.kind != tokIdent {
			return nil, errUnexpected(nameTok, "a capture name")
		}
		if err := expectSym(s, "="); err != nil {
			return nil, err
		}
		sym.Capture = nameTok.text
	}

	nameTok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if nameTok.kind != tokIdent {
		return nil, errUnexpected(nameTok, "a grammar symbol")
	}
	sym.Name = nameTok.text

	bracketSave := *s
	peek, err := s.Next()
	if err != nil {
		return nil, err
	}
	if peek.kind == tokSym && peek.text == "[" {
		var sb strings.Builder
		depth := 1
		for {
			r, ok := s.peekRune()
			if !ok {
				return nil, gtberr.NewLexical(loc, "unterminated template argument list")
			}
			if r == '[' {
				depth++
			} else if r == ']' {
				depth--
				if depth == 0 {
					s.advance()
					break
				}
			}
			sb.WriteRune(r)
			s.advance()
		}
		args, err := parseExprArgs(loc.File, loc.Line, sb.String())
		if err != nil {
			return nil, err
		}
		sym.Args = exprSliceToValues(args)
	} else {
		*s = bracketSave
	}

	return sym, nil
}

func exprSliceToValues(in []*Expr) []Expr {
	out := make([]Expr, len(in))
	for i, e := range in {
		out[i] = *e
	}
	return out
}
