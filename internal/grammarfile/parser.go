package grammarfile

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/symbol"
)

// sectionFold normalizes a section header for comparison so that
// `[Lexer.Grammar]` and `[lexer.grammar]` name the same section; grammar
// sources are otherwise case-sensitive (identifiers, terminal names), so
// this folding is deliberately confined to section headers.
var sectionFold = cases.Fold()

func foldSection(s string) string {
	return sectionFold.String(s)
}

// Parse reads a complete grammar description (spec.md §4.F / §6) and
// returns its parsed (but not yet template-instantiated) form. filename is
// used only for error locations.
func Parse(filename, src string) (*File, error) {
	s := newScanner(filename, src)
	f := newFile()
	order := 0

	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	for tok.kind != tokEOF {
		if tok.kind == tokNewline {
			tok, err = s.Next()
			if err != nil {
				return nil, err
			}
			continue
		}
		if tok.kind != tokSection {
			return nil, errUnexpected(tok, "a [section] header")
		}

		section := foldSection(tok.text)
		var perr error
		switch section {
		case "lexer.fragments":
			perr = parseFragmentsSection(s, f)
		case "lexer.grammar":
			order, perr = parseLexerGrammarSection(s, f, order)
		case "terminals":
			perr = parseTerminalsSection(s, f)
		case "parser.types":
			perr = parseTypesSection(s, f)
		case "parser.vm_args":
			perr = parseVMArgsSection(s, f)
		case "parser.vm_actions":
			perr = parseVMActionsSection(s, f)
		case "parser.grammar":
			perr = parseParserGrammarSection(s, f)
		case "parser.expose":
			perr = parseExposeSection(s, f)
		case "parser.header":
			f.Header, perr = parseRawSection(s)
		case "parser.source":
			f.Source, perr = parseRawSection(s)
		default:
			perr = gtberr.New(tok.loc, "unknown section [%s]", tok.text)
		}
		if perr != nil {
			return nil, perr
		}

		tok, err = s.Next()
		if err != nil {
			return nil, err
		}
	}

	if err := f.Terminals.Validate(); err != nil {
		return nil, err
	}
	if err := f.Terminals.AssignValues(); err != nil {
		return nil, err
	}
	return f, nil
}

// readRestOfLine consumes and returns the raw source text from the scanner's
// current position up to (not including) the terminating newline or EOF,
// along with the location where that text starts. Several
// sections (regex bodies, type expressions, where-clauses) are easiest to
// parse as whole-line text rather than token-by-token, since their internal
// lexical rules differ from the section-header grammar.
func readRestOfLine(s *scanner) (string, gtberr.Location) {
	loc := s.loc()
	var sb strings.Builder
	for {
		r, ok := s.peekRune()
		if !ok || r == '\n' {
			break
		}
		sb.WriteRune(r)
		s.advance()
	}
	return sb.String(), loc
}

func expectNewlineOrEOF(s *scanner) error {
	tok, err := s.Next()
	if err != nil {
		return err
	}
	if tok.kind != tokNewline && tok.kind != tokEOF {
		return errUnexpected(tok, "end of line")
	}
	return nil
}

// peekIsSectionAhead reports whether the scanner, after skipping blank
// lines, is positioned at a new [section] header (used by section bodies to
// know when to stop without consuming the header token).
func peekIsSectionAhead(s *scanner) bool {
	save := *s
	for {
		s.skipLineSpaceAndComments()
		r, ok := s.peekRune()
		if !ok {
			*s = save
			return false
		}
		if r == '\n' {
			s.advance()
			continue
		}
		result := r == '['
		*s = save
		return result
	}
}

func parseFragmentsSection(s *scanner, f *File) error {
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
		tok, err := s.Next()
		if err != nil {
			return err
		}
		if tok.kind != tokIdent {
			return errUnexpected(tok, "a fragment name")
		}
		name := tok.text
		if err := expectSym(s, "="); err != nil {
			return err
		}
		s.skipLineSpaceAndComments()
		body, loc := readRestOfLine(s)
		term, err := parseRegexBody(loc.File, loc.Line, strings.TrimRight(body, " \t"))
		if err != nil {
			return err
		}
		f.Fragments[name] = term
		if err := expectNewlineOrEOF(s); err != nil {
			return err
		}
	}
}

func parseLexerGrammarSection(s *scanner, f *File, order int) (int, error) {
	if err := expectNewlineOrEOF(s); err != nil {
		return order, err
	}
	for {
		if peekIsSectionAhead(s) {
			return order, nil
		}
		s.skipLineSpaceAndComments()
		r, ok := s.peekRune()
		if !ok {
			return order, nil
		}
		if r == '\n' {
			s.advance()
			continue
		}
		tok, err := s.Next()
		if err != nil {
			return order, err
		}
		if tok.kind != tokIdent {
			return order, errUnexpected(tok, "a terminal name")
		}
		name := tok.text
		if err := expectSym(s, "="); err != nil {
			return order, err
		}
		s.skipLineSpaceAndComments()
		body, loc := readRestOfLine(s)
		term, err := parseRegexBody(loc.File, loc.Line, strings.TrimRight(body, " \t"))
		if err != nil {
			return order, err
		}
		f.LexRules = append(f.LexRules, LexerRule{Loc: tok.loc, Order: order, Terminal: name, Pattern: term})
		order++
		if err := expectNewlineOrEOF(s); err != nil {
			return order, err
		}
	}
}

func parseTerminalsSection(s *scanner, f *File) error {
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
		tok, err := s.Next()
		if err != nil {
			return err
		}
		if tok.kind != tokIdent {
			return errUnexpected(tok, "a terminal name")
		}
		term := symbol.Terminal{Loc: tok.loc, Name: tok.text, ImplName: tok.text}

		next, err := s.Next()
		if err != nil {
			return err
		}
		if next.kind == tokSym && next.text == "=" {
			valTok, err := s.Next()
			if err != nil {
				return err
			}
			if valTok.kind != tokInt {
				return errUnexpected(valTok, "an integer value")
			}
			term.Value = valTok.ival
			term.HasValue = true
			next, err = s.Next()
			if err != nil {
				return err
			}
		}
		if next.kind == tokTagList {
			for _, tag := range splitTagList(next.text) {
				switch tag {
				case "skip":
					term.Skip = true
				case "error":
					term.IsError = true
				case "eof":
					term.IsEOF = true
				default:
					return gtberr.New(next.loc, "unknown terminal tag %q", tag)
				}
			}
			next, err = s.Next()
			if err != nil {
				return err
			}
		}
		if next.kind != tokNewline && next.kind != tokEOF {
			return errUnexpected(next, "end of line")
		}
		if err := f.Terminals.Add(term); err != nil {
			return err
		}
	}
}

func splitTagList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTypesSection(s *scanner, f *File) error {
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
		tok, err := s.Next()
		if err != nil {
			return err
		}
		if tok.kind != tokIdent {
			return errUnexpected(tok, "a type name")
		}
		decl := TypeDecl{Loc: tok.loc, Name: tok.text}
		next, err := s.Next()
		if err != nil {
			return err
		}
		if next.kind == tokSym && next.text == "=" {
			s.skipLineSpaceAndComments()
			body, _ := readRestOfLine(s)
			decl.Expr = strings.TrimSpace(body)
			if err := expectNewlineOrEOF(s); err != nil {
				return err
			}
		} else if next.kind != tokNewline && next.kind != tokEOF {
			return errUnexpected(next, "end of line or '='")
		}
		f.Types = append(f.Types, decl)
	}
}

func parseVMArgsSection(s *scanner, f *File) error {
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
		tok, err := s.Next()
		if err != nil {
			return err
		}
		if tok.kind != tokIdent {
			return errUnexpected(tok, "a vm-arg name")
		}
		if err := expectSym(s, ":"); err != nil {
			return err
		}
		s.skipLineSpaceAndComments()
		body, _ := readRestOfLine(s)
		f.VMArgs = append(f.VMArgs, VMArg{Loc: tok.loc, Name: tok.text, Type: strings.TrimSpace(body)})
		if err := expectNewlineOrEOF(s); err != nil {
			return err
		}
	}
}

func parseVMActionsSection(s *scanner, f *File) error {
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
		tok, err := s.Next()
		if err != nil {
			return err
		}
		if tok.kind != tokIdent {
			return errUnexpected(tok, "a vm-action name")
		}
		action := VMAction{Loc: tok.loc, Name: tok.text}
		if err := expectSym(s, "("); err != nil {
			return err
		}
		for {
			peek, err := s.Next()
			if err != nil {
				return err
			}
			if peek.kind == tokSym && peek.text == ")" {
				break
			}
			if peek.kind != tokIdent {
				return errUnexpected(peek, "an argument name")
			}
			if err := expectSym(s, ":"); err != nil {
				return err
			}
			typeTok, err := s.Next()
			if err != nil {
				return err
			}
			if typeTok.kind != tokIdent {
				return errUnexpected(typeTok, "a type name")
			}
			action.Args = append(action.Args, VMArg{Loc: peek.loc, Name: peek.text, Type: typeTok.text})

			sep, err := s.Next()
			if err != nil {
				return err
			}
			if sep.kind == tokSym && sep.text == ")" {
				break
			}
			if !(sep.kind == tokSym && sep.text == ",") {
				return errUnexpected(sep, "',' or ')'")
			}
		}
		if err := expectSym(s, ":"); err != nil {
			return err
		}
		retTok, err := s.Next()
		if err != nil {
			return err
		}
		if retTok.kind != tokIdent {
			return errUnexpected(retTok, "a return type")
		}
		action.Returns = retTok.text
		f.VMActions = append(f.VMActions, action)
		if err := expectNewlineOrEOF(s); err != nil {
			return err
		}
	}
}

func parseExposeSection(s *scanner, f *File) error {
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
		body, _ := readRestOfLine(s)
		for _, name := range strings.Split(body, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				f.Exposed = append(f.Exposed, name)
			}
		}
		if err := expectNewlineOrEOF(s); err != nil {
			return err
		}
	}
}

// parseRawSection copies everything up to the next [section] header or EOF
// verbatim: [parser.header] and [parser.source] content is opaque text
// handed to the external code emitter (spec.md §6), never interpreted here.
func parseRawSection(s *scanner) (string, error) {
	if err := expectNewlineOrEOF(s); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		if peekIsSectionAhead(s) {
			return sb.String(), nil
		}
		r, ok := s.peekRune()
		if !ok {
			return sb.String(), nil
		}
		sb.WriteRune(r)
		s.advance()
	}
}

func expectSym(s *scanner, sym string) error {
	tok, err := s.Next()
	if err != nil {
		return err
	}
	if tok.kind != tokSym || tok.text != sym {
		return errUnexpected(tok, "'"+sym+"'")
	}
	return nil
}
