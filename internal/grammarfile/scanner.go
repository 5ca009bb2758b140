package grammarfile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dekarrin/gentab/internal/gtberr"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokNewline
	tokIdent
	tokInt
	tokString
	tokSection // [name.name]
	tokTagList // {a, b, c}
	tokSym     // punctuation, multi-char operators included verbatim
)

type token struct {
	kind tokKind
	text string
	ival int
	loc  gtberr.Location
}

// scanner is a hand-rolled, whitespace-and-#-comment-skipping tokenizer
// shared by every section's micro-grammar (spec.md §4.F), grounded on
// ictiobus/fishi.go's bootstrap lexer shape.
type scanner struct {
	file string
	src  []rune
	pos  int
	line int
	col  int
}

func newScanner(file, src string) *scanner {
	return &scanner{file: file, src: []rune(src), line: 1, col: 1}
}

func (s *scanner) loc() gtberr.Location {
	return gtberr.Location{File: s.file, Line: s.line, Col: s.col}
}

func (s *scanner) peekRune() (rune, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos], true
}

func (s *scanner) advance() (rune, bool) {
	r, ok := s.peekRune()
	if !ok {
		return 0, false
	}
	s.pos++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r, true
}

func (s *scanner) skipLineSpaceAndComments() {
	for {
		r, ok := s.peekRune()
		if !ok {
			return
		}
		if r == ' ' || r == '\t' || r == '\r' {
			s.advance()
			continue
		}
		if r == '#' {
			for {
				r, ok := s.peekRune()
				if !ok || r == '\n' {
					break
				}
				s.advance()
			}
			continue
		}
		return
	}
}

// Next returns the next token, skipping whitespace and comments but
// emitting newlines as tokens since the section micro-grammars of spec.md
// §4.F are line-oriented.
func (s *scanner) Next() (token, error) {
	s.skipLineSpaceAndComments()
	loc := s.loc()
	r, ok := s.peekRune()
	if !ok {
		return token{kind: tokEOF, loc: loc}, nil
	}

	if r == '\n' {
		s.advance()
		return token{kind: tokNewline, loc: loc}, nil
	}

	if r == '[' {
		return s.scanBracketed(loc, '[', ']', tokSection)
	}
	if r == '{' {
		return s.scanBracketed(loc, '{', '}', tokTagList)
	}

	if r == '"' || r == '\'' {
		return s.scanString(loc, r)
	}

	if r >= '0' && r <= '9' {
		return s.scanNumber(loc)
	}

	if isIdentStart(r) {
		return s.scanIdent(loc)
	}

	// multi-char punctuation operators used by `where` expressions and
	// parser-rule syntax (spec.md §4.F/§4.G).
	two := s.peekTwo()
	switch two {
	case "==", "!=", "<=", ">=", "..":
		s.advance()
		s.advance()
		return token{kind: tokSym, text: two, loc: loc}, nil
	}

	s.advance()
	return token{kind: tokSym, text: string(r), loc: loc}, nil
}

func (s *scanner) peekTwo() string {
	if s.pos+1 >= len(s.src) {
		return ""
	}
	return string(s.src[s.pos]) + string(s.src[s.pos+1])
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '-'
}

func (s *scanner) scanIdent(loc gtberr.Location) (token, error) {
	var sb strings.Builder
	for {
		r, ok := s.peekRune()
		if !ok || !isIdentCont(r) {
			break
		}
		sb.WriteRune(r)
		s.advance()
	}
	return token{kind: tokIdent, text: sb.String(), loc: loc}, nil
}

func (s *scanner) scanNumber(loc gtberr.Location) (token, error) {
	var sb strings.Builder
	for {
		r, ok := s.peekRune()
		if !ok || r < '0' || r > '9' {
			break
		}
		sb.WriteRune(r)
		s.advance()
	}
	v, err := strconv.Atoi(sb.String())
	if err != nil {
		return token{}, gtberr.NewLexical(loc, "malformed integer %q", sb.String())
	}
	return token{kind: tokInt, text: sb.String(), ival: v, loc: loc}, nil
}

// scanString handles double- or single-quoted strings with C-style escapes
// plus \xHH, \uHHHH, \UHHHHHHHH (spec.md §6).
func (s *scanner) scanString(loc gtberr.Location, quote rune) (token, error) {
	s.advance() // opening quote
	var sb strings.Builder
	for {
		r, ok := s.peekRune()
		if !ok {
			return token{}, gtberr.NewLexical(loc, "unterminated string literal")
		}
		if r == quote {
			s.advance()
			break
		}
		if r == '\\' {
			s.advance()
			esc, err := s.scanEscape(loc)
			if err != nil {
				return token{}, err
			}
			sb.WriteRune(esc)
			continue
		}
		sb.WriteRune(r)
		s.advance()
	}
	return token{kind: tokString, text: sb.String(), loc: loc}, nil
}

func (s *scanner) scanEscape(loc gtberr.Location) (rune, error) {
	r, ok := s.advance()
	if !ok {
		return 0, gtberr.NewLexical(loc, "unterminated escape sequence")
	}
	switch r {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case '0':
		return 0, nil
	case '\\', '\'', '"':
		return r, nil
	case 'x':
		return s.scanHexEscape(loc, 2)
	case 'u':
		return s.scanHexEscape(loc, 4)
	case 'U':
		return s.scanHexEscape(loc, 8)
	default:
		return 0, gtberr.NewLexical(loc, "malformed escape sequence: \\%c", r)
	}
}

func (s *scanner) scanHexEscape(loc gtberr.Location, digits int) (rune, error) {
	var sb strings.Builder
	for i := 0; i < digits; i++ {
		r, ok := s.advance()
		if !ok {
			return 0, gtberr.NewLexical(loc, "incomplete hex escape")
		}
		sb.WriteRune(r)
	}
	v, err := strconv.ParseInt(sb.String(), 16, 32)
	if err != nil {
		return 0, gtberr.NewLexical(loc, "malformed hex escape: %q", sb.String())
	}
	if !utf8.ValidRune(rune(v)) {
		return 0, gtberr.NewLexical(loc, "invalid code point in escape: %#x", v)
	}
	return rune(v), nil
}

// scanBracketed reads a balanced [...] or {...} run as raw text (used for
// section headers and tag-lists); spec.md §4.F's action-block brace
// counting (`{{ ... }}`, `{{{ ... }}}`) is handled separately in
// scanAction, since those balance on doubled/tripled braces rather than a
// single pair.
func (s *scanner) scanBracketed(loc gtberr.Location, open, close rune, kind tokKind) (token, error) {
	s.advance() // opening bracket
	var sb strings.Builder
	depth := 1
	for {
		r, ok := s.peekRune()
		if !ok {
			return token{}, gtberr.NewLexical(loc, "unterminated %c...%c", open, close)
		}
		if r == open {
			depth++
		} else if r == close {
			depth--
			if depth == 0 {
				s.advance()
				break
			}
		}
		sb.WriteRune(r)
		s.advance()
	}
	return token{kind: kind, text: sb.String(), loc: loc}, nil
}

// scanAction reads a `{{ ... }}`-style action block starting at the current
// position (the first `{` already confirmed by the caller via peeking). The
// opening run of `{` characters determines how many consecutive `}` close
// it; spec.md §4.F requires the open/close counts to match.
func (s *scanner) scanAction(loc gtberr.Location) (string, error) {
	openCount := 0
	for {
		r, ok := s.peekRune()
		if !ok || r != '{' {
			break
		}
		openCount++
		s.advance()
	}
	if openCount < 2 {
		return "", gtberr.NewLexical(loc, "expected action block opening of at least '{{'")
	}

	var sb strings.Builder
	for {
		if s.matchesCloseRun(openCount) {
			for i := 0; i < openCount; i++ {
				s.advance()
			}
			return sb.String(), nil
		}
		r, ok := s.advance()
		if !ok {
			return "", gtberr.NewLexical(loc, "unterminated action block (expected %d closing braces)", openCount)
		}
		sb.WriteRune(r)
	}
}

func (s *scanner) matchesCloseRun(n int) bool {
	if s.pos+n > len(s.src) {
		return false
	}
	for i := 0; i < n; i++ {
		if s.src[s.pos+i] != '}' {
			return false
		}
	}
	// must not be followed by yet another '}' that would belong to this run
	// (keeps "closes with exactly n" rather than accepting a longer run as a
	// valid, shorter close).
	if s.pos+n < len(s.src) && s.src[s.pos+n] == '}' {
		return false
	}
	return true
}

func (s *scanner) peekIsOpenBrace() bool {
	r, ok := s.peekRune()
	return ok && r == '{'
}

func errUnexpected(tok token, expected string) error {
	return gtberr.NewLexical(tok.loc, "unexpected %s, expected %s", describeTok(tok), expected)
}

func describeTok(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "newline"
	case tokIdent:
		return fmt.Sprintf("identifier %q", tok.text)
	case tokInt:
		return fmt.Sprintf("integer %d", tok.ival)
	case tokString:
		return fmt.Sprintf("string %q", tok.text)
	case tokSection:
		return fmt.Sprintf("[%s]", tok.text)
	case tokTagList:
		return fmt.Sprintf("{%s}", tok.text)
	default:
		return fmt.Sprintf("%q", tok.text)
	}
}
