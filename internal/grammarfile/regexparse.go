package grammarfile

import (
	"strconv"
	"strings"

	"github.com/dekarrin/gentab/internal/automaton"
	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/regex"
)

// regexParser parses the textual regex body micro-grammar of spec.md §4.F:
// `?`, `+`, `*`, `{m,n}`, `|`, `[…]`, `[^…]`, `<fragment>`, grouping,
// concatenation — grounded on jellycc/lexer/regexp.py's operator set.
type regexParser struct {
	src  []rune
	pos  int
	file string
	line int
}

func parseRegexBody(file string, line int, body string) (*regex.Term, error) {
	p := &regexParser{src: []rune(body), file: file, line: line}
	t, err := p.parseChoice()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errf("unexpected trailing input in regex: %q", string(p.src[p.pos:]))
	}
	return t, nil
}

func (p *regexParser) loc() gtberr.Location {
	return gtberr.Location{File: p.file, Line: p.line, Col: p.pos + 1}
}

func (p *regexParser) errf(format string, args ...any) error {
	return gtberr.NewLexical(p.loc(), format, args...)
}

func (p *regexParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *regexParser) peek() (rune, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *regexParser) at(r rune) bool {
	c, ok := p.peek()
	return ok && c == r
}

// parseChoice handles `a|b|c` (lowest precedence).
func (p *regexParser) parseChoice() (*regex.Term, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for p.at('|') {
		p.pos++
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = regex.NewChoice(left, right)
	}
	return left, nil
}

// parseConcat handles implicit juxtaposition until `|` or `)` or end.
func (p *regexParser) parseConcat() (*regex.Term, error) {
	var out *regex.Term
	for {
		if p.pos >= len(p.src) || p.at('|') || p.at(')') {
			break
		}
		t, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		out = regex.NewConcat(out, t)
	}
	if out == nil {
		return regex.NewEmpty(), nil
	}
	return out, nil
}

// parsePostfix handles a primary term followed by any of `?`, `+`, `*`,
// `{m,n}`.
func (p *regexParser) parsePostfix() (*regex.Term, error) {
	t, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		c, ok := p.peek()
		if !ok {
			return t, nil
		}
		switch c {
		case '?':
			p.pos++
			t = regex.NewOptional(t)
		case '+':
			p.pos++
			t = regex.NewPlus(t)
		case '*':
			p.pos++
			t = regex.NewStar(t)
		case '{':
			m, n, err := p.parseRepeatBounds()
			if err != nil {
				return nil, err
			}
			t = regex.NewRepeat(t, m, n)
		default:
			return t, nil
		}
	}
}

func (p *regexParser) parseRepeatBounds() (int, int, error) {
	start := p.pos
	p.pos++ // '{'
	var sb strings.Builder
	for !p.at('}') {
		c, ok := p.peek()
		if !ok {
			return 0, 0, p.errf("unterminated {m,n} repeat")
		}
		sb.WriteRune(c)
		p.pos++
	}
	p.pos++ // '}'
	body := sb.String()
	parts := strings.SplitN(body, ",", 2)
	m, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		p.pos = start
		return 0, 0, p.errf("malformed repeat bound: %q", body)
	}
	if len(parts) == 1 {
		return m, m, nil
	}
	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return m, -1, nil
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, 0, p.errf("malformed repeat bound: %q", body)
	}
	return m, n, nil
}

func (p *regexParser) parsePrimary() (*regex.Term, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errf("unexpected end of regex")
	}
	switch c {
	case '(':
		p.pos++
		t, err := p.parseChoice()
		if err != nil {
			return nil, err
		}
		if !p.at(')') {
			return nil, p.errf("expected ')' to close group")
		}
		p.pos++
		return t, nil
	case '[':
		return p.parseClass()
	case '<':
		return p.parseFragmentRef()
	case '.':
		p.pos++
		var set automaton.ByteSet
		set.AddRange(0, 255)
		return regex.NewChar(removeByte(set, '\n')), nil
	case '\\':
		p.pos++
		return p.parseEscapedChar()
	default:
		p.pos++
		var set automaton.ByteSet
		set.Add(byte(c))
		return regex.NewChar(set), nil
	}
}

func removeByte(set automaton.ByteSet, b byte) automaton.ByteSet {
	var out automaton.ByteSet
	for i := 0; i < 256; i++ {
		if byte(i) != b && set.Has(byte(i)) {
			out.Add(byte(i))
		}
	}
	return out
}

func (p *regexParser) parseFragmentRef() (*regex.Term, error) {
	p.pos++ // '<'
	var sb strings.Builder
	for !p.at('>') {
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated fragment reference")
		}
		sb.WriteRune(c)
		p.pos++
	}
	p.pos++ // '>'
	return regex.NewRef(sb.String()), nil
}

func (p *regexParser) parseEscapedChar() (*regex.Term, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errf("unterminated escape sequence")
	}
	p.pos++
	var set automaton.ByteSet
	switch c {
	case 'n':
		set.Add('\n')
	case 't':
		set.Add('\t')
	case 'r':
		set.Add('\r')
	case 'd':
		set.AddRange('0', '9')
		return regex.NewChar(set), nil
	case 'w':
		set.AddRange('a', 'z')
		set.AddRange('A', 'Z')
		set.AddRange('0', '9')
		set.Add('_')
		return regex.NewChar(set), nil
	case 's':
		set.Add(' ')
		set.Add('\t')
		set.Add('\n')
		set.Add('\r')
		return regex.NewChar(set), nil
	default:
		set.Add(byte(c))
	}
	return regex.NewChar(set), nil
}

// parseClass handles `[…]` and `[^…]` character classes, including ranges
// (`a-z`) and escape sequences inside the class.
func (p *regexParser) parseClass() (*regex.Term, error) {
	p.pos++ // '['
	negate := false
	if p.at('^') {
		negate = true
		p.pos++
	}
	var set automaton.ByteSet
	first := true
	for {
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated character class")
		}
		if c == ']' && !first {
			p.pos++
			break
		}
		first = false
		var lo byte
		if c == '\\' {
			p.pos++
			esc, ok := p.peek()
			if !ok {
				return nil, p.errf("unterminated escape in character class")
			}
			p.pos++
			lo = byte(mapEscapeByte(esc))
		} else {
			p.pos++
			lo = byte(c)
		}
		if p.at('-') && p.pos+1 < len(p.src) && p.src[p.pos+1] != ']' {
			p.pos++ // '-'
			c2, ok := p.peek()
			if !ok {
				return nil, p.errf("unterminated range in character class")
			}
			var hi byte
			if c2 == '\\' {
				p.pos++
				esc, ok := p.peek()
				if !ok {
					return nil, p.errf("unterminated escape in character class")
				}
				p.pos++
				hi = byte(mapEscapeByte(esc))
			} else {
				p.pos++
				hi = byte(c2)
			}
			if hi < lo {
				return nil, p.errf("invalid byte range in character class: %c-%c", lo, hi)
			}
			set.AddRange(lo, hi)
		} else {
			set.Add(lo)
		}
	}
	if negate {
		set = removeSetRange(set)
	}
	return regex.NewChar(set), nil
}

func mapEscapeByte(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}

func removeSetRange(set automaton.ByteSet) automaton.ByteSet {
	var out automaton.ByteSet
	for b := 0; b < 256; b++ {
		if !set.Has(byte(b)) {
			out.Add(byte(b))
		}
	}
	return out
}
