// Package gtberr provides the error taxonomy used across the generator:
// source-located errors for the lexical, grammar, and semantic error kinds
// of spec.md §7, plus a diagnostic sink for non-fatal warnings.
package gtberr

import (
	"fmt"

	"github.com/dekarrin/rosed"
)

// Location is a position in a grammar source file.
type Location struct {
	File string
	Line int
	Col  int
}

func (loc Location) String() string {
	if loc.File == "" && loc.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s(%d, %d)", loc.File, loc.Line, loc.Col)
}

// Kind distinguishes the error taxonomy of spec.md §7.
type Kind int

const (
	KindLexical Kind = iota
	KindSemantic
	KindInternal
)

// SourceError is a fatal, source-located error. Every lexical/grammar and
// semantic error in spec.md §7 is reported as one of these; the orchestrator
// lets them surface to the top of the process unchanged (spec.md §7
// propagation policy).
type SourceError struct {
	Kind Kind
	Loc  Location
	Msg  string
}

func New(loc Location, format string, args ...any) *SourceError {
	return &SourceError{Kind: KindSemantic, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

func NewLexical(loc Location, format string, args ...any) *SourceError {
	return &SourceError{Kind: KindLexical, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// Internal reports an invariant violation. These are programmer errors, not
// user-facing grammar mistakes, and match the teacher's "should never
// happen" panics (e.g. automaton/dfa.go's NumberStates).
func Internal(format string, args ...any) *SourceError {
	return &SourceError{Kind: KindInternal, Msg: "INTERNAL ERROR: " + fmt.Sprintf(format, args...)}
}

func (e *SourceError) Error() string {
	loc := e.Loc.String()
	if loc == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

// FullMessage renders the error the way a CLI diagnostic line is shown
// (path(line, col): message), word-wrapped to a comfortable terminal width
// for any message that runs long.
func (e *SourceError) FullMessage() string {
	body := e.Error()
	return rosed.Edit(body).Wrap(100).String()
}

// Diagnostics collects non-fatal warnings (spec.md §7): useless lexer rules,
// keyword PHF fallback notices. It never aborts the run.
type Diagnostics struct {
	Warnings []string
}

func (d *Diagnostics) Warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Flush writes accumulated warnings to w, one per line, wrapped the same way
// FullMessage wraps fatal errors.
func (d *Diagnostics) Flush(w interface{ Write([]byte) (int, error) }) {
	for _, warning := range d.Warnings {
		line := rosed.Edit("warning: " + warning).Wrap(100).String()
		w.Write([]byte(line + "\n"))
	}
}
