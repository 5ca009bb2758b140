// Package symbol implements the Terminal data model of spec.md §3: the
// semantic tags a lexer rule produces and the value-assignment pass that
// gives each one a unique, lazily chosen integer.
package symbol

import (
	"github.com/dekarrin/gentab/internal/gtberr"
)

// Terminal is a semantic tag for a lexical token. Values are unique within a
// grammar; at most one Terminal may carry IsError, at most one IsEOF.
type Terminal struct {
	Loc gtberr.Location

	// Name is the user-visible name (e.g. "NUM").
	Name string

	// ImplName is the implementation-facing name used by the emitter; when
	// empty, Name is used.
	ImplName string

	// Value is the integer value assigned to the terminal; it is meaningful
	// only once HasValue is true (see AssignValues).
	Value int

	// HasValue records whether Value holds an assigned value: the grammar
	// loader sets it for a value written in the grammar source, and
	// AssignValues sets it for every terminal it assigns a value to.
	HasValue bool

	Skip    bool
	IsError bool
	IsEOF   bool
}

// Table owns the terminal set for one grammar, keyed by Name, and enforces
// the uniqueness invariants of spec.md §3.
type Table struct {
	order []string
	byName map[string]*Terminal
}

func NewTable() *Table {
	return &Table{byName: make(map[string]*Terminal)}
}

// Add registers t. Returns a semantic error if a terminal with the same name
// already exists (spec.md §7: "duplicate terminal/fragment definitions").
func (t *Table) Add(term Terminal) error {
	if _, exists := t.byName[term.Name]; exists {
		return gtberr.New(term.Loc, "duplicate terminal definition: %q", term.Name)
	}
	cp := term
	t.byName[term.Name] = &cp
	t.order = append(t.order, term.Name)
	return nil
}

// Get returns the terminal registered under name, or nil.
func (t *Table) Get(name string) *Terminal {
	return t.byName[name]
}

// Names returns terminal names in declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len is the number of registered terminals.
func (t *Table) Len() int {
	return len(t.order)
}

// Error returns the designated error terminal, or nil if none was declared.
func (t *Table) Error() *Terminal {
	for _, name := range t.order {
		if t.byName[name].IsError {
			return t.byName[name]
		}
	}
	return nil
}

// EOF returns the designated EOF terminal, or nil if none was declared.
func (t *Table) EOF() *Terminal {
	for _, name := range t.order {
		if t.byName[name].IsEOF {
			return t.byName[name]
		}
	}
	return nil
}

// Validate enforces the §3 invariants eagerly, the way
// jellycc/project/parser.py checks them immediately after the [terminals]
// section is parsed rather than deferring to orchestration.
func (t *Table) Validate() error {
	errCount, eofCount := 0, 0
	var errLoc, eofLoc gtberr.Location
	for _, name := range t.order {
		term := t.byName[name]
		if term.IsError {
			errCount++
			errLoc = term.Loc
		}
		if term.IsEOF {
			eofCount++
			eofLoc = term.Loc
		}
	}
	if errCount > 1 {
		return gtberr.New(errLoc, "more than one terminal is marked {error}")
	}
	if eofCount > 1 {
		return gtberr.New(eofLoc, "more than one terminal is marked {eof}")
	}
	return nil
}

// AssignValues assigns each terminal lacking an explicit value the smallest
// unused non-negative integer, in declaration order, per spec.md §3/§4.L and
// jellycc/project/project.py.
func (t *Table) AssignValues() error {
	taken := make(map[int]bool)
	for _, name := range t.order {
		term := t.byName[name]
		if term.HasValue {
			if taken[term.Value] {
				return gtberr.New(term.Loc, "terminal value %d assigned to more than one terminal", term.Value)
			}
			taken[term.Value] = true
		}
	}

	next := 0
	nextFree := func() int {
		for taken[next] {
			next++
		}
		v := next
		taken[v] = true
		next++
		return v
	}

	for _, name := range t.order {
		term := t.byName[name]
		if !term.HasValue {
			term.Value = nextFree()
			term.HasValue = true
		}
	}
	return nil
}
