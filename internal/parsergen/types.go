package parsergen

import "github.com/dekarrin/gentab/internal/gtberr"

// TypeKind distinguishes the three type forms of spec.md §4.H: an
// unconstrained variable, a named constant (a concrete emitted type name),
// or Void (a nonterminal/action that produces no value).
type TypeKind int

const (
	TypeVariable TypeKind = iota
	TypeConstant
	TypeVoid
)

// TypeVar is a union-find node representing one type in the constraint
// graph: every NonTerminal and every Action gets one, and unification
// merges nodes that a TypeConstraint says must agree (spec.md §4.H),
// grounded on jellycc/parser/grammar.py's Type/TypeVariable/unify_type and
// the teacher's automaton/dfa.go DFA-state "representative" merge idiom for
// the parent-pointer path-compression shape.
type TypeVar struct {
	Loc    gtberr.Location
	Name   string // advisory, for diagnostics; "" for anonymous variables
	Kind   TypeKind
	Const  string // emitted type name, when Kind == TypeConstant
	parent *TypeVar
}

func NewTypeVariable(loc gtberr.Location, name string) *TypeVar {
	return &TypeVar{Loc: loc, Name: name, Kind: TypeVariable}
}

func NewTypeConstant(loc gtberr.Location, name string) *TypeVar {
	return &TypeVar{Loc: loc, Kind: TypeConstant, Const: name}
}

func NewTypeVoid(loc gtberr.Location) *TypeVar {
	return &TypeVar{Loc: loc, Kind: TypeVoid}
}

// find returns the representative of t's equivalence class, compressing the
// path as it walks (spec.md §9's union-find suggestion for the teacher's
// representative-state merge idiom).
func (t *TypeVar) find() *TypeVar {
	root := t
	for root.parent != nil {
		root = root.parent
	}
	for t.parent != nil {
		next := t.parent
		t.parent = root
		t = next
	}
	return root
}

// Resolved returns the representative type's concrete description.
func (t *TypeVar) Resolved() *TypeVar { return t.find() }

// TypeConstraint records that a nonterminal's declared type must unify with
// the type produced by one of its instantiated rules (spec.md §4.H),
// grounded on jellycc/parser/template.py's TypeConstraint.
type TypeConstraint struct {
	Loc  gtberr.Location
	NT   *NonTerminal
	Want *TypeVar // the nonterminal's own type
	Have *TypeVar // the type the rule's action/last-symbol actually produces
}

// Unify merges the equivalence classes of a and b, per spec.md §4.H:
// Void unifies only with Void; two Constants must name the same type;
// a Variable unifies with anything by adopting the other side's kind.
func Unify(loc gtberr.Location, a, b *TypeVar) error {
	ra, rb := a.find(), b.find()
	if ra == rb {
		return nil
	}
	switch {
	case ra.Kind == TypeVariable:
		ra.parent = rb
		return nil
	case rb.Kind == TypeVariable:
		rb.parent = ra
		return nil
	case ra.Kind == TypeVoid && rb.Kind == TypeVoid:
		ra.parent = rb
		return nil
	case ra.Kind == TypeConstant && rb.Kind == TypeConstant:
		if ra.Const != rb.Const {
			return gtberr.New(loc, "type mismatch: %q vs %q", ra.Const, rb.Const)
		}
		ra.parent = rb
		return nil
	default:
		return gtberr.New(loc, "incompatible types in unification")
	}
}

// ResolveTypes runs every collected constraint in the order it was recorded
// (a single pass suffices since Unify is a plain union-find merge, not a
// constraint-generating rewrite) and returns the first unification error
// encountered, if any (spec.md §4.H). Instantiate calls this once, after the
// whole template instance graph has been built, rather than unifying each
// production's contribution as it is visited.
func ResolveTypes(constraints []TypeConstraint) error {
	for _, c := range constraints {
		if err := Unify(c.Loc, c.Want, c.Have); err != nil {
			return err
		}
	}
	return nil
}
