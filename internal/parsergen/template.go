package parsergen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dekarrin/gentab/internal/grammarfile"
	"github.com/dekarrin/gentab/internal/gtberr"
)

// captureRefRe finds "$name" references inside raw action source text, the
// way jellycc/parser/template.py's CaptureRe does, to validate that every
// referenced capture actually exists on the production.
var captureRefRe = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z_0-9]*)`)

type typeStackEntry struct {
	capture string
	typ     *TypeVar
}

// instantiator expands grammarfile's template nonterminals into the flat
// Grammar IR, memoizing each (name, args) instantiation (spec.md §4.G),
// grounded on jellycc/parser/template.py's TemplateNonTerminal/instantiate.
type instantiator struct {
	templates   map[string]*grammarfile.NonterminalRule
	instances   map[string]*NonTerminal
	grammar     *Grammar
	building    map[string]bool
	nextAction  int
	constraints []TypeConstraint
}

// Instantiate expands every reachable template nonterminal starting from
// startNames (each with zero template arguments — only un-parameterized
// nonterminals may be a grammar entry point) into a flat Grammar. A grammar
// may expose more than one entry point (spec.md §4.F "[parser.expose]");
// startNames[0] becomes Grammar.Start for callers that only care about one.
func Instantiate(file *grammarfile.File, startNames []string) (*Grammar, error) {
	if len(startNames) == 0 {
		return nil, gtberr.New(gtberr.Location{}, "grammar exposes no entry-point nonterminal")
	}
	in := &instantiator{
		templates: make(map[string]*grammarfile.NonterminalRule),
		instances: make(map[string]*NonTerminal),
		grammar:   NewGrammar(file.Terminals),
		building:  make(map[string]bool),
	}
	for i := range file.Nonterminals {
		rule := &file.Nonterminals[i]
		if _, exists := in.templates[rule.Name]; exists {
			return nil, gtberr.New(rule.Loc, "duplicate nonterminal definition: %q", rule.Name)
		}
		in.templates[rule.Name] = rule
	}

	for _, startName := range startNames {
		start, ok := in.templates[startName]
		if !ok {
			return nil, gtberr.New(gtberr.Location{}, "entry-point nonterminal %q not defined", startName)
		}
		if len(start.Params) != 0 {
			return nil, gtberr.New(start.Loc, "entry-point nonterminal %q may not be template-parameterized", startName)
		}

		nt, err := in.instantiate(startName, nil)
		if err != nil {
			return nil, err
		}
		in.grammar.Roots = append(in.grammar.Roots, nt.Name)
		if in.grammar.Start == nil {
			in.grammar.Start = nt
		}
	}

	// Type constraints are collected across the whole instance graph and
	// solved in one deferred pass, rather than unified online as each
	// production is visited, so a nonterminal's type is settled only once
	// every one of its rules (reachable through any instantiation order)
	// has contributed its constraint.
	if err := ResolveTypes(in.constraints); err != nil {
		return nil, err
	}
	return in.grammar, nil
}

func renderInstanceName(base string, args []int) string {
	if len(args) == 0 {
		return base
	}
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return base + "[" + strings.Join(parts, ",") + "]"
}

func (in *instantiator) instantiate(name string, args []int) (*NonTerminal, error) {
	key := renderInstanceName(name, args)
	if cached, ok := in.instances[key]; ok {
		return cached, nil
	}
	if in.building[key] {
		return nil, gtberr.New(gtberr.Location{}, "unbounded template recursion instantiating %q", key)
	}

	tmpl, ok := in.templates[name]
	if !ok {
		return nil, gtberr.New(gtberr.Location{}, "nonterminal %q not defined", name)
	}
	if len(args) != len(tmpl.Params) {
		return nil, gtberr.New(tmpl.Loc, "mismatched template argument count for %q: got %d, expected %d", name, len(args), len(tmpl.Params))
	}

	nt := &NonTerminal{Loc: tmpl.Loc, Name: key, Type: NewTypeVariable(tmpl.Loc, key)}
	in.instances[key] = nt
	in.grammar.Add(nt)
	in.building[key] = true
	defer delete(in.building, key)

	env := make(map[string]int, len(args))
	for i, p := range tmpl.Params {
		env[p] = args[i]
	}

	for _, prod := range tmpl.Productions {
		if prod.Where != nil {
			v, err := prod.Where.Eval(env)
			if err != nil {
				return nil, err
			}
			if v == 0 {
				continue
			}
		}
		instProd, err := in.instantiateProduction(prod, env)
		if err != nil {
			return nil, err
		}
		nt.Rules = append(nt.Rules, instProd)

		produced := productionType(instProd)
		in.constraints = append(in.constraints, TypeConstraint{Loc: prod.Loc, NT: nt, Want: nt.Type, Have: produced})
	}

	return nt, nil
}

// productionType returns the type a production contributes to its owning
// nonterminal: the lone captured/action value when exactly one is present,
// Void otherwise (spec.md §4.H consumption of the template instantiator's
// per-production type stack).
func productionType(p *Production) *TypeVar {
	if p.Action != nil {
		return p.Action.Type
	}
	var last *TypeVar
	count := 0
	for _, s := range p.Symbols {
		if s.Capture == "" {
			continue
		}
		count++
		if s.IsTerminal() {
			last = NewTypeConstant(s.Loc, "token")
		} else {
			last = s.NonTerm.Type
		}
	}
	if count == 1 {
		return last
	}
	return NewTypeVoid(p.Loc)
}

func (in *instantiator) instantiateProduction(prod grammarfile.Production, env map[string]int) (*Production, error) {
	out := &Production{Loc: prod.Loc}
	var stack []typeStackEntry

	for _, sym := range prod.Symbols {
		if sym.Action != nil {
			if out.Action != nil {
				return nil, gtberr.New(sym.Action.Loc, "a production may carry at most one action block")
			}
			action, err := in.instantiateAction(sym.Action, stack)
			if err != nil {
				return nil, err
			}
			out.Action = action
			stack = []typeStackEntry{{capture: "", typ: action.Type}}
			continue
		}

		ref, typ, err := in.instantiateSymbol(sym, env)
		if err != nil {
			return nil, err
		}
		out.Symbols = append(out.Symbols, ref)
		stack = append(stack, typeStackEntry{capture: sym.Capture, typ: typ})
	}

	return out, nil
}

func (in *instantiator) instantiateSymbol(sym grammarfile.Symbol, env map[string]int) (SymbolRef, *TypeVar, error) {
	if _, isTemplate := in.templates[sym.Name]; isTemplate {
		vals := make([]int, 0, len(sym.Args))
		for i := range sym.Args {
			v, err := sym.Args[i].Eval(env)
			if err != nil {
				return SymbolRef{}, nil, err
			}
			vals = append(vals, v)
		}
		nt, err := in.instantiate(sym.Name, vals)
		if err != nil {
			return SymbolRef{}, nil, err
		}
		return SymbolRef{Loc: sym.Loc, Capture: sym.Capture, NonTerm: nt}, nt.Type, nil
	}

	term := in.grammar.Terminals.Get(sym.Name)
	if term == nil {
		return SymbolRef{}, nil, gtberr.New(sym.Loc, "unresolved name %q", sym.Name)
	}
	if len(sym.Args) != 0 {
		return SymbolRef{}, nil, gtberr.New(sym.Loc, "terminal %q does not accept template arguments", sym.Name)
	}
	return SymbolRef{Loc: sym.Loc, Capture: sym.Capture, Terminal: term}, NewTypeConstant(sym.Loc, "token"), nil
}

func (in *instantiator) instantiateAction(raw *grammarfile.ActionText, stack []typeStackEntry) (*Action, error) {
	text := strings.TrimSpace(raw.Text)
	action := &Action{Loc: raw.Loc, ID: in.nextAction, Text: raw.Text, Type: NewTypeVariable(raw.Loc, "")}
	in.nextAction++

	known := make(map[string]bool)
	for _, e := range stack {
		action.Captures = append(action.Captures, e.capture)
		if e.capture != "" {
			known[e.capture] = true
			if text == "$"+e.capture {
				if err := Unify(raw.Loc, action.Type, e.typ); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, m := range captureRefRe.FindAllStringSubmatch(text, -1) {
		if !known[m[1]] {
			return nil, gtberr.New(raw.Loc, "unresolved capture reference %q", m[1])
		}
	}

	return action, nil
}
