// Package project implements component L, the orchestrator: it loads a
// grammar description, drives the lexer pipeline (A-E) and the parser
// pipeline (F-K) to completion, and hands the finished tables to whatever
// emit.Sink the caller chose (spec.md §4.L).
package project

import (
	"github.com/dekarrin/gentab/internal/automaton"
	"github.com/dekarrin/gentab/internal/emit"
	"github.com/dekarrin/gentab/internal/grammarfile"
	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/lexgen"
	"github.com/dekarrin/gentab/internal/parsergen"
	"github.com/dekarrin/gentab/internal/regex"
	"github.com/dekarrin/gentab/internal/symbol"
	"github.com/dekarrin/gentab/internal/util"
)

// Options configures one compilation run (spec.md §4.L orchestrator
// sequencing, §6 command surface namespace/prefix flags).
type Options struct {
	LexerNamespace  string
	LexerPrefix     string
	ParserNamespace string
	ParserPrefix    string

	// KeywordThreshold is the maximum distinct-path count, summed over all
	// DFA states accepting a rule, for which that rule is promoted to a
	// keyword lookup (spec.md §4.C, §9 Open Question). 0 disables keyword
	// promotion entirely.
	KeywordThreshold int
}

// DefaultOptions returns the namespace/prefix defaults of spec.md §6.
func DefaultOptions() Options {
	return Options{
		LexerNamespace:  "ll",
		LexerPrefix:     "LL",
		ParserNamespace: "pp",
		ParserPrefix:    "PP",
	}
}

// Project owns one grammar's full compile run.
type Project struct {
	Opts Options
	Diag gtberr.Diagnostics

	file *grammarfile.File
}

// Load parses a grammar description and returns a Project ready to Compile.
func Load(filename, src string, opts Options) (*Project, error) {
	f, err := grammarfile.Parse(filename, src)
	if err != nil {
		return nil, err
	}
	return &Project{Opts: opts, file: f}, nil
}

// Compile runs the full A-through-L pipeline and hands the result to sink
// (spec.md §4.L). Lexer and parser compilation are independent once the
// grammar is loaded and are run lexer-first to match the orchestrator
// sequencing spec.md §4.L documents.
func (p *Project) Compile(sink emit.Sink) error {
	lex, err := p.compileLexer()
	if err != nil {
		return err
	}
	parser, err := p.compileParser()
	if err != nil {
		return err
	}
	if err := sink.EmitLexer(lex); err != nil {
		return err
	}
	return sink.EmitParser(parser)
}

func (p *Project) compileLexer() (emit.LexerTables, error) {
	errTerm := p.file.Terminals.Error()
	if errTerm == nil {
		return emit.LexerTables{}, gtberr.New(gtberr.Location{}, "grammar must declare exactly one {error} terminal")
	}

	g := automaton.NewGraph()
	g.Start = g.AddState()

	builder := regex.NewBuilder(g, p.file.Fragments)
	for _, rule := range p.file.LexRules {
		term := p.file.Terminals.Get(rule.Terminal)
		if term == nil {
			return emit.LexerTables{}, gtberr.New(rule.Loc, "lexer rule references unknown terminal %q", rule.Terminal)
		}
		begin := g.AddState()
		g.AddEps(g.Start, begin)
		end := g.AddState()
		if err := builder.Build(rule.Pattern, begin, end); err != nil {
			return emit.LexerTables{}, gtberr.New(rule.Loc, "%s", err.Error())
		}
		g.SetRule(end, &automaton.Rule{Order: rule.Order, Loc: rule.Loc, Terminal: term})
	}

	dfa := lexgen.Build(g)
	lexgen.ComputePathCounts(dfa)
	keywords := lexgen.ExtractKeywords(dfa, p.Opts.KeywordThreshold, errTerm, &p.Diag)
	_ = keywords // consumed only for diagnostics in this pipeline; the emitted tables encode keyword paths implicitly via the minimized accept states.

	dfa = lexgen.Minimize(dfa)
	dfa = lexgen.Renumber(dfa)
	eq := lexgen.ComputeEqClasses(dfa)

	// Snapshot which (state, byte) transitions were blank before
	// InjectErrorState mutates them all to point at the new error state, so
	// BuildTables can still tell a "real" transition from a
	// redirected-from-dead one.
	wasDeadSnapshot := make([][256]bool, len(dfa.States))
	for s, st := range dfa.States {
		for b, t := range st.Trans {
			wasDeadSnapshot[s][b] = t == -1
		}
	}
	dfa = lexgen.InjectErrorState(dfa, errTerm)
	errState := len(dfa.States) - 1
	wasDead := func(state, b int) bool {
		if state >= len(wasDeadSnapshot) {
			return false
		}
		return wasDeadSnapshot[state][b]
	}

	tables := lexgen.BuildTables(dfa, eq, wasDead, errState)

	out := emit.LexerTables{
		Namespace:   p.Opts.LexerNamespace,
		Prefix:      p.Opts.LexerPrefix,
		ByteClass:   eq.Class,
		ClassStride: eq.NumClass,
		TransTable:  tables.TransTable,
		AcceptTable: tables.AcceptTable,
	}
	out.FinalTransTable = make([][]int, len(tables.TransTable))
	for i, row := range tables.TransTable {
		final := make([]int, len(row))
		for j, entry := range row {
			final[j] = entry >> 1
		}
		out.FinalTransTable[i] = final
	}
	for _, name := range p.file.Terminals.Names() {
		t := p.file.Terminals.Get(name)
		out.Terminals = append(out.Terminals, terminalInfo(t))
	}
	return out, nil
}

func terminalInfo(t *symbol.Terminal) emit.TerminalInfo {
	return emit.TerminalInfo{
		Name:     t.Name,
		ImplName: t.ImplName,
		Value:    t.Value,
		IsError:  t.IsError,
		IsEOF:    t.IsEOF,
	}
}

func (p *Project) compileParser() (emit.ParserTables, error) {
	if len(p.file.Exposed) == 0 {
		return emit.ParserTables{}, gtberr.New(gtberr.Location{}, "grammar exposes no nonterminal; add a [parser.expose] section")
	}

	g, err := parsergen.Instantiate(p.file, p.file.Exposed)
	if err != nil {
		return emit.ParserTables{}, err
	}

	// spec.md §4.I: nullable elimination, left-recursion elimination,
	// left-factoring, and shape-merging interact, so the schedule runs them
	// to a fixed point (bounded defensively) before the one-shot unreachable
	// filter at the end.
	for pass := 0; pass < 20; pass++ {
		before := len(g.Order)
		parsergen.EliminateNullables(g)
		parsergen.EliminateLeftRecursion(g)
		parsergen.LeftFactor(g)
		if err := parsergen.EliminateUnitProductions(g); err != nil {
			return emit.ParserTables{}, err
		}
		parsergen.EliminateSingletons(g)
		parsergen.MergeEquivalentShapes(g)
		if len(g.Order) == before {
			break
		}
	}
	parsergen.FilterUnreachable(g)

	lh, err := parsergen.BuildLHTable(g)
	if err != nil {
		return emit.ParserTables{}, err
	}
	recoverySets := parsergen.BuildRecoverySets(g)

	out := emit.ParserTables{
		Namespace:        p.Opts.ParserNamespace,
		Prefix:           p.Opts.ParserPrefix,
		StateCount:       len(lh.States),
		TokenCount:       p.file.Terminals.Len(),
		EntryStates:      lh.Entries,
		TerminalTypeName: "token",
		Header:           p.file.Header,
		Source:           p.file.Source,
	}

	megas := collectMegaActions(lh)
	out.ActionOpcodes = make([]emit.ActionOpcode, 0, len(megas))
	for _, m := range megas {
		out.ActionOpcodes = append(out.ActionOpcodes, opcodeFor(m))
	}

	out.BaseOffset = make([]int, len(lh.States))
	terminalNames := p.file.Terminals.Names()
	for _, st := range lh.States {
		out.BaseOffset[st.ID] = len(out.Dispatch)
		for _, tname := range terminalNames {
			edge := st.Edges[tname]
			if edge == nil {
				edge = st.Default
			}
			if edge == nil {
				out.Dispatch = append(out.Dispatch, emit.ParserTransition{})
				continue
			}
			out.Dispatch = append(out.Dispatch, dispatchFor(edge))
		}
	}

	out.SyncBase = make([]int, len(lh.States))
	for _, st := range lh.States {
		out.SyncBase[st.ID] = len(out.SyncDispatch)
		rs := recoverySets[st.NonTerm]
		for _, tname := range terminalNames {
			idx := -1
			if rs != nil {
				if rs.Insert[tname] {
					idx = len(out.SyncEntries)
					out.SyncEntries = append(out.SyncEntries, emit.SyncEntry{Cost: rs.InsertCost()})
				} else if rs.Sync[tname] {
					idx = len(out.SyncEntries)
					out.SyncEntries = append(out.SyncEntries, emit.SyncEntry{Cost: rs.SkipCost()})
				}
			}
			out.SyncDispatch = append(out.SyncDispatch, idx)
		}
	}

	return out, nil
}

// collectMegaActions gathers every distinct *parsergen.MegaAction reachable
// from any state's edges, in deterministic (state, then step) discovery
// order, matching the depth-first visitation spec.md §4.J specifies for
// assigning megaaction/state indices.
func collectMegaActions(lh *parsergen.LHTable) []*parsergen.MegaAction {
	seen := map[int]bool{}
	var order []*parsergen.MegaAction
	visitEdge := func(e *parsergen.LHEdge) {
		if e == nil {
			return
		}
		for _, step := range e.Steps {
			if !seen[step.ID] {
				seen[step.ID] = true
				order = append(order, step)
			}
		}
	}
	for _, st := range lh.States {
		for _, name := range util.OrderedKeys(st.Edges) {
			visitEdge(st.Edges[name])
		}
		visitEdge(st.Default)
	}
	return order
}

func opcodeFor(m *parsergen.MegaAction) emit.ActionOpcode {
	switch m.Kind {
	case parsergen.MAShift:
		return emit.ActionOpcode{ID: m.ID, Name: emit.OpShift}
	case parsergen.MACall:
		return emit.ActionOpcode{ID: m.ID, Name: "call"}
	default:
		return emit.ActionOpcode{ID: m.ID, Name: "action"}
	}
}

func dispatchFor(e *parsergen.LHEdge) emit.ParserTransition {
	t := emit.ParserTransition{}
	depth := 0
	for _, step := range e.Steps {
		if step.Kind == parsergen.MAShift {
			t.Shift = true
		}
		if depth < 4 {
			t.States[depth] = step.ID
			depth++
		}
	}
	t.StackDepth = depth
	if len(e.Steps) > 0 {
		t.MegaAction = e.Steps[0].ID
	}
	return t
}
