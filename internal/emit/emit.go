// Package emit defines the contract between this generator and the opaque,
// out-of-scope code emitter (spec.md §6 "Emitted tables"). Nothing in this
// module interprets or executes these tables; internal/project fills them in
// and hands the result to whatever Sink the command surface selected.
package emit

// LexerTables is the lexer-side artifact contract: everything an external
// code emitter needs to print a table-driven scanner, with no knowledge of
// how the tables were derived.
type LexerTables struct {
	Namespace string
	Prefix    string

	// ByteClass maps each of the 256 input bytes to its equivalence-class
	// index (spec.md §4.E).
	ByteClass [256]int

	// ClassStride is the number of distinct equivalence classes, i.e. the
	// number of rows of TransTable (each row holds one entry per state).
	ClassStride int

	// TransTable is [class][state] -> (target<<1 | redirectedFromDead).
	TransTable [][]int

	// AcceptTable holds the terminal value accepted at each state, 0 for
	// non-accepting states.
	AcceptTable []int

	// FinalTransTable mirrors TransTable but strips the redirected-bit,
	// giving the emitter a plain target-state lookup for already-accepted
	// runs (spec.md §6 "final-transition table").
	FinalTransTable [][]int

	Terminals []TerminalInfo
}

// TerminalInfo is one entry of the lexer's terminal list: the emitter-facing
// view of a symbol.Terminal.
type TerminalInfo struct {
	Name     string
	ImplName string
	Value    int
	IsError  bool
	IsEOF    bool
}

// ParserTransition is one entry of a parser state's dispatch table: whether
// it shifts an input token, the megaaction id to run, and up to 4 state
// indices to push (right-to-left) before continuing (spec.md §4.J, §6).
type ParserTransition struct {
	Shift      bool
	StackDepth int
	MegaAction int
	States     [4]int
}

// ParserTables is the parser-side artifact contract.
type ParserTables struct {
	Namespace string
	Prefix    string

	StateCount int
	TokenCount int

	// BaseOffset is, per state, the starting index into Dispatch for that
	// state's per-token transitions.
	BaseOffset []int
	Dispatch   []ParserTransition

	// EntryStates maps an exposed nonterminal name to its LH-table entry
	// state index (spec.md §4.F "[parser.expose]").
	EntryStates map[string]int

	// Sync* hold the error-recovery tables of spec.md §4.K: per (state,
	// token) the recovery action to take, the action/state sequence to
	// run/push, and the assumed cost, keyed by the same ActionOpcode
	// sentinels the parser engine dispatches on.
	SyncDispatch []int
	SyncBase     []int
	SyncEntries  []SyncEntry

	// ActionOpcodes names every distinct megaaction by its opcode
	// (spec.md §6: shift, sync_skip, sync_insert, lec_insert, lec_remove,
	// lec_replace are reserved sentinels; all other opcodes are ordinary
	// user actions keyed by id).
	ActionOpcodes []ActionOpcode

	TerminalTypeName string
	Header           string
	Source           string
}

// SyncEntry is one error-recovery action/state sequence, referenced by
// index from SyncDispatch.
type SyncEntry struct {
	Actions []int
	States  []int
	Cost    int
}

// ActionOpcode kind sentinels, per spec.md §6.
const (
	OpShift = "shift"
	OpSyncSkip = "sync_skip"
	OpSyncInsert = "sync_insert"
	OpLecInsert = "lec_insert"
	OpLecRemove = "lec_remove"
	OpLecReplace = "lec_replace"
)

// ActionOpcode names one megaaction for the emitter: either a reserved
// sentinel (see the Op* constants), "call" for a call step, or "action" for
// an ordinary user action; the megaaction's id is in ID.
type ActionOpcode struct {
	ID   int
	Name string
}

// Sink receives the finished artifacts from internal/project's orchestrator.
// Everything downstream of Sink is out of scope for this generator
// (spec.md §1, §6): a Sink may print source files, serialize to a cache, or
// discard everything for a dry run.
type Sink interface {
	EmitLexer(LexerTables) error
	EmitParser(ParserTables) error
}

// NopSink implements Sink by discarding every artifact, the dry-run mode of
// spec.md §6 ("if no emit flags are given, the tool runs all analysis and
// exits 0 without writing files").
type NopSink struct{}

func (NopSink) EmitLexer(LexerTables) error   { return nil }
func (NopSink) EmitParser(ParserTables) error { return nil }
