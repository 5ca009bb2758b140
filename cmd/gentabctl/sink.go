package main

import (
	"fmt"
	"os"

	"github.com/dekarrin/gentab/internal/emit"
)

// fileSink writes the emitted table contract to the requested paths as a
// plain textual dump. Turning these tables into real lexer/parser source
// code is the opaque external emitter's job (spec.md §1, §6 Non-goals);
// this Sink exists only to give the command surface's --lexer-*/--parser-*
// flags somewhere real to write, the way a dry run gives them nowhere.
type fileSink struct {
	lexerHeader  string
	lexerSource  string
	parserHeader string
	parserSource string
}

func (s fileSink) EmitLexer(t emit.LexerTables) error {
	if s.lexerHeader != "" {
		if err := writeFile(s.lexerHeader, lexerHeaderDump(t)); err != nil {
			return err
		}
	}
	if s.lexerSource != "" {
		if err := writeFile(s.lexerSource, lexerSourceDump(t)); err != nil {
			return err
		}
	}
	return nil
}

func (s fileSink) EmitParser(t emit.ParserTables) error {
	if s.parserHeader != "" {
		if err := writeFile(s.parserHeader, parserHeaderDump(t)); err != nil {
			return err
		}
	}
	if s.parserSource != "" {
		if err := writeFile(s.parserSource, parserSourceDump(t)); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func lexerHeaderDump(t emit.LexerTables) string {
	return fmt.Sprintf("// lexer tables: namespace=%s prefix=%s classes=%d states=%d terminals=%d\n",
		t.Namespace, t.Prefix, t.ClassStride, len(t.AcceptTable), len(t.Terminals))
}

func lexerSourceDump(t emit.LexerTables) string {
	var b fmtBuilder
	b.Printf("# %s_%s lexer tables\n", t.Namespace, t.Prefix)
	b.Printf("byte_class = %v\n", t.ByteClass)
	b.Printf("class_stride = %d\n", t.ClassStride)
	b.Printf("trans_table = %v\n", t.TransTable)
	b.Printf("final_trans_table = %v\n", t.FinalTransTable)
	b.Printf("accept_table = %v\n", t.AcceptTable)
	for _, term := range t.Terminals {
		b.Printf("terminal %s = %d (error=%v eof=%v)\n", term.Name, term.Value, term.IsError, term.IsEOF)
	}
	return b.String()
}

func parserHeaderDump(t emit.ParserTables) string {
	return fmt.Sprintf("// parser tables: namespace=%s prefix=%s states=%d tokens=%d entries=%d\n",
		t.Namespace, t.Prefix, t.StateCount, t.TokenCount, len(t.EntryStates))
}

func parserSourceDump(t emit.ParserTables) string {
	var b fmtBuilder
	b.Printf("# %s_%s parser tables\n", t.Namespace, t.Prefix)
	b.Printf("state_count = %d\n", t.StateCount)
	b.Printf("token_count = %d\n", t.TokenCount)
	b.Printf("base_offset = %v\n", t.BaseOffset)
	for name, id := range t.EntryStates {
		b.Printf("entry %s = %d\n", name, id)
	}
	for _, op := range t.ActionOpcodes {
		b.Printf("action %d = %s\n", op.ID, op.Name)
	}
	b.Printf("sync_base = %v\n", t.SyncBase)
	b.Printf("sync_dispatch = %v\n", t.SyncDispatch)
	if t.Header != "" {
		b.Printf("--- header ---\n%s\n", t.Header)
	}
	if t.Source != "" {
		b.Printf("--- source ---\n%s\n", t.Source)
	}
	return b.String()
}

// fmtBuilder is a tiny string accumulator so the dump
// functions above read as a flat sequence of Printf calls.
type fmtBuilder struct {
	s string
}

func (b *fmtBuilder) Printf(format string, args ...any) {
	b.s += fmt.Sprintf(format, args...)
}

func (b *fmtBuilder) String() string { return b.s }
