/*
Gentabctl compiles a grammar description into lexer and parser tables.

It reads in a grammar file, runs the full regex/DFA and LL/LH table
pipelines, and either writes the resulting tables to the requested output
paths or, if no emit flags are given, performs a dry run: the grammar is
fully analyzed (every reported error is one that would occur on a real
run) and the process exits 0 without writing anything.

Usage:

	gentabctl [flags] GRAMMAR_FILE

The flags are:

	--lexer-header PATH / --lexer-source PATH
	    Write the lexer-side tables to PATH.

	--parser-header PATH / --parser-source PATH
	    Write the parser-side tables to PATH.

	--base-dir PATH
	    Base directory against which relative output paths are resolved.
	    Defaults to the current working directory. The written tables
	    contain no source-location references.

	--lexer-ns NAME / --lexer-prefix NAME (default "ll" / "LL")
	--parser-ns NAME / --parser-prefix NAME (default "pp" / "PP")
	    Namespace and macro-prefix used when writing tables.

	--config PATH
	    Load gentab.toml-style defaults from PATH before applying flags.

	-i, --interactive
	    After compiling once, drop into a readline-based session for
	    recompiling the same grammar file and inspecting diagnostics.

Exit code: 0 on success; non-zero with a diagnostic line
"path(line, col): message" on any reported error.

Gentabctl serve runs the same compile pipeline as a long-lived HTTP cache
instead of a one-shot run; see serve.go's doc comment for its flags.
*/
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dekarrin/gentab/internal/config"
	"github.com/dekarrin/gentab/internal/emit"
	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/project"
	"github.com/spf13/pflag"
)

const (
	ExitSuccess = iota
	ExitCompileError
	ExitUsageError
)

var (
	lexerHeader  = pflag.String("lexer-header", "", "write lexer tables (header form) to PATH")
	lexerSource  = pflag.String("lexer-source", "", "write lexer tables (source form) to PATH")
	parserHeader = pflag.String("parser-header", "", "write parser tables (header form) to PATH")
	parserSource = pflag.String("parser-source", "", "write parser tables (source form) to PATH")
	baseDir      = pflag.String("base-dir", "", "base directory for resolving relative output paths")
	lexerNS      = pflag.String("lexer-ns", "", "lexer namespace (default \"ll\")")
	lexerPrefix  = pflag.String("lexer-prefix", "", "lexer macro prefix (default \"LL\")")
	parserNS     = pflag.String("parser-ns", "", "parser namespace (default \"pp\")")
	parserPrefix = pflag.String("parser-prefix", "", "parser macro prefix (default \"PP\")")
	configPath   = pflag.String("config", "", "load defaults from a gentab.toml-style file")
	interactive  = pflag.BoolP("interactive", "i", false, "drop into a readline session after compiling")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		os.Exit(runServe(os.Args[2:]))
	}
	os.Exit(run())
}

func run() int {
	pflag.Parse()
	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gentabctl [flags] GRAMMAR_FILE")
		return ExitUsageError
	}
	grammarPath := pflag.Arg(0)

	if *baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			*baseDir = wd
		}
	}

	opts := project.DefaultOptions()
	if *configPath != "" {
		cfgSrc, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			return ExitUsageError
		}
		cfg, err := config.Load(string(cfgSrc))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			return ExitUsageError
		}
		opts = cfg.ProjectOptions()
		if *lexerHeader == "" {
			*lexerHeader = cfg.Lexer.Header
		}
		if *lexerSource == "" {
			*lexerSource = cfg.Lexer.Source
		}
		if *parserHeader == "" {
			*parserHeader = cfg.Parser.Header
		}
		if *parserSource == "" {
			*parserSource = cfg.Parser.Source
		}
	}
	applyFlagOverrides(&opts)

	if err := compileOnce(grammarPath, opts); err != nil {
		reportError(err)
		return ExitCompileError
	}

	if *interactive {
		return runInteractive(grammarPath, opts)
	}
	return ExitSuccess
}

func applyFlagOverrides(opts *project.Options) {
	if *lexerNS != "" {
		opts.LexerNamespace = *lexerNS
	}
	if *lexerPrefix != "" {
		opts.LexerPrefix = *lexerPrefix
	}
	if *parserNS != "" {
		opts.ParserNamespace = *parserNS
	}
	if *parserPrefix != "" {
		opts.ParserPrefix = *parserPrefix
	}
}

// compileOnce loads grammarPath, runs the full pipeline, and routes the
// result to a fileSink if any emit flag was given, or to emit.NopSink for a
// dry run (spec.md §6 "if no emit flags are given ... exits 0 without
// writing files").
func compileOnce(grammarPath string, opts project.Options) error {
	src, err := os.ReadFile(grammarPath)
	if err != nil {
		return err
	}
	p, err := project.Load(grammarPath, string(src), opts)
	if err != nil {
		return err
	}

	var sink emit.Sink = emit.NopSink{}
	if *lexerHeader != "" || *lexerSource != "" || *parserHeader != "" || *parserSource != "" {
		sink = fileSink{
			lexerHeader:  resolvePath(*lexerHeader),
			lexerSource:  resolvePath(*lexerSource),
			parserHeader: resolvePath(*parserHeader),
			parserSource: resolvePath(*parserSource),
		}
	}

	if err := p.Compile(sink); err != nil {
		return err
	}
	p.Diag.Flush(os.Stderr)
	return nil
}

func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(*baseDir, path)
}

func reportError(err error) {
	if se, ok := err.(*gtberr.SourceError); ok {
		fmt.Fprintln(os.Stderr, se.FullMessage())
		return
	}
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
}
