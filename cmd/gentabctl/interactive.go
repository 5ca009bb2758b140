package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dekarrin/gentab/internal/project"
)

// runInteractive opens a readline session for repeatedly recompiling
// grammarPath: "compile" (or an empty line) reruns the pipeline against the
// file's current contents on disk, and "quit" ends the session. This mirrors
// the teacher's InteractiveCommandReader idiom (read a line, trim it,
// dispatch) rather than introducing a new input-loop shape.
func runInteractive(grammarPath string, opts project.Options) int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "gentabctl> ",
		HistoryFile: "",
	})
	if err != nil {
		fmt.Printf("ERROR: could not start interactive session: %s\n", err)
		return ExitUsageError
	}
	defer rl.Close()

	fmt.Printf("interactive session on %s (commands: compile, quit)\n", grammarPath)
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				return ExitSuccess
			}
			fmt.Printf("ERROR: %s\n", err)
			return ExitUsageError
		}

		switch strings.TrimSpace(line) {
		case "", "compile":
			if err := compileOnce(grammarPath, opts); err != nil {
				reportError(err)
			} else {
				fmt.Println("ok")
			}
		case "quit", "exit":
			return ExitSuccess
		default:
			fmt.Printf("unrecognized command %q (try: compile, quit)\n", line)
		}
	}
}
