package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/wudi/magpie/module"
	"github.com/wudi/magpie/values"
	"github.com/wudi/magpie/version"
)

// runREPL implements §4.7's sticky <repl> module: each accepted line (or
// multi-line block) compiles into the same module's body and runs against
// its persistent variable table, so `val`s from one evaluation are visible
// to the next — ported from the teacher's needsMoreInput buffering loop,
// on chzyer/readline instead of bufio.Scanner for history and line editing.
func runREPL(opts runOptions) error {
	fmt.Println("magpie", version.Version())

	rl, err := readline.New("magpie> ")
	if err != nil {
		return &cliError{exitRuntimeError, err}
	}
	defer rl.Close()

	v := newConfiguredVM(opts)
	v.InstallErrorConsumer(func(errVal *values.Value) {
		fmt.Fprintln(os.Stderr, "uncaught error:", errVal.String())
	})

	fe := frontendFactory()
	repl := module.New("<repl>", "<repl>")

	var buf strings.Builder
	for {
		if buf.Len() == 0 {
			rl.SetPrompt("magpie> ")
		} else {
			rl.SetPrompt("...     ")
		}

		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			buf.Reset()
			continue
		case err == io.EOF:
			if opts.gcStats {
				fmt.Fprintln(os.Stderr, "gc:", v.Heap.Stats())
			}
			if opts.debugLevel != 0 {
				fmt.Fprint(os.Stderr, v.DebugReport(10))
			}
			return nil
		case err != nil:
			return &cliError{exitRuntimeError, err}
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		if needsMoreInput(buf.String()) {
			continue
		}

		source := buf.String()
		buf.Reset()
		if strings.TrimSpace(source) == "" {
			continue
		}

		body, _, err := fe.Compile([]byte(source), "<repl>")
		if err != nil {
			fmt.Fprintln(os.Stderr, "compile error:", err)
			continue
		}
		repl.Body = body

		result, err := v.RunModule(repl)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		if result != nil {
			fmt.Println(result.String())
		}
	}
}

// needsMoreInput is the REPL's line-continuation heuristic: unclosed
// parens/brackets/quotes or an excess of `do` over `end` keywords means the
// block isn't finished yet. Adapted from the teacher's brace-counting
// version of the same heuristic, swapping PHP's `{ }` blocks for Magpie's
// `do ... end` keyword pairing (§8 S2's `fn() -> do ... end`).
func needsMoreInput(code string) bool {
	openParens, openBrackets, doDepth := 0, 0, 0
	inSingleQuote, inDoubleQuote, escaped := false, false, false

	words := strings.FieldsFunc(code, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '(' || r == ')' || r == '[' || r == ']'
	})
	for _, w := range words {
		switch w {
		case "do":
			doDepth++
		case "end":
			doDepth--
		}
	}

	for _, ch := range code {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case inSingleQuote:
			if ch == '\'' {
				inSingleQuote = false
			}
		case inDoubleQuote:
			if ch == '"' {
				inDoubleQuote = false
			}
		case ch == '\'':
			inSingleQuote = true
		case ch == '"':
			inDoubleQuote = true
		case ch == '(':
			openParens++
		case ch == ')':
			openParens--
		case ch == '[':
			openBrackets++
		case ch == ']':
			openBrackets--
		}
	}

	return openParens > 0 || openBrackets > 0 || doDepth > 0 || inSingleQuote || inDoubleQuote
}
