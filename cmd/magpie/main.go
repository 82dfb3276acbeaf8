// Command magpie is the interp/REPL entry point named in §6. Everything
// outside this package — lexing, parsing, compiling AST to chunks — is the
// named-but-unimplemented front end (§1); this binary wires a Frontend in
// (frontendFactory), drives module resolution and the scheduler, and maps
// outcomes onto the four exit codes §6 specifies.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/wudi/magpie/config"
	"github.com/wudi/magpie/frontend"
	"github.com/wudi/magpie/gc"
	"github.com/wudi/magpie/module"
	"github.com/wudi/magpie/values"
	"github.com/wudi/magpie/version"
	"github.com/wudi/magpie/vm"
)

// exitCode is the §6 process exit contract.
type exitCode int

const (
	exitOK exitCode = iota
	exitCompileError
	exitRuntimeError
	exitModuleError
)

// cliError pairs a diagnostic with the exit code it should produce, so
// main's single os.Exit call at the bottom is the only place that decides
// the process's fate.
type cliError struct {
	code exitCode
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// frontendFactory is the seam an embedder swaps to wire in a real
// lexer/parser/compiler; left as frontend.Unimplemented, every program
// fails to compile with frontend.ErrNoFrontend (exit 1), which is the
// honest behavior for a runtime whose front end is out of scope.
var frontendFactory = frontend.Unimplemented

func main() {
	app := &cli.Command{
		Name:  "magpie",
		Usage: "run a Magpie program, or launch the REPL with no arguments",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "print the version and exit",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a magpie.yaml run-configuration file",
				Value: "magpie.yaml",
			},
			&cli.BoolFlag{
				Name:  "gc-stats",
				Usage: "print GC occupancy/collection stats after the run",
			},
			&cli.StringFlag{
				Name:  "debug",
				Usage: "instruction profiling level: none, basic, detailed",
				Value: "none",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		// A bare (non-cliError) err only happens on a flag-parsing failure
		// before any module was even looked up; exitCompileError is the
		// closest of the four §6 codes to "the input was rejected".
		var ce *cliError
		code := exitCompileError
		if errors.As(err, &ce) {
			code = ce.code
		}
		fmt.Fprintln(os.Stderr, "magpie:", err)
		os.Exit(int(code))
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		fmt.Println(version.Version())
		return nil
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return &cliError{exitCompileError, fmt.Errorf("loading config: %w", err)}
	}
	opts := runOptions{
		cfg:        cfg,
		gcStats:    cmd.Bool("gc-stats"),
		debugLevel: parseDebugLevel(cmd.String("debug")),
	}

	args := cmd.Args().Slice()
	if len(args) > 0 {
		return runFile(args[0], opts)
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		return runREPL(opts)
	}

	source, err := io.ReadAll(os.Stdin)
	if err != nil {
		return &cliError{exitRuntimeError, err}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return &cliError{exitRuntimeError, err}
	}
	return runSource(source, "<stdin>", cwd, opts)
}

func parseDebugLevel(s string) vm.DebugLevel {
	switch s {
	case "basic":
		return vm.DebugBasic
	case "detailed":
		return vm.DebugDetailed
	default:
		return vm.DebugNone
	}
}

// coreLibDir resolves the config override, then MAGPIE_CORE_LIB, then falls
// back to {exeDir}/core (§6).
func coreLibDir(cfg *config.Config) string {
	if cfg.CoreLibPath != "" {
		return cfg.CoreLibPath
	}
	if p := os.Getenv("MAGPIE_CORE_LIB"); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return "core"
	}
	return filepath.Join(filepath.Dir(exe), "core")
}

// runOptions carries the ambient, non-semantic run settings magpie.yaml and
// its CLI overrides control: none of these affect a program's observable
// result, only its diagnostics and resource thresholds.
type runOptions struct {
	cfg        *config.Config
	gcStats    bool
	debugLevel vm.DebugLevel
}

func runFile(path string, opts runOptions) error {
	fe := frontendFactory()
	ld := newLoader(fe, filepath.Dir(path), coreLibDir(opts.cfg))
	modules, err := ld.loadEntry(path)
	if err != nil {
		return classifyLoadError(err)
	}
	return runModules(modules, opts)
}

func runSource(source []byte, label, programDir string, opts runOptions) error {
	fe := frontendFactory()
	body, importNames, err := fe.Compile(source, label)
	if err != nil {
		return &cliError{exitCompileError, err}
	}

	ld := newLoader(fe, programDir, coreLibDir(opts.cfg))
	m := module.New("main", label)
	m.Body = body
	ld.loaded["main"] = m
	for _, imp := range importNames {
		impPath, err := ld.resolve(imp)
		if err != nil {
			return &cliError{exitModuleError, err}
		}
		impSource, err := os.ReadFile(impPath)
		if err != nil {
			return &cliError{exitModuleError, &errResolution{name: imp}}
		}
		impModule, err := ld.load(imp, impPath, impSource)
		if err != nil {
			return classifyLoadError(err)
		}
		m.Imports = append(m.Imports, impModule)
	}

	return runModules(ld.all(), opts)
}

// classifyLoadError routes a loader failure to its exit code: resolution
// and cycle errors are both "3" per §6; anything else came out of
// Frontend.Compile and is a compile/parse error ("1").
func classifyLoadError(err error) error {
	var re *errResolution
	if errors.As(err, &re) {
		return &cliError{exitModuleError, err}
	}
	var cyc *module.ErrImportCycle
	if errors.As(err, &cyc) {
		return &cliError{exitModuleError, err}
	}
	return &cliError{exitCompileError, err}
}

// newConfiguredVM builds a VM from opts.cfg: GC threshold override, native
// namespace allow-list, and instruction-profiling level, none of which bear
// on program semantics (SPEC_FULL §1.1, §4.1.1, §4.3.1).
func newConfiguredVM(opts runOptions) *vm.VM {
	v := vm.New()
	if opts.cfg.GCThresholdBytes > 0 {
		v.Heap = gc.NewHeap(opts.cfg.GCThresholdBytes)
	}
	v.BootstrapWithNamespaces(opts.cfg.NativeNamespaces)
	v.SetDebugLevel(opts.debugLevel)
	return v
}

// runModules drives modules to completion on a freshly configured VM,
// reporting every uncaught error via the built-in error-channel consumer
// (§6) and mapping the run to exit code 2 if any arrived.
func runModules(modules []*module.Module, opts runOptions) error {
	v := newConfiguredVM(opts)

	uncaught := 0
	v.InstallErrorConsumer(func(errVal *values.Value) {
		uncaught++
		fmt.Fprintln(os.Stderr, "uncaught error:", errVal.String())
	})

	runErr := v.RunProgram(modules)

	if opts.gcStats {
		fmt.Fprintln(os.Stderr, "gc:", v.Heap.Stats())
	}
	if opts.debugLevel != vm.DebugNone {
		fmt.Fprint(os.Stderr, v.DebugReport(10))
	}

	if runErr != nil {
		var cyc *module.ErrImportCycle
		if errors.As(runErr, &cyc) {
			return &cliError{exitModuleError, runErr}
		}
		return &cliError{exitRuntimeError, runErr}
	}

	if uncaught > 0 {
		return &cliError{exitRuntimeError, fmt.Errorf("%d uncaught error(s)", uncaught)}
	}
	return nil
}
