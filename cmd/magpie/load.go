package main

import (
	"fmt"
	"os"

	"github.com/wudi/magpie/frontend"
	"github.com/wudi/magpie/module"
)

// errResolution reports a module name that could not be found on the
// search path (§6: "3 module resolution or cycle error" covers both this
// and module.ErrImportCycle).
type errResolution struct{ name string }

func (e *errResolution) Error() string {
	return fmt.Sprintf("module %q not found on search path", e.name)
}

// loader compiles an entry script and recursively resolves and compiles
// the modules it imports, reproducing §4.7's discovery step (the thing a
// real compiler's front end would normally drive) ahead of handing the
// whole graph to module.TopoSort / vm.RunProgram.
type loader struct {
	fe         frontend.Frontend
	programDir string
	coreLibDir string
	loaded     map[string]*module.Module
}

func newLoader(fe frontend.Frontend, programDir, coreLibDir string) *loader {
	return &loader{fe: fe, programDir: programDir, coreLibDir: coreLibDir, loaded: make(map[string]*module.Module)}
}

// loadEntry reads and compiles path as the program's entry module (named
// "main") and everything it transitively imports, returning the full
// (unordered) module set — module.TopoSort imposes the run order later.
func (l *loader) loadEntry(path string) ([]*module.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &errResolution{name: path}
	}
	if _, err := l.load("main", path, source); err != nil {
		return nil, err
	}
	return l.all(), nil
}

func (l *loader) all() []*module.Module {
	out := make([]*module.Module, 0, len(l.loaded))
	for _, m := range l.loaded {
		out = append(out, m)
	}
	return out
}

// load compiles source under name/path, registers it before recursing into
// its imports (so a cycle resolves to the same in-progress *Module rather
// than infinitely recursing), and fills in Imports as each import comes
// back.
func (l *loader) load(name, path string, source []byte) (*module.Module, error) {
	if m, ok := l.loaded[name]; ok {
		return m, nil
	}
	body, importNames, err := l.fe.Compile(source, path)
	if err != nil {
		return nil, err
	}
	m := module.New(name, path)
	m.Body = body
	l.loaded[name] = m

	for _, imp := range importNames {
		impPath, err := l.resolve(imp)
		if err != nil {
			return nil, err
		}
		impSource, err := os.ReadFile(impPath)
		if err != nil {
			return nil, &errResolution{name: imp}
		}
		impModule, err := l.load(imp, impPath, impSource)
		if err != nil {
			return nil, err
		}
		m.Imports = append(m.Imports, impModule)
	}
	return m, nil
}

// resolve applies §6's search order: {programDir}/a/b/c.mag then
// {coreLibDir}/a/b/c.mag.
func (l *loader) resolve(name string) (string, error) {
	for _, candidate := range module.ResolvePath(l.programDir, l.coreLibDir, name) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", &errResolution{name: name}
}
