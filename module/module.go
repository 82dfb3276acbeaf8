// Package module defines the compiled-module graph the (out-of-scope)
// compiler must produce and the pure graph algorithms the loader runs over
// it: search-path resolution and topological ordering by import (§4.7).
package module

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wudi/magpie/chunk"
	"github.com/wudi/magpie/values"
)

// Module is one compiled unit: a name, its source path, the modules it
// imports, its compiled body, and its two parallel variable arrays. Variable
// index is assigned at compile time and stable for the module's lifetime
// (§3).
type Module struct {
	Name      string
	Path      string
	Imports   []*Module
	Body      *chunk.Chunk
	VarNames  []string
	VarValues []*values.Value
}

func New(name, path string) *Module {
	return &Module{Name: name, Path: path}
}

// DeclareVariable appends a new module-level variable slot, uninitialized
// (nil signals "undefined" for GET_VAR's UNDEFINED_VAR_ERROR check, §4.1).
func (m *Module) DeclareVariable(name string) int {
	m.VarNames = append(m.VarNames, name)
	m.VarValues = append(m.VarValues, nil)
	return len(m.VarValues) - 1
}

func (m *Module) Variable(i int) *values.Value {
	if i < 0 || i >= len(m.VarValues) {
		return nil
	}
	return m.VarValues[i]
}

func (m *Module) SetVariable(i int, v *values.Value) { m.VarValues[i] = v }

// ResolvePath maps a dotted module name to the file path the loader should
// read, searching programDir first and then coreLibDir (§4.7, §6: "given
// module name a.b.c, look up {programDir}/a/b/c.mag then
// {coreLibDir}/a/b/c.mag").
func ResolvePath(programDir, coreLibDir, name string) []string {
	rel := strings.ReplaceAll(name, ".", string(filepath.Separator)) + ".mag"
	return []string{
		filepath.Join(programDir, rel),
		filepath.Join(coreLibDir, rel),
	}
}

// ErrImportCycle is returned by TopoSort when the import graph is not a DAG
// (§4.7: "If a cycle is detected, fail with a module-cycle error").
type ErrImportCycle struct {
	Remaining []string
}

func (e *ErrImportCycle) Error() string {
	return fmt.Sprintf("import cycle among modules: %s", strings.Join(e.Remaining, ", "))
}

// TopoSort orders modules so that every module's imports precede it,
// reproducing VM::runProgram's Kahn's-algorithm pass over the import graph
// near-verbatim: repeatedly peel off modules with no remaining unresolved
// imports until none remain, or declare a cycle if a pass makes no
// progress.
func TopoSort(modules []*Module) ([]*Module, error) {
	type node struct {
		m       *Module
		imports []*Module
	}
	graph := make([]node, len(modules))
	for i, m := range modules {
		graph[i] = node{m: m, imports: append([]*Module(nil), m.Imports...)}
	}

	var ordered []*Module
	for len(graph) > 0 {
		progressed := false
		for i := 0; i < len(graph); i++ {
			if len(graph[i].imports) > 0 {
				continue
			}
			ready := graph[i].m
			ordered = append(ordered, ready)
			graph = append(graph[:i], graph[i+1:]...)
			i--

			for j := range graph {
				graph[j].imports = removeModule(graph[j].imports, ready)
			}
			progressed = true
		}
		if !progressed {
			names := make([]string, 0, len(graph))
			for _, n := range graph {
				names = append(names, n.m.Name)
			}
			return nil, &ErrImportCycle{Remaining: names}
		}
	}
	return ordered, nil
}

func removeModule(list []*Module, target *Module) []*Module {
	out := list[:0]
	for _, m := range list {
		if m != target {
			out = append(out, m)
		}
	}
	return out
}
