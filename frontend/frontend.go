// Package frontend names the seam between program source and a runnable
// chunk.Chunk. The lexer, parser, and AST→chunk compiler that would
// implement it are declared out of scope by §1 ("external collaborators
// whose interface we only name") — this package is that named interface,
// not an implementation of it.
package frontend

import (
	"errors"

	"github.com/wudi/magpie/chunk"
)

// ErrNoFrontend is returned by Unimplemented's Compile. cmd/magpie surfaces
// it as a compile/parse error (exit code 1, §6) since, from the CLI's
// point of view, a missing front end and a rejected program look the same:
// no chunk came out.
var ErrNoFrontend = errors.New("frontend: no lexer/parser/compiler wired; source cannot be compiled")

// Frontend turns one unit of source into a compiled chunk plus the dotted
// names of the modules it imports (§3's Module.Imports, resolved by the
// caller via module.ResolvePath before compiling each of them in turn).
type Frontend interface {
	Compile(source []byte, path string) (body *chunk.Chunk, imports []string, err error)
}

type unimplemented struct{}

func (unimplemented) Compile(source []byte, path string) (*chunk.Chunk, []string, error) {
	return nil, nil, ErrNoFrontend
}

// Unimplemented is the default Frontend wherever no real one has been
// wired in: every call fails with ErrNoFrontend. It exists so cmd/magpie
// can be fully assembled and exercised (module resolution, scheduling,
// error-channel reporting, exit codes) against hand-built chunk.Chunk
// programs without pretending to own a parser it was told not to build.
func Unimplemented() Frontend { return unimplemented{} }
