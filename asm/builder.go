// Package asm is a hand-assembler for chunk.Chunk, standing in for the
// out-of-scope compiler (§1) so tests can build runnable bytecode
// directly, the way the pack's own VM test suites
// (e.g. a bytecode-builder fixture rather than a full front end) construct
// fixtures without going through a parser.
package asm

import (
	"github.com/wudi/magpie/chunk"
	"github.com/wudi/magpie/opcodes"
	"github.com/wudi/magpie/values"
)

// Builder accumulates instructions, constants, nested chunks, and upvar
// descriptors into a single chunk.Chunk.
type Builder struct {
	c *chunk.Chunk
}

// New starts a builder for a chunk named name (diagnostic only, e.g.
// "{main}" or a function's declared name).
func New(name string) *Builder {
	return &Builder{c: chunk.New(name)}
}

// NumSlots sets the register count the chunk's frame must allocate.
func (b *Builder) NumSlots(n int) *Builder {
	b.c.NumSlots = n
	return b
}

// SourcePath records the file the chunk was notionally compiled from.
func (b *Builder) SourcePath(path string) *Builder {
	b.c.SourcePath = path
	return b
}

// Emit appends one instruction and returns its pc, so callers can patch
// jump offsets once the target pc is known (two-pass assembly).
func (b *Builder) Emit(op opcodes.Opcode, a, bOperand, c uint32) int {
	pc := len(b.c.Code)
	b.c.Code = append(b.c.Code, opcodes.New(op, a, bOperand, c))
	return pc
}

// Patch overwrites the instruction at pc, used to back-patch a jump once its
// target is known.
func (b *Builder) Patch(pc int, op opcodes.Opcode, a, bOperand, c uint32) {
	b.c.Code[pc] = opcodes.New(op, a, bOperand, c)
}

// Constant interns v and returns its index.
func (b *Builder) Constant(v *values.Value) uint32 {
	b.c.Constants = append(b.c.Constants, v)
	return uint32(len(b.c.Constants) - 1)
}

// Nested appends a fully-built child chunk (for FUNCTION/ASYNC) and returns
// its index.
func (b *Builder) Nested(child *chunk.Chunk) uint32 {
	b.c.Chunks = append(b.c.Chunks, child)
	return uint32(len(b.c.Chunks) - 1)
}

// Upvar appends one upvar descriptor; descriptor order matches the closure
// materialization order FUNCTION/ASYNC wires against (materializeClosure in
// vm/fiber.go).
func (b *Builder) Upvar(slot uint32, newLocal bool) *Builder {
	b.c.Upvars = append(b.c.Upvars, chunk.UpvarDescriptor{Slot: slot, NewLocal: newLocal})
	return b
}

// Line records that every instruction from the current pc onward belongs to
// the given source line, until the next Line call.
func (b *Builder) Line(line int) *Builder {
	b.c.Lines = append(b.c.Lines, chunk.LineEntry{PC: len(b.c.Code), Line: line})
	return b
}

// Pc returns the index the next Emit call will use.
func (b *Builder) Pc() int { return len(b.c.Code) }

// Chunk returns the built chunk. The builder may keep being used afterward;
// callers that need an immutable snapshot should stop mutating it once
// Chunk has been handed to a Function.
func (b *Builder) Chunk() *chunk.Chunk { return b.c }
