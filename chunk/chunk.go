// Package chunk defines the compiled-unit format the (out-of-scope)
// compiler must produce: instructions, constants, nested chunks, upvar
// descriptors, and a source line table (§3, §4.1).
package chunk

import (
	"sort"

	"github.com/wudi/magpie/opcodes"
	"github.com/wudi/magpie/values"
)

// UpvarDescriptor says, for one upvar slot of a FUNCTION/ASYNC closure,
// whether the closure creates a fresh Upvar at an outer slot (NewLocal)
// or reuses one the enclosing frame already captured.
type UpvarDescriptor struct {
	Slot     uint32 // slot (in the enclosing frame's function) this upvar refers to
	NewLocal bool   // true: create a fresh Upvar there; false: reuse existing
}

// LineEntry maps a pc to a 1-based source line.
type LineEntry struct {
	PC   int
	Line int
}

// LineTable is a sorted (by PC) list of breakpoints; the line for a given pc
// is the line of the greatest entry whose PC <= pc.
type LineTable []LineEntry

func (t LineTable) LineFor(pc int) int {
	idx := sort.Search(len(t), func(i int) bool { return t[i].PC > pc })
	if idx == 0 {
		return 0
	}
	return t[idx-1].Line
}

// Chunk is immutable after compilation and may be shared by multiple
// Function objects (§3).
type Chunk struct {
	Code       []opcodes.Instruction
	Constants  []*values.Value
	Chunks     []*Chunk // nested chunks, for FUNCTION/ASYNC
	Upvars     []UpvarDescriptor
	NumSlots   int
	Lines      LineTable
	SourcePath string
	Name       string // diagnostic name ("{main}", a function name, ...)
}

func New(name string) *Chunk {
	return &Chunk{Name: name}
}

func (c *Chunk) Constant(i uint32) *values.Value {
	if int(i) >= len(c.Constants) {
		return nil
	}
	return c.Constants[i]
}

func (c *Chunk) NestedChunk(i uint32) *Chunk {
	if int(i) >= len(c.Chunks) {
		return nil
	}
	return c.Chunks[i]
}

// ValidJumpTargets reports whether every jump in the chunk lands inside
// [0, len(Code)) (§8 property 3). Intended for use by tests and the asm
// builder, not by the hot interpreter loop.
func (c *Chunk) ValidJumpTargets() bool {
	for pc, ins := range c.Code {
		switch ins.Op {
		case opcodes.JUMP:
			target := pc
			if ins.A == 1 {
				target += int(ins.B)
			} else {
				target -= int(ins.B)
			}
			if target < 0 || target >= len(c.Code) {
				return false
			}
		case opcodes.JUMP_IF_FALSE, opcodes.JUMP_IF_TRUE:
			target := pc + int(ins.B)
			if target < 0 || target >= len(c.Code) {
				return false
			}
		case opcodes.ENTER_TRY:
			target := pc + int(ins.A)
			if target < 0 || target >= len(c.Code) {
				return false
			}
		}
	}
	return true
}
