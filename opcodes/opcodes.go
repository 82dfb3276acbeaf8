// Package opcodes defines Magpie's fixed-width bytecode instruction
// encoding: one opcode byte plus three operands A, B, C (§4.1).
package opcodes

import "fmt"

// Opcode identifies a bytecode instruction.
type Opcode byte

const (
	MOVE Opcode = iota
	CONSTANT
	ATOM
	METHOD
	RECORD
	LIST
	FUNCTION
	ASYNC
	CLASS
	GET_FIELD
	TEST_FIELD
	GET_CLASS_FIELD
	SET_CLASS_FIELD
	GET_VAR
	SET_VAR
	GET_UPVAR
	SET_UPVAR
	EQUAL
	NOT
	IS
	JUMP
	JUMP_IF_FALSE
	JUMP_IF_TRUE
	CALL
	NATIVE
	RETURN
	THROW
	ENTER_TRY
	EXIT_TRY
	TEST_MATCH
)

var names = map[Opcode]string{
	MOVE:             "MOVE",
	CONSTANT:         "CONSTANT",
	ATOM:             "ATOM",
	METHOD:           "METHOD",
	RECORD:           "RECORD",
	LIST:             "LIST",
	FUNCTION:         "FUNCTION",
	ASYNC:            "ASYNC",
	CLASS:            "CLASS",
	GET_FIELD:        "GET_FIELD",
	TEST_FIELD:       "TEST_FIELD",
	GET_CLASS_FIELD:  "GET_CLASS_FIELD",
	SET_CLASS_FIELD:  "SET_CLASS_FIELD",
	GET_VAR:          "GET_VAR",
	SET_VAR:          "SET_VAR",
	GET_UPVAR:        "GET_UPVAR",
	SET_UPVAR:        "SET_UPVAR",
	EQUAL:            "EQUAL",
	NOT:              "NOT",
	IS:               "IS",
	JUMP:             "JUMP",
	JUMP_IF_FALSE:    "JUMP_IF_FALSE",
	JUMP_IF_TRUE:     "JUMP_IF_TRUE",
	CALL:             "CALL",
	NATIVE:           "NATIVE",
	RETURN:           "RETURN",
	THROW:            "THROW",
	ENTER_TRY:        "ENTER_TRY",
	EXIT_TRY:         "EXIT_TRY",
	TEST_MATCH:       "TEST_MATCH",
}

func (op Opcode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// Valid reports whether op decodes to a known opcode (§8 property 3).
func (op Opcode) Valid() bool {
	_, ok := names[op]
	return ok
}

// Instruction is the fixed-width encoding: one opcode plus three uint32
// operands. Individual opcodes interpret A/B/C per the table in spec §4.1;
// CLASS and TEST_FIELD are each followed by one pseudo-instruction reusing
// this same struct shape. FUNCTION/ASYNC take their capture list from the
// nested chunk's Upvars descriptors and ENTER_TRY carries its error register
// in B, so neither consumes a following word.
type Instruction struct {
	Op   Opcode
	A, B, C uint32
}

func New(op Opcode, a, b, c uint32) Instruction {
	return Instruction{Op: op, A: a, B: b, C: c}
}

func (i Instruction) String() string {
	return fmt.Sprintf("%-14s A=%d B=%d C=%d", i.Op, i.A, i.B, i.C)
}
