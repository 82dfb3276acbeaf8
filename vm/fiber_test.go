package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/magpie/asm"
	"github.com/wudi/magpie/chunk"
	"github.com/wudi/magpie/module"
	"github.com/wudi/magpie/opcodes"
	"github.com/wudi/magpie/registry"
	"github.com/wudi/magpie/sched"
	"github.com/wudi/magpie/values"
	"github.com/wudi/magpie/vm"
)

func newTestVM() *vm.VM {
	v := vm.New()
	v.Bootstrap()
	return v
}

func runModule(t *testing.T, v *vm.VM, c *chunk.Chunk) (*values.Value, error) {
	t.Helper()
	m := module.New("test", "test.mag")
	m.Body = c
	return v.RunModule(m)
}

func TestConstantAndReturn(t *testing.T) {
	b := asm.New("{main}").NumSlots(1)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewInt(42)), 0)
	b.Emit(opcodes.RETURN, 0, 0, 0)

	result, err := runModule(t, newTestVM(), b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Int64)
}

func TestArithmeticStyleMoveAndEqual(t *testing.T) {
	b := asm.New("{main}").NumSlots(3)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewInt(7)), 0)
	b.Emit(opcodes.MOVE, 1, 0, 0)
	b.Emit(opcodes.EQUAL, 2, 0, 1)
	b.Emit(opcodes.RETURN, 2, 0, 0)

	result, err := runModule(t, newTestVM(), b.Chunk())
	require.NoError(t, err)
	assert.True(t, result.IsTruthy())
}

// TestCallFunctionAndClosureCapture builds an outer chunk with a local
// register, a closure that captures it by reference and mutates it through
// SET_UPVAR, and checks the outer frame observes the mutation (§8 property
// 5's call/return register-passing, plus the upvar-sharing invariant).
func TestCallFunctionAndClosureCapture(t *testing.T) {
	inner := asm.New("closure").NumSlots(1)
	inner.Upvar(0, true)
	inner.Emit(opcodes.CONSTANT, 0, inner.Constant(values.NewInt(99)), 0)
	inner.Emit(opcodes.SET_UPVAR, 0, 0, 0)
	inner.Emit(opcodes.ATOM, 0, uint32(values.AtomNothing), 0)
	inner.Emit(opcodes.RETURN, 0, 0, 0)

	outer := asm.New("{main}").NumSlots(3)
	outer.Emit(opcodes.CONSTANT, 0, outer.Constant(values.NewInt(10)), 0)
	outer.Emit(opcodes.FUNCTION, 2, outer.Nested(inner.Chunk()), 0)
	outer.Emit(opcodes.CALL, 2, 0, 0)
	outer.Emit(opcodes.MOVE, 1, 0, 0)
	outer.Emit(opcodes.RETURN, 1, 0, 0)

	result, err := runModule(t, newTestVM(), outer.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(99), result.Int64)
}

// TestMultimethodDispatchByArity builds a multimethod with one method and
// checks CALL dispatches to it using the signature's /N arity suffix to
// size the args window (the Open Question resolution recorded in
// DESIGN.md).
func TestMultimethodDispatchByArity(t *testing.T) {
	v := newTestVM()

	method := asm.New("id").NumSlots(1)
	method.Emit(opcodes.RETURN, 0, 0, 0)
	methodFn := chunk.NewFunction(method.Chunk())

	id, mmValue := v.Multimethods.Declare("id/1")
	v.Multimethods.Define(id, &registry.Method{
		Matcher: func(args []*values.Value) bool { return len(args) == 1 },
		Fn:      methodFn,
	})

	b := asm.New("{main}").NumSlots(2)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(mmValue), 0)
	b.Emit(opcodes.CONSTANT, 1, b.Constant(values.NewInt(7)), 0)
	b.Emit(opcodes.CALL, 0, 1, 0)
	b.Emit(opcodes.RETURN, 0, 0, 0)

	result, err := runModule(t, v, b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Int64)
}

// TestCatchFrameRecoversThrownValue exercises ENTER_TRY/THROW/EXIT_TRY
// unwinding: a handler installed before a THROW should receive the thrown
// value in its error register and resume there.
func TestCatchFrameRecoversThrownValue(t *testing.T) {
	b := asm.New("{main}").NumSlots(2)
	enterTryPC := b.Emit(opcodes.ENTER_TRY, 0, 1, 0)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewString("oops")), 0)
	b.Emit(opcodes.THROW, 0, 0, 0)
	b.Emit(opcodes.EXIT_TRY, 0, 0, 0)
	handlerPC := b.Pc()
	b.Emit(opcodes.RETURN, 1, 0, 0)
	b.Patch(enterTryPC, opcodes.ENTER_TRY, uint32(handlerPC-enterTryPC), 1, 0)

	result, err := runModule(t, newTestVM(), b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, "oops", result.String())
}

func TestUncaughtThrowDeliversToErrorChannel(t *testing.T) {
	v := newTestVM()
	b := asm.New("{main}").NumSlots(1)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewString("boom")), 0)
	b.Emit(opcodes.THROW, 0, 0, 0)

	_, err := runModule(t, v, b.Chunk())
	require.Error(t, err)

	delivered, ok := v.ErrorChannel.Receive(sched.Waiter{})
	require.True(t, ok)
	assert.Equal(t, "boom", delivered.String())
}

func TestJumpIfFalseSkipsBranch(t *testing.T) {
	b := asm.New("{main}").NumSlots(2)
	b.Emit(opcodes.ATOM, 0, uint32(values.AtomFalse), 0)
	jumpPC := b.Emit(opcodes.JUMP_IF_FALSE, 0, 0, 0)
	b.Emit(opcodes.CONSTANT, 1, b.Constant(values.NewInt(1)), 0)
	skipTarget := b.Pc()
	b.Emit(opcodes.CONSTANT, 1, b.Constant(values.NewInt(2)), 0)
	b.Patch(jumpPC, opcodes.JUMP_IF_FALSE, 0, uint32(skipTarget-jumpPC), 0)
	b.Emit(opcodes.RETURN, 1, 0, 0)

	result, err := runModule(t, newTestVM(), b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Int64)
}

func TestListConstruction(t *testing.T) {
	b := asm.New("{main}").NumSlots(3)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewInt(1)), 0)
	b.Emit(opcodes.CONSTANT, 1, b.Constant(values.NewInt(2)), 0)
	b.Emit(opcodes.LIST, 2, 0, 2)
	b.Emit(opcodes.RETURN, 2, 0, 0)

	result, err := runModule(t, newTestVM(), b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", result.String())
}

// TestMethodOpcodeAppendsFromBytecode exercises METHOD, the only
// bytecode-level way a multimethod's method list is ever populated
// (Multimethods.Define/Multimethod.AddMethod are otherwise only reachable
// from Go, e.g. TestMultimethodDispatchByArity above).
func TestMethodOpcodeAppendsFromBytecode(t *testing.T) {
	v := newTestVM()

	method := asm.New("id").NumSlots(1)
	method.Emit(opcodes.RETURN, 0, 0, 0)

	_, mmValue := v.Multimethods.Declare("id/1")

	b := asm.New("{main}").NumSlots(2)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(mmValue), 0)
	b.Emit(opcodes.METHOD, 0, b.Nested(method.Chunk()), 0)
	b.Emit(opcodes.CONSTANT, 1, b.Constant(values.NewInt(7)), 0)
	b.Emit(opcodes.CALL, 0, 1, 0)
	b.Emit(opcodes.RETURN, 0, 0, 0)

	result, err := runModule(t, v, b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Int64)
}

// TestFieldSuccessFallsThroughAndExtracts builds a record with one field and
// checks TEST_FIELD extracts its value into the destination register and
// falls through to the instruction after the embedded jump pseudo-op on a
// hit, the GET_FIELD half of its contract.
func TestFieldSuccessFallsThroughAndExtracts(t *testing.T) {
	v := newTestVM()
	xSym := v.Symbols.Intern("x")
	typeID, _ := v.RecordTypes.Intern([]int{xSym})

	b := asm.New("{main}").NumSlots(3)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewInt(42)), 0)
	b.Emit(opcodes.RECORD, 1, uint32(typeID), 0)
	b.Emit(opcodes.TEST_FIELD, 2, 1, uint32(xSym))
	jumpPC := b.Emit(opcodes.JUMP, 0, 0, 0)
	b.Emit(opcodes.RETURN, 2, 0, 0)
	failTarget := b.Pc()
	b.Emit(opcodes.CONSTANT, 2, b.Constant(values.NewString("missed")), 0)
	b.Emit(opcodes.RETURN, 2, 0, 0)
	b.Patch(jumpPC, opcodes.JUMP, 1, uint32(failTarget-jumpPC), 0)

	result, err := runModule(t, v, b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Int64)
}

// TestFieldFailureJumpsInsteadOfRaising checks the complementary half: a
// missing field advances pc by the embedded jump's offset rather than
// raising NO_MATCH_ERROR, the mechanism match/case fallthrough relies on.
func TestFieldFailureJumpsInsteadOfRaising(t *testing.T) {
	v := newTestVM()
	xSym := v.Symbols.Intern("x")
	missingSym := v.Symbols.Intern("y")
	typeID, _ := v.RecordTypes.Intern([]int{xSym})

	b := asm.New("{main}").NumSlots(3)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewInt(42)), 0)
	b.Emit(opcodes.RECORD, 1, uint32(typeID), 0)
	b.Emit(opcodes.TEST_FIELD, 2, 1, uint32(missingSym))
	jumpPC := b.Emit(opcodes.JUMP, 0, 0, 0)
	b.Emit(opcodes.RETURN, 2, 0, 0) // would run if TEST_FIELD wrongly fell through
	failTarget := b.Pc()
	b.Emit(opcodes.CONSTANT, 2, b.Constant(values.NewString("missed")), 0)
	b.Emit(opcodes.RETURN, 2, 0, 0)
	b.Patch(jumpPC, opcodes.JUMP, 1, uint32(failTarget-jumpPC), 0)

	result, err := runModule(t, v, b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, "missed", result.String())
}

// TestTestMatchRaisesNoMatchErrorOnFalsey checks TEST_MATCH's single-operand
// truthiness assertion, distinct from an EQUAL-style comparison.
func TestTestMatchRaisesNoMatchErrorOnFalsey(t *testing.T) {
	b := asm.New("{main}").NumSlots(1)
	b.Emit(opcodes.ATOM, 0, uint32(values.AtomFalse), 0)
	b.Emit(opcodes.TEST_MATCH, 0, 0, 0)
	b.Emit(opcodes.RETURN, 0, 0, 0)

	_, err := runModule(t, newTestVM(), b.Chunk())
	require.Error(t, err)
}

func TestTestMatchPassesOnTruthy(t *testing.T) {
	b := asm.New("{main}").NumSlots(1)
	b.Emit(opcodes.ATOM, 0, uint32(values.AtomTrue), 0)
	b.Emit(opcodes.TEST_MATCH, 0, 0, 0)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewInt(1)), 0)
	b.Emit(opcodes.RETURN, 0, 0, 0)

	result, err := runModule(t, newTestVM(), b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Int64)
}
