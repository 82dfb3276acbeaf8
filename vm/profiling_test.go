package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/magpie/asm"
	"github.com/wudi/magpie/opcodes"
	"github.com/wudi/magpie/values"
	"github.com/wudi/magpie/vm"
)

func TestDebugReportCountsInstructions(t *testing.T) {
	v := newTestVM()
	v.SetDebugLevel(vm.DebugDetailed)

	b := asm.New("{main}").NumSlots(1)
	b.Emit(opcodes.CONSTANT, 0, b.Constant(values.NewInt(1)), 0)
	b.Emit(opcodes.RETURN, 0, 0, 0)

	result, err := runModule(t, v, b.Chunk())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Int64)

	report := v.DebugReport(0)
	assert.Contains(t, report, "2 instructions executed")
}

func TestDebugReportDisabledByDefault(t *testing.T) {
	v := newTestVM()
	assert.Equal(t, "(debugging disabled)", v.DebugReport(0))
}
