package native_test

import (
	"bytes"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/magpie/native"
	"github.com/wudi/magpie/sched"
	"github.com/wudi/magpie/values"
)

// testHost is a minimal native.Host: buffers stdout and records the last
// requested sleep duration instead of actually parking anything. Channel
// operations delegate straight to the sched.Channel itself since these
// tests only exercise native dispatch, not fiber parking.
type testHost struct {
	buf   bytes.Buffer
	slept time.Duration
}

func (h *testHost) Stdout() io.Writer     { return &h.buf }
func (h *testHost) Sleep(d time.Duration) { h.slept = d }
func (h *testHost) Alloc(v *values.Value) *values.Value { return v }
func (h *testHost) ChannelSend(ch *sched.Channel, value *values.Value) bool {
	return ch.Send(sched.Waiter{}, value)
}
func (h *testHost) ChannelReceive(ch *sched.Channel) (*values.Value, bool) {
	return ch.Receive(sched.Waiter{})
}
func (h *testHost) AwaitFiber(target *values.Value) (*values.Value, bool) { return nil, false }
func (h *testHost) NewOverflowError() *values.Value                       { return values.NewString("overflow") }

func TestRegisterCorePrintAndToString(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)

	_, ok := table.Find("core.print")
	require.True(t, ok)

	id, ok := table.Find("core.toString")
	require.True(t, ok)

	h := &testHost{}
	v, disp := table.Get(id)(h, []*values.Value{values.NewInt(42)})
	assert.Equal(t, native.Return, disp)
	assert.Equal(t, "42", v.String())
}

func TestPrintWritesToHostStdout(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)
	id, _ := table.Find("core.print")

	h := &testHost{}
	_, disp := table.Get(id)(h, []*values.Value{values.NewString("hi")})
	assert.Equal(t, native.Return, disp)
	assert.Contains(t, h.buf.String(), "hi")
}

func TestListPrimitives(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)

	addID, _ := table.Find("list.add")
	lengthID, _ := table.Find("list.length")

	h := &testHost{}
	list := values.NewEmptyList()
	table.Get(addID)(h, []*values.Value{list, values.NewInt(1)})
	v, disp := table.Get(lengthID)(h, []*values.Value{list})
	assert.Equal(t, native.Return, disp)
	assert.Equal(t, int64(1), v.Int64)
}

func TestStringPrimitives(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)
	h := &testHost{}

	concatID, _ := table.Find("string.concat")
	v, disp := table.Get(concatID)(h, []*values.Value{values.NewString("ab"), values.NewString("cd")})
	require.Equal(t, native.Return, disp)
	assert.Equal(t, "abcd", v.String())

	sliceID, _ := table.Find("string.slice")
	v, disp = table.Get(sliceID)(h, []*values.Value{values.NewString("abcdef"), values.NewInt(1), values.NewInt(3)})
	require.Equal(t, native.Return, disp)
	assert.Equal(t, "bc", v.String())
}

func TestChannelSendReceiveRendezvous(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)
	h := &testHost{}

	channelID, _ := table.Find("core.channel")
	ch, disp := table.Get(channelID)(h, nil)
	require.Equal(t, native.Return, disp)

	sendID, _ := table.Find("core.send")
	_, disp = table.Get(sendID)(h, []*values.Value{ch, values.NewInt(5)})
	assert.Equal(t, native.Suspend, disp, "no receiver parked yet")

	receiveID, _ := table.Find("core.receive")
	v, disp := table.Get(receiveID)(h, []*values.Value{ch})
	assert.Equal(t, native.Return, disp)
	assert.Equal(t, int64(5), v.Int64)
}

func TestSleepSuspends(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)
	id, _ := table.Find("core.sleep")

	h := &testHost{}
	_, disp := table.Get(id)(h, []*values.Value{values.NewInt(2)})
	assert.Equal(t, native.Suspend, disp)
	assert.Equal(t, 2*time.Second, h.slept)
}

func TestIntArithmeticMixesFloatCoercionAndOverflow(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)
	h := &testHost{}

	addID, _ := table.Find("int.add")
	v, disp := table.Get(addID)(h, []*values.Value{values.NewInt(2), values.NewInt(3)})
	require.Equal(t, native.Return, disp)
	assert.Equal(t, int64(5), v.Int64)

	// Either operand being a float coerces both sides to float (§4.1's
	// int/float comparison rule applied to arithmetic too).
	v, disp = table.Get(addID)(h, []*values.Value{values.NewInt(2), values.NewFloat(0.5)})
	require.Equal(t, native.Return, disp)
	assert.Equal(t, 2.5, v.Flt)

	v, disp = table.Get(addID)(h, []*values.Value{values.NewInt(math.MaxInt64), values.NewInt(1)})
	assert.Equal(t, native.Throw, disp)
	assert.Equal(t, "overflow", v.String())

	divID, _ := table.Find("int.div")
	v, disp = table.Get(divID)(h, []*values.Value{values.NewInt(7), values.NewInt(2)})
	require.Equal(t, native.Return, disp)
	assert.Equal(t, int64(3), v.Int64)

	v, disp = table.Get(divID)(h, []*values.Value{values.NewInt(1), values.NewInt(0)})
	assert.Equal(t, native.Throw, disp)

	modID, _ := table.Find("int.mod")
	v, disp = table.Get(modID)(h, []*values.Value{values.NewInt(7), values.NewInt(2)})
	require.Equal(t, native.Return, disp)
	assert.Equal(t, int64(1), v.Int64)
}

func TestFiberAwaitSuspendsUntilHostReportsDone(t *testing.T) {
	table := native.NewTable()
	native.RegisterCore(table)
	h := &testHost{}

	id, _ := table.Find("fiber.await")
	_, disp := table.Get(id)(h, []*values.Value{{Type: values.TypeFiber}})
	assert.Equal(t, native.Suspend, disp, "testHost's AwaitFiber always reports not-done")
}
