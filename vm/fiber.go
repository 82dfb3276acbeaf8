package vm

import (
	"fmt"
	"io"
	"time"

	"github.com/wudi/magpie/chunk"
	"github.com/wudi/magpie/module"
	"github.com/wudi/magpie/native"
	"github.com/wudi/magpie/opcodes"
	"github.com/wudi/magpie/registry"
	"github.com/wudi/magpie/sched"
	"github.com/wudi/magpie/values"
)

// FiberState mirrors the lifecycle Fiber::State_ walks through in the
// original runtime (§4.2).
type FiberState byte

const (
	FiberReady FiberState = iota
	FiberRunning
	FiberSleeping
	FiberWaitingSend
	FiberWaitingReceive
	FiberDone
)

// CallFrame is one activation record: which Chunk is running, at what pc,
// and where its registers live in the fiber's flat stack. ResultReg/CallerIdx
// say where RETURN should deliver its value.
type CallFrame struct {
	Fn         *chunk.Function
	IP         int
	StackStart int
	ResultReg  uint32
	CallerIdx  int // index into Fiber.frames, -1 for the root frame
	captured   map[uint32]*chunk.Upvar
}

// CatchFrame is one entry of a fiber's ENTER_TRY/EXIT_TRY stack (§4.1).
type CatchFrame struct {
	Parent     *CatchFrame
	FrameIndex int
	HandlerPC  int
	ErrorReg   uint32
}

// Fiber is a single cooperatively-scheduled stack of execution: a flat
// register file shared across its call frames, a catch-frame chain, and the
// state the scheduler needs to know when to re-run it. It implements
// sched.Runnable and native.Host structurally, so neither of those packages
// needs to import vm.
type Fiber struct {
	values.GCHeader

	vm     *VM
	module *module.Module
	id     uint64

	stack []*values.Value
	top   int
	frames []*CallFrame
	catch  *CatchFrame

	state     FiberState
	successor *Fiber
	result    *values.Value
	uncaught  *values.Value

	// suspendFrame/suspendReg say which register of which frame Resume
	// writes the value a suspended NATIVE call (send/receive/await) is
	// waiting on (storeReturn's equivalent).
	suspendFrame *CallFrame
	suspendReg   uint32
}

func (f *Fiber) ID() uint64 { return f.id }

// Reach marks every live register across all frames, the result/uncaught
// slots, and each frame's Function (its upvars, transitively).
func (f *Fiber) Reach(mark func(*values.Value)) {
	for i := 0; i < f.top && i < len(f.stack); i++ {
		if f.stack[i] != nil {
			mark(f.stack[i])
		}
	}
	for _, fr := range f.frames {
		fr.Fn.Reach(mark)
	}
	if f.result != nil {
		mark(f.result)
	}
	if f.uncaught != nil {
		mark(f.uncaught)
	}
}

func (f *Fiber) ensureStack(needed int) {
	for len(f.stack) < needed {
		f.stack = append(f.stack, values.NewAtom(values.AtomNothing))
	}
}

// pushCall starts the fiber's root frame running fn from pc 0.
func (f *Fiber) pushCall(fn *chunk.Function, stackStart int) {
	f.top = stackStart
	needed := stackStart + fn.Chunk.NumSlots
	f.ensureStack(needed)
	f.top = needed
	f.frames = append(f.frames, &CallFrame{Fn: fn, StackStart: stackStart, CallerIdx: -1, ResultReg: 0})
}

// invoke pushes a new frame for fn, copying args into its first registers
// (§4.1 CALL/NATIVE's calling convention). The callee's registers begin
// right after the current stack top, so completed frames never overlap a
// still-live caller's registers.
func (f *Fiber) invoke(fn *chunk.Function, args []*values.Value, callerIdx int, resultReg uint32) {
	stackStart := f.top
	needed := stackStart + fn.Chunk.NumSlots
	f.ensureStack(needed)
	for i := 0; i < fn.Chunk.NumSlots; i++ {
		if i < len(args) {
			f.stack[stackStart+i] = args[i]
		} else {
			f.stack[stackStart+i] = values.NewAtom(values.AtomNothing)
		}
	}
	f.top = needed
	f.frames = append(f.frames, &CallFrame{Fn: fn, StackStart: stackStart, CallerIdx: callerIdx, ResultReg: resultReg})
}

func (f *Fiber) load(frame *CallFrame, reg uint32) *values.Value {
	if frame.captured != nil {
		if uv, ok := frame.captured[reg]; ok {
			return uv.Value()
		}
	}
	return f.stack[frame.StackStart+int(reg)]
}

func (f *Fiber) store(frame *CallFrame, reg uint32, v *values.Value) {
	if frame.captured != nil {
		if uv, ok := frame.captured[reg]; ok {
			uv.SetValue(v)
			return
		}
	}
	f.stack[frame.StackStart+int(reg)] = v
}

// captureLocal promotes a local register to a shared Upvar cell the first
// time a closure captures it (Lua-style open-upvalue promotion); later reads
// and writes of that register, by this frame or the closure, go through the
// same cell.
func (f *Fiber) captureLocal(frame *CallFrame, slot uint32) *chunk.Upvar {
	if frame.captured == nil {
		frame.captured = make(map[uint32]*chunk.Upvar)
	}
	if uv, ok := frame.captured[slot]; ok {
		return uv
	}
	uv := chunk.NewUpvar()
	uv.SetValue(f.stack[frame.StackStart+int(slot)])
	frame.captured[slot] = uv
	return uv
}

// materializeClosure builds a Function for the nested chunk at index, wiring
// each upvar slot per its UpvarDescriptor: a fresh cell over one of frame's
// own locals, or the enclosing frame's own already-captured cell.
func (f *Fiber) materializeClosure(frame *CallFrame, nestedIdx uint32) *chunk.Function {
	nested := frame.Fn.Chunk.NestedChunk(nestedIdx)
	fn := chunk.NewFunction(nested)
	for i, desc := range nested.Upvars {
		if desc.NewLocal {
			fn.Upvars[i] = f.captureLocal(frame, desc.Slot)
		} else {
			fn.Upvars[i] = frame.Fn.GetUpvar(desc.Slot)
		}
	}
	return fn
}

func (f *Fiber) newError(cls *values.Class) *values.Value {
	v := values.NewDynamic(cls)
	f.vm.Alloc(v)
	return v
}

// raiseException unwinds to the nearest catch frame, if any, delivering val
// into its error register and resuming at its handler pc. With no catch
// frame, the fiber dies and val is delivered to the error channel
// (Fiber::throwError's uncaught path, §4.2).
func (f *Fiber) raiseException(val *values.Value) sched.Outcome {
	if f.catch == nil {
		f.uncaught = val
		f.state = FiberDone
		f.vm.ErrorChannel.Send(sched.Waiter{}, val)
		return sched.UncaughtError
	}
	cf := f.catch
	f.frames = f.frames[:cf.FrameIndex+1]
	frame := f.frames[cf.FrameIndex]
	f.top = frame.StackStart + frame.Fn.Chunk.NumSlots
	f.store(frame, cf.ErrorReg, val)
	frame.IP = cf.HandlerPC
	f.catch = cf.Parent
	return 0 // no interrupt: caller should keep running at the handler pc
}

// Resume delivers value to a fiber parked by a suspended NATIVE call
// (send/receive/await), writing it to the call's result register and
// re-enqueuing the fiber, mirroring Fiber::resume/storeReturn. A sleeping
// fiber is not woken through Resume: Scheduler.WakeDue re-enqueues it.
func (f *Fiber) Resume(value *values.Value) {
	if value == nil {
		value = values.NewAtom(values.AtomNothing)
	}
	if f.suspendFrame != nil {
		f.store(f.suspendFrame, f.suspendReg, value)
		f.suspendFrame = nil
	}
	f.state = FiberReady
	f.vm.Scheduler.Enqueue(f)
}

// --- native.Host ---

func (f *Fiber) Stdout() io.Writer { return f.vm.Stdout }

func (f *Fiber) Sleep(d time.Duration) {
	f.state = FiberSleeping
	f.vm.Scheduler.Sleep(f, time.Now().Add(d))
}

func (f *Fiber) Alloc(v *values.Value) *values.Value { return f.vm.Alloc(v) }

func (f *Fiber) ChannelSend(ch *sched.Channel, value *values.Value) bool {
	ok := ch.Send(sched.Waiter{Resume: f.Resume}, value)
	if !ok {
		f.state = FiberWaitingSend
	}
	return ok
}

func (f *Fiber) ChannelReceive(ch *sched.Channel) (*values.Value, bool) {
	v, ok := ch.Receive(sched.Waiter{Resume: f.Resume})
	if !ok {
		f.state = FiberWaitingReceive
	}
	return v, ok
}

// AwaitFiber implements the fiber-join half of the successor field §4.2
// documents: ASYNC spawns with a nil successor, and the first awaiter
// claims the slot. If target is already done its result is available
// synchronously; otherwise f becomes the fiber Resumed when target
// finishes (vm.runLoop's sched.Done case).
func (f *Fiber) AwaitFiber(target *values.Value) (*values.Value, bool) {
	if target == nil || target.Type != values.TypeFiber {
		return nil, false
	}
	ref, ok := target.Data.(*FiberRef)
	if !ok {
		return nil, false
	}
	child := ref.F
	if child.state == FiberDone {
		return child.result, true
	}
	if child.successor == nil {
		child.successor = f
	}
	return nil, false
}

// NewOverflowError constructs a fresh OVERFLOW_ERROR instance for the
// arithmetic natives (§7); it is a Host method rather than a plain
// exported helper because constructing one requires the VM's class table,
// which native must not import directly (see native.Host's doc comment).
func (f *Fiber) NewOverflowError() *values.Value {
	return f.newError(f.vm.Classes.Core.OverflowError)
}

// RunUntilYield executes instructions until the fiber finishes, suspends,
// the heap needs a GC pause, or an exception goes uncaught (§4.1, §4.4).
func (f *Fiber) RunUntilYield() sched.Outcome {
	f.state = FiberRunning
	for {
		if f.vm.Heap.NeedsCollect() {
			return sched.DidGC
		}

		frame := f.frames[len(f.frames)-1]
		pc := frame.IP
		ins := frame.Fn.Chunk.Code[pc]
		frame.IP = pc + 1

		if f.vm.profile != nil {
			f.vm.profile.observe(pc, ins.Op)
			if f.vm.profile.atBreakpoint(f.id, pc) {
				f.vm.profile.addDebug(fmt.Sprintf("breakpoint hit: fiber %d pc %d (%s)", f.id, pc, ins.Op))
			}
		}

		switch ins.Op {
		case opcodes.MOVE:
			f.store(frame, ins.A, f.load(frame, ins.B))

		case opcodes.CONSTANT:
			f.store(frame, ins.A, frame.Fn.Chunk.Constant(ins.B))

		case opcodes.ATOM:
			f.store(frame, ins.A, f.vm.Atom(values.Atom(ins.B)))

		case opcodes.LIST:
			count := int(ins.C)
			elems := make([]*values.Value, count)
			for i := 0; i < count; i++ {
				elems[i] = f.load(frame, ins.B+uint32(i))
			}
			f.store(frame, ins.A, f.vm.Alloc(values.NewList(elems)))

		case opcodes.RECORD:
			rt := f.vm.RecordTypes.Get(int(ins.B))
			fields := make([]*values.Value, len(rt.Symbols))
			for i := range fields {
				fields[i] = f.load(frame, ins.C+uint32(i))
			}
			f.store(frame, ins.A, f.vm.Alloc(values.NewRecord(int(ins.B), rt, fields)))

		case opcodes.FUNCTION:
			fn := f.materializeClosure(frame, ins.B)
			f.store(frame, ins.A, f.vm.Alloc(&values.Value{Type: values.TypeFunction, Data: fn}))

		case opcodes.ASYNC:
			fn := f.materializeClosure(frame, ins.B)
			child := f.vm.NewFiber(fn, f.module, nil)
			f.vm.Scheduler.Enqueue(child)
			f.store(frame, ins.A, f.vm.Alloc(&values.Value{Type: values.TypeFiber, Data: &FiberRef{F: child}}))

		case opcodes.METHOD:
			mm, ok := registry.AsMultimethod(f.load(frame, ins.A))
			if !ok {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMatchError)); outcome != 0 {
					return outcome
				}
				continue
			}
			fn := f.materializeClosure(frame, ins.B)
			arity := mm.Arity
			mm.AddMethod(&registry.Method{
				Fn: fn,
				// Full argument-pattern matching is compiler-generated
				// (§4.5) and out of scope; a method appended straight from
				// bytecode accepts whenever the call supplies exactly the
				// multimethod's declared arity (or any count, for an
				// unsuffixed signature).
				Matcher: func(args []*values.Value) bool {
					return arity <= 0 || len(args) == arity
				},
			})

		case opcodes.CLASS:
			name := f.vm.Symbols.Name(int(ins.B))
			numFields := int(ins.C)
			// pseudo-instruction: A=superclass count, B=first superclass register
			super := frame.Fn.Chunk.Code[frame.IP]
			frame.IP++
			supers := make([]*values.Value, super.A)
			for i := uint32(0); i < super.A; i++ {
				supers[i] = f.load(frame, super.B+i)
			}
			cls := f.vm.Classes.Define(name, numFields, supers)
			f.vm.Alloc(cls)
			f.store(frame, ins.A, cls)

		case opcodes.GET_FIELD:
			rec, ok := values.AsRecord(f.load(frame, ins.B))
			if !ok {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMatchError)); outcome != 0 {
					return outcome
				}
				continue
			}
			val, found := rec.GetField(int(ins.C))
			if !found {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMatchError)); outcome != 0 {
					return outcome
				}
				continue
			}
			f.store(frame, ins.A, val)

		case opcodes.TEST_FIELD:
			// Same field lookup as GET_FIELD, but failure doesn't raise: a
			// JUMP-shaped pseudo-instruction immediately follows (CLASS's
			// pseudo-op pattern), and on a miss we jump by its offset,
			// relative to its own pc, instead of unwinding (§4.1's match/
			// case fallthrough contract).
			jumpPC := pc + 1
			jumpIns := frame.Fn.Chunk.Code[jumpPC]
			frame.IP = jumpPC + 1

			rec, ok := values.AsRecord(f.load(frame, ins.B))
			var val *values.Value
			found := false
			if ok {
				val, found = rec.GetField(int(ins.C))
			}
			if found {
				f.store(frame, ins.A, val)
			} else if jumpIns.A == 1 {
				frame.IP = jumpPC + int(jumpIns.B)
			} else {
				frame.IP = jumpPC - int(jumpIns.B)
			}

		case opcodes.GET_CLASS_FIELD:
			cls, ok := values.AsClass(f.load(frame, ins.B))
			if !ok {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMatchError)); outcome != 0 {
					return outcome
				}
				continue
			}
			val, found := cls.StaticField(int(ins.C))
			if !found {
				val = values.NewAtom(values.AtomNothing)
			}
			f.store(frame, ins.A, val)

		case opcodes.SET_CLASS_FIELD:
			cls, ok := values.AsClass(f.load(frame, ins.A))
			if !ok {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMatchError)); outcome != 0 {
					return outcome
				}
				continue
			}
			cls.SetStaticField(int(ins.B), f.load(frame, ins.C))

		case opcodes.GET_VAR:
			if f.module == nil {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.UndefinedVarError)); outcome != 0 {
					return outcome
				}
				continue
			}
			val := f.module.Variable(int(ins.B))
			if val == nil {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.UndefinedVarError)); outcome != 0 {
					return outcome
				}
				continue
			}
			f.store(frame, ins.A, val)

		case opcodes.SET_VAR:
			if f.module != nil {
				f.module.SetVariable(int(ins.B), f.load(frame, ins.A))
			}

		case opcodes.GET_UPVAR:
			f.store(frame, ins.A, frame.Fn.GetUpvar(ins.B).Value())

		case opcodes.SET_UPVAR:
			frame.Fn.GetUpvar(ins.B).SetValue(f.load(frame, ins.A))

		case opcodes.EQUAL:
			f.store(frame, ins.A, f.vm.boolValue(values.Equal(f.load(frame, ins.B), f.load(frame, ins.C))))

		case opcodes.NOT:
			f.store(frame, ins.A, f.vm.boolValue(f.load(frame, ins.B).IsFalsey()))

		case opcodes.IS:
			val := f.load(frame, ins.B)
			target, ok := values.AsClass(f.load(frame, ins.C))
			result := ok && f.vm.ClassOf(val).IsA(target)
			f.store(frame, ins.A, f.vm.boolValue(result))

		case opcodes.JUMP:
			if ins.A == 1 {
				frame.IP = pc + int(ins.B)
			} else {
				frame.IP = pc - int(ins.B)
			}

		case opcodes.JUMP_IF_FALSE:
			if f.load(frame, ins.A).IsFalsey() {
				frame.IP = pc + int(ins.B)
			}

		case opcodes.JUMP_IF_TRUE:
			if f.load(frame, ins.A).IsTruthy() {
				frame.IP = pc + int(ins.B)
			}

		case opcodes.CALL:
			base := ins.A
			argCount := int(ins.B)
			callee := f.load(frame, base)
			args := make([]*values.Value, argCount)
			for i := 0; i < argCount; i++ {
				args[i] = f.load(frame, base+uint32(i)+1)
			}
			outcome, done := f.dispatchCall(callee, args, len(f.frames)-1, base)
			if done {
				return outcome
			}

		case opcodes.NATIVE:
			base := ins.A
			nativeID := int(ins.B)
			argCount := int(ins.C)
			args := make([]*values.Value, argCount)
			for i := 0; i < argCount; i++ {
				args[i] = f.load(frame, base+uint32(i)+1)
			}
			fn := f.vm.Natives.Get(nativeID)
			result, disp := fn(f, args)
			switch disp {
			case native.Return:
				f.store(frame, base, result)
			case native.Throw:
				if outcome := f.raiseException(result); outcome != 0 {
					return outcome
				}
			case native.Call:
				if len(args) == 0 {
					if outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMethodError)); outcome != 0 {
						return outcome
					}
					continue
				}
				outcome, done := f.dispatchCall(args[0], args[1:], len(f.frames)-1, base)
				if done {
					return outcome
				}
			case native.Suspend:
				f.suspendFrame = frame
				f.suspendReg = base
				return sched.Suspend
			}

		case opcodes.RETURN:
			val := f.load(frame, ins.A)
			f.frames = f.frames[:len(f.frames)-1]
			if len(f.frames) == 0 {
				f.result = val
				f.state = FiberDone
				return sched.Done
			}
			caller := f.frames[len(f.frames)-1]
			f.top = frame.StackStart
			f.store(caller, frame.ResultReg, val)

		case opcodes.THROW:
			if outcome := f.raiseException(f.load(frame, ins.A)); outcome != 0 {
				return outcome
			}

		case opcodes.ENTER_TRY:
			f.catch = &CatchFrame{Parent: f.catch, FrameIndex: len(f.frames) - 1, HandlerPC: pc + int(ins.A), ErrorReg: ins.B}

		case opcodes.EXIT_TRY:
			if f.catch != nil {
				f.catch = f.catch.Parent
			}

		case opcodes.TEST_MATCH:
			// A truthiness assertion, not a comparison: enforces a
			// non-record pattern (e.g. a literal or guard) already
			// evaluated into reg[A], raising NO_MATCH_ERROR on failure
			// (§4.1, §7).
			if f.load(frame, ins.A).IsFalsey() {
				if outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMatchError)); outcome != 0 {
					return outcome
				}
			}

		default:
			panic(fmt.Sprintf("vm: unhandled opcode %s", ins.Op))
		}
	}
}

// dispatchCall resolves callee (a plain Function, a Multimethod, or a Class
// used as a constructor) and either pushes a new frame or raises
// NoMethodError. Returns (outcome, true) when RunUntilYield should return
// immediately (an uncaught exception), (0, false) otherwise (0 is reused
// here as "no interrupt", not a claim that the fiber is Done).
func (f *Fiber) dispatchCall(callee *values.Value, args []*values.Value, callerIdx int, resultReg uint32) (sched.Outcome, bool) {
	switch callee.Type {
	case values.TypeFunction:
		fn, _ := chunk.AsFunction(callee)
		f.invoke(fn, args, callerIdx, resultReg)
		return 0, false

	case values.TypeMultimethod:
		mm, _ := registry.AsMultimethod(callee)
		selectArgs := args
		if mm.Arity > 0 && mm.Arity <= len(args) {
			selectArgs = args[:mm.Arity]
		}
		method := mm.Select(selectArgs)
		if method == nil {
			outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMethodError))
			return outcome, outcome != 0
		}
		f.invoke(method.Fn, args, callerIdx, resultReg)
		return 0, false

	case values.TypeClass:
		cls, _ := values.AsClass(callee)
		obj := values.NewDynamic(cls)
		d, _ := obj.Data.(*values.Dynamic)
		for i := 0; i < len(args) && i < cls.NumFields; i++ {
			d.SetField(i, args[i])
		}
		f.vm.Alloc(obj)
		f.store(f.frames[callerIdx], resultReg, obj)
		return 0, false

	default:
		outcome := f.raiseException(f.newError(f.vm.Classes.Core.NoMethodError))
		return outcome, outcome != 0
	}
}

// FiberRef is the heap payload of a TypeFiber Value: a handle another fiber
// can hold onto (e.g. the result of an ASYNC expression) without exposing
// Fiber's internals outside package vm.
type FiberRef struct {
	values.GCHeader
	F *Fiber
}

func (r *FiberRef) Reach(mark func(*values.Value)) { r.F.Reach(mark) }
