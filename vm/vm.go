// Package vm implements the bytecode interpreter, the fiber/call-stack
// model, and the process-wide VM state that ties the registry, native
// bridge, garbage collector, scheduler, and module table together (§3,
// §4.1, §4.2).
package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wudi/magpie/chunk"
	"github.com/wudi/magpie/gc"
	"github.com/wudi/magpie/module"
	"github.com/wudi/magpie/native"
	"github.com/wudi/magpie/registry"
	"github.com/wudi/magpie/sched"
	"github.com/wudi/magpie/values"
)

// VM is the process-wide state named in §3: interned symbols, record
// types, classes, natives, multimethods, modules, scheduler, singleton
// atoms, and the error channel.
type VM struct {
	Symbols      registry.Symbols
	RecordTypes  registry.RecordTypes
	Classes      *registry.Classes
	Multimethods *registry.Multimethods
	Natives      *native.Table
	Heap         *gc.Heap
	Scheduler    *sched.Scheduler
	Modules      []*module.Module

	atoms        [5]*values.Value
	ErrorChannel *sched.Channel

	Stdout io.Writer

	fibers []*Fiber
	nextID uint64

	profile *profileState
}

func New() *VM {
	vm := &VM{
		Classes:      registry.NewClasses(),
		Multimethods: registry.NewMultimethods(),
		Natives:      native.NewTable(),
		Heap:         gc.NewHeap(gc.DefaultThreshold),
		Scheduler:    sched.NewScheduler(),
		Stdout:       os.Stdout,
		ErrorChannel: sched.NewChannel(),
	}
	for a := values.AtomFalse; a <= values.AtomNoMethod; a++ {
		vm.atoms[a] = values.NewAtom(a)
	}
	return vm
}

// Bootstrap binds the core classes and registers the native namespaces,
// mirroring VM::VM()'s two-phase startup (defineCoreNatives/IO/Net, then
// the four singleton atoms) and the teacher's runtime.Bootstrap() /
// runtime.InitializeVMIntegration() split (§4.9).
func (vm *VM) Bootstrap() {
	vm.BootstrapWithNamespaces([]string{"core", "io", "net"})
}

// BootstrapWithNamespaces is Bootstrap restricted to the given native
// namespaces (config's native_namespaces allow-list, NEW per SPEC_FULL
// §1.1). Classes always bind; unlisted namespaces simply register no
// natives, matching the original's defineNetNatives existing even when
// thin (§4.9).
func (vm *VM) BootstrapWithNamespaces(namespaces []string) {
	vm.Classes.BindCore()
	allowed := make(map[string]bool, len(namespaces))
	for _, n := range namespaces {
		allowed[n] = true
	}
	if allowed["core"] {
		native.RegisterCore(vm.Natives)
	}
	if allowed["io"] {
		native.RegisterIO(vm.Natives)
	}
	if allowed["net"] {
		native.RegisterNet(vm.Natives)
	}
}

func (vm *VM) Atom(a values.Atom) *values.Value { return vm.atoms[a] }

// boolValue maps a Go bool onto the true/false singleton atoms (§4.1's
// comparison/test opcodes all produce one of these two Values).
func (vm *VM) boolValue(b bool) *values.Value {
	if b {
		return vm.atoms[values.AtomTrue]
	}
	return vm.atoms[values.AtomFalse]
}

// ClassOf returns the runtime class of any Value (§4.5's `is` test and
// classOf(reg[A])).
func (vm *VM) ClassOf(v *values.Value) *values.Class {
	return values.ClassOf(v, &vm.Classes.Core)
}

// Alloc registers a freshly created heap Value with the collector, the
// single point every opcode that materializes a heap object (RECORD, LIST,
// FUNCTION, CLASS, ASYNC, NATIVE channel constructors) must pass through.
func (vm *VM) Alloc(v *values.Value) *values.Value {
	if r := v.HeapData(); r != nil {
		vm.Heap.Alloc(r, gc.EstimateSize(v))
	}
	return v
}

// NewFiber creates a fiber running fn from its first instruction against
// mod's module-variable scope (may be nil for a module-less fiber; ASYNC
// passes the spawning fiber's module), with successor as the fiber to
// notify on completion (may be nil).
func (vm *VM) NewFiber(fn *chunk.Function, mod *module.Module, successor *Fiber) *Fiber {
	f := &Fiber{vm: vm, id: vm.nextID, module: mod, successor: successor, state: FiberReady}
	vm.nextID++
	f.pushCall(fn, 0)
	vm.fibers = append(vm.fibers, f)
	return f
}

// InstallErrorConsumer parks a self-re-arming receiver on ErrorChannel, the
// "built-in consumer" §6 says reports uncaught errors without the crashing
// fiber needing to survive. fn is called once per delivered (error) value;
// it re-arms itself immediately after so later uncaught errors from other
// fibers are not dropped.
func (vm *VM) InstallErrorConsumer(fn func(*values.Value)) {
	var waiter sched.Waiter
	waiter.Resume = func(v *values.Value) {
		fn(v)
		vm.ErrorChannel.Receive(waiter)
	}
	vm.ErrorChannel.Receive(waiter)
}

// reachRoots walks every root named in §4.3 step 2: symbols carry no
// Values, but classes, multimethods, module variables, live fibers, and the
// error channel do.
func (vm *VM) reachRoots(mark func(*values.Value)) {
	for _, c := range vm.Classes.All() {
		mark(c)
	}
	for i := 0; i < len(vm.atoms); i++ {
		mark(vm.atoms[i])
	}
	for id := 0; vm.Multimethods.Get(id) != nil; id++ {
		mark(vm.Multimethods.Get(id))
	}
	for _, m := range vm.Modules {
		for _, v := range m.VarValues {
			mark(v)
		}
	}
	for _, f := range vm.fibers {
		f.Reach(mark)
	}
	vm.ErrorChannel.Reach(mark)
}

// checkpointCollect runs a collection unconditionally; runLoop calls it
// when a fiber yields DID_GC (§4.3/§4.4).
func (vm *VM) checkpointCollect() {
	vm.Heap.Collect(vm.reachRoots)
}

// RunProgram spawns one fiber per module body in topological order and
// drives them all to quiescence, mirroring VM::runProgram's
// scheduler_.run(modules) (§4.4.1).
func (vm *VM) RunProgram(modules []*module.Module) error {
	ordered, err := module.TopoSort(modules)
	if err != nil {
		return err
	}
	vm.Modules = ordered
	for _, m := range ordered {
		fn := chunk.NewFunction(m.Body)
		vm.Alloc(&values.Value{Type: values.TypeFunction, Data: fn})
		f := vm.NewFiber(fn, m, nil)
		vm.Scheduler.Enqueue(f)
	}
	vm.runLoop()
	return nil
}

// RunModule runs a single module body to completion and returns its
// result, used by the REPL to evaluate one expression at a time against the
// sticky <repl> module (VM::evaluateReplExpression, §4.7).
func (vm *VM) RunModule(m *module.Module) (*values.Value, error) {
	fn := chunk.NewFunction(m.Body)
	vm.Alloc(&values.Value{Type: values.TypeFunction, Data: fn})
	f := vm.NewFiber(fn, m, nil)
	vm.Scheduler.Enqueue(f)
	vm.runLoop()
	if f.uncaught != nil {
		return nil, fmt.Errorf("uncaught error: %s", f.uncaught.String())
	}
	return f.result, nil
}

// runLoop is the scheduler's main loop (§4.4): pick a ready fiber, run it
// until it yields, act on the outcome, repeat until the ready queue and
// sleep queue are both empty.
func (vm *VM) runLoop() {
	for {
		f, ok := vm.Scheduler.Dequeue()
		if !ok {
			deadline, hasSleepers := vm.Scheduler.NextDeadline()
			if !hasSleepers {
				return
			}
			if d := time.Until(deadline); d > 0 {
				time.Sleep(d)
			}
			vm.Scheduler.WakeDue(time.Now())
			continue
		}

		fiber := f.(*Fiber)
		outcome := fiber.RunUntilYield()
		switch outcome {
		case sched.Done:
			if fiber.successor != nil {
				// Resume already re-enqueues the successor; it is the sole
				// enqueue point (§4.2's join path for `fiber.await`).
				fiber.successor.Resume(fiber.result)
			}
		case sched.Suspend:
			// Parked by whichever native caused the suspend; it will be
			// re-enqueued by that native's own completion path (Host
			// methods on Fiber).
		case sched.DidGC:
			vm.checkpointCollect()
			vm.Scheduler.EnqueueFront(fiber)
		case sched.UncaughtError:
			// Already delivered to the error channel in raiseException.
		}
	}
}
