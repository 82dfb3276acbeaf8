package vm

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/wudi/magpie/opcodes"
)

// DebugLevel controls how much profiling bookkeeping RunUntilYield does per
// instruction (§4.1.1, NEW). This is purely ambient tooling: it never feeds
// back into interpreter control flow, so it has no bearing on any of §8's
// testable properties.
type DebugLevel int

const (
	DebugNone DebugLevel = iota
	DebugBasic
	DebugDetailed
)

// HotSpot is one (pc, execution count) sample, grounded on the teacher's
// vm/profiling.go HotSpot/profileState.hotSpots.
type HotSpot struct {
	PC    int
	Count int
}

// Breakpoint identifies a single paused instruction by fiber and pc.
type Breakpoint struct {
	FiberID uint64
	PC      int
}

// profileState accumulates instruction/opcode counts and debug log lines
// for one VM's lifetime. Unlike the teacher's profileState, this carries no
// mutex: §5 makes single-threaded cooperative scheduling an explicit
// invariant, so at most one RunUntilYield call ever touches it.
type profileState struct {
	runID             uuid.UUID
	level             DebugLevel
	instructionCounts map[int]int
	opcodeCounts      map[opcodes.Opcode]int
	breakpoints       map[Breakpoint]bool
	debug             []string
}

func newProfileState(level DebugLevel) *profileState {
	return &profileState{
		runID:             uuid.New(),
		level:             level,
		instructionCounts: make(map[int]int),
		opcodeCounts:      make(map[opcodes.Opcode]int),
		breakpoints:       make(map[Breakpoint]bool),
	}
}

func (ps *profileState) observe(pc int, op opcodes.Opcode) {
	if ps.level == DebugNone {
		return
	}
	ps.instructionCounts[pc]++
	if ps.level == DebugDetailed {
		ps.opcodeCounts[op]++
	}
}

func (ps *profileState) addDebug(message string) {
	ps.debug = append(ps.debug, message)
}

func (ps *profileState) atBreakpoint(fiberID uint64, pc int) bool {
	if len(ps.breakpoints) == 0 {
		return false
	}
	return ps.breakpoints[Breakpoint{FiberID: fiberID, PC: pc}]
}

func (ps *profileState) hotSpots(n int) []HotSpot {
	spots := make([]HotSpot, 0, len(ps.instructionCounts))
	for pc, count := range ps.instructionCounts {
		spots = append(spots, HotSpot{PC: pc, Count: count})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Count == spots[j].Count {
			return spots[i].PC < spots[j].PC
		}
		return spots[i].Count > spots[j].Count
	})
	if n <= 0 || n >= len(spots) {
		return spots
	}
	return spots[:n]
}

// report renders a human-readable profiling summary tagged with the run's
// correlation id, so debug output from multiple CLI invocations can be told
// apart in aggregated logs — the one thing the teacher's profileState had
// no need for, since it never correlated output across process runs.
func (ps *profileState) report(top int) string {
	if len(ps.instructionCounts) == 0 {
		return fmt.Sprintf("run %s: (no profiling data)", ps.runID)
	}
	total := 0
	for _, c := range ps.instructionCounts {
		total += c
	}
	out := fmt.Sprintf("run %s: %d instructions executed, %d unique pcs\n", ps.runID, total, len(ps.instructionCounts))
	for _, hs := range ps.hotSpots(top) {
		out += fmt.Sprintf("  pc=%d count=%d\n", hs.PC, hs.Count)
	}
	for _, line := range ps.debug {
		out += "  " + line + "\n"
	}
	return out
}

// SetDebugLevel turns on (or off) instruction/breakpoint bookkeeping.
// DebugNone drops the profileState entirely so a non-debug run pays no
// per-instruction overhead beyond the one nil check in RunUntilYield.
func (vm *VM) SetDebugLevel(level DebugLevel) {
	if level == DebugNone {
		vm.profile = nil
		return
	}
	vm.profile = newProfileState(level)
}

// SetBreakpoint arms a breakpoint at fiberID/pc; hits are recorded as debug
// log lines (see profileState.atBreakpoint's caller in fiber.go) rather
// than pausing execution, keeping this surface side-effect free with
// respect to §8's testable properties.
func (vm *VM) SetBreakpoint(fiberID uint64, pc int) {
	if vm.profile == nil {
		vm.SetDebugLevel(DebugBasic)
	}
	vm.profile.breakpoints[Breakpoint{FiberID: fiberID, PC: pc}] = true
}

func (vm *VM) ClearBreakpoint(fiberID uint64, pc int) {
	if vm.profile == nil {
		return
	}
	delete(vm.profile.breakpoints, Breakpoint{FiberID: fiberID, PC: pc})
}

// DebugReport renders the current profiling summary, or "(debugging
// disabled)" if SetDebugLevel was never called.
func (vm *VM) DebugReport(top int) string {
	if vm.profile == nil {
		return "(debugging disabled)"
	}
	return vm.profile.report(top)
}
