// Package sched implements the scheduling primitives the single-threaded
// cooperative runtime is built from: a FIFO ready queue, a deadline-ordered
// sleep queue, and synchronous rendezvous channels (§4.4, §4.6).
//
// It knows nothing about Fiber, Chunk, or any other vm-level type. Runnable
// is the only thing it needs from a unit of execution, the same leaf-
// interface pattern values.Reacher uses to let vm depend on sched without
// sched depending back on vm.
package sched

import (
	"container/heap"
	"time"

	"github.com/wudi/magpie/values"
)

// Outcome is what a Runnable reports back after one scheduling turn.
type Outcome byte

const (
	Done Outcome = iota
	Suspend
	DidGC
	UncaughtError
)

// Runnable is a fiber from the scheduler's point of view: something that can
// be run until it yields one of the four outcomes named in §4.4.
type Runnable interface {
	RunUntilYield() Outcome
}

// Waiter is a parked fiber's resumption handle: Resume is called exactly
// once, with the value the rendezvous delivered (nil for a sender, who only
// needs to be readied again), and re-enqueues the fiber onto the scheduler
// that parked it.
type Waiter struct {
	Resume func(v *values.Value)
}

// Scheduler owns the ready queue and the sleep queue (§4.4). Channel
// rendezvous is modeled by the separate Channel type (channel.go), since
// channels are ordinary heap Values a program can hold onto, independent of
// the scheduler.
type Scheduler struct {
	ready    []Runnable
	sleeping sleepHeap
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Enqueue appends r to the tail of the ready queue.
func (s *Scheduler) Enqueue(r Runnable) { s.ready = append(s.ready, r) }

// EnqueueFront pushes r to the head of the ready queue, used to re-run a
// fiber immediately after DID_GC (§4.4: "re-enqueue the same fiber at the
// head").
func (s *Scheduler) EnqueueFront(r Runnable) {
	s.ready = append([]Runnable{r}, s.ready...)
}

func (s *Scheduler) ReadyLen() int { return len(s.ready) }

// Dequeue pops the head of the ready queue.
func (s *Scheduler) Dequeue() (Runnable, bool) {
	if len(s.ready) == 0 {
		return nil, false
	}
	r := s.ready[0]
	s.ready = s.ready[1:]
	return r, true
}

// Sleep parks r until deadline (§4.4: "a min-heap or sorted list of sleeping
// fibers keyed by wake deadline").
func (s *Scheduler) Sleep(r Runnable, deadline time.Time) {
	heap.Push(&s.sleeping, sleepEntry{deadline: deadline, r: r})
}

func (s *Scheduler) SleepingLen() int { return len(s.sleeping) }

// NextDeadline returns the earliest sleep deadline, if any are pending.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	if len(s.sleeping) == 0 {
		return time.Time{}, false
	}
	return s.sleeping[0].deadline, true
}

// WakeDue moves every sleeper whose deadline is <= now onto the ready
// queue, in deadline order (§8 property 7: "fibers sleeping t1<t2 wake in
// that order regardless of scheduling order").
func (s *Scheduler) WakeDue(now time.Time) int {
	woken := 0
	for len(s.sleeping) > 0 && !s.sleeping[0].deadline.After(now) {
		e := heap.Pop(&s.sleeping).(sleepEntry)
		s.Enqueue(e.r)
		woken++
	}
	return woken
}

type sleepEntry struct {
	deadline time.Time
	r        Runnable
}

type sleepHeap []sleepEntry

func (h sleepHeap) Len() int            { return len(h) }
func (h sleepHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h sleepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sleepHeap) Push(x interface{}) { *h = append(*h, x.(sleepEntry)) }
func (h *sleepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
