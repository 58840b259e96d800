package sim

import (
	"container/heap"
	"fmt"
	"math"
)

// Plan is a deferred callback. Plans run in ascending Time, then ascending
// Priority, then submission order.
type Plan struct {
	Time     float64
	Priority int
	Callback func(ctx *Context) error
	// Payload is opaque to the kernel. Only plans with a payload survive a
	// checkpoint; see Simulation.CollectPendingPlans.
	Payload any
	// Passive plans run when their time comes but do not keep the simulation
	// alive: the run ends once only passive plans remain.
	Passive bool
}

// PlanHandle identifies a submitted plan for cancellation.
type PlanHandle struct {
	seq uint64
}

// Valid reports whether the handle was issued by a scheduler.
func (h PlanHandle) Valid() bool { return h.seq != 0 }

// PendingPlan is the collectible part of a plan that had not run when the
// simulation closed.
type PendingPlan struct {
	Time     float64
	Priority int
	Payload  any
	Passive  bool
}

type planEntry struct {
	plan  Plan
	seq   uint64
	index int
}

// planQueue is a min-heap ordered by (Time, Priority, seq). Implements heap.Interface.
type planQueue []*planEntry

func (q planQueue) Len() int { return len(q) }

func (q planQueue) Less(i, j int) bool {
	if q[i].plan.Time != q[j].plan.Time {
		return q[i].plan.Time < q[j].plan.Time
	}
	if q[i].plan.Priority != q[j].plan.Priority {
		return q[i].plan.Priority < q[j].plan.Priority
	}
	return q[i].seq < q[j].seq
}

func (q planQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *planQueue) Push(x any) {
	e := x.(*planEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *planQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// PlanScheduler owns every submitted plan until it runs or is cancelled.
type PlanScheduler struct {
	queue   planQueue
	entries map[uint64]*planEntry
	nextSeq uint64
	active  int
}

// NewPlanScheduler creates an empty scheduler.
func NewPlanScheduler() *PlanScheduler {
	return &PlanScheduler{
		queue:   make(planQueue, 0),
		entries: make(map[uint64]*planEntry),
	}
}

// Schedule submits p. now is the current simulation time; p.Time must not
// precede it.
func (s *PlanScheduler) Schedule(p Plan, now float64) (PlanHandle, error) {
	if p.Callback == nil {
		return PlanHandle{}, fmt.Errorf("%w: plan callback", ErrNullArgument)
	}
	if math.IsNaN(p.Time) || math.IsInf(p.Time, 0) {
		return PlanHandle{}, fmt.Errorf("%w: plan time %v is not finite", ErrInvalidPlan, p.Time)
	}
	if p.Time < now {
		return PlanHandle{}, fmt.Errorf("%w: plan time %v precedes current time %v", ErrInvalidPlan, p.Time, now)
	}
	s.nextSeq++
	e := &planEntry{plan: p, seq: s.nextSeq}
	heap.Push(&s.queue, e)
	s.entries[e.seq] = e
	if !p.Passive {
		s.active++
	}
	return PlanHandle{seq: e.seq}, nil
}

// Cancel removes a plan that has not run yet. Cancelling an executed,
// already cancelled or unknown handle is a no-op that returns false.
func (s *PlanScheduler) Cancel(h PlanHandle) bool {
	e, ok := s.entries[h.seq]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, e.index)
	s.forget(e)
	return true
}

func (s *PlanScheduler) forget(e *planEntry) {
	delete(s.entries, e.seq)
	if !e.plan.Passive {
		s.active--
	}
}

// Len returns the number of pending plans, passive included.
func (s *PlanScheduler) Len() int { return len(s.queue) }

// ActiveLen returns the number of pending non-passive plans.
func (s *PlanScheduler) ActiveLen() int { return s.active }

// Peek returns the next plan without removing it.
func (s *PlanScheduler) Peek() (Plan, bool) {
	if len(s.queue) == 0 {
		return Plan{}, false
	}
	return s.queue[0].plan, true
}

// PopNext removes and returns the next plan in execution order.
func (s *PlanScheduler) PopNext() (Plan, PlanHandle, bool) {
	if len(s.queue) == 0 {
		return Plan{}, PlanHandle{}, false
	}
	e := heap.Pop(&s.queue).(*planEntry)
	s.forget(e)
	return e.plan, PlanHandle{seq: e.seq}, true
}

// Drain empties the scheduler and returns the pending plans that carry a
// payload, in execution order.
func (s *PlanScheduler) Drain() []PendingPlan {
	pending := make([]PendingPlan, 0, len(s.queue))
	for len(s.queue) > 0 {
		p, _, _ := s.PopNext()
		if p.Payload == nil {
			continue
		}
		pending = append(pending, PendingPlan{
			Time:     p.Time,
			Priority: p.Priority,
			Payload:  p.Payload,
			Passive:  p.Passive,
		})
	}
	return pending
}
