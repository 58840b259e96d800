// Package trace provides plan and event trace recording for determinism checks.
// This package has no dependencies on sim/. It stores pure data types.
package trace

// PlanRecord captures one executed plan.
type PlanRecord struct {
	Seq      uint64  // submission order within the run
	Time     float64 // simulation time the plan ran at
	Priority int
	Passive  bool
}

// EventRecord captures one published event.
type EventRecord struct {
	Time  float64
	Kind  string
	Depth int // 0 for events published by plans, >0 for events published by handlers
}
