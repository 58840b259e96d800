// Package sim provides the discrete-event kernel for population simulations.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - plan.go: Plans (deferred callbacks) and the scheduler that orders them
//   - bus.go: Synchronous, depth-first event dispatch with labeled subscriptions
//   - datamanager.go: Data managers and their dependency-ordered initialization
//   - simulator.go: The run loop, stopping conditions and end-of-run collection
//
// # Architecture
//
// The kernel owns time, plans and events; simulation state lives in data
// managers, each the exclusive owner of one slice of it:
//   - sim/propstore/: Compact per-entity columns (bit-packed bools, enums, numbers)
//   - sim/entity/: Dense id registries with tombstones
//   - sim/people/: Person lifecycle
//   - sim/personprops/: Typed person properties stored in propstore columns
//   - sim/groups/: Group types, groups and memberships
//   - sim/partition/: Incrementally maintained, labeled person populations and sampling
//   - sim/epidemic/: An SIR model built on the above, with checkpointing
//   - sim/trace/: Optional plan and event trace
//
// Model code reaches the kernel only through Context. Mutations are validated
// before they change state, and every change is announced on the bus, which is
// how partitions stay current without rescanning the population.
//
// # Determinism
//
// A run is single-threaded. Random draws come from per-subsystem streams
// derived from the seed (see PartitionedRNG), so two runs with the same seed
// and configuration produce the same plans, events and state. Streams count
// their draws; a continuation run restores the counts (Config.Streams) and
// picks every stream up where the checkpointed run stopped.
package sim
