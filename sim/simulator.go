// sim/simulator.go
package sim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/popsim/popsim/sim/trace"
)

type runState int

const (
	stateCreated runState = iota
	stateRunning
	stateClosed
)

// Actor is model code that runs once after every data manager has
// initialized. Actors seed the initial plans and subscriptions.
type Actor func(ctx *Context) error

type actorEntry struct {
	name string
	init Actor
}

// Simulation holds the clock, the plan scheduler, the event bus and the data
// managers of one run. It is single-threaded: nothing in it may be touched
// from another goroutine while Run is executing.
type Simulation struct {
	config  Config
	runID   string
	clock   float64
	plans   *PlanScheduler
	bus     *EventBus
	host    *DataManagerHost
	actors  []actorEntry
	rng     *PartitionedRNG
	ctx     *Context
	metrics *Metrics
	trace   *trace.SimulationTrace
	log     *logrus.Entry
	state   runState
	halted  bool
}

// NewSimulation creates a simulation ready for data managers and actors.
func NewSimulation(config Config) (*Simulation, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	metrics, err := NewMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}
	rng := NewPartitionedRNG(NewSimulationKey(config.Seed))
	if err := rng.Restore(config.Streams); err != nil {
		return nil, fmt.Errorf("restoring random streams: %w", err)
	}
	runID := config.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	s := &Simulation{
		config:  config,
		runID:   runID,
		clock:   config.StartTime,
		plans:   NewPlanScheduler(),
		host:    NewDataManagerHost(),
		rng:     rng,
		metrics: metrics,
		trace:   trace.NewSimulationTrace(config.Trace),
		log:     logrus.WithField("run", runID),
	}
	s.ctx = &Context{sim: s}
	s.bus = NewEventBus(s.ctx)
	s.bus.observe = s.observeEvent
	s.metrics.SimStartTime = config.StartTime
	s.metrics.SimEndedTime = config.StartTime
	return s, nil
}

// AddDataManager registers a data manager and the ids it depends on.
func (s *Simulation) AddDataManager(id DataManagerID, dm DataManager, deps ...DataManagerID) error {
	if s.state != stateCreated {
		return fmt.Errorf("data manager %q added after the simulation started", id)
	}
	return s.host.Register(id, dm, deps...)
}

// AddActor registers model code that runs after data manager initialization,
// in registration order.
func (s *Simulation) AddActor(name string, actor Actor) error {
	if actor == nil {
		return fmt.Errorf("%w: actor %q", ErrNullArgument, name)
	}
	if s.state != stateCreated {
		return fmt.Errorf("actor %q added after the simulation started", name)
	}
	s.actors = append(s.actors, actorEntry{name: name, init: actor})
	return nil
}

// Run initializes the data managers in dependency order, runs the actors and
// then executes plans until no active plan remains, the horizon is reached or
// a callback halts the run. An error from any callback or handler aborts the
// run and is returned; it is never retried.
func (s *Simulation) Run() error {
	if s.state != stateCreated {
		return fmt.Errorf("simulation %s has already run", s.runID)
	}
	s.state = stateRunning
	defer func() { s.state = stateClosed }()

	s.log.Infof("[t=%v] Simulation starting", s.clock)
	if err := s.host.Init(s.ctx); err != nil {
		return err
	}
	for _, a := range s.actors {
		if err := a.init(s.ctx); err != nil {
			return fmt.Errorf("initializing actor %q: %w", a.name, err)
		}
	}

	for !s.halted && s.plans.ActiveLen() > 0 {
		next, _ := s.plans.Peek()
		if s.config.pastHorizon(next.Time) {
			s.log.Debugf("[t=%v] Next plan at %v is past the horizon %v", s.clock, next.Time, *s.config.Horizon)
			break
		}
		p, h, _ := s.plans.PopNext()
		// advance the clock
		s.clock = p.Time
		s.metrics.planExecuted()
		s.trace.RecordPlan(trace.PlanRecord{Seq: h.seq, Time: p.Time, Priority: p.Priority, Passive: p.Passive})
		s.log.Tracef("[t=%v] Executing plan #%d (priority %d)", s.clock, h.seq, p.Priority)
		if err := p.Callback(s.ctx); err != nil {
			s.metrics.SimEndedTime = s.clock
			return fmt.Errorf("plan #%d at time %v: %w", h.seq, p.Time, err)
		}
	}

	s.metrics.SimEndedTime = s.clock
	s.log.Infof("[t=%v] Simulation ended (%d plans executed, %d pending)", s.clock, s.metrics.PlansExecuted, s.plans.Len())
	return nil
}

func (s *Simulation) schedule(p Plan) (PlanHandle, error) {
	if s.state == stateClosed {
		return PlanHandle{}, fmt.Errorf("%w: simulation is closed", ErrInvalidPlan)
	}
	h, err := s.plans.Schedule(p, s.clock)
	if err != nil {
		return PlanHandle{}, err
	}
	s.metrics.planScheduled()
	return h, nil
}

func (s *Simulation) cancel(h PlanHandle) bool {
	if !s.plans.Cancel(h) {
		return false
	}
	s.metrics.planCancelled()
	return true
}

func (s *Simulation) observeEvent(ev Event, depth int) {
	s.metrics.eventPublished(ev.Kind())
	s.trace.RecordEvent(trace.EventRecord{Time: s.clock, Kind: ev.Kind().String(), Depth: depth})
}

// CollectPendingPlans returns the plans that had not run when the simulation
// closed and that carry a payload, in the order they would have executed.
// Plans without a payload are dropped. The scheduler is emptied, so a second
// call returns nothing.
func (s *Simulation) CollectPendingPlans() ([]PendingPlan, error) {
	if s.state != stateClosed {
		return nil, fmt.Errorf("pending plans can only be collected after the run")
	}
	return s.plans.Drain(), nil
}

// Snapshot asks every data manager that implements Snapshotter for plugin
// data describing its current state.
func (s *Simulation) Snapshot() (map[DataManagerID]any, error) {
	if s.state == stateCreated {
		return nil, fmt.Errorf("snapshot requested before the simulation started")
	}
	snapshots := make(map[DataManagerID]any)
	for _, e := range s.host.initialized() {
		if !e.initialized {
			continue
		}
		snap, ok := e.dm.(Snapshotter)
		if !ok {
			continue
		}
		data, err := snap.Snapshot(s.ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshotting data manager %q: %w", e.id, err)
		}
		snapshots[e.id] = data
	}
	return snapshots, nil
}

// Clock returns the simulation time of the last executed plan.
func (s *Simulation) Clock() float64 { return s.clock }

// RunID returns the id used in logs and checkpoints.
func (s *Simulation) RunID() string { return s.runID }

// StreamPositions returns how far each random stream has advanced.
func (s *Simulation) StreamPositions() []StreamPosition { return s.rng.Positions() }

// Metrics returns the run counters.
func (s *Simulation) Metrics() *Metrics { return s.metrics }

// Trace returns the plan and event trace (empty unless tracing is enabled).
func (s *Simulation) Trace() *trace.SimulationTrace { return s.trace }

// Context returns the simulation's context, for reading data managers after
// the run.
func (s *Simulation) Context() *Context { return s.ctx }

// PendingPlanCount returns the number of plans still queued.
func (s *Simulation) PendingPlanCount() int { return s.plans.Len() }
