package epidemic

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/groups"
	"github.com/popsim/popsim/sim/partition"
	"github.com/popsim/popsim/sim/people"
	"github.com/popsim/popsim/sim/personprops"
	"github.com/popsim/popsim/sim/trace"
)

// Result summarizes a finished run.
type Result struct {
	RunID   string
	Seed    int64
	EndTime float64
	Final   Report
	Tally   Tally
	Reports []Report
	Metrics *sim.Metrics
	Trace   *trace.SimulationTrace
	// Checkpoint describes the state at EndTime, including plans held back
	// by the horizon.
	Checkpoint *Checkpoint
}

// Run executes a fresh scenario. reg may be nil.
func Run(sc *Scenario, reg prometheus.Registerer) (*Result, error) {
	st, err := initialState(sc)
	if err != nil {
		return nil, fmt.Errorf("building population: %w", err)
	}
	cfg := sc.Sim
	cfg.Registerer = reg
	return run(sc, cfg, st)
}

// Resume continues a checkpointed run until horizon (nil for no horizon)
// under the rates of sc. The continuation keeps the checkpoint's run id and
// seed, and its random streams continue from the checkpointed positions.
func Resume(sc *Scenario, cp *Checkpoint, horizon *float64, reg prometheus.Registerer) (*Result, error) {
	st, err := cp.state()
	if err != nil {
		return nil, err
	}
	cfg := sc.Sim
	cfg.RunID = cp.RunID
	cfg.Seed = cp.Seed
	cfg.StartTime = cp.Time
	cfg.Horizon = horizon
	cfg.Streams = cp.Streams
	cfg.Registerer = reg
	return run(sc, cfg, st)
}

func run(sc *Scenario, cfg sim.Config, st *state) (*Result, error) {
	s, err := sim.NewSimulation(cfg)
	if err != nil {
		return nil, err
	}
	model := newModel(sc, st)
	for _, dm := range []struct {
		id   sim.DataManagerID
		dm   sim.DataManager
		deps []sim.DataManagerID
	}{
		{people.ID, people.New(st.people), nil},
		{personprops.ID, personprops.New(st.props), []sim.DataManagerID{people.ID}},
		{groups.ID, groups.New(st.groups), []sim.DataManagerID{people.ID}},
		{partition.ID, partition.New(), []sim.DataManagerID{people.ID}},
		{ID, model, []sim.DataManagerID{people.ID, personprops.ID, groups.ID, partition.ID}},
	} {
		if err := s.AddDataManager(dm.id, dm.dm, dm.deps...); err != nil {
			return nil, err
		}
	}
	if err := s.AddActor("epidemic", model.Start); err != nil {
		return nil, err
	}
	if err := s.Run(); err != nil {
		return nil, err
	}

	final, err := model.census(s.Clock())
	if err != nil {
		return nil, err
	}
	cp, err := newCheckpoint(s, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("checkpointing run %s: %w", s.RunID(), err)
	}
	return &Result{
		RunID:      s.RunID(),
		Seed:       cfg.Seed,
		EndTime:    s.Clock(),
		Final:      final,
		Tally:      model.Tally(),
		Reports:    model.Reports(),
		Metrics:    s.Metrics(),
		Trace:      s.Trace(),
		Checkpoint: cp,
	}, nil
}
