package epidemic

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
	"github.com/popsim/popsim/sim/groups"
	"github.com/popsim/popsim/sim/people"
	"github.com/popsim/popsim/sim/personprops"
)

// Checkpoint is the state of a closed run: the population, property values,
// households, pending plans, random stream positions and cumulative tally.
// The id limits keep ids removed before the checkpoint retired afterwards.
type Checkpoint struct {
	RunID         string               `yaml:"run_id"`
	Seed          int64                `yaml:"seed"`
	Time          float64              `yaml:"time"`
	PersonIDLimit int                  `yaml:"person_id_limit"`
	GroupIDLimit  int                  `yaml:"group_id_limit"`
	People        []people.Range       `yaml:"people"`
	Persons       []PersonRecord       `yaml:"persons"`
	Groups        []groups.GroupSpec   `yaml:"groups"`
	Plans         []PlanRecord         `yaml:"plans"`
	Streams       []sim.StreamPosition `yaml:"streams"`
	Tally         Tally                `yaml:"tally"`
}

// PersonRecord holds one person's property values.
type PersonRecord struct {
	ID         entity.PersonID `yaml:"id"`
	Age        int8            `yaml:"age"`
	Status     Status          `yaml:"status"`
	Since      float64         `yaml:"since"`
	Vaccinated bool            `yaml:"vaccinated,omitempty"`
}

// state is the plugin data a run starts from.
type state struct {
	people  people.PluginData
	props   personprops.PluginData
	groups  groups.PluginData
	plans   []sim.PendingPlan
	tally   Tally
	resumed bool
}

func propertyBuilder() *personprops.Builder {
	return personprops.NewBuilder().
		DefineProperty(PropStatus, statusDefinition()).
		DefineProperty(PropAge, ageDefinition()).
		DefineProperty(PropVaccinated, vaccinatedDefinition())
}

// initialState builds a fresh population: uniformly drawn ages and
// consecutive people packed into households.
func initialState(sc *Scenario) (*state, error) {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(sc.Sim.Seed)).ForSubsystem("population")

	pd, err := people.NewBuilder().AddPeople(sc.Population).Build()
	if err != nil {
		return nil, err
	}
	pb := propertyBuilder()
	gb := groups.NewBuilder().AddType(Household)
	for i := 0; i < sc.Population; i++ {
		p := entity.PersonID(i)
		pb.SetValue(PropAge, p, int8(rng.Intn(90)))
		g := entity.GroupID(i / sc.HouseholdSize)
		if i%sc.HouseholdSize == 0 {
			gb.AddGroup(g, Household)
		}
		gb.AddMember(g, p)
	}
	props, err := pb.Build()
	if err != nil {
		return nil, err
	}
	gd, err := gb.Build()
	if err != nil {
		return nil, err
	}
	return &state{people: pd, props: props, groups: gd}, nil
}

// newCheckpoint collects the snapshots and pending plans of a closed run.
func newCheckpoint(s *sim.Simulation, seed int64) (*Checkpoint, error) {
	snaps, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	pending, err := s.CollectPendingPlans()
	if err != nil {
		return nil, err
	}
	pd, ok := snaps[people.ID].(people.PluginData)
	if !ok {
		return nil, fmt.Errorf("%w: no people snapshot", sim.ErrUnknownID)
	}
	props, ok := snaps[personprops.ID].(personprops.PluginData)
	if !ok {
		return nil, fmt.Errorf("%w: no person property snapshot", sim.ErrUnknownID)
	}
	gd, ok := snaps[groups.ID].(groups.PluginData)
	if !ok {
		return nil, fmt.Errorf("%w: no group snapshot", sim.ErrUnknownID)
	}
	tally, _ := snaps[ID].(Tally)

	cp := &Checkpoint{
		RunID:         s.RunID(),
		Seed:          seed,
		Time:          s.Clock(),
		PersonIDLimit: pd.IDLimit(),
		GroupIDLimit:  gd.IDLimit(),
		People:        pd.Ranges(),
		Groups:        gd.Groups(),
		Streams:       s.StreamPositions(),
		Tally:         tally,
	}
	ages := props.Values(PropAge)
	statuses := props.Values(PropStatus)
	since := props.Times(PropStatus)
	vaccinated := props.Values(PropVaccinated)
	for _, r := range cp.People {
		for p := r.First; p <= r.Last; p++ {
			age, ok := ages[p].(int8)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no age", sim.ErrMissingDefault, p)
			}
			rec := PersonRecord{ID: p, Age: age, Status: Susceptible, Since: since[p]}
			if st, ok := statuses[p].(Status); ok {
				rec.Status = st
			}
			if v, ok := vaccinated[p].(bool); ok {
				rec.Vaccinated = v
			}
			cp.Persons = append(cp.Persons, rec)
		}
	}
	for _, p := range pending {
		rec, err := recordOf(p)
		if err != nil {
			return nil, err
		}
		cp.Plans = append(cp.Plans, rec)
	}
	return cp, nil
}

// Validate checks that the checkpoint is internally consistent.
func (cp *Checkpoint) Validate() error {
	if math.IsNaN(cp.Time) || math.IsInf(cp.Time, 0) {
		return fmt.Errorf("checkpoint time must be finite, got %v", cp.Time)
	}
	if cp.PersonIDLimit < 0 || cp.GroupIDLimit < 0 {
		return fmt.Errorf("negative id limit (people %d, groups %d)", cp.PersonIDLimit, cp.GroupIDLimit)
	}
	live := 0
	for _, r := range cp.People {
		if r.First < 0 || r.Last < r.First {
			return fmt.Errorf("invalid person range [%d, %d]", r.First, r.Last)
		}
		if int(r.Last) >= cp.PersonIDLimit {
			return fmt.Errorf("person range [%d, %d] reaches past person_id_limit %d", r.First, r.Last, cp.PersonIDLimit)
		}
		live += r.Len()
	}
	for _, g := range cp.Groups {
		if int(g.ID) >= cp.GroupIDLimit {
			return fmt.Errorf("%s reaches past group_id_limit %d", g.ID, cp.GroupIDLimit)
		}
	}
	for _, st := range cp.Streams {
		if st.Name == "" {
			return fmt.Errorf("random stream without a name")
		}
	}
	if live != len(cp.Persons) {
		return fmt.Errorf("checkpoint lists %d people in ranges but %d person records", live, len(cp.Persons))
	}
	for _, rec := range cp.Persons {
		if !ValidStatus(rec.Status) {
			return fmt.Errorf("%s has unknown status %q", rec.ID, rec.Status)
		}
	}
	for _, r := range cp.Plans {
		if r.Time < cp.Time {
			return fmt.Errorf("%s plan at %v precedes checkpoint time %v", r.Kind, r.Time, cp.Time)
		}
	}
	return nil
}

// state rebuilds the plugin data and pending plans of the checkpoint.
func (cp *Checkpoint) state() (*state, error) {
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	b := people.NewBuilder().SetIDLimit(cp.PersonIDLimit)
	for _, r := range cp.People {
		b.AddRange(r.First, r.Last)
	}
	pd, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("restoring people: %w", err)
	}

	pb := propertyBuilder()
	for _, rec := range cp.Persons {
		pb.SetValue(PropAge, rec.ID, rec.Age)
		if rec.Status != Susceptible {
			pb.SetValue(PropStatus, rec.ID, rec.Status)
		}
		pb.SetTime(PropStatus, rec.ID, rec.Since)
		if rec.Vaccinated {
			pb.SetValue(PropVaccinated, rec.ID, true)
		}
	}
	props, err := pb.Build()
	if err != nil {
		return nil, fmt.Errorf("restoring properties: %w", err)
	}

	gb := groups.NewBuilder().AddType(Household).SetIDLimit(cp.GroupIDLimit)
	types := map[groups.TypeID]bool{Household: true}
	for _, g := range cp.Groups {
		if !types[g.Type] {
			gb.AddType(g.Type)
			types[g.Type] = true
		}
		gb.AddGroup(g.ID, g.Type)
		for _, p := range g.Members {
			gb.AddMember(g.ID, p)
		}
	}
	gd, err := gb.Build()
	if err != nil {
		return nil, fmt.Errorf("restoring groups: %w", err)
	}

	plans := make([]sim.PendingPlan, 0, len(cp.Plans))
	for _, r := range cp.Plans {
		p, err := r.pending()
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	// Restored plans keep their relative order when resubmitted.
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Time != plans[j].Time {
			return plans[i].Time < plans[j].Time
		}
		return plans[i].Priority < plans[j].Priority
	})
	return &state{people: pd, props: props, groups: gd, plans: plans, tally: cp.Tally, resumed: true}, nil
}

// Save writes the checkpoint as YAML.
func (cp *Checkpoint) Save(path string) error {
	data, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads and validates a checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	if err := cp.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return &cp, nil
}
