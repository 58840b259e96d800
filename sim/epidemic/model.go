// Package epidemic is an SIR model with households, vaccination, arrivals and
// deaths, built on the people, person property, group and partition data
// managers. It also translates a closed run into a checkpoint file that a
// continuation run can start from.
package epidemic

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
	"github.com/popsim/popsim/sim/groups"
	"github.com/popsim/popsim/sim/partition"
	"github.com/popsim/popsim/sim/people"
	"github.com/popsim/popsim/sim/personprops"
	"github.com/popsim/popsim/sim/propstore"
)

// Status is a person's compartment.
type Status string

const (
	Susceptible Status = "susceptible"
	Infectious  Status = "infectious"
	Recovered   Status = "recovered"
)

// ValidStatus reports whether s is a known compartment.
func ValidStatus(s Status) bool {
	return s == Susceptible || s == Infectious || s == Recovered
}

// AgeBand groups ages for vaccination priority.
type AgeBand string

const (
	Child  AgeBand = "child"
	Adult  AgeBand = "adult"
	Senior AgeBand = "senior"
)

// ValidAgeBand reports whether b is a known band.
func ValidAgeBand(b AgeBand) bool {
	return b == Child || b == Adult || b == Senior
}

// BandOf returns the band of an age in years.
func BandOf(age int8) AgeBand {
	switch {
	case age < 18:
		return Child
	case age < 65:
		return Adult
	}
	return Senior
}

// Properties, group type and partitions the model defines.
const (
	PropStatus     personprops.PropertyID = "status"
	PropAge        personprops.PropertyID = "age"
	PropVaccinated personprops.PropertyID = "vaccinated"

	Household groups.TypeID = "household"
)

// PartitionKey names the model's partitions.
type PartitionKey string

const (
	// PartitionByStatus holds everyone, labeled by status.
	PartitionByStatus PartitionKey = "by_status"
	// PartitionVaccineCandidates holds unvaccinated susceptible people,
	// labeled by age band.
	PartitionVaccineCandidates PartitionKey = "vaccine_candidates"
	// PartitionHoused holds people who belong to a household.
	PartitionHoused PartitionKey = "housed"
)

// Random streams used by the model.
const (
	streamContacts    = "contacts"
	streamVaccination = "vaccination"
	streamArrivals    = "arrivals"
)

// ID is the model's data manager id.
const ID sim.DataManagerID = "epidemic"

var statusValues = []any{Susceptible, Infectious, Recovered}

func statusDefinition() personprops.Definition {
	return personprops.Definition{
		Type:       propstore.TypeEnum,
		Default:    Susceptible,
		TrackTimes: true,
		EnumValues: statusValues,
	}
}

func ageDefinition() personprops.Definition {
	return personprops.Definition{Type: propstore.TypeInt8, Immutable: true}
}

func vaccinatedDefinition() personprops.Definition {
	return personprops.Definition{Type: propstore.TypeBool, Default: false}
}

// InfectionLabel tags InfectionEvent on the model event channel.
type InfectionLabel struct{}

// InfectionEvent reports a transmission from Source to Person.
type InfectionEvent struct {
	Person    entity.PersonID
	Source    entity.PersonID
	Household bool
}

// Kind implements sim.Event.
func (InfectionEvent) Kind() sim.EventKind { return sim.EventModel }

// Labels implements sim.LabeledEvent.
func (InfectionEvent) Labels() []any { return []any{InfectionLabel{}} }

// Tally holds cumulative counts carried across checkpoints.
type Tally struct {
	Infections             int `yaml:"infections"`
	Transmissions          int `yaml:"transmissions"`
	HouseholdTransmissions int `yaml:"household_transmissions"`
	Recoveries             int `yaml:"recoveries"`
	Deaths                 int `yaml:"deaths"`
	Vaccinations           int `yaml:"vaccinations"`
	Arrivals               int `yaml:"arrivals"`
}

// Report is a compartment census at one time.
type Report struct {
	Time        float64 `yaml:"time"`
	Susceptible int     `yaml:"susceptible"`
	Infectious  int     `yaml:"infectious"`
	Recovered   int     `yaml:"recovered"`
	Population  int     `yaml:"population"`
}

// Model is both the data manager holding the model's own state and, through
// Start, the actor that seeds the run.
type Model struct {
	sc       *Scenario
	restored []sim.PendingPlan
	resumed  bool
	tally    Tally
	reports  []Report

	people *people.DataManager
	props  *personprops.DataManager
	groups *groups.DataManager
	parts  *partition.DataManager

	contacts      map[entity.PersonID]sim.PlanHandle
	transmissions prometheus.Counter
}

func newModel(sc *Scenario, st *state) *Model {
	return &Model{
		sc:       sc,
		restored: st.plans,
		resumed:  st.resumed,
		tally:    st.tally,
		contacts: make(map[entity.PersonID]sim.PlanHandle),
		transmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popsim_epidemic_transmissions_total",
			Help: "Infections passed from one person to another",
		}),
	}
}

// Init implements sim.DataManager.
func (m *Model) Init(ctx *sim.Context) error {
	var err error
	if m.people, err = people.Get(ctx); err != nil {
		return err
	}
	if m.props, err = personprops.Get(ctx); err != nil {
		return err
	}
	if m.groups, err = groups.Get(ctx); err != nil {
		return err
	}
	if m.parts, err = partition.Get(ctx); err != nil {
		return err
	}
	if m.transmissions, err = sim.RegisterCollector(ctx.Registerer(), m.transmissions); err != nil {
		return err
	}

	if err := m.parts.AddPartition(ctx, PartitionByStatus, partition.Partition{
		Labelers: []partition.Labeler{personprops.PropertyLabeler(PropStatus, nil)},
	}); err != nil {
		return err
	}
	if err := m.parts.AddPartition(ctx, PartitionVaccineCandidates, partition.Partition{
		Filter: partition.And(
			personprops.PropertyFilter(PropStatus, personprops.Equal, Susceptible),
			personprops.PropertyFilter(PropVaccinated, personprops.Equal, false),
		),
		Labelers: []partition.Labeler{personprops.PropertyLabeler(PropAge, func(v any) any {
			return BandOf(v.(int8))
		})},
	}); err != nil {
		return err
	}
	if err := m.parts.AddPartition(ctx, PartitionHoused, partition.Partition{
		Filter: groups.MemberOfGroupTypeFilter(Household),
	}); err != nil {
		return err
	}

	if _, err := ctx.SubscribeLabel(sim.EventPersonPropertyUpdate, personprops.PropertyLabel{Property: PropStatus}, m.onStatusChange); err != nil {
		return err
	}
	if _, err := ctx.SubscribeLabel(sim.EventModel, InfectionLabel{}, m.onInfection); err != nil {
		return err
	}
	return nil
}

// Start seeds the run: restored plans for a continuation, otherwise the
// initial infections and the recurring plans.
func (m *Model) Start(ctx *sim.Context) error {
	if m.resumed {
		for _, p := range m.restored {
			if err := m.restore(ctx, p); err != nil {
				return err
			}
		}
		ctx.Log().Infof("Resumed with %d people and %d plans", m.people.PersonCount(), len(m.restored))
		return nil
	}

	for i := 0; i < m.sc.InitialInfected; i++ {
		p, ok, err := m.parts.SamplePeople(ctx, PartitionByStatus, partition.Sampler{
			Labels: partition.LabelSet{PropStatus: Susceptible},
			Stream: sim.SubsystemModel,
		})
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := m.props.SetPersonProperty(ctx, p, PropStatus, Infectious); err != nil {
			return err
		}
	}
	now := ctx.Time()
	if v := m.sc.Vaccination; v != nil && v.DailyDoses > 0 {
		start := v.Start
		if start < now {
			start = now
		}
		if _, err := m.schedule(ctx, start, vaccinationPlan{}); err != nil {
			return err
		}
	}
	if m.sc.ArrivalRate > 0 {
		if _, err := m.schedule(ctx, now+m.delay(ctx, m.sc.ArrivalRate), arrivalPlan{}); err != nil {
			return err
		}
	}
	if m.sc.ReportInterval > 0 {
		if _, err := m.schedule(ctx, now, reportPlan{}); err != nil {
			return err
		}
	}
	ctx.Log().Infof("Seeded %d infections among %d people", m.sc.InitialInfected, m.people.PersonCount())
	return nil
}

// Snapshot implements sim.Snapshotter.
func (m *Model) Snapshot(ctx *sim.Context) (any, error) {
	return m.tally, nil
}

// Tally returns the cumulative counts.
func (m *Model) Tally() Tally { return m.tally }

// Reports returns the census reports taken so far.
func (m *Model) Reports() []Report {
	return append([]Report(nil), m.reports...)
}

// delay draws an exponential waiting time for rate.
func (m *Model) delay(ctx *sim.Context, rate float64) float64 {
	return ctx.RNG(sim.SubsystemModel).ExpFloat64() / rate
}

func (m *Model) onStatusChange(ctx *sim.Context, ev sim.Event) error {
	e := ev.(personprops.UpdateEvent)
	if e.Current != Infectious {
		return nil
	}
	m.tally.Infections++
	now := ctx.Time()
	if rate := *m.sc.TransmissionRate; rate > 0 {
		h, err := m.schedule(ctx, now+m.delay(ctx, rate), contactPlan{Person: e.Person})
		if err != nil {
			return err
		}
		m.contacts[e.Person] = h
	}
	_, err := m.schedule(ctx, now+m.delay(ctx, *m.sc.RecoveryRate), recoveryPlan{Person: e.Person})
	return err
}

func (m *Model) onInfection(ctx *sim.Context, ev sim.Event) error {
	e := ev.(InfectionEvent)
	m.tally.Transmissions++
	if e.Household {
		m.tally.HouseholdTransmissions++
	}
	m.transmissions.Inc()
	ctx.Log().Debugf("%s infected %s (household: %t)", e.Source, e.Person, e.Household)
	return nil
}

// contact lets an infectious person meet someone and possibly infect them,
// then schedules the next contact.
func (m *Model) contact(ctx *sim.Context, p entity.PersonID) error {
	delete(m.contacts, p)
	rng := ctx.RNG(streamContacts)

	var (
		target    entity.PersonID
		found     bool
		household bool
		err       error
	)
	if rng.Float64() < *m.sc.HouseholdWeight {
		gs, gerr := m.groups.GroupsForPerson(p)
		if gerr != nil {
			return gerr
		}
		if len(gs) > 0 {
			target, found, err = m.groups.SampleMember(ctx, gs[0], &p)
			household = found
		}
	}
	if err == nil && !found {
		target, found, err = m.parts.SamplePeople(ctx, PartitionByStatus, partition.Sampler{
			Weight: func(ctx *sim.Context, labels partition.LabelSet) float64 {
				return m.sc.contactWeight(labels[PropStatus].(Status))
			},
			Stream: streamContacts,
		}.Excluding(p))
	}
	if err != nil {
		return err
	}
	if found {
		if err := m.infect(ctx, p, target, household); err != nil {
			return err
		}
	}

	h, err := m.schedule(ctx, ctx.Time()+m.delay(ctx, *m.sc.TransmissionRate), contactPlan{Person: p})
	if err != nil {
		return err
	}
	m.contacts[p] = h
	return nil
}

func (m *Model) infect(ctx *sim.Context, source, target entity.PersonID, household bool) error {
	status, err := personprops.GetAs[Status](m.props, target, PropStatus)
	if err != nil {
		return err
	}
	if status != Susceptible {
		return nil
	}
	vaccinated, err := personprops.GetAs[bool](m.props, target, PropVaccinated)
	if err != nil {
		return err
	}
	if vaccinated && ctx.RNG(streamContacts).Float64() < m.sc.efficacy() {
		return nil
	}
	if err := m.props.SetPersonProperty(ctx, target, PropStatus, Infectious); err != nil {
		return err
	}
	return ctx.Publish(InfectionEvent{Person: target, Source: source, Household: household})
}

// endInfection ends an infection in recovery or, with the mortality rate, death.
func (m *Model) endInfection(ctx *sim.Context, p entity.PersonID) error {
	if h, ok := m.contacts[p]; ok {
		ctx.CancelPlan(h)
		delete(m.contacts, p)
	}
	if m.sc.MortalityRate > 0 && ctx.RNG(sim.SubsystemModel).Float64() < m.sc.MortalityRate {
		m.tally.Deaths++
		return m.people.RemovePerson(ctx, p)
	}
	m.tally.Recoveries++
	return m.props.SetPersonProperty(ctx, p, PropStatus, Recovered)
}

// vaccinate gives the day's doses, favoring age bands by weight.
func (m *Model) vaccinate(ctx *sim.Context) error {
	sampler := partition.Sampler{
		Weight: func(ctx *sim.Context, labels partition.LabelSet) float64 {
			return m.sc.ageWeight(labels[PropAge].(AgeBand))
		},
		Stream: streamVaccination,
	}
	given := 0
	for ; given < m.sc.Vaccination.DailyDoses; given++ {
		p, ok, err := m.parts.SamplePeople(ctx, PartitionVaccineCandidates, sampler)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := m.props.SetPersonProperty(ctx, p, PropVaccinated, true); err != nil {
			return err
		}
	}
	m.tally.Vaccinations += given
	ctx.Log().Debugf("Vaccinated %d people", given)
	if given < m.sc.Vaccination.DailyDoses && m.sc.ArrivalRate == 0 {
		return nil
	}
	_, err := m.schedule(ctx, ctx.Time()+1, vaccinationPlan{})
	return err
}

// arrive adds a susceptible person to the household of a random housed
// person, or to a new household when nobody is housed.
func (m *Model) arrive(ctx *sim.Context) error {
	rng := ctx.RNG(streamArrivals)
	age := int8(rng.Intn(90))
	data := people.NewConstructionBuilder().
		Add(personprops.Value{Property: PropAge, Value: age}).
		Build()

	host, housed, err := m.parts.SamplePeople(ctx, PartitionHoused, partition.Sampler{Stream: streamArrivals})
	if err != nil {
		return err
	}
	var g entity.GroupID
	if housed {
		gs, err := m.groups.GroupsForPerson(host)
		if err != nil {
			return err
		}
		g = gs[0]
	} else if g, err = m.groups.AddGroup(ctx, Household); err != nil {
		return err
	}

	p, err := m.people.AddPerson(ctx, data)
	if err != nil {
		return err
	}
	if err := m.groups.AddPersonToGroup(ctx, p, g); err != nil {
		return err
	}
	m.tally.Arrivals++
	_, err = m.schedule(ctx, ctx.Time()+m.delay(ctx, m.sc.ArrivalRate), arrivalPlan{})
	return err
}

// census counts people per compartment.
func (m *Model) census(now float64) (Report, error) {
	r := Report{Time: now, Population: m.people.PersonCount()}
	for _, c := range []struct {
		status Status
		into   *int
	}{
		{Susceptible, &r.Susceptible},
		{Infectious, &r.Infectious},
		{Recovered, &r.Recovered},
	} {
		n, err := m.parts.GetPeopleCount(PartitionByStatus, partition.LabelSet{PropStatus: c.status})
		if err != nil {
			return Report{}, fmt.Errorf("counting %s: %w", c.status, err)
		}
		*c.into = n
	}
	return r, nil
}

func (m *Model) report(ctx *sim.Context) error {
	r, err := m.census(ctx.Time())
	if err != nil {
		return err
	}
	m.reports = append(m.reports, r)
	ctx.Log().Infof("S=%d I=%d R=%d (population %d)", r.Susceptible, r.Infectious, r.Recovered, r.Population)
	_, err = m.schedule(ctx, ctx.Time()+m.sc.ReportInterval, reportPlan{})
	return err
}
