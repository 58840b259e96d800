package epidemic

import (
	"fmt"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// Plan payloads. Every model plan carries one so it survives a checkpoint.
type (
	contactPlan     struct{ Person entity.PersonID }
	recoveryPlan    struct{ Person entity.PersonID }
	vaccinationPlan struct{}
	arrivalPlan     struct{}
	reportPlan      struct{}
)

// Priorities order plans that fall at the same time: infections end before
// new contacts are made, and reports see the settled state.
const (
	priorityRecovery = iota
	priorityContact
	priorityVaccination
	priorityArrival
	priorityReport
)

// Plan kinds as written to checkpoints.
const (
	kindContact     = "contact"
	kindRecovery    = "recovery"
	kindVaccination = "vaccination"
	kindArrival     = "arrival"
	kindReport      = "report"
)

// plan builds the kernel plan for a payload.
func (m *Model) plan(t float64, payload any) (sim.Plan, error) {
	p := sim.Plan{Time: t, Payload: payload}
	switch pl := payload.(type) {
	case contactPlan:
		p.Priority = priorityContact
		p.Callback = func(ctx *sim.Context) error { return m.contact(ctx, pl.Person) }
	case recoveryPlan:
		p.Priority = priorityRecovery
		p.Callback = func(ctx *sim.Context) error { return m.endInfection(ctx, pl.Person) }
	case vaccinationPlan:
		p.Priority = priorityVaccination
		p.Passive = true
		p.Callback = m.vaccinate
	case arrivalPlan:
		p.Priority = priorityArrival
		p.Passive = true
		p.Callback = m.arrive
	case reportPlan:
		p.Priority = priorityReport
		p.Passive = true
		p.Callback = m.report
	default:
		return sim.Plan{}, fmt.Errorf("unknown plan payload %T", payload)
	}
	return p, nil
}

func (m *Model) schedule(ctx *sim.Context, t float64, payload any) (sim.PlanHandle, error) {
	p, err := m.plan(t, payload)
	if err != nil {
		return sim.PlanHandle{}, err
	}
	return ctx.AddPlan(p)
}

// runnable reports whether the scenario can still execute a restored plan.
// A continuation may run under a scenario that switched a feature off.
func (m *Model) runnable(payload any) bool {
	switch payload.(type) {
	case contactPlan:
		return *m.sc.TransmissionRate > 0
	case vaccinationPlan:
		return m.sc.Vaccination != nil && m.sc.Vaccination.DailyDoses > 0
	case arrivalPlan:
		return m.sc.ArrivalRate > 0
	case reportPlan:
		return m.sc.ReportInterval > 0
	}
	return true
}

// restore re-submits a plan collected from a previous run.
func (m *Model) restore(ctx *sim.Context, pending sim.PendingPlan) error {
	if !m.runnable(pending.Payload) {
		ctx.Log().Warnf("Dropping restored %T plan at %v: disabled by the scenario", pending.Payload, pending.Time)
		return nil
	}
	h, err := m.schedule(ctx, pending.Time, pending.Payload)
	if err != nil {
		return fmt.Errorf("restoring plan at %v: %w", pending.Time, err)
	}
	if c, ok := pending.Payload.(contactPlan); ok {
		m.contacts[c.Person] = h
	}
	return nil
}

// PlanRecord is the checkpoint form of a pending plan.
type PlanRecord struct {
	Time     float64          `yaml:"time"`
	Priority int              `yaml:"priority"`
	Kind     string           `yaml:"kind"`
	Person   *entity.PersonID `yaml:"person,omitempty"`
}

func recordOf(p sim.PendingPlan) (PlanRecord, error) {
	r := PlanRecord{Time: p.Time, Priority: p.Priority}
	switch pl := p.Payload.(type) {
	case contactPlan:
		r.Kind, r.Person = kindContact, &pl.Person
	case recoveryPlan:
		r.Kind, r.Person = kindRecovery, &pl.Person
	case vaccinationPlan:
		r.Kind = kindVaccination
	case arrivalPlan:
		r.Kind = kindArrival
	case reportPlan:
		r.Kind = kindReport
	default:
		return PlanRecord{}, fmt.Errorf("cannot checkpoint plan payload %T", p.Payload)
	}
	return r, nil
}

func (r PlanRecord) pending() (sim.PendingPlan, error) {
	p := sim.PendingPlan{Time: r.Time, Priority: r.Priority}
	needPerson := func() (entity.PersonID, error) {
		if r.Person == nil {
			return 0, fmt.Errorf("%w: %s plan at %v has no person", sim.ErrNullArgument, r.Kind, r.Time)
		}
		return *r.Person, nil
	}
	switch r.Kind {
	case kindContact:
		person, err := needPerson()
		if err != nil {
			return p, err
		}
		p.Payload = contactPlan{Person: person}
	case kindRecovery:
		person, err := needPerson()
		if err != nil {
			return p, err
		}
		p.Payload = recoveryPlan{Person: person}
	case kindVaccination:
		p.Payload, p.Passive = vaccinationPlan{}, true
	case kindArrival:
		p.Payload, p.Passive = arrivalPlan{}, true
	case kindReport:
		p.Payload, p.Passive = reportPlan{}, true
	default:
		return p, fmt.Errorf("unknown plan kind %q", r.Kind)
	}
	return p, nil
}
