// Tracks run-wide counters: plans scheduled, executed and cancelled, and
// events published per kind.

package sim

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates statistics about one run for final reporting. The plain
// fields are always maintained; the Prometheus collectors mirror them and are
// registered only when the run is given a Registerer.
type Metrics struct {
	PlansScheduled  int64
	PlansExecuted   int64
	PlansCancelled  int64
	EventsPublished [numEventKinds]int64
	SimStartTime    float64
	SimEndedTime    float64

	plansExecuted   prometheus.Counter
	plansCancelled  prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

// NewMetrics creates the run counters. reg may be nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		plansExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popsim_plans_executed_total",
			Help: "Plans executed by the scheduler",
		}),
		plansCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popsim_plans_cancelled_total",
			Help: "Plans cancelled before execution",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popsim_events_published_total",
			Help: "Events published on the bus by kind",
		}, []string{"kind"}),
	}
	var err error
	if m.plansExecuted, err = RegisterCollector(reg, m.plansExecuted); err != nil {
		return nil, err
	}
	if m.plansCancelled, err = RegisterCollector(reg, m.plansCancelled); err != nil {
		return nil, err
	}
	if m.eventsPublished, err = RegisterCollector(reg, m.eventsPublished); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterCollector registers c on reg, reusing an identical collector that is
// already registered (several runs sharing one registry). reg may be nil, in
// which case c is returned unregistered. Data managers use it for their own
// collectors.
func RegisterCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if reg == nil {
		return c, nil
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("registering metrics: %w", err)
	}
	return c, nil
}

func (m *Metrics) planScheduled() {
	m.PlansScheduled++
}

func (m *Metrics) planExecuted() {
	m.PlansExecuted++
	m.plansExecuted.Inc()
}

func (m *Metrics) planCancelled() {
	m.PlansCancelled++
	m.plansCancelled.Inc()
}

func (m *Metrics) eventPublished(kind EventKind) {
	m.EventsPublished[kind]++
	m.eventsPublished.WithLabelValues(kind.String()).Inc()
}

// TotalEvents returns the number of events published across all kinds.
func (m *Metrics) TotalEvents() int64 {
	var total int64
	for _, n := range m.EventsPublished {
		total += n
	}
	return total
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulated Time       : %.4f -> %.4f\n", m.SimStartTime, m.SimEndedTime)
	fmt.Fprintf(w, "Plans Scheduled      : %d\n", m.PlansScheduled)
	fmt.Fprintf(w, "Plans Executed       : %d\n", m.PlansExecuted)
	fmt.Fprintf(w, "Plans Cancelled      : %d\n", m.PlansCancelled)
	fmt.Fprintf(w, "Events Published     : %d\n", m.TotalEvents())
	for _, kind := range EventKinds() {
		if n := m.EventsPublished[kind]; n > 0 {
			fmt.Fprintf(w, "  %-24s : %d\n", kind, n)
		}
	}
}
