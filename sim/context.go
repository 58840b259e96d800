package sim

import (
	"math/rand"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Context is the handle data managers, actors, plan callbacks and event
// handlers use to reach the kernel. There is exactly one per Simulation; it is
// created before initialization and never replaced.
type Context struct {
	sim *Simulation
}

// Time returns the current simulation time.
func (c *Context) Time() float64 {
	return c.sim.clock
}

// AddPlan submits a plan. Its time must not precede the current time.
func (c *Context) AddPlan(p Plan) (PlanHandle, error) {
	return c.sim.schedule(p)
}

// CancelPlan removes a plan that has not run. It returns false for executed,
// already cancelled or unknown handles.
func (c *Context) CancelPlan(h PlanHandle) bool {
	return c.sim.cancel(h)
}

// Publish dispatches ev synchronously.
func (c *Context) Publish(ev Event) error {
	return c.sim.bus.Publish(ev)
}

// Subscribe registers handler for every event of kind.
func (c *Context) Subscribe(kind EventKind, handler EventHandler) (SubscriptionHandle, error) {
	return c.sim.bus.Subscribe(kind, handler)
}

// SubscribeLabel registers handler for events of kind that carry label.
func (c *Context) SubscribeLabel(kind EventKind, label any, handler EventHandler) (SubscriptionHandle, error) {
	return c.sim.bus.SubscribeLabel(kind, label, handler)
}

// Unsubscribe removes a subscription.
func (c *Context) Unsubscribe(h SubscriptionHandle) bool {
	return c.sim.bus.Unsubscribe(h)
}

// DataManager returns an initialized data manager.
func (c *Context) DataManager(id DataManagerID) (DataManager, error) {
	return c.sim.host.Get(id)
}

// RNG returns the deterministic random stream for the named subsystem.
func (c *Context) RNG(subsystem string) *rand.Rand {
	return c.sim.rng.ForSubsystem(subsystem)
}

// Halt ends the run once the current plan returns. Pending plans stay collectible.
func (c *Context) Halt() {
	c.sim.halted = true
}

// Log returns a logger carrying the run id and current time.
func (c *Context) Log() *logrus.Entry {
	return c.sim.log.WithField("t", c.sim.clock)
}

// RunID returns the id of the running simulation.
func (c *Context) RunID() string {
	return c.sim.runID
}

// Registerer returns the run's Prometheus registerer, or nil.
func (c *Context) Registerer() prometheus.Registerer {
	return c.sim.config.Registerer
}
