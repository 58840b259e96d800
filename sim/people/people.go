// Package people owns the population: it issues person ids, validates and
// announces additions and removals, and reports who exists.
package people

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// ID is the people data manager's registration id.
const ID sim.DataManagerID = "people"

// Validator checks construction data before a person is created. Any error
// aborts the addition before an id is issued.
type Validator func(ctx *sim.Context, data ConstructionData) error

// CapacityListener is told how many more people are expected so it can grow
// its own storage ahead of bulk insertion.
type CapacityListener func(n int)

// DataManager is the people data manager.
type DataManager struct {
	data       PluginData
	registry   *entity.Registry[entity.PersonID]
	validators []Validator
	listeners  []CapacityListener
	population prometheus.Gauge
}

// New creates the data manager from its plugin data.
func New(data PluginData) *DataManager {
	return &DataManager{
		data:     data,
		registry: entity.NewRegistry[entity.PersonID](),
		population: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popsim_people",
			Help: "People currently in the simulation",
		}),
	}
}

// Get fetches the people data manager from ctx.
func Get(ctx *sim.Context) (*DataManager, error) {
	return sim.GetDataManager[*DataManager](ctx, ID)
}

// Init registers the initial population.
func (dm *DataManager) Init(ctx *sim.Context) error {
	gauge, err := sim.RegisterCollector(ctx.Registerer(), dm.population)
	if err != nil {
		return err
	}
	dm.population = gauge
	dm.registry.Expand(dm.data.PersonCount())
	for _, r := range dm.data.ranges {
		for id := r.First; id <= r.Last; id++ {
			if err := dm.registry.Register(id); err != nil {
				return fmt.Errorf("%w: initial person %d: %v", sim.ErrDuplicateDefinition, id, err)
			}
		}
	}
	if limit := dm.data.idLimit; limit > 0 {
		if err := dm.registry.Reserve(limit); err != nil {
			return fmt.Errorf("restoring person id limit: %w", err)
		}
	}
	dm.population.Set(float64(dm.registry.Count()))
	ctx.Log().Infof("Loaded %d people", dm.registry.Count())
	return nil
}

// AddValidator registers a construction data check. Data managers call it
// from their Init.
func (dm *DataManager) AddValidator(v Validator) {
	dm.validators = append(dm.validators, v)
}

// AddCapacityListener registers a hook called by ExpandCapacity.
func (dm *DataManager) AddCapacityListener(l CapacityListener) {
	dm.listeners = append(dm.listeners, l)
}

// AddPerson validates data, issues a new id and announces the person, first
// with an ImminentAdditionEvent and then with an AdditionEvent.
func (dm *DataManager) AddPerson(ctx *sim.Context, data ConstructionData) (entity.PersonID, error) {
	for _, v := range dm.validators {
		if err := v(ctx, data); err != nil {
			return 0, err
		}
	}
	id := dm.registry.Add()
	dm.population.Inc()
	if err := ctx.Publish(ImminentAdditionEvent{Person: id, Construction: data}); err != nil {
		return id, err
	}
	if err := ctx.Publish(AdditionEvent{Person: id}); err != nil {
		return id, err
	}
	return id, nil
}

// RemovePerson announces the removal, tombstones the id and announces it again.
func (dm *DataManager) RemovePerson(ctx *sim.Context, id entity.PersonID) error {
	if !dm.registry.Exists(id) {
		return fmt.Errorf("%w: %s", sim.ErrUnknownID, id)
	}
	if err := ctx.Publish(ImminentRemovalEvent{Person: id}); err != nil {
		return err
	}
	dm.registry.Remove(id)
	dm.population.Dec()
	ctx.Log().Debugf("Removed %s", id)
	return ctx.Publish(RemovalEvent{Person: id})
}

// ExpandCapacity prepares storage for n more people.
func (dm *DataManager) ExpandCapacity(n int) error {
	if n < 0 {
		return fmt.Errorf("negative capacity expansion %d", n)
	}
	dm.registry.Expand(n)
	for _, l := range dm.listeners {
		l(dm.registry.Limit() + n)
	}
	return nil
}

// PersonExists reports whether id is a live person.
func (dm *DataManager) PersonExists(id entity.PersonID) bool {
	return dm.registry.Exists(id)
}

// CheckPerson returns an unknown-id error unless id is a live person.
func (dm *DataManager) CheckPerson(id entity.PersonID) error {
	if !dm.registry.Exists(id) {
		return fmt.Errorf("%w: %s", sim.ErrUnknownID, id)
	}
	return nil
}

// PersonCount returns the number of live people.
func (dm *DataManager) PersonCount() int { return dm.registry.Count() }

// PersonIDLimit returns one past the highest person id ever issued.
func (dm *DataManager) PersonIDLimit() int { return dm.registry.Limit() }

// People returns the live person ids in ascending order.
func (dm *DataManager) People() []entity.PersonID { return dm.registry.IDs() }

// EachPerson calls fn for every live person in ascending id order.
func (dm *DataManager) EachPerson(fn func(id entity.PersonID)) { dm.registry.Each(fn) }

// Snapshot implements sim.Snapshotter.
func (dm *DataManager) Snapshot(ctx *sim.Context) (any, error) {
	return PluginData{ranges: rangesOf(dm.registry.IDs()), idLimit: dm.registry.Limit()}, nil
}
