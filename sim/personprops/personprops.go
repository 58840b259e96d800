// Package personprops owns person properties: their definitions, one compact
// column per property, and the update events other data managers and
// partitions react to.
package personprops

import (
	"fmt"
	"reflect"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
	"github.com/popsim/popsim/sim/people"
	"github.com/popsim/popsim/sim/propstore"
)

// ID is the person properties data manager's registration id.
const ID sim.DataManagerID = "personprops"

type property struct {
	id       PropertyID
	def      Definition
	col      propstore.Column
	timed    *propstore.Timed
	assigned *propstore.BoolColumn
}

func newProperty(id PropertyID, def Definition, now float64) (*property, error) {
	col, err := propstore.NewColumn(def.Type, def.Default, def.EnumValues)
	if err != nil {
		return nil, fmt.Errorf("%w: property %q: %v", sim.ErrTypeIncompatible, id, err)
	}
	prop := &property{id: id, def: def.clone(), col: col}
	if def.TrackTimes {
		prop.timed = propstore.NewTimed(col, now)
		prop.col = prop.timed
	}
	if !def.HasDefault() {
		prop.assigned = propstore.NewBoolColumn(false)
	}
	return prop, nil
}

func (prop *property) set(p entity.PersonID, v any, now float64) {
	if prop.timed != nil {
		prop.timed.SetAt(int(p), v, now)
	} else {
		prop.col.Set(int(p), v)
	}
	if prop.assigned != nil {
		prop.assigned.SetBool(int(p), true)
	}
}

func (prop *property) isSet(p entity.PersonID) bool {
	return prop.assigned == nil || prop.assigned.GetBool(int(p))
}

func (prop *property) reset(p entity.PersonID) {
	prop.col.Reset(int(p))
	if prop.assigned != nil {
		prop.assigned.SetBool(int(p), false)
	}
}

func (prop *property) expand(n int) {
	prop.col.Expand(n)
	if prop.assigned != nil {
		prop.assigned.Expand(n)
	}
}

// DataManager is the person properties data manager.
type DataManager struct {
	data   PluginData
	people *people.DataManager
	order  []PropertyID
	props  map[PropertyID]*property
}

// New creates the data manager from its plugin data. It depends on people.ID.
func New(data PluginData) *DataManager {
	return &DataManager{
		data:  data,
		props: make(map[PropertyID]*property),
	}
}

// Get fetches the person properties data manager from ctx.
func Get(ctx *sim.Context) (*DataManager, error) {
	return sim.GetDataManager[*DataManager](ctx, ID)
}

// Init loads definitions and initial values and hooks into person addition
// and removal.
func (dm *DataManager) Init(ctx *sim.Context) error {
	pdm, err := people.Get(ctx)
	if err != nil {
		return err
	}
	dm.people = pdm

	for _, id := range dm.data.order {
		prop, err := newProperty(id, dm.data.defs[id], ctx.Time())
		if err != nil {
			return err
		}
		prop.expand(pdm.PersonIDLimit())
		for _, p := range dm.data.people(id) {
			if err := pdm.CheckPerson(p); err != nil {
				return fmt.Errorf("initial value of %q: %w", id, err)
			}
			prop.set(p, dm.data.values[id][p], ctx.Time())
		}
		if prop.timed != nil {
			for p, t := range dm.data.times[id] {
				if pdm.PersonExists(p) {
					prop.timed.SetAt(int(p), prop.col.Get(int(p)), t)
				}
			}
		}
		if err := dm.checkComplete(prop); err != nil {
			return err
		}
		dm.order = append(dm.order, id)
		dm.props[id] = prop
	}

	pdm.AddValidator(dm.validateConstruction)
	pdm.AddCapacityListener(func(n int) {
		for _, prop := range dm.props {
			prop.expand(n)
		}
	})
	if _, err := ctx.Subscribe(sim.EventPersonImminentAddition, dm.handlePersonImminentAddition); err != nil {
		return err
	}
	if _, err := ctx.Subscribe(sim.EventPersonRemoval, dm.handlePersonRemoval); err != nil {
		return err
	}
	ctx.Log().Infof("Defined %d person properties", len(dm.order))
	return nil
}

// checkComplete verifies every live person has a value for a property
// without a default.
func (dm *DataManager) checkComplete(prop *property) error {
	if prop.def.HasDefault() {
		return nil
	}
	var missing []entity.PersonID
	dm.people.EachPerson(func(p entity.PersonID) {
		if !prop.isSet(p) {
			missing = append(missing, p)
		}
	})
	if len(missing) > 0 {
		return fmt.Errorf("%w: property %q has no value for %d people (first %s)", sim.ErrMissingDefault, prop.id, len(missing), missing[0])
	}
	return nil
}

func constructionValues(data people.ConstructionData) []Value {
	var values []Value
	for _, e := range data.Entries() {
		if v, ok := e.(Value); ok {
			values = append(values, v)
		}
	}
	return values
}

// validateConstruction runs before a person id is issued.
func (dm *DataManager) validateConstruction(ctx *sim.Context, data people.ConstructionData) error {
	supplied := make(map[PropertyID]bool)
	for _, v := range constructionValues(data) {
		if v.Value == nil {
			return fmt.Errorf("%w: construction value for %q", sim.ErrNullArgument, v.Property)
		}
		prop, ok := dm.props[v.Property]
		if !ok {
			return fmt.Errorf("%w: property %q", sim.ErrUnknownID, v.Property)
		}
		if err := prop.def.check(v.Value); err != nil {
			return fmt.Errorf("property %q: %w", v.Property, err)
		}
		supplied[v.Property] = true
	}
	for _, id := range dm.order {
		if !dm.props[id].def.HasDefault() && !supplied[id] {
			return fmt.Errorf("%w: property %q", sim.ErrMissingDefault, id)
		}
	}
	return nil
}

func (dm *DataManager) handlePersonImminentAddition(ctx *sim.Context, ev sim.Event) error {
	e := ev.(people.ImminentAdditionEvent)
	for _, v := range constructionValues(e.Construction) {
		dm.props[v.Property].set(e.Person, v.Value, ctx.Time())
	}
	return nil
}

func (dm *DataManager) handlePersonRemoval(ctx *sim.Context, ev sim.Event) error {
	e := ev.(people.RemovalEvent)
	for _, prop := range dm.props {
		prop.reset(e.Person)
	}
	return nil
}

// DefineProperty adds a property during the run. values supplies initial
// values by person; it must cover every live person when def has no default.
func (dm *DataManager) DefineProperty(ctx *sim.Context, id PropertyID, def Definition, values map[entity.PersonID]any) error {
	if id == "" {
		return fmt.Errorf("%w: property id", sim.ErrNullArgument)
	}
	if _, dup := dm.props[id]; dup {
		return fmt.Errorf("%w: property %q", sim.ErrDuplicateDefinition, id)
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("property %q: %w", id, err)
	}
	for p, v := range values {
		if v == nil {
			return fmt.Errorf("%w: property %q for %s", sim.ErrNullArgument, id, p)
		}
		if err := dm.people.CheckPerson(p); err != nil {
			return err
		}
		if err := def.check(v); err != nil {
			return fmt.Errorf("property %q for %s: %w", id, p, err)
		}
	}
	prop, err := newProperty(id, def, ctx.Time())
	if err != nil {
		return err
	}
	prop.expand(dm.people.PersonIDLimit())
	for p, v := range values {
		prop.set(p, v, ctx.Time())
	}
	if err := dm.checkComplete(prop); err != nil {
		return err
	}
	dm.order = append(dm.order, id)
	dm.props[id] = prop
	return ctx.Publish(DefinitionEvent{Property: id})
}

// PropertyIDs returns the defined properties in definition order.
func (dm *DataManager) PropertyIDs() []PropertyID {
	return append([]PropertyID(nil), dm.order...)
}

// PropertyDefined reports whether id is defined.
func (dm *DataManager) PropertyDefined(id PropertyID) bool {
	_, ok := dm.props[id]
	return ok
}

// Definition returns the definition of id.
func (dm *DataManager) Definition(id PropertyID) (Definition, error) {
	prop, ok := dm.props[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: property %q", sim.ErrUnknownID, id)
	}
	return prop.def.clone(), nil
}

func (dm *DataManager) property(p entity.PersonID, id PropertyID) (*property, error) {
	if err := dm.people.CheckPerson(p); err != nil {
		return nil, err
	}
	prop, ok := dm.props[id]
	if !ok {
		return nil, fmt.Errorf("%w: property %q", sim.ErrUnknownID, id)
	}
	return prop, nil
}

// GetPersonProperty returns the value of id for person p.
func (dm *DataManager) GetPersonProperty(p entity.PersonID, id PropertyID) (any, error) {
	prop, err := dm.property(p, id)
	if err != nil {
		return nil, err
	}
	if !prop.isSet(p) {
		return nil, fmt.Errorf("%w: property %q for %s", sim.ErrMissingDefault, id, p)
	}
	return prop.col.Get(int(p)), nil
}

// GetPersonPropertyTime returns when id was last assigned for person p. The
// property must track times.
func (dm *DataManager) GetPersonPropertyTime(p entity.PersonID, id PropertyID) (float64, error) {
	prop, err := dm.property(p, id)
	if err != nil {
		return 0, err
	}
	if prop.timed == nil {
		return 0, fmt.Errorf("%w: property %q does not track times", sim.ErrTypeIncompatible, id)
	}
	return prop.timed.TimeOf(int(p)), nil
}

// SetPersonProperty assigns v to id for person p and publishes an
// UpdateEvent. Arguments are checked in order (nil value, unknown person or
// property, type, mutability) before anything changes.
func (dm *DataManager) SetPersonProperty(ctx *sim.Context, p entity.PersonID, id PropertyID, v any) error {
	if v == nil {
		return fmt.Errorf("%w: value of %q for %s", sim.ErrNullArgument, id, p)
	}
	prop, err := dm.property(p, id)
	if err != nil {
		return err
	}
	if err := prop.def.check(v); err != nil {
		return fmt.Errorf("property %q: %w", id, err)
	}
	if prop.def.Immutable {
		return fmt.Errorf("%w: property %q", sim.ErrImmutableViolation, id)
	}
	var previous any
	if prop.isSet(p) {
		previous = prop.col.Get(int(p))
	}
	prop.set(p, v, ctx.Time())
	return ctx.Publish(UpdateEvent{Person: p, Property: id, Previous: previous, Current: v})
}

// Snapshot implements sim.Snapshotter. Values equal to the default are left out.
func (dm *DataManager) Snapshot(ctx *sim.Context) (any, error) {
	b := NewBuilder()
	for _, id := range dm.order {
		prop := dm.props[id]
		b.DefineProperty(id, prop.def)
		dm.people.EachPerson(func(p entity.PersonID) {
			if !prop.isSet(p) {
				return
			}
			v := prop.col.Get(int(p))
			if !prop.def.HasDefault() || !sameValue(v, prop.def.Default) {
				b.SetValue(id, p, v)
			}
			if prop.timed != nil {
				b.SetTime(id, p, prop.timed.TimeOf(int(p)))
			}
		})
	}
	return b.Build()
}

// sameValue compares values that may not be comparable.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// GetAs returns the value of id for person p as a T.
func GetAs[T any](dm *DataManager, p entity.PersonID, id PropertyID) (T, error) {
	var zero T
	v, err := dm.GetPersonProperty(p, id)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: property %q holds %T", sim.ErrTypeIncompatible, id, v)
	}
	return typed, nil
}
