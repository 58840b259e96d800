package personprops

import (
	"fmt"
	"sort"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// PluginData holds property definitions and initial values. It is immutable;
// use a Builder to create or modify one.
type PluginData struct {
	order  []PropertyID
	defs   map[PropertyID]Definition
	values map[PropertyID]map[entity.PersonID]any
	times  map[PropertyID]map[entity.PersonID]float64
}

// PropertyIDs returns the defined properties in definition order.
func (d PluginData) PropertyIDs() []PropertyID {
	return append([]PropertyID(nil), d.order...)
}

// Definition returns the definition of id.
func (d PluginData) Definition(id PropertyID) (Definition, bool) {
	def, ok := d.defs[id]
	return def.clone(), ok
}

// Values returns the explicit initial values of id by person.
func (d PluginData) Values(id PropertyID) map[entity.PersonID]any {
	out := make(map[entity.PersonID]any, len(d.values[id]))
	for p, v := range d.values[id] {
		out[p] = v
	}
	return out
}

// Times returns the recorded assignment times of id by person.
func (d PluginData) Times(id PropertyID) map[entity.PersonID]float64 {
	out := make(map[entity.PersonID]float64, len(d.times[id]))
	for p, t := range d.times[id] {
		out[p] = t
	}
	return out
}

// people returns the people with an explicit value for id in ascending order.
func (d PluginData) people(id PropertyID) []entity.PersonID {
	ids := make([]entity.PersonID, 0, len(d.values[id]))
	for p := range d.values[id] {
		ids = append(ids, p)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ToBuilder returns a builder seeded with a deep copy of d.
func (d PluginData) ToBuilder() *Builder {
	b := NewBuilder()
	for _, id := range d.order {
		b.DefineProperty(id, d.defs[id].clone())
		for p, v := range d.values[id] {
			b.SetValue(id, p, v)
		}
		for p, t := range d.times[id] {
			b.SetTime(id, p, t)
		}
	}
	return b
}

// Builder accumulates a PluginData.
type Builder struct {
	data PluginData
	errs []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.data = PluginData{
		defs:   make(map[PropertyID]Definition),
		values: make(map[PropertyID]map[entity.PersonID]any),
		times:  make(map[PropertyID]map[entity.PersonID]float64),
	}
	b.errs = nil
}

// DefineProperty adds a property definition.
func (b *Builder) DefineProperty(id PropertyID, def Definition) *Builder {
	if id == "" {
		b.errs = append(b.errs, fmt.Errorf("%w: property id", sim.ErrNullArgument))
		return b
	}
	if _, dup := b.data.defs[id]; dup {
		b.errs = append(b.errs, fmt.Errorf("%w: property %q", sim.ErrDuplicateDefinition, id))
		return b
	}
	b.data.order = append(b.data.order, id)
	b.data.defs[id] = def.clone()
	return b
}

// SetValue records an initial value of id for person p.
func (b *Builder) SetValue(id PropertyID, p entity.PersonID, v any) *Builder {
	if b.data.values[id] == nil {
		b.data.values[id] = make(map[entity.PersonID]any)
	}
	b.data.values[id][p] = v
	return b
}

// SetTime records the assignment time of id for person p. It applies only to
// properties that track times.
func (b *Builder) SetTime(id PropertyID, p entity.PersonID, t float64) *Builder {
	if b.data.times[id] == nil {
		b.data.times[id] = make(map[entity.PersonID]float64)
	}
	b.data.times[id][p] = t
	return b
}

// Build validates the definitions and values and returns the result. The
// builder is reset whether or not Build succeeds.
func (b *Builder) Build() (PluginData, error) {
	data, errs := b.data, b.errs
	b.reset()
	if len(errs) > 0 {
		return PluginData{}, errs[0]
	}
	for _, id := range data.order {
		if err := data.defs[id].Validate(); err != nil {
			return PluginData{}, fmt.Errorf("property %q: %w", id, err)
		}
	}
	for id, values := range data.values {
		def, ok := data.defs[id]
		if !ok {
			return PluginData{}, fmt.Errorf("%w: value for undefined property %q", sim.ErrUnknownID, id)
		}
		for p, v := range values {
			if p < 0 {
				return PluginData{}, fmt.Errorf("%w: %s", sim.ErrUnknownID, p)
			}
			if v == nil {
				return PluginData{}, fmt.Errorf("%w: property %q for %s", sim.ErrNullArgument, id, p)
			}
			if err := def.check(v); err != nil {
				return PluginData{}, fmt.Errorf("property %q for %s: %w", id, p, err)
			}
		}
	}
	for id := range data.times {
		def, ok := data.defs[id]
		if !ok {
			return PluginData{}, fmt.Errorf("%w: time for undefined property %q", sim.ErrUnknownID, id)
		}
		if !def.TrackTimes {
			return PluginData{}, fmt.Errorf("property %q does not track times", id)
		}
	}
	return data, nil
}
