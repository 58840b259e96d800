package groups

import (
	"fmt"
	"sort"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// TypeID names a group type.
type TypeID string

// GroupSpec describes one initial group.
type GroupSpec struct {
	ID      entity.GroupID    `yaml:"id"`
	Type    TypeID            `yaml:"type"`
	Members []entity.PersonID `yaml:"members,flow"`
}

// PluginData holds group types, groups and memberships. It is immutable; use
// a Builder to create or modify one.
type PluginData struct {
	types   []TypeID
	groups  []GroupSpec
	idLimit int
}

// Types returns the group types in definition order.
func (d PluginData) Types() []TypeID {
	return append([]TypeID(nil), d.types...)
}

// Groups returns deep copies of the group specs in id order.
func (d PluginData) Groups() []GroupSpec {
	out := make([]GroupSpec, len(d.groups))
	for i, g := range d.groups {
		g.Members = append([]entity.PersonID(nil), g.Members...)
		out[i] = g
	}
	return out
}

// IDLimit returns one past the highest group id ever issued, or 0 when the
// data starts fresh.
func (d PluginData) IDLimit() int { return d.idLimit }

// ToBuilder returns a builder seeded with a copy of d.
func (d PluginData) ToBuilder() *Builder {
	return &Builder{types: d.Types(), groups: d.Groups(), idLimit: d.idLimit}
}

// Builder accumulates a PluginData.
type Builder struct {
	types   []TypeID
	groups  []GroupSpec
	idLimit int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddType defines a group type.
func (b *Builder) AddType(t TypeID) *Builder {
	b.types = append(b.types, t)
	return b
}

// AddGroup adds group id of type t.
func (b *Builder) AddGroup(id entity.GroupID, t TypeID) *Builder {
	b.groups = append(b.groups, GroupSpec{ID: id, Type: t})
	return b
}

// AddMember adds person p to group g. The group must already be added.
func (b *Builder) AddMember(g entity.GroupID, p entity.PersonID) *Builder {
	for i := range b.groups {
		if b.groups[i].ID == g {
			b.groups[i].Members = append(b.groups[i].Members, p)
			return b
		}
	}
	// Recorded as a membership of an unknown group; Build reports it.
	b.groups = append(b.groups, GroupSpec{ID: g, Members: []entity.PersonID{p}})
	return b
}

// SetIDLimit records the group id limit of the run the data was taken from.
// Ids below it without a group stay retired.
func (b *Builder) SetIDLimit(n int) *Builder {
	b.idLimit = n
	return b
}

// Build validates and returns the accumulated data. The builder is reset.
func (b *Builder) Build() (PluginData, error) {
	data := PluginData{types: b.types, groups: b.groups, idLimit: b.idLimit}
	b.types, b.groups, b.idLimit = nil, nil, 0

	if data.idLimit < 0 {
		return PluginData{}, fmt.Errorf("negative group id limit %d", data.idLimit)
	}
	types := make(map[TypeID]bool, len(data.types))
	for _, t := range data.types {
		if t == "" {
			return PluginData{}, fmt.Errorf("%w: group type id", sim.ErrNullArgument)
		}
		if types[t] {
			return PluginData{}, fmt.Errorf("%w: group type %q", sim.ErrDuplicateDefinition, t)
		}
		types[t] = true
	}
	ids := make(map[entity.GroupID]bool, len(data.groups))
	for _, g := range data.groups {
		if g.ID < 0 {
			return PluginData{}, fmt.Errorf("%w: %s", sim.ErrUnknownID, g.ID)
		}
		if data.idLimit != 0 && int(g.ID) >= data.idLimit {
			return PluginData{}, fmt.Errorf("group id limit %d does not cover %s", data.idLimit, g.ID)
		}
		if ids[g.ID] {
			return PluginData{}, fmt.Errorf("%w: %s", sim.ErrDuplicateDefinition, g.ID)
		}
		ids[g.ID] = true
		if !types[g.Type] {
			return PluginData{}, fmt.Errorf("%w: group type %q of %s", sim.ErrUnknownID, g.Type, g.ID)
		}
		seen := make(map[entity.PersonID]bool, len(g.Members))
		for _, p := range g.Members {
			if seen[p] {
				return PluginData{}, fmt.Errorf("%w: %s listed twice in %s", sim.ErrDuplicateDefinition, p, g.ID)
			}
			seen[p] = true
		}
	}
	sort.Slice(data.groups, func(i, j int) bool { return data.groups[i].ID < data.groups[j].ID })
	return data, nil
}
