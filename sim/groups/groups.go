// Package groups owns group types, groups and person memberships.
package groups

import (
	"fmt"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
	"github.com/popsim/popsim/sim/partition"
	"github.com/popsim/popsim/sim/people"
	"github.com/popsim/popsim/sim/propstore"
)

// ID is the groups data manager's registration id.
const ID sim.DataManagerID = "groups"

// SubsystemGroups is the random stream used by SampleMember.
const SubsystemGroups = "groups"

// DataManager is the groups data manager.
type DataManager struct {
	data      PluginData
	people    *people.DataManager
	types     []TypeID
	typeSet   map[TypeID]bool
	registry  *entity.Registry[entity.GroupID]
	groupType *propstore.ObjectColumn[TypeID]
	members   *propstore.ObjectColumn[[]entity.PersonID]
	personOf  *propstore.ObjectColumn[[]entity.GroupID]
}

// New creates the data manager from its plugin data. It depends on people.ID.
func New(data PluginData) *DataManager {
	return &DataManager{
		data:      data,
		typeSet:   make(map[TypeID]bool),
		registry:  entity.NewRegistry[entity.GroupID](),
		groupType: propstore.NewObjectColumn[TypeID](""),
		members:   propstore.NewObjectColumn[[]entity.PersonID](nil),
		personOf:  propstore.NewObjectColumn[[]entity.GroupID](nil),
	}
}

// Get fetches the groups data manager from ctx.
func Get(ctx *sim.Context) (*DataManager, error) {
	return sim.GetDataManager[*DataManager](ctx, ID)
}

// Init loads the initial groups and memberships.
func (dm *DataManager) Init(ctx *sim.Context) error {
	pdm, err := people.Get(ctx)
	if err != nil {
		return err
	}
	dm.people = pdm
	for _, t := range dm.data.types {
		dm.types = append(dm.types, t)
		dm.typeSet[t] = true
	}
	for _, g := range dm.data.groups {
		if err := dm.registry.Register(g.ID); err != nil {
			return fmt.Errorf("%w: initial %s: %v", sim.ErrDuplicateDefinition, g.ID, err)
		}
		dm.groupType.SetValue(int(g.ID), g.Type)
		for _, p := range g.Members {
			if err := pdm.CheckPerson(p); err != nil {
				return fmt.Errorf("member of %s: %w", g.ID, err)
			}
			dm.link(p, g.ID)
		}
	}
	if limit := dm.data.idLimit; limit > 0 {
		if err := dm.registry.Reserve(limit); err != nil {
			return fmt.Errorf("restoring group id limit: %w", err)
		}
	}
	pdm.AddCapacityListener(func(n int) { dm.personOf.Expand(n) })
	if _, err := ctx.Subscribe(sim.EventPersonRemoval, dm.handlePersonRemoval); err != nil {
		return err
	}
	ctx.Log().Infof("Loaded %d groups of %d types", dm.registry.Count(), len(dm.types))
	return nil
}

func (dm *DataManager) link(p entity.PersonID, g entity.GroupID) {
	dm.members.SetValue(int(g), append(dm.members.GetValue(int(g)), p))
	dm.personOf.SetValue(int(p), append(dm.personOf.GetValue(int(p)), g))
}

func (dm *DataManager) unlink(p entity.PersonID, g entity.GroupID) {
	dm.members.SetValue(int(g), removeValue(dm.members.GetValue(int(g)), p))
	dm.personOf.SetValue(int(p), removeValue(dm.personOf.GetValue(int(p)), g))
}

// removeValue deletes v preserving order.
func removeValue[T comparable](s []T, v T) []T {
	for i, x := range s {
		if x == v {
			out := make([]T, 0, len(s)-1)
			out = append(out, s[:i]...)
			return append(out, s[i+1:]...)
		}
	}
	return s
}

// handlePersonRemoval drops the removed person's memberships without
// publishing membership events; the person no longer exists.
func (dm *DataManager) handlePersonRemoval(ctx *sim.Context, ev sim.Event) error {
	p := ev.(people.RemovalEvent).Person
	for _, g := range dm.personOf.GetValue(int(p)) {
		dm.members.SetValue(int(g), removeValue(dm.members.GetValue(int(g)), p))
	}
	dm.personOf.Reset(int(p))
	return nil
}

// AddType defines a group type during the run.
func (dm *DataManager) AddType(t TypeID) error {
	if t == "" {
		return fmt.Errorf("%w: group type id", sim.ErrNullArgument)
	}
	if dm.typeSet[t] {
		return fmt.Errorf("%w: group type %q", sim.ErrDuplicateDefinition, t)
	}
	dm.types = append(dm.types, t)
	dm.typeSet[t] = true
	return nil
}

// Types returns the group types in definition order.
func (dm *DataManager) Types() []TypeID {
	return append([]TypeID(nil), dm.types...)
}

// AddGroup creates a group of type t.
func (dm *DataManager) AddGroup(ctx *sim.Context, t TypeID) (entity.GroupID, error) {
	if t == "" {
		return 0, fmt.Errorf("%w: group type id", sim.ErrNullArgument)
	}
	if !dm.typeSet[t] {
		return 0, fmt.Errorf("%w: group type %q", sim.ErrUnknownID, t)
	}
	g := dm.registry.Add()
	dm.groupType.SetValue(int(g), t)
	return g, ctx.Publish(AdditionEvent{Group: g, Type: t})
}

// RemoveGroup announces the removal, removes every member (publishing a
// MembershipRemovalEvent for each) and tombstones the group.
func (dm *DataManager) RemoveGroup(ctx *sim.Context, g entity.GroupID) error {
	if !dm.registry.Exists(g) {
		return fmt.Errorf("%w: %s", sim.ErrUnknownID, g)
	}
	t := dm.groupType.GetValue(int(g))
	if err := ctx.Publish(ImminentRemovalEvent{Group: g, Type: t}); err != nil {
		return err
	}
	for _, p := range dm.members.GetValue(int(g)) {
		dm.unlink(p, g)
		if err := ctx.Publish(MembershipRemovalEvent{Person: p, Group: g, Type: t}); err != nil {
			return err
		}
	}
	dm.registry.Remove(g)
	dm.members.Reset(int(g))
	dm.groupType.Reset(int(g))
	return nil
}

func (dm *DataManager) checkGroup(g entity.GroupID) error {
	if !dm.registry.Exists(g) {
		return fmt.Errorf("%w: %s", sim.ErrUnknownID, g)
	}
	return nil
}

// AddPersonToGroup adds p to g.
func (dm *DataManager) AddPersonToGroup(ctx *sim.Context, p entity.PersonID, g entity.GroupID) error {
	if err := dm.people.CheckPerson(p); err != nil {
		return err
	}
	if err := dm.checkGroup(g); err != nil {
		return err
	}
	if dm.isMember(p, g) {
		return fmt.Errorf("%w: %s is already in %s", sim.ErrDuplicateDefinition, p, g)
	}
	dm.link(p, g)
	return ctx.Publish(MembershipAdditionEvent{Person: p, Group: g, Type: dm.groupType.GetValue(int(g))})
}

// RemovePersonFromGroup removes p from g.
func (dm *DataManager) RemovePersonFromGroup(ctx *sim.Context, p entity.PersonID, g entity.GroupID) error {
	if err := dm.people.CheckPerson(p); err != nil {
		return err
	}
	if err := dm.checkGroup(g); err != nil {
		return err
	}
	if !dm.isMember(p, g) {
		return fmt.Errorf("%w: %s is not in %s", sim.ErrUnknownID, p, g)
	}
	dm.unlink(p, g)
	return ctx.Publish(MembershipRemovalEvent{Person: p, Group: g, Type: dm.groupType.GetValue(int(g))})
}

func (dm *DataManager) isMember(p entity.PersonID, g entity.GroupID) bool {
	for _, x := range dm.personOf.GetValue(int(p)) {
		if x == g {
			return true
		}
	}
	return false
}

// IsPersonInGroup reports whether p is a member of g.
func (dm *DataManager) IsPersonInGroup(p entity.PersonID, g entity.GroupID) (bool, error) {
	if err := dm.people.CheckPerson(p); err != nil {
		return false, err
	}
	if err := dm.checkGroup(g); err != nil {
		return false, err
	}
	return dm.isMember(p, g), nil
}

// IsPersonInGroupOfType reports whether p belongs to any group of type t.
func (dm *DataManager) IsPersonInGroupOfType(p entity.PersonID, t TypeID) (bool, error) {
	if err := dm.people.CheckPerson(p); err != nil {
		return false, err
	}
	if !dm.typeSet[t] {
		return false, fmt.Errorf("%w: group type %q", sim.ErrUnknownID, t)
	}
	for _, g := range dm.personOf.GetValue(int(p)) {
		if dm.groupType.GetValue(int(g)) == t {
			return true, nil
		}
	}
	return false, nil
}

// GroupsForPerson returns the groups p belongs to, in joining order.
func (dm *DataManager) GroupsForPerson(p entity.PersonID) ([]entity.GroupID, error) {
	if err := dm.people.CheckPerson(p); err != nil {
		return nil, err
	}
	return append([]entity.GroupID(nil), dm.personOf.GetValue(int(p))...), nil
}

// PeopleForGroup returns the members of g, in joining order.
func (dm *DataManager) PeopleForGroup(g entity.GroupID) ([]entity.PersonID, error) {
	if err := dm.checkGroup(g); err != nil {
		return nil, err
	}
	return append([]entity.PersonID(nil), dm.members.GetValue(int(g))...), nil
}

// GroupType returns the type of g.
func (dm *DataManager) GroupType(g entity.GroupID) (TypeID, error) {
	if err := dm.checkGroup(g); err != nil {
		return "", err
	}
	return dm.groupType.GetValue(int(g)), nil
}

// GroupsOfType returns the live groups of type t in id order.
func (dm *DataManager) GroupsOfType(t TypeID) ([]entity.GroupID, error) {
	if !dm.typeSet[t] {
		return nil, fmt.Errorf("%w: group type %q", sim.ErrUnknownID, t)
	}
	var out []entity.GroupID
	dm.registry.Each(func(g entity.GroupID) {
		if dm.groupType.GetValue(int(g)) == t {
			out = append(out, g)
		}
	})
	return out, nil
}

// GroupCount returns the number of live groups.
func (dm *DataManager) GroupCount() int { return dm.registry.Count() }

// GroupIDLimit returns one past the highest group id ever issued.
func (dm *DataManager) GroupIDLimit() int { return dm.registry.Limit() }

// SampleMember draws a member of g uniformly, never returning excluded. It
// returns false when no eligible member exists.
func (dm *DataManager) SampleMember(ctx *sim.Context, g entity.GroupID, excluded *entity.PersonID) (entity.PersonID, bool, error) {
	if err := dm.checkGroup(g); err != nil {
		return 0, false, err
	}
	members := dm.members.GetValue(int(g))
	skip := -1
	if excluded != nil {
		for i, p := range members {
			if p == *excluded {
				skip = i
				break
			}
		}
	}
	n := len(members)
	if skip >= 0 {
		n--
	}
	if n <= 0 {
		return 0, false, nil
	}
	i := ctx.RNG(SubsystemGroups).Intn(n)
	if skip >= 0 && i >= skip {
		i++
	}
	return members[i], true, nil
}

// Snapshot implements sim.Snapshotter.
func (dm *DataManager) Snapshot(ctx *sim.Context) (any, error) {
	b := NewBuilder().SetIDLimit(dm.registry.Limit())
	for _, t := range dm.types {
		b.AddType(t)
	}
	dm.registry.Each(func(g entity.GroupID) {
		b.AddGroup(g, dm.groupType.GetValue(int(g)))
		for _, p := range dm.members.GetValue(int(g)) {
			b.AddMember(g, p)
		}
	})
	return b.Build()
}

// MemberOfGroupTypeFilter accepts people who belong to at least one group of
// type t.
func MemberOfGroupTypeFilter(t TypeID) partition.Filter {
	pred := func(ctx *sim.Context, p entity.PersonID) (bool, error) {
		dm, err := Get(ctx)
		if err != nil {
			return false, err
		}
		return dm.IsPersonInGroupOfType(p, t)
	}
	person := func(ev sim.Event) (entity.PersonID, bool) {
		switch e := ev.(type) {
		case MembershipAdditionEvent:
			return e.Person, true
		case MembershipRemovalEvent:
			return e.Person, true
		}
		return 0, false
	}
	return partition.Leaf(pred,
		partition.Sensitivity{Kind: sim.EventGroupMembershipAddition, Label: TypeLabel{Type: t}, Person: person},
		partition.Sensitivity{Kind: sim.EventGroupMembershipRemoval, Label: TypeLabel{Type: t}, Person: person},
	)
}
