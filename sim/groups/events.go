package groups

import (
	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// TypeLabel selects group events by group type.
type TypeLabel struct {
	Type TypeID
}

// GroupLabel selects membership events of one group.
type GroupLabel struct {
	Group entity.GroupID
}

// AdditionEvent is published when a group is created.
type AdditionEvent struct {
	Group entity.GroupID
	Type  TypeID
}

func (AdditionEvent) Kind() sim.EventKind { return sim.EventGroupAddition }

// Labels implements sim.LabeledEvent.
func (e AdditionEvent) Labels() []any { return []any{TypeLabel{Type: e.Type}} }

// ImminentRemovalEvent is published while the group still exists.
type ImminentRemovalEvent struct {
	Group entity.GroupID
	Type  TypeID
}

func (ImminentRemovalEvent) Kind() sim.EventKind { return sim.EventGroupImminentRemoval }

// Labels implements sim.LabeledEvent.
func (e ImminentRemovalEvent) Labels() []any { return []any{TypeLabel{Type: e.Type}} }

// MembershipAdditionEvent is published after a person joins a group.
type MembershipAdditionEvent struct {
	Person entity.PersonID
	Group  entity.GroupID
	Type   TypeID
}

func (MembershipAdditionEvent) Kind() sim.EventKind { return sim.EventGroupMembershipAddition }

// Labels implements sim.LabeledEvent.
func (e MembershipAdditionEvent) Labels() []any {
	return []any{TypeLabel{Type: e.Type}, GroupLabel{Group: e.Group}}
}

// MembershipRemovalEvent is published after a person leaves a group.
type MembershipRemovalEvent struct {
	Person entity.PersonID
	Group  entity.GroupID
	Type   TypeID
}

func (MembershipRemovalEvent) Kind() sim.EventKind { return sim.EventGroupMembershipRemoval }

// Labels implements sim.LabeledEvent.
func (e MembershipRemovalEvent) Labels() []any {
	return []any{TypeLabel{Type: e.Type}, GroupLabel{Group: e.Group}}
}
