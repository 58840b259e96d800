package sim

import "fmt"

// EventKind is the closed set of event types the bus can dispatch.
// The bus keeps one subscriber list per kind in a fixed-size table, so a new
// kind must be added here (before numEventKinds) and to eventKindNames.
type EventKind uint8

const (
	// EventPersonImminentAddition fires after a person id is issued but before
	// other observers learn of the person. Data managers use it to attach
	// initial state.
	EventPersonImminentAddition EventKind = iota
	// EventPersonAddition fires once a person is fully constructed.
	EventPersonAddition
	// EventPersonImminentRemoval fires while the person still exists.
	EventPersonImminentRemoval
	// EventPersonRemoval fires after the person id is tombstoned.
	EventPersonRemoval
	// EventPersonPropertyDefinition fires when a property is defined mid-run.
	EventPersonPropertyDefinition
	// EventPersonPropertyUpdate fires when a person property value changes.
	EventPersonPropertyUpdate
	// EventGroupAddition fires when a group is created.
	EventGroupAddition
	// EventGroupImminentRemoval fires before a group is removed.
	EventGroupImminentRemoval
	// EventGroupMembershipAddition fires when a person joins a group.
	EventGroupMembershipAddition
	// EventGroupMembershipRemoval fires when a person leaves a group.
	EventGroupMembershipRemoval
	// EventModel carries model-defined events. Models tell their events apart
	// with labels.
	EventModel

	numEventKinds
)

var eventKindNames = [numEventKinds]string{
	EventPersonImminentAddition:   "PersonImminentAddition",
	EventPersonAddition:           "PersonAddition",
	EventPersonImminentRemoval:    "PersonImminentRemoval",
	EventPersonRemoval:            "PersonRemoval",
	EventPersonPropertyDefinition: "PersonPropertyDefinition",
	EventPersonPropertyUpdate:     "PersonPropertyUpdate",
	EventGroupAddition:            "GroupAddition",
	EventGroupImminentRemoval:     "GroupImminentRemoval",
	EventGroupMembershipAddition:  "GroupMembershipAddition",
	EventGroupMembershipRemoval:   "GroupMembershipRemoval",
	EventModel:                    "Model",
}

// String returns the kind name used in logs and metric labels.
func (k EventKind) String() string {
	if k >= numEventKinds {
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
	return eventKindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k EventKind) Valid() bool {
	return k < numEventKinds
}

// EventKinds returns every declared kind in declaration order.
func EventKinds() []EventKind {
	kinds := make([]EventKind, numEventKinds)
	for i := range kinds {
		kinds[i] = EventKind(i)
	}
	return kinds
}

// Event is an immutable notification of a state change.
type Event interface {
	Kind() EventKind
}

// LabeledEvent is an event that also carries structural labels. A subscriber
// registered for (kind, label) receives the event only when the event lists
// that label. Labels must be comparable values.
type LabeledEvent interface {
	Event
	Labels() []any
}
