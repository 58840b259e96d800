package personprops

import (
	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// PropertyLabel selects updates of one property.
type PropertyLabel struct {
	Property PropertyID
}

// PersonPropertyLabel selects updates of one property for one person.
type PersonPropertyLabel struct {
	Property PropertyID
	Person   entity.PersonID
}

// UpdateEvent is published after a person property value is assigned.
type UpdateEvent struct {
	Person   entity.PersonID
	Property PropertyID
	Previous any
	Current  any
}

func (UpdateEvent) Kind() sim.EventKind { return sim.EventPersonPropertyUpdate }

// Labels implements sim.LabeledEvent.
func (e UpdateEvent) Labels() []any {
	return []any{
		PropertyLabel{Property: e.Property},
		PersonPropertyLabel{Property: e.Property, Person: e.Person},
	}
}

// DefinitionEvent is published when a property is defined during the run.
type DefinitionEvent struct {
	Property PropertyID
}

func (DefinitionEvent) Kind() sim.EventKind { return sim.EventPersonPropertyDefinition }

// Labels implements sim.LabeledEvent.
func (e DefinitionEvent) Labels() []any {
	return []any{PropertyLabel{Property: e.Property}}
}

// Value is a person construction entry assigning an initial property value.
type Value struct {
	Property PropertyID
	Value    any
}
