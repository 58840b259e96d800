package people

import (
	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// ImminentAdditionEvent is published after a person id is issued and before
// the person is announced. Data managers attach initial state from the
// construction data here.
type ImminentAdditionEvent struct {
	Person       entity.PersonID
	Construction ConstructionData
}

func (ImminentAdditionEvent) Kind() sim.EventKind { return sim.EventPersonImminentAddition }

// AdditionEvent is published once a person is fully constructed.
type AdditionEvent struct {
	Person entity.PersonID
}

func (AdditionEvent) Kind() sim.EventKind { return sim.EventPersonAddition }

// ImminentRemovalEvent is published while the person still exists.
type ImminentRemovalEvent struct {
	Person entity.PersonID
}

func (ImminentRemovalEvent) Kind() sim.EventKind { return sim.EventPersonImminentRemoval }

// RemovalEvent is published after the person id is tombstoned.
type RemovalEvent struct {
	Person entity.PersonID
}

func (RemovalEvent) Kind() sim.EventKind { return sim.EventPersonRemoval }

// PersonOf extracts the person from any of the person lifecycle events.
func PersonOf(ev sim.Event) (entity.PersonID, bool) {
	switch e := ev.(type) {
	case ImminentAdditionEvent:
		return e.Person, true
	case AdditionEvent:
		return e.Person, true
	case ImminentRemovalEvent:
		return e.Person, true
	case RemovalEvent:
		return e.Person, true
	}
	return 0, false
}
