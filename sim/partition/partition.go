// Package partition indexes the population into cells by filter and labels
// and keeps the index current as events arrive, so model code can query and
// sample subsets of people without scanning the population.
//
// A partition scans the population once, when it is added. After that it
// re-evaluates only the people named by the events its filter and labelers
// declare sensitivity to.
package partition

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
	"github.com/popsim/popsim/sim/people"
)

// ID is the partition data manager's registration id.
const ID sim.DataManagerID = "partitions"

// Partition defines a filter and an ordered list of labelers. Without
// labelers the partition is degenerate and keeps a single cell.
type Partition struct {
	Filter   Filter
	Labelers []Labeler
}

// DataManager owns every partition in the simulation.
type DataManager struct {
	people     *people.DataManager
	partitions map[any]*index
	moves      prometheus.Counter
}

// New creates an empty partition data manager. It depends on people.ID.
func New() *DataManager {
	return &DataManager{
		partitions: make(map[any]*index),
		moves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popsim_partition_cell_moves_total",
			Help: "People joining or leaving a partition cell",
		}),
	}
}

// Get fetches the partition data manager from ctx.
func Get(ctx *sim.Context) (*DataManager, error) {
	return sim.GetDataManager[*DataManager](ctx, ID)
}

// Init implements sim.DataManager.
func (dm *DataManager) Init(ctx *sim.Context) error {
	pdm, err := people.Get(ctx)
	if err != nil {
		return err
	}
	dm.people = pdm
	moves, err := sim.RegisterCollector(ctx.Registerer(), dm.moves)
	if err != nil {
		return err
	}
	dm.moves = moves
	pdm.AddCapacityListener(dm.expand)
	return nil
}

// expand pre-sizes every partition for n people ahead of bulk insertion.
func (dm *DataManager) expand(n int) {
	for _, ix := range dm.partitions {
		ix.grow(n)
	}
}

// AddPartition validates def, scans the population into cells and subscribes
// to the events that can move people between them.
func (dm *DataManager) AddPartition(ctx *sim.Context, key any, def Partition) error {
	if key == nil {
		return errNull("partition key")
	}
	if !sim.Comparable(key) {
		return fmt.Errorf("%w: partition key %T is not comparable", sim.ErrTypeIncompatible, key)
	}
	if _, exists := dm.partitions[key]; exists {
		return fmt.Errorf("%w: partition %v", sim.ErrDuplicateDefinition, key)
	}
	if err := def.Filter.validate(); err != nil {
		return err
	}
	if err := validateLabelers(def.Labelers); err != nil {
		return err
	}

	ix := newIndex(key, def, dm.moves.Inc)
	ix.grow(dm.people.PersonIDLimit())
	for _, p := range dm.people.People() {
		if err := ix.refresh(ctx, p); err != nil {
			return fmt.Errorf("populating partition %v: %w", key, err)
		}
	}

	if err := dm.subscribe(ctx, ix, def); err != nil {
		for _, h := range ix.subs {
			ctx.Unsubscribe(h)
		}
		return err
	}
	dm.partitions[key] = ix
	ctx.Log().Debugf("Partition %v populated: %d people in %d cells", key, ix.size, len(ix.cells))
	return nil
}

func (dm *DataManager) subscribe(ctx *sim.Context, ix *index, def Partition) error {
	sens := def.Filter.Sensitivities()
	for _, l := range def.Labelers {
		sens = append(sens, l.Sensitivities...)
	}
	for _, s := range sens {
		extract := s.Person
		handler := func(ctx *sim.Context, ev sim.Event) error {
			p, ok := extract(ev)
			if !ok {
				return nil
			}
			if err := dm.people.CheckPerson(p); err != nil {
				return fmt.Errorf("partition %v: %w", ix.key, err)
			}
			return ix.refresh(ctx, p)
		}
		var h sim.SubscriptionHandle
		var err error
		if s.Label != nil {
			h, err = ctx.SubscribeLabel(s.Kind, s.Label, handler)
		} else {
			h, err = ctx.Subscribe(s.Kind, handler)
		}
		if err != nil {
			return err
		}
		ix.subs = append(ix.subs, h)
	}

	lifecycle := []struct {
		kind   sim.EventKind
		handle sim.EventHandler
	}{
		{sim.EventPersonAddition, func(ctx *sim.Context, ev sim.Event) error {
			p, _ := people.PersonOf(ev)
			return ix.refresh(ctx, p)
		}},
		{sim.EventPersonImminentRemoval, func(ctx *sim.Context, ev sim.Event) error {
			p, _ := people.PersonOf(ev)
			ix.detach(p)
			return nil
		}},
		{sim.EventPersonRemoval, func(ctx *sim.Context, ev sim.Event) error {
			p, _ := people.PersonOf(ev)
			ix.detach(p)
			return nil
		}},
	}
	for _, l := range lifecycle {
		h, err := ctx.Subscribe(l.kind, l.handle)
		if err != nil {
			return err
		}
		ix.subs = append(ix.subs, h)
	}
	return nil
}

// RemovePartition disposes of a partition. It returns false if key is unknown.
func (dm *DataManager) RemovePartition(ctx *sim.Context, key any) bool {
	ix, ok := dm.partitions[key]
	if !ok {
		return false
	}
	for _, h := range ix.subs {
		ctx.Unsubscribe(h)
	}
	delete(dm.partitions, key)
	return true
}

// PartitionExists reports whether key names a partition.
func (dm *DataManager) PartitionExists(key any) bool {
	_, ok := dm.partitions[key]
	return ok
}

func (dm *DataManager) lookup(key any) (*index, error) {
	if key == nil {
		return nil, errNull("partition key")
	}
	ix, ok := dm.partitions[key]
	if !ok {
		return nil, fmt.Errorf("%w: partition %v", sim.ErrUnknownID, key)
	}
	return ix, nil
}

// GetPeople returns the members of the cells matching labels.
func (dm *DataManager) GetPeople(key any, labels LabelSet) ([]entity.PersonID, error) {
	ix, err := dm.lookup(key)
	if err != nil {
		return nil, err
	}
	cells, err := ix.matching(labels)
	if err != nil {
		return nil, err
	}
	var out []entity.PersonID
	for _, c := range cells {
		out = append(out, c.members...)
	}
	return out, nil
}

// GetPeopleCount returns the number of members of the cells matching labels.
func (dm *DataManager) GetPeopleCount(key any, labels LabelSet) (int, error) {
	ix, err := dm.lookup(key)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		return ix.size, nil
	}
	cells, err := ix.matching(labels)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range cells {
		n += len(c.members)
	}
	return n, nil
}

// Contains reports whether p is in a cell matching labels.
func (dm *DataManager) Contains(key any, p entity.PersonID, labels LabelSet) (bool, error) {
	ix, err := dm.lookup(key)
	if err != nil {
		return false, err
	}
	if err := dm.people.CheckPerson(p); err != nil {
		return false, err
	}
	cells, err := ix.matching(labels)
	if err != nil {
		return false, err
	}
	c := ix.cellOf(p)
	if c == nil {
		return false, nil
	}
	for _, m := range cells {
		if m == c {
			return true, nil
		}
	}
	return false, nil
}

// Labels returns the cell labels of p, or false if p is not in the partition.
func (dm *DataManager) Labels(key any, p entity.PersonID) (LabelSet, bool, error) {
	ix, err := dm.lookup(key)
	if err != nil {
		return nil, false, err
	}
	if err := dm.people.CheckPerson(p); err != nil {
		return nil, false, err
	}
	c := ix.cellOf(p)
	if c == nil {
		return nil, false, nil
	}
	return ix.labelSet(c), true, nil
}

// CellCount returns the number of cells the partition has created.
func (dm *DataManager) CellCount(key any) (int, error) {
	ix, err := dm.lookup(key)
	if err != nil {
		return 0, err
	}
	return len(ix.cells), nil
}
