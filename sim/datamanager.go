package sim

import (
	"fmt"
	"sort"
	"strings"
)

// DataManagerID names a data manager. Each data manager package exports its own.
type DataManagerID string

// DataManager is the exclusive owner of one slice of simulation state. Init
// runs once, after the data managers it depends on have initialized; it is
// where a data manager loads its plugin data and subscribes to events.
type DataManager interface {
	Init(ctx *Context) error
}

// Snapshotter is implemented by data managers that can describe their current
// state as plugin data for a continuation run.
type Snapshotter interface {
	Snapshot(ctx *Context) (any, error)
}

type dataManagerEntry struct {
	id          DataManagerID
	dm          DataManager
	deps        []DataManagerID
	index       int
	initialized bool
}

// DataManagerHost registers data managers and initializes them in dependency order.
type DataManagerHost struct {
	entries []*dataManagerEntry
	byID    map[DataManagerID]*dataManagerEntry
	order   []*dataManagerEntry
	started bool
}

// NewDataManagerHost creates an empty host.
func NewDataManagerHost() *DataManagerHost {
	return &DataManagerHost{
		byID: make(map[DataManagerID]*dataManagerEntry),
	}
}

// Register adds dm under id. deps lists the data managers whose Init must
// complete before dm's Init begins.
func (h *DataManagerHost) Register(id DataManagerID, dm DataManager, deps ...DataManagerID) error {
	if id == "" {
		return fmt.Errorf("%w: data manager id", ErrNullArgument)
	}
	if dm == nil {
		return fmt.Errorf("%w: data manager %q", ErrNullArgument, id)
	}
	if h.started {
		return fmt.Errorf("data manager %q registered after initialization started", id)
	}
	if _, exists := h.byID[id]; exists {
		return fmt.Errorf("%w: data manager %q", ErrDuplicateDefinition, id)
	}
	e := &dataManagerEntry{
		id:    id,
		dm:    dm,
		deps:  append([]DataManagerID(nil), deps...),
		index: len(h.entries),
	}
	h.entries = append(h.entries, e)
	h.byID[id] = e
	return nil
}

// InitOrder returns the topological order the host will initialize in.
// Among data managers whose dependencies are satisfied, the one registered
// first goes first.
func (h *DataManagerHost) InitOrder() ([]DataManagerID, error) {
	order, err := h.resolve()
	if err != nil {
		return nil, err
	}
	ids := make([]DataManagerID, len(order))
	for i, e := range order {
		ids[i] = e.id
	}
	return ids, nil
}

func (h *DataManagerHost) resolve() ([]*dataManagerEntry, error) {
	inDegree := make([]int, len(h.entries))
	dependents := make([][]int, len(h.entries))
	for _, e := range h.entries {
		seen := make(map[DataManagerID]bool, len(e.deps))
		for _, dep := range e.deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			target, ok := h.byID[dep]
			if !ok {
				return nil, fmt.Errorf("%w: data manager %q depends on unregistered %q", ErrUnknownID, e.id, dep)
			}
			if target == e {
				return nil, fmt.Errorf("%w: data manager %q depends on itself", ErrDependencyCycle, e.id)
			}
			inDegree[e.index]++
			dependents[target.index] = append(dependents[target.index], e.index)
		}
	}

	ready := make([]int, 0, len(h.entries))
	for i := range h.entries {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]*dataManagerEntry, 0, len(h.entries))
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, h.entries[next])
		for _, d := range dependents[next] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(h.entries) {
		var stuck []string
		for i, e := range h.entries {
			if inDegree[i] > 0 {
				stuck = append(stuck, string(e.id))
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}

// Init resolves the dependency order and initializes every data manager. No
// Init hook runs if the order cannot be resolved.
func (h *DataManagerHost) Init(ctx *Context) error {
	if h.started {
		return fmt.Errorf("data managers already initialized")
	}
	order, err := h.resolve()
	if err != nil {
		return err
	}
	h.started = true
	h.order = order
	for _, e := range order {
		if err := e.dm.Init(ctx); err != nil {
			return fmt.Errorf("initializing data manager %q: %w", e.id, err)
		}
		e.initialized = true
	}
	return nil
}

// Get returns the data manager registered under id once it has initialized.
func (h *DataManagerHost) Get(id DataManagerID) (DataManager, error) {
	e, ok := h.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: data manager %q", ErrUnknownID, id)
	}
	if !e.initialized {
		return nil, fmt.Errorf("%w: data manager %q is not initialized", ErrUnknownID, id)
	}
	return e.dm, nil
}

// initialized returns the data managers in initialization order.
func (h *DataManagerHost) initialized() []*dataManagerEntry {
	return h.order
}

// GetDataManager fetches a data manager and asserts its concrete type.
func GetDataManager[T DataManager](ctx *Context, id DataManagerID) (T, error) {
	var zero T
	dm, err := ctx.DataManager(id)
	if err != nil {
		return zero, err
	}
	typed, ok := dm.(T)
	if !ok {
		return zero, fmt.Errorf("%w: data manager %q is %T", ErrTypeIncompatible, id, dm)
	}
	return typed, nil
}
