// Package entity issues dense integer ids for people and groups and tracks
// which of them currently exist.
package entity

import (
	"fmt"

	"github.com/popsim/popsim/sim/propstore"
)

// PersonID is a dense, non-negative person handle.
type PersonID int

// GroupID is a dense, non-negative group handle.
type GroupID int

func (id PersonID) String() string { return fmt.Sprintf("person-%d", int(id)) }
func (id GroupID) String() string  { return fmt.Sprintf("group-%d", int(id)) }

// Registry allocates ids for one entity kind. Ids are issued in increasing
// order and are never handed out again by Add; a removed id stays tombstoned
// until Register brings it back explicitly.
type Registry[T ~int] struct {
	exists     *propstore.BoolColumn
	limit      int
	count      int
	tombstones []T
}

// NewRegistry creates an empty registry.
func NewRegistry[T ~int]() *Registry[T] {
	return &Registry[T]{exists: propstore.NewBoolColumn(false)}
}

// Add issues the next id.
func (r *Registry[T]) Add() T {
	id := T(r.limit)
	r.exists.SetBool(r.limit, true)
	r.limit++
	r.count++
	return id
}

// Register marks id as existing. It is used when restoring a population in
// which ids are not contiguous, and is the only way a tombstoned id returns.
// Registering an existing id fails.
func (r *Registry[T]) Register(id T) error {
	if id < 0 {
		return fmt.Errorf("negative id %d", int(id))
	}
	if r.Exists(id) {
		return fmt.Errorf("id %d already exists", int(id))
	}
	r.exists.SetBool(int(id), true)
	if int(id) >= r.limit {
		r.limit = int(id) + 1
	}
	r.count++
	for i, t := range r.tombstones {
		if t == id {
			r.tombstones = append(r.tombstones[:i], r.tombstones[i+1:]...)
			break
		}
	}
	return nil
}

// Reserve raises the id limit to limit and tombstones every id below it
// that is not live. A continuation run calls it after registering its
// population, so Add never hands out an id an earlier run removed.
func (r *Registry[T]) Reserve(limit int) error {
	if limit < r.limit {
		return fmt.Errorf("id limit %d is below issued id %d", limit, r.limit-1)
	}
	known := make(map[T]bool, len(r.tombstones))
	for _, t := range r.tombstones {
		known[t] = true
	}
	r.exists.Expand(limit)
	for i := 0; i < limit; i++ {
		if id := T(i); !r.exists.GetBool(i) && !known[id] {
			r.tombstones = append(r.tombstones, id)
		}
	}
	r.limit = limit
	return nil
}

// Remove tombstones id. It returns false if id does not exist.
func (r *Registry[T]) Remove(id T) bool {
	if !r.Exists(id) {
		return false
	}
	r.exists.SetBool(int(id), false)
	r.count--
	r.tombstones = append(r.tombstones, id)
	return true
}

// Exists reports whether id is currently live. Negative and never-issued ids
// do not exist.
func (r *Registry[T]) Exists(id T) bool {
	if id < 0 || int(id) >= r.limit {
		return false
	}
	return r.exists.GetBool(int(id))
}

// Limit returns one past the highest id ever issued.
func (r *Registry[T]) Limit() int { return r.limit }

// Count returns the number of live ids.
func (r *Registry[T]) Count() int { return r.count }

// Tombstones returns the removed ids in removal order.
func (r *Registry[T]) Tombstones() []T {
	return append([]T(nil), r.tombstones...)
}

// Expand grows the existence index so that n ids can be added without
// reallocation.
func (r *Registry[T]) Expand(n int) {
	r.exists.Expand(r.limit + n)
}

// Each calls fn for every live id in increasing order.
func (r *Registry[T]) Each(fn func(id T)) {
	for i := 0; i < r.limit; i++ {
		if r.exists.GetBool(i) {
			fn(T(i))
		}
	}
}

// IDs returns the live ids in increasing order.
func (r *Registry[T]) IDs() []T {
	ids := make([]T, 0, r.count)
	r.Each(func(id T) { ids = append(ids, id) })
	return ids
}
