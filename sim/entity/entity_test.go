package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddIssuesDenseIDs(t *testing.T) {
	r := NewRegistry[PersonID]()
	for want := 0; want < 5; want++ {
		assert.Equal(t, PersonID(want), r.Add())
	}
	assert.Equal(t, 5, r.Limit())
	assert.Equal(t, 5, r.Count())
	assert.Equal(t, []PersonID{0, 1, 2, 3, 4}, r.IDs())
}

func TestRegistry_RemovedIDsAreNotReused(t *testing.T) {
	r := NewRegistry[PersonID]()
	a := r.Add()
	b := r.Add()

	assert.True(t, r.Remove(a))
	assert.False(t, r.Exists(a))
	assert.False(t, r.Remove(a), "second removal")

	c := r.Add()
	assert.NotEqual(t, a, c)
	assert.Equal(t, PersonID(2), c)
	assert.Equal(t, 3, r.Limit())
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []PersonID{a}, r.Tombstones())
	assert.Equal(t, []PersonID{b, c}, r.IDs())
}

func TestRegistry_RegisterRestoresTombstone(t *testing.T) {
	r := NewRegistry[GroupID]()
	g := r.Add()
	r.Remove(g)

	require.NoError(t, r.Register(g))
	assert.True(t, r.Exists(g))
	assert.Empty(t, r.Tombstones())
	assert.Error(t, r.Register(g), "already exists")
	assert.Error(t, r.Register(-3))
}

func TestRegistry_RegisterSparse(t *testing.T) {
	r := NewRegistry[PersonID]()
	require.NoError(t, r.Register(7))
	assert.Equal(t, 8, r.Limit())
	assert.Equal(t, 1, r.Count())
	assert.False(t, r.Exists(3))
	assert.Equal(t, PersonID(8), r.Add())
}

func TestRegistry_ExistsOutOfRange(t *testing.T) {
	r := NewRegistry[PersonID]()
	r.Add()
	assert.False(t, r.Exists(-1))
	assert.False(t, r.Exists(1))
	assert.False(t, r.Exists(1_000_000))
}

func TestRegistry_ExpandKeepsState(t *testing.T) {
	r := NewRegistry[PersonID]()
	a := r.Add()
	r.Add()
	r.Remove(a)
	r.Expand(10_000)
	assert.False(t, r.Exists(a))
	assert.True(t, r.Exists(1))
	assert.Equal(t, 2, r.Limit())
}

func TestRegistry_ReserveTombstonesGap(t *testing.T) {
	// GIVEN a registry restored with ids 0 and 2 live out of an issued limit of 5
	r := NewRegistry[PersonID]()
	require.NoError(t, r.Register(0))
	require.NoError(t, r.Register(2))

	// WHEN the limit is reserved
	require.NoError(t, r.Reserve(5))

	// THEN the removed ids are tombstoned and Add continues past the limit
	assert.Equal(t, 5, r.Limit())
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []PersonID{1, 3, 4}, r.Tombstones())
	assert.Equal(t, PersonID(5), r.Add())
	assert.False(t, r.Exists(4))

	require.NoError(t, r.Register(4), "explicit re-registration still works")
	assert.Equal(t, []PersonID{1, 3}, r.Tombstones())
}

func TestRegistry_ReserveBelowLimitFails(t *testing.T) {
	r := NewRegistry[GroupID]()
	r.Add()
	r.Add()
	assert.Error(t, r.Reserve(1))
	require.NoError(t, r.Reserve(2), "reserving the current limit is a no-op")
	assert.Empty(t, r.Tombstones())
}
