package people

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// runWith runs a simulation holding dm and a single actor.
func runWith(t *testing.T, cfg sim.Config, dm *DataManager, actor sim.Actor) *sim.Simulation {
	t.Helper()
	s, err := sim.NewSimulation(cfg)
	require.NoError(t, err)
	require.NoError(t, s.AddDataManager(ID, dm))
	require.NoError(t, s.AddActor("test", actor))
	require.NoError(t, s.Run())
	return s
}

func TestBuilder_MergesAndRejectsOverlap(t *testing.T) {
	data, err := NewBuilder().AddRange(5, 9).AddPeople(3).AddPerson(3).AddPerson(4).Build()
	require.NoError(t, err)
	assert.Equal(t, []Range{{First: 0, Last: 9}}, data.Ranges())
	assert.Equal(t, 10, data.PersonCount())

	_, err = NewBuilder().AddRange(0, 4).AddRange(4, 6).Build()
	assert.Error(t, err)

	_, err = NewBuilder().AddRange(3, 1).Build()
	assert.Error(t, err)
}

func TestBuilder_BuildResets(t *testing.T) {
	b := NewBuilder().AddPeople(2)
	first, err := b.Build()
	require.NoError(t, err)
	second, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, first.PersonCount())
	assert.Equal(t, 0, second.PersonCount())

	modified, err := first.ToBuilder().AddPerson(10).Build()
	require.NoError(t, err)
	assert.Equal(t, 3, modified.PersonCount())
	assert.Equal(t, 2, first.PersonCount(), "original unchanged")
}

func TestDataManager_AddAndRemoveLifecycle(t *testing.T) {
	data, err := NewBuilder().AddPeople(2).Build()
	require.NoError(t, err)
	dm := New(data)

	var seen []string
	runWith(t, sim.Config{}, dm, func(ctx *sim.Context) error {
		for _, kind := range []sim.EventKind{
			sim.EventPersonImminentAddition, sim.EventPersonAddition,
			sim.EventPersonImminentRemoval, sim.EventPersonRemoval,
		} {
			if _, err := ctx.Subscribe(kind, func(ctx *sim.Context, ev sim.Event) error {
				p, _ := PersonOf(ev)
				seen = append(seen, ev.Kind().String()+":"+p.String())
				// The person exists during the imminent events only until tombstoned.
				if ev.Kind() == sim.EventPersonImminentRemoval {
					assert.True(t, dm.PersonExists(p))
				}
				if ev.Kind() == sim.EventPersonRemoval {
					assert.False(t, dm.PersonExists(p))
				}
				return nil
			}); err != nil {
				return err
			}
		}
		_, err := ctx.AddPlan(sim.Plan{Time: 1, Callback: func(ctx *sim.Context) error {
			id, err := dm.AddPerson(ctx, NewConstructionBuilder().Build())
			if err != nil {
				return err
			}
			assert.Equal(t, entity.PersonID(2), id)
			return dm.RemovePerson(ctx, 0)
		}})
		return err
	})

	assert.Equal(t, []string{
		"PersonImminentAddition:person-2",
		"PersonAddition:person-2",
		"PersonImminentRemoval:person-0",
		"PersonRemoval:person-0",
	}, seen)
	assert.Equal(t, 2, dm.PersonCount())
	assert.Equal(t, 3, dm.PersonIDLimit())
	assert.Equal(t, []entity.PersonID{1, 2}, dm.People())
}

func TestDataManager_ValidatorRejectsBeforeIDIssued(t *testing.T) {
	dm := New(PluginData{})
	reject := errors.New("rejected")
	runWith(t, sim.Config{}, dm, func(ctx *sim.Context) error {
		dm.AddValidator(func(ctx *sim.Context, data ConstructionData) error {
			if len(data.Entries()) == 0 {
				return reject
			}
			return nil
		})
		_, err := dm.AddPerson(ctx, NewConstructionBuilder().Build())
		assert.ErrorIs(t, err, reject)
		assert.Equal(t, 0, dm.PersonIDLimit())

		id, err := dm.AddPerson(ctx, NewConstructionBuilder().Add("x").Build())
		assert.NoError(t, err)
		assert.Equal(t, entity.PersonID(0), id)
		return nil
	})
}

func TestDataManager_RemoveUnknownPerson(t *testing.T) {
	dm := New(PluginData{})
	runWith(t, sim.Config{}, dm, func(ctx *sim.Context) error {
		assert.ErrorIs(t, dm.RemovePerson(ctx, 4), sim.ErrUnknownID)
		assert.ErrorIs(t, dm.CheckPerson(-1), sim.ErrUnknownID)
		return nil
	})
}

func TestDataManager_ExpandCapacityNotifiesListeners(t *testing.T) {
	data, err := NewBuilder().AddPeople(5).Build()
	require.NoError(t, err)
	dm := New(data)
	var got []int
	runWith(t, sim.Config{}, dm, func(ctx *sim.Context) error {
		dm.AddCapacityListener(func(n int) { got = append(got, n) })
		assert.NoError(t, dm.ExpandCapacity(100))
		assert.Error(t, dm.ExpandCapacity(-1))
		return nil
	})
	assert.Equal(t, []int{105}, got)
}

func TestDataManager_SnapshotCompressesRanges(t *testing.T) {
	data, err := NewBuilder().AddPeople(6).Build()
	require.NoError(t, err)
	dm := New(data)
	s := runWith(t, sim.Config{}, dm, func(ctx *sim.Context) error {
		return dm.RemovePerson(ctx, 2)
	})

	snaps, err := s.Snapshot()
	require.NoError(t, err)
	snap := snaps[ID].(PluginData)
	assert.Equal(t, []Range{{First: 0, Last: 1}, {First: 3, Last: 5}}, snap.Ranges())
}

func TestDataManager_ContinuationKeepsRemovedIDsRetired(t *testing.T) {
	// GIVEN a run that removed its highest person
	data, err := NewBuilder().AddPeople(3).Build()
	require.NoError(t, err)
	dm := New(data)
	s := runWith(t, sim.Config{}, dm, func(ctx *sim.Context) error {
		return dm.RemovePerson(ctx, 2)
	})
	snaps, err := s.Snapshot()
	require.NoError(t, err)
	snap := snaps[ID].(PluginData)
	assert.Equal(t, 3, snap.IDLimit())

	// WHEN a continuation starts from the snapshot and adds a person
	next := New(snap)
	var added entity.PersonID
	runWith(t, sim.Config{}, next, func(ctx *sim.Context) error {
		added, err = next.AddPerson(ctx, ConstructionData{})
		return err
	})

	// THEN the removed id is not issued again
	assert.Equal(t, entity.PersonID(3), added)
	assert.False(t, next.PersonExists(2))
	assert.Equal(t, 4, next.PersonIDLimit())
}

func TestBuilder_IDLimitValidation(t *testing.T) {
	_, err := NewBuilder().AddPeople(4).SetIDLimit(3).Build()
	assert.ErrorContains(t, err, "does not cover")
	_, err = NewBuilder().SetIDLimit(-1).Build()
	assert.Error(t, err)

	data, err := NewBuilder().AddPeople(2).SetIDLimit(9).Build()
	require.NoError(t, err)
	kept, err := data.ToBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, 9, kept.IDLimit())
}

func TestDataManager_PopulationGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	data, err := NewBuilder().AddPeople(4).Build()
	require.NoError(t, err)
	dm := New(data)
	runWith(t, sim.Config{Registerer: reg}, dm, func(ctx *sim.Context) error {
		if _, err := dm.AddPerson(ctx, ConstructionData{}); err != nil {
			return err
		}
		return dm.RemovePerson(ctx, 0)
	})
	assert.Equal(t, 4.0, testutil.ToFloat64(dm.population))
}
