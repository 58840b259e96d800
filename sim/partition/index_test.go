package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/people"
)

func TestDataManager_ExpandCapacityPresizesIndexes(t *testing.T) {
	pd, err := people.NewBuilder().AddPeople(4).Build()
	require.NoError(t, err)
	dm := New()
	s, err := sim.NewSimulation(sim.Config{})
	require.NoError(t, err)
	require.NoError(t, s.AddDataManager(people.ID, people.New(pd)))
	require.NoError(t, s.AddDataManager(ID, dm, people.ID))
	require.NoError(t, s.AddActor("bulk", func(ctx *sim.Context) error {
		require.NoError(t, dm.AddPartition(ctx, "everyone", Partition{}))
		pdm, err := people.Get(ctx)
		require.NoError(t, err)

		// WHEN capacity for 1000 more people is announced
		require.NoError(t, pdm.ExpandCapacity(1000))

		// THEN the index is sized up front and bulk insertion does not reallocate it
		ix := dm.partitions["everyone"]
		require.GreaterOrEqual(t, len(ix.personCell), 1004)
		cells, pos := &ix.personCell[0], &ix.personPos[0]
		for i := 0; i < 1000; i++ {
			if _, err := pdm.AddPerson(ctx, people.ConstructionData{}); err != nil {
				return err
			}
		}
		assert.Same(t, cells, &ix.personCell[0])
		assert.Same(t, pos, &ix.personPos[0])

		n, err := dm.GetPeopleCount("everyone", nil)
		require.NoError(t, err)
		assert.Equal(t, 1004, n)
		return nil
	}))
	require.NoError(t, s.Run())
}
