package personprops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
	"github.com/popsim/popsim/sim/people"
	"github.com/popsim/popsim/sim/propstore"
)

const (
	propAge      PropertyID = "age"
	propVaxxed   PropertyID = "vaccinated"
	propStatus   PropertyID = "status"
	propBirthday PropertyID = "birthday"
)

func testPluginData(t *testing.T) PluginData {
	t.Helper()
	data, err := NewBuilder().
		DefineProperty(propAge, Definition{Type: propstore.TypeInt8, Default: int8(0), TrackTimes: true}).
		DefineProperty(propVaxxed, Definition{Type: propstore.TypeBool, Default: false}).
		DefineProperty(propStatus, Definition{Type: propstore.TypeEnum, Default: "S", EnumValues: []any{"S", "I", "R"}}).
		DefineProperty(propBirthday, Definition{Type: propstore.TypeFloat64, Immutable: true}).
		SetValue(propBirthday, 0, 1.5).
		SetValue(propBirthday, 1, 2.5).
		SetValue(propAge, 1, int8(40)).
		Build()
	require.NoError(t, err)
	return data
}

// runModel runs a simulation with people (ids 0..n-1), person properties and
// one actor, returning the Run error.
func runModel(t *testing.T, n int, data PluginData, actor sim.Actor) (*sim.Simulation, *DataManager, error) {
	t.Helper()
	pd, err := people.NewBuilder().AddPeople(n).Build()
	require.NoError(t, err)
	s, err := sim.NewSimulation(sim.Config{})
	require.NoError(t, err)
	dm := New(data)
	require.NoError(t, s.AddDataManager(people.ID, people.New(pd)))
	require.NoError(t, s.AddDataManager(ID, dm, people.ID))
	require.NoError(t, s.AddActor("test", actor))
	return s, dm, s.Run()
}

func TestInit_LoadsValuesAndDefaults(t *testing.T) {
	_, dm, err := runModel(t, 2, testPluginData(t), func(ctx *sim.Context) error { return nil })
	require.NoError(t, err)

	age, err := GetAs[int8](dm, 1, propAge)
	require.NoError(t, err)
	assert.Equal(t, int8(40), age)

	age, err = GetAs[int8](dm, 0, propAge)
	require.NoError(t, err)
	assert.Equal(t, int8(0), age)

	status, err := dm.GetPersonProperty(0, propStatus)
	require.NoError(t, err)
	assert.Equal(t, "S", status)

	assert.Equal(t, []PropertyID{propAge, propVaxxed, propStatus, propBirthday}, dm.PropertyIDs())
}

func TestInit_MissingRequiredValue(t *testing.T) {
	_, _, err := runModel(t, 3, testPluginData(t), func(ctx *sim.Context) error { return nil })
	assert.ErrorIs(t, err, sim.ErrMissingDefault)
}

func TestInit_ValueForUnknownPerson(t *testing.T) {
	data, err := NewBuilder().
		DefineProperty(propAge, Definition{Type: propstore.TypeInt8, Default: int8(0)}).
		SetValue(propAge, 9, int8(3)).
		Build()
	require.NoError(t, err)
	_, _, err = runModel(t, 2, data, func(ctx *sim.Context) error { return nil })
	assert.ErrorIs(t, err, sim.ErrUnknownID)
}

func TestSetPersonProperty_CheckOrder(t *testing.T) {
	tests := []struct {
		name   string
		person entity.PersonID
		prop   PropertyID
		value  any
		want   error
	}{
		{"nil value beats unknown person", 99, propAge, nil, sim.ErrNullArgument},
		{"unknown person beats unknown property", 99, "nope", int8(1), sim.ErrUnknownID},
		{"unknown property", 0, "nope", int8(1), sim.ErrUnknownID},
		{"wrong type", 0, propAge, 3, sim.ErrTypeIncompatible},
		{"not an enum value", 0, propStatus, "X", sim.ErrTypeIncompatible},
		{"type beats mutability", 0, propBirthday, "yesterday", sim.ErrTypeIncompatible},
		{"immutable", 0, propBirthday, 9.0, sim.ErrImmutableViolation},
	}
	_, dm, err := runModel(t, 2, testPluginData(t), func(ctx *sim.Context) error {
		dm, err := Get(ctx)
		if err != nil {
			return err
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := dm.SetPersonProperty(ctx, tt.person, tt.prop, tt.value)
				assert.ErrorIs(t, err, tt.want)
			})
		}
		return nil
	})
	require.NoError(t, err)

	// Nothing changed.
	b, err := dm.GetPersonProperty(0, propBirthday)
	require.NoError(t, err)
	assert.Equal(t, 1.5, b)
}

func TestSetPersonProperty_PublishesLabeledUpdate(t *testing.T) {
	var byProperty, byPerson, other []UpdateEvent
	_, dm, err := runModel(t, 2, testPluginData(t), func(ctx *sim.Context) error {
		record := func(into *[]UpdateEvent) sim.EventHandler {
			return func(ctx *sim.Context, ev sim.Event) error {
				*into = append(*into, ev.(UpdateEvent))
				return nil
			}
		}
		if _, err := ctx.SubscribeLabel(sim.EventPersonPropertyUpdate, PropertyLabel{Property: propAge}, record(&byProperty)); err != nil {
			return err
		}
		if _, err := ctx.SubscribeLabel(sim.EventPersonPropertyUpdate, PersonPropertyLabel{Property: propAge, Person: 1}, record(&byPerson)); err != nil {
			return err
		}
		if _, err := ctx.SubscribeLabel(sim.EventPersonPropertyUpdate, PropertyLabel{Property: propVaxxed}, record(&other)); err != nil {
			return err
		}
		_, err := ctx.AddPlan(sim.Plan{Time: 3, Callback: func(ctx *sim.Context) error {
			dm, _ := Get(ctx)
			if err := dm.SetPersonProperty(ctx, 0, propAge, int8(5)); err != nil {
				return err
			}
			return dm.SetPersonProperty(ctx, 1, propAge, int8(41))
		}})
		return err
	})
	require.NoError(t, err)

	assert.Len(t, byProperty, 2)
	assert.Equal(t, []UpdateEvent{{Person: 1, Property: propAge, Previous: int8(40), Current: int8(41)}}, byPerson)
	assert.Empty(t, other)

	when, err := dm.GetPersonPropertyTime(0, propAge)
	require.NoError(t, err)
	assert.Equal(t, 3.0, when)
	_, err = dm.GetPersonPropertyTime(0, propVaxxed)
	assert.ErrorIs(t, err, sim.ErrTypeIncompatible)
}

func TestAddPerson_ConstructionValues(t *testing.T) {
	_, dm, err := runModel(t, 2, testPluginData(t), func(ctx *sim.Context) error {
		pdm, err := people.Get(ctx)
		if err != nil {
			return err
		}

		_, err = pdm.AddPerson(ctx, people.NewConstructionBuilder().Build())
		assert.ErrorIs(t, err, sim.ErrMissingDefault, "birthday has no default")

		_, err = pdm.AddPerson(ctx, people.NewConstructionBuilder().
			Add(Value{Property: propBirthday, Value: 7.0}).
			Add(Value{Property: "height", Value: 1.0}).
			Build())
		assert.ErrorIs(t, err, sim.ErrUnknownID)

		_, err = pdm.AddPerson(ctx, people.NewConstructionBuilder().
			Add(Value{Property: propBirthday, Value: 7}).
			Build())
		assert.ErrorIs(t, err, sim.ErrTypeIncompatible)
		assert.Equal(t, 2, pdm.PersonIDLimit(), "failed additions issue no id")

		id, err := pdm.AddPerson(ctx, people.NewConstructionBuilder().
			Add(Value{Property: propBirthday, Value: 7.0}).
			Add(Value{Property: propStatus, Value: "I"}).
			Build())
		require.NoError(t, err)
		assert.Equal(t, entity.PersonID(2), id)
		return nil
	})
	require.NoError(t, err)

	status, err := dm.GetPersonProperty(2, propStatus)
	require.NoError(t, err)
	assert.Equal(t, "I", status)
	birthday, err := dm.GetPersonProperty(2, propBirthday)
	require.NoError(t, err)
	assert.Equal(t, 7.0, birthday)
}

func TestRemovePerson_ResetsSlot(t *testing.T) {
	_, dm, err := runModel(t, 2, testPluginData(t), func(ctx *sim.Context) error {
		pdm, _ := people.Get(ctx)
		return pdm.RemovePerson(ctx, 1)
	})
	require.NoError(t, err)

	_, err = dm.GetPersonProperty(1, propAge)
	assert.ErrorIs(t, err, sim.ErrUnknownID)
	assert.Equal(t, int8(0), dm.props[propAge].col.Get(1))
	assert.False(t, dm.props[propBirthday].isSet(1))
}

func TestDefineProperty_MidRun(t *testing.T) {
	var defined []PropertyID
	_, dm, err := runModel(t, 2, testPluginData(t), func(ctx *sim.Context) error {
		dm, _ := Get(ctx)
		if _, err := ctx.Subscribe(sim.EventPersonPropertyDefinition, func(ctx *sim.Context, ev sim.Event) error {
			defined = append(defined, ev.(DefinitionEvent).Property)
			return nil
		}); err != nil {
			return err
		}

		err := dm.DefineProperty(ctx, "weight", Definition{Type: propstore.TypeFloat32}, map[entity.PersonID]any{0: float32(60)})
		assert.ErrorIs(t, err, sim.ErrMissingDefault)
		err = dm.DefineProperty(ctx, propAge, Definition{Type: propstore.TypeInt8, Default: int8(1)}, nil)
		assert.ErrorIs(t, err, sim.ErrDuplicateDefinition)
		err = dm.DefineProperty(ctx, "weight", Definition{Type: propstore.TypeFloat32}, map[entity.PersonID]any{0: 60.0, 1: float32(70)})
		assert.ErrorIs(t, err, sim.ErrTypeIncompatible)

		return dm.DefineProperty(ctx, "weight", Definition{Type: propstore.TypeFloat32}, map[entity.PersonID]any{0: float32(60), 1: float32(70)})
	})
	require.NoError(t, err)
	assert.Equal(t, []PropertyID{"weight"}, defined)
	w, err := GetAs[float32](dm, 1, "weight")
	require.NoError(t, err)
	assert.Equal(t, float32(70), w)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s, _, err := runModel(t, 2, testPluginData(t), func(ctx *sim.Context) error {
		_, err := ctx.AddPlan(sim.Plan{Time: 4, Callback: func(ctx *sim.Context) error {
			dm, _ := Get(ctx)
			return dm.SetPersonProperty(ctx, 0, propVaxxed, true)
		}})
		return err
	})
	require.NoError(t, err)

	snaps, err := s.Snapshot()
	require.NoError(t, err)
	snap := snaps[ID].(PluginData)
	assert.Equal(t, map[entity.PersonID]any{0: true}, snap.Values(propVaxxed))
	assert.Equal(t, map[entity.PersonID]any{0: 1.5, 1: 2.5}, snap.Values(propBirthday))
	assert.Equal(t, map[entity.PersonID]float64{0: 0, 1: 0}, snap.Times(propAge))

	// The snapshot seeds an equivalent run.
	_, dm, err := runModel(t, 2, snap, func(ctx *sim.Context) error { return nil })
	require.NoError(t, err)
	v, err := dm.GetPersonProperty(0, propVaxxed)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestBuilder_Errors(t *testing.T) {
	_, err := NewBuilder().
		DefineProperty(propAge, Definition{Type: propstore.TypeInt8}).
		DefineProperty(propAge, Definition{Type: propstore.TypeInt8}).
		Build()
	assert.ErrorIs(t, err, sim.ErrDuplicateDefinition)

	_, err = NewBuilder().SetValue(propAge, 0, int8(1)).Build()
	assert.ErrorIs(t, err, sim.ErrUnknownID)

	_, err = NewBuilder().DefineProperty(propAge, Definition{Type: propstore.TypeInt8, Default: 3}).Build()
	assert.ErrorIs(t, err, sim.ErrTypeIncompatible)

	_, err = NewBuilder().DefineProperty(propStatus, Definition{Type: propstore.TypeEnum}).Build()
	assert.ErrorIs(t, err, sim.ErrNullArgument)

	_, err = NewBuilder().
		DefineProperty(propVaxxed, Definition{Type: propstore.TypeBool}).
		SetTime(propVaxxed, 0, 1).
		Build()
	assert.Error(t, err)
}

func TestPluginData_ToBuilderCopies(t *testing.T) {
	data := testPluginData(t)
	modified, err := data.ToBuilder().SetValue(propAge, 0, int8(9)).Build()
	require.NoError(t, err)
	assert.Equal(t, map[entity.PersonID]any{1: int8(40)}, data.Values(propAge))
	assert.Equal(t, map[entity.PersonID]any{0: int8(9), 1: int8(40)}, modified.Values(propAge))
}

func TestComparison_Holds(t *testing.T) {
	tests := []struct {
		c      Comparison
		v, tgt any
		want   bool
	}{
		{Equal, true, true, true},
		{NotEqual, "S", "I", true},
		{Less, int8(3), int8(30), true},
		{LessOrEqual, int16(30), int16(30), true},
		{Greater, 2.5, 2.0, true},
		{GreaterOrEqual, int64(1), int64(2), false},
	}
	for _, tt := range tests {
		got, err := tt.c.holds(tt.v, tt.tgt)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v %s %v", tt.v, tt.c, tt.tgt)
	}
	_, err := Less.holds(int8(1), int16(2))
	assert.ErrorIs(t, err, sim.ErrTypeIncompatible)
}
