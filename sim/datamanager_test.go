package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDM struct {
	id   DataManagerID
	log  *[]DataManagerID
	deps []DataManagerID
}

func (dm *recordingDM) Init(ctx *Context) error {
	// Every dependency must already be reachable.
	for _, dep := range dm.deps {
		if _, err := ctx.DataManager(dep); err != nil {
			return err
		}
	}
	*dm.log = append(*dm.log, dm.id)
	return nil
}

func TestDataManagerHost_InitInDependencyOrder(t *testing.T) {
	var log []DataManagerID
	h := NewDataManagerHost()
	s := &Simulation{host: h}
	ctx := &Context{sim: s}
	register := func(id DataManagerID, deps ...DataManagerID) {
		require.NoError(t, h.Register(id, &recordingDM{id: id, log: &log, deps: deps}, deps...))
	}
	register("reports", "partitions", "props")
	register("partitions", "people", "props")
	register("props", "people")
	register("people")
	register("regions")

	order, err := h.InitOrder()
	require.NoError(t, err)
	assert.Equal(t, []DataManagerID{"people", "props", "partitions", "reports", "regions"}, order)

	require.NoError(t, h.Init(ctx))
	assert.Equal(t, order, log)
}

func TestDataManagerHost_RejectsCyclesBeforeInit(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *DataManagerHost, log *[]DataManagerID)
		want  error
	}{
		{
			name: "cycle",
			setup: func(h *DataManagerHost, log *[]DataManagerID) {
				h.Register("a", &recordingDM{id: "a", log: log}, "b")
				h.Register("b", &recordingDM{id: "b", log: log}, "c")
				h.Register("c", &recordingDM{id: "c", log: log}, "a")
				h.Register("free", &recordingDM{id: "free", log: log})
			},
			want: ErrDependencyCycle,
		},
		{
			name: "self dependency",
			setup: func(h *DataManagerHost, log *[]DataManagerID) {
				h.Register("a", &recordingDM{id: "a", log: log}, "a")
			},
			want: ErrDependencyCycle,
		},
		{
			name: "unknown dependency",
			setup: func(h *DataManagerHost, log *[]DataManagerID) {
				h.Register("free", &recordingDM{id: "free", log: log})
				h.Register("a", &recordingDM{id: "a", log: log}, "missing")
			},
			want: ErrUnknownID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log []DataManagerID
			h := NewDataManagerHost()
			tt.setup(h, &log)
			err := h.Init(&Context{sim: &Simulation{host: h}})
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, log, "no data manager may initialize")
		})
	}
}

func TestDataManagerHost_RegisterValidation(t *testing.T) {
	h := NewDataManagerHost()
	var log []DataManagerID
	assert.ErrorIs(t, h.Register("", &recordingDM{log: &log}), ErrNullArgument)
	assert.ErrorIs(t, h.Register("a", nil), ErrNullArgument)
	require.NoError(t, h.Register("a", &recordingDM{id: "a", log: &log}))
	assert.ErrorIs(t, h.Register("a", &recordingDM{id: "a", log: &log}), ErrDuplicateDefinition)
}

func TestDataManagerHost_GetBeforeInit(t *testing.T) {
	h := NewDataManagerHost()
	var log []DataManagerID
	require.NoError(t, h.Register("a", &recordingDM{id: "a", log: &log}))
	_, err := h.Get("a")
	assert.ErrorIs(t, err, ErrUnknownID)
	_, err = h.Get("zzz")
	assert.ErrorIs(t, err, ErrUnknownID)

	require.NoError(t, h.Init(&Context{sim: &Simulation{host: h}}))
	dm, err := h.Get("a")
	require.NoError(t, err)
	assert.Equal(t, DataManagerID("a"), dm.(*recordingDM).id)
}

func TestGetDataManager_TypeMismatch(t *testing.T) {
	h := NewDataManagerHost()
	var log []DataManagerID
	require.NoError(t, h.Register("a", &recordingDM{id: "a", log: &log}))
	ctx := &Context{sim: &Simulation{host: h}}
	require.NoError(t, h.Init(ctx))

	dm, err := GetDataManager[*recordingDM](ctx, "a")
	require.NoError(t, err)
	assert.NotNil(t, dm)

	type other struct{ DataManager }
	_, err = GetDataManager[*other](ctx, "a")
	assert.ErrorIs(t, err, ErrTypeIncompatible)
}
