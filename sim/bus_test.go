package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelEvent struct {
	name   string
	labels []any
}

func (modelEvent) Kind() EventKind  { return EventModel }
func (e modelEvent) Labels() []any { return e.labels }

type plainEvent struct{}

func (plainEvent) Kind() EventKind { return EventPersonAddition }

func newTestBus() *EventBus {
	return NewEventBus(&Context{})
}

func TestEventBus_UnlabeledFirstThenLabelsInRegistrationOrder(t *testing.T) {
	b := newTestBus()
	var got []string
	record := func(name string) EventHandler {
		return func(*Context, Event) error {
			got = append(got, name)
			return nil
		}
	}
	_, err := b.SubscribeLabel(EventModel, "y", record("label-y-1"))
	require.NoError(t, err)
	_, err = b.Subscribe(EventModel, record("plain-1"))
	require.NoError(t, err)
	_, err = b.SubscribeLabel(EventModel, "x", record("label-x"))
	require.NoError(t, err)
	_, err = b.SubscribeLabel(EventModel, "y", record("label-y-2"))
	require.NoError(t, err)
	_, err = b.Subscribe(EventModel, record("plain-2"))
	require.NoError(t, err)
	_, err = b.SubscribeLabel(EventModel, "z", record("label-z"))
	require.NoError(t, err)

	require.NoError(t, b.Publish(modelEvent{labels: []any{"x", "y"}}))
	assert.Equal(t, []string{"plain-1", "plain-2", "label-y-1", "label-x", "label-y-2"}, got)
}

func TestEventBus_UnlabeledEventSkipsLabeledSubscribers(t *testing.T) {
	b := newTestBus()
	calls := 0
	_, err := b.SubscribeLabel(EventPersonAddition, "x", func(*Context, Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, b.Publish(plainEvent{}))
	assert.Equal(t, 0, calls)
}

func TestEventBus_NoSubscribersIsNoOp(t *testing.T) {
	b := newTestBus()
	assert.NoError(t, b.Publish(modelEvent{}))
	assert.ErrorIs(t, b.Publish(nil), ErrNullArgument)
}

func TestEventBus_NestedPublishIsDepthFirst(t *testing.T) {
	b := newTestBus()
	var got []string
	var depths []int
	b.observe = func(ev Event, depth int) { depths = append(depths, depth) }

	_, err := b.Subscribe(EventModel, func(ctx *Context, ev Event) error {
		e := ev.(modelEvent)
		got = append(got, "enter "+e.name)
		if e.name == "outer" {
			if err := b.Publish(modelEvent{name: "inner"}); err != nil {
				return err
			}
		}
		got = append(got, "leave "+e.name)
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe(EventModel, func(ctx *Context, ev Event) error {
		got = append(got, "second "+ev.(modelEvent).name)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(modelEvent{name: "outer"}))
	assert.Equal(t, []string{
		"enter outer",
		"enter inner", "leave inner", "second inner",
		"leave outer", "second outer",
	}, got)
	assert.Equal(t, []int{0, 1}, depths)
}

func TestEventBus_HandlerErrorStopsDispatch(t *testing.T) {
	b := newTestBus()
	boom := errors.New("boom")
	reached := false
	_, err := b.Subscribe(EventModel, func(*Context, Event) error { return boom })
	require.NoError(t, err)
	_, err = b.Subscribe(EventModel, func(*Context, Event) error {
		reached = true
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, b.Publish(modelEvent{}), boom)
	assert.False(t, reached)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	b := newTestBus()
	calls := map[string]int{}
	var second SubscriptionHandle
	first, err := b.Subscribe(EventModel, func(*Context, Event) error {
		calls["first"]++
		// Removing a later subscriber mid-dispatch suppresses it immediately.
		b.Unsubscribe(second)
		return nil
	})
	require.NoError(t, err)
	second, err = b.Subscribe(EventModel, func(*Context, Event) error {
		calls["second"]++
		return nil
	})
	require.NoError(t, err)
	labeled, err := b.SubscribeLabel(EventModel, "x", func(*Context, Event) error {
		calls["labeled"]++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, b.SubscriberCount(EventModel))

	require.NoError(t, b.Publish(modelEvent{labels: []any{"x"}}))
	assert.Equal(t, map[string]int{"first": 1, "labeled": 1}, calls)

	assert.True(t, b.Unsubscribe(first))
	assert.True(t, b.Unsubscribe(labeled))
	assert.False(t, b.Unsubscribe(labeled))
	assert.False(t, b.Unsubscribe(SubscriptionHandle{}))
	assert.Equal(t, 0, b.SubscriberCount(EventModel))

	require.NoError(t, b.Publish(modelEvent{labels: []any{"x"}}))
	assert.Equal(t, map[string]int{"first": 1, "labeled": 1}, calls)
}

func TestEventBus_SubscribeValidation(t *testing.T) {
	b := newTestBus()
	_, err := b.Subscribe(numEventKinds, noopHandler)
	assert.ErrorIs(t, err, ErrUnknownID)
	_, err = b.Subscribe(EventModel, nil)
	assert.ErrorIs(t, err, ErrNullArgument)
	_, err = b.SubscribeLabel(EventModel, nil, noopHandler)
	assert.ErrorIs(t, err, ErrNullArgument)
	_, err = b.SubscribeLabel(EventModel, []string{"a"}, noopHandler)
	assert.ErrorIs(t, err, ErrTypeIncompatible)
	_, err = b.SubscribeLabel(EventModel, struct{ v any }{[]int{}}, noopHandler)
	assert.ErrorIs(t, err, ErrTypeIncompatible)
}

func TestEventBus_PublishRejectsUncomparableLabel(t *testing.T) {
	b := newTestBus()
	_, err := b.SubscribeLabel(EventModel, "x", noopHandler)
	assert.NoError(t, err)
	err = b.Publish(modelEvent{labels: []any{"x", []int{1}}})
	assert.ErrorIs(t, err, ErrTypeIncompatible)
}

func noopHandler(*Context, Event) error { return nil }

func TestEventKind_Names(t *testing.T) {
	for _, k := range EventKinds() {
		assert.NotEmpty(t, k.String())
		assert.True(t, k.Valid())
	}
	assert.False(t, numEventKinds.Valid())
	assert.Equal(t, "EventKind(200)", EventKind(200).String())
}
