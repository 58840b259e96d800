package sim

import (
	"fmt"
	"sort"
)

// EventHandler reacts to a published event. A returned error stops the
// dispatch and propagates out of Publish to the caller.
type EventHandler func(ctx *Context, ev Event) error

// SubscriptionHandle identifies a subscription for Unsubscribe.
// The zero value never matches a live subscription.
type SubscriptionHandle struct {
	id uint64
}

// Valid reports whether the handle was issued by a bus.
func (h SubscriptionHandle) Valid() bool { return h.id != 0 }

type subscription struct {
	id      uint64
	kind    EventKind
	label   any
	labeled bool
	handler EventHandler
	active  bool
}

type labelKey struct {
	kind  EventKind
	label any
}

// EventBus dispatches events synchronously. Subscribers registered for the
// bare kind run first, in registration order; subscribers registered for one
// of the event's labels run after them, again in registration order.
// Handlers may publish; nested events are dispatched depth-first before the
// outer Publish returns.
type EventBus struct {
	ctx          *Context
	unlabeled    [numEventKinds][]*subscription
	labeled      map[labelKey][]*subscription
	labeledCount [numEventKinds]int
	byID         map[uint64]*subscription
	nextID       uint64
	depth        int

	// observe is called once per published event before any handler runs.
	observe func(ev Event, depth int)
}

// NewEventBus creates a bus whose handlers receive ctx.
func NewEventBus(ctx *Context) *EventBus {
	return &EventBus{
		ctx:     ctx,
		labeled: make(map[labelKey][]*subscription),
		byID:    make(map[uint64]*subscription),
	}
}

// Subscribe registers handler for every event of the given kind.
func (b *EventBus) Subscribe(kind EventKind, handler EventHandler) (SubscriptionHandle, error) {
	if !kind.Valid() {
		return SubscriptionHandle{}, fmt.Errorf("%w: event kind %d", ErrUnknownID, kind)
	}
	if handler == nil {
		return SubscriptionHandle{}, fmt.Errorf("%w: handler for %s", ErrNullArgument, kind)
	}
	s := b.newSubscription(kind, nil, false, handler)
	b.unlabeled[kind] = append(b.unlabeled[kind], s)
	return SubscriptionHandle{id: s.id}, nil
}

// SubscribeLabel registers handler for events of the given kind that carry
// label. The label must be comparable.
func (b *EventBus) SubscribeLabel(kind EventKind, label any, handler EventHandler) (SubscriptionHandle, error) {
	if !kind.Valid() {
		return SubscriptionHandle{}, fmt.Errorf("%w: event kind %d", ErrUnknownID, kind)
	}
	if handler == nil {
		return SubscriptionHandle{}, fmt.Errorf("%w: handler for %s", ErrNullArgument, kind)
	}
	if label == nil {
		return SubscriptionHandle{}, fmt.Errorf("%w: label for %s", ErrNullArgument, kind)
	}
	if !Comparable(label) {
		return SubscriptionHandle{}, fmt.Errorf("%w: label %T for %s is not comparable", ErrTypeIncompatible, label, kind)
	}
	s := b.newSubscription(kind, label, true, handler)
	key := labelKey{kind: kind, label: label}
	b.labeled[key] = append(b.labeled[key], s)
	b.labeledCount[kind]++
	return SubscriptionHandle{id: s.id}, nil
}

func (b *EventBus) newSubscription(kind EventKind, label any, labeled bool, handler EventHandler) *subscription {
	b.nextID++
	s := &subscription{
		id:      b.nextID,
		kind:    kind,
		label:   label,
		labeled: labeled,
		handler: handler,
		active:  true,
	}
	b.byID[s.id] = s
	return s
}

// Unsubscribe removes a subscription. It returns false if the handle is
// unknown or was already removed. A subscription removed during a dispatch
// does not receive the rest of that dispatch.
func (b *EventBus) Unsubscribe(h SubscriptionHandle) bool {
	s, ok := b.byID[h.id]
	if !ok {
		return false
	}
	delete(b.byID, h.id)
	s.active = false
	if s.labeled {
		key := labelKey{kind: s.kind, label: s.label}
		remaining := without(b.labeled[key], s)
		if len(remaining) == 0 {
			delete(b.labeled, key)
		} else {
			b.labeled[key] = remaining
		}
		b.labeledCount[s.kind]--
	} else {
		b.unlabeled[s.kind] = without(b.unlabeled[s.kind], s)
	}
	return true
}

// without returns a fresh slice so dispatches iterating the old one are unaffected.
func without(subs []*subscription, target *subscription) []*subscription {
	out := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// SubscriberCount returns the number of live subscriptions for kind,
// labeled and unlabeled.
func (b *EventBus) SubscriberCount(kind EventKind) int {
	if !kind.Valid() {
		return 0
	}
	return len(b.unlabeled[kind]) + b.labeledCount[kind]
}

// Publish dispatches ev to every matching subscriber. Publishing an event
// nobody listens to is a no-op.
func (b *EventBus) Publish(ev Event) error {
	if ev == nil {
		return fmt.Errorf("%w: event", ErrNullArgument)
	}
	kind := ev.Kind()
	if !kind.Valid() {
		return fmt.Errorf("%w: event kind %d", ErrUnknownID, kind)
	}
	if b.observe != nil {
		b.observe(ev, b.depth)
	}

	b.depth++
	defer func() { b.depth-- }()

	for _, s := range b.unlabeled[kind] {
		if !s.active {
			continue
		}
		if err := s.handler(b.ctx, ev); err != nil {
			return err
		}
	}

	if b.labeledCount[kind] == 0 {
		return nil
	}
	le, ok := ev.(LabeledEvent)
	if !ok {
		return nil
	}
	subs, err := b.labeledSubscribers(kind, le.Labels())
	if err != nil {
		return err
	}
	for _, s := range subs {
		if !s.active {
			continue
		}
		if err := s.handler(b.ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// labeledSubscribers collects the subscribers of every label, ordered by
// registration across labels.
func (b *EventBus) labeledSubscribers(kind EventKind, labels []any) ([]*subscription, error) {
	var lists [][]*subscription
	total := 0
	for _, label := range labels {
		if label == nil {
			continue
		}
		if !Comparable(label) {
			return nil, fmt.Errorf("%w: %s event carries label %T, which is not comparable", ErrTypeIncompatible, kind, label)
		}
		if subs := b.labeled[labelKey{kind: kind, label: label}]; len(subs) > 0 {
			lists = append(lists, subs)
			total += len(subs)
		}
	}
	switch len(lists) {
	case 0:
		return nil, nil
	case 1:
		return lists[0], nil
	}
	merged := make([]*subscription, 0, total)
	for _, subs := range lists {
		merged = append(merged, subs...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].id < merged[j].id })
	return merged, nil
}
