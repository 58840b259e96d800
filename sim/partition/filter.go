package partition

import (
	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// Sensitivity declares that events of Kind may change a filter verdict or a
// label. Person extracts the affected person from such an event, returning
// false when the event cannot change anything. When Label is set the
// partition subscribes to (Kind, Label) instead of the whole kind.
type Sensitivity struct {
	Kind   sim.EventKind
	Label  any
	Person func(ev sim.Event) (entity.PersonID, bool)
}

// Predicate decides whether a person passes a leaf filter.
type Predicate func(ctx *sim.Context, p entity.PersonID) (bool, error)

type filterOp uint8

const (
	opAll filterOp = iota
	opLeaf
	opAnd
	opOr
	opNot
)

// Filter is an immutable predicate tree. The zero value accepts everyone.
type Filter struct {
	op            filterOp
	predicate     Predicate
	sensitivities []Sensitivity
	operands      []Filter
}

// All accepts every person.
func All() Filter { return Filter{op: opAll} }

// Leaf wraps a predicate together with the events that can change its verdict.
func Leaf(pred Predicate, sensitivities ...Sensitivity) Filter {
	return Filter{
		op:            opLeaf,
		predicate:     pred,
		sensitivities: append([]Sensitivity(nil), sensitivities...),
	}
}

// And accepts people accepted by both a and b.
func And(a, b Filter) Filter { return Filter{op: opAnd, operands: []Filter{a, b}} }

// Or accepts people accepted by a or b.
func Or(a, b Filter) Filter { return Filter{op: opOr, operands: []Filter{a, b}} }

// Not accepts people f rejects.
func Not(f Filter) Filter { return Filter{op: opNot, operands: []Filter{f}} }

// Evaluate applies the filter to p.
func (f Filter) Evaluate(ctx *sim.Context, p entity.PersonID) (bool, error) {
	switch f.op {
	case opAll:
		return true, nil
	case opLeaf:
		return f.predicate(ctx, p)
	case opAnd:
		ok, err := f.operands[0].Evaluate(ctx, p)
		if err != nil || !ok {
			return false, err
		}
		return f.operands[1].Evaluate(ctx, p)
	case opOr:
		ok, err := f.operands[0].Evaluate(ctx, p)
		if err != nil || ok {
			return ok, err
		}
		return f.operands[1].Evaluate(ctx, p)
	case opNot:
		ok, err := f.operands[0].Evaluate(ctx, p)
		return !ok && err == nil, err
	}
	panic("partition: unknown filter op")
}

// Sensitivities returns the union of the leaf sensitivities.
func (f Filter) Sensitivities() []Sensitivity {
	var out []Sensitivity
	f.walk(func(leaf Filter) {
		out = append(out, leaf.sensitivities...)
	})
	return out
}

func (f Filter) walk(visit func(leaf Filter)) {
	if f.op == opLeaf {
		visit(f)
		return
	}
	for _, o := range f.operands {
		o.walk(visit)
	}
}

// validate rejects leaves without a predicate and sensitivities without an
// extractor.
func (f Filter) validate() error {
	var err error
	f.walk(func(leaf Filter) {
		if err != nil {
			return
		}
		if leaf.predicate == nil {
			err = errNull("filter predicate")
			return
		}
		err = validateSensitivities(leaf.sensitivities)
	})
	return err
}
