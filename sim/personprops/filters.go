package personprops

import (
	"cmp"
	"fmt"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
	"github.com/popsim/popsim/sim/partition"
)

// Comparison is the relation a PropertyFilter tests.
type Comparison uint8

const (
	Equal Comparison = iota
	NotEqual
	Less
	LessOrEqual
	Greater
	GreaterOrEqual
)

func (c Comparison) String() string {
	switch c {
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case Less:
		return "<"
	case LessOrEqual:
		return "<="
	case Greater:
		return ">"
	case GreaterOrEqual:
		return ">="
	}
	return fmt.Sprintf("Comparison(%d)", uint8(c))
}

// holds reports whether "v c target" is true. Ordered comparisons need both
// values to have the same numeric type.
func (c Comparison) holds(v, target any) (bool, error) {
	if c == Equal {
		return sameValue(v, target), nil
	}
	if c == NotEqual {
		return !sameValue(v, target), nil
	}
	order, ok := compareNumbers(v, target)
	if !ok {
		return false, fmt.Errorf("%w: cannot order %T against %T", sim.ErrTypeIncompatible, v, target)
	}
	switch c {
	case Less:
		return order < 0, nil
	case LessOrEqual:
		return order <= 0, nil
	case Greater:
		return order > 0, nil
	case GreaterOrEqual:
		return order >= 0, nil
	}
	return false, fmt.Errorf("unknown comparison %s", c)
}

func compareNumbers(a, b any) (int, bool) {
	switch x := a.(type) {
	case int8:
		y, ok := b.(int8)
		return cmp.Compare(x, y), ok
	case int16:
		y, ok := b.(int16)
		return cmp.Compare(x, y), ok
	case int32:
		y, ok := b.(int32)
		return cmp.Compare(x, y), ok
	case int64:
		y, ok := b.(int64)
		return cmp.Compare(x, y), ok
	case float32:
		y, ok := b.(float32)
		return cmp.Compare(x, y), ok
	case float64:
		y, ok := b.(float64)
		return cmp.Compare(x, y), ok
	}
	return 0, false
}

// cachedLookup resolves the data manager once per simulation context.
func cachedLookup() func(ctx *sim.Context) (*DataManager, error) {
	var (
		owner *sim.Context
		dm    *DataManager
	)
	return func(ctx *sim.Context) (*DataManager, error) {
		if ctx == owner {
			return dm, nil
		}
		found, err := Get(ctx)
		if err != nil {
			return nil, err
		}
		owner, dm = ctx, found
		return dm, nil
	}
}

// PropertyFilter accepts people whose value of id satisfies c against target.
// It only re-evaluates a person when an update flips the verdict.
func PropertyFilter(id PropertyID, c Comparison, target any) partition.Filter {
	lookup := cachedLookup()
	pred := func(ctx *sim.Context, p entity.PersonID) (bool, error) {
		dm, err := lookup(ctx)
		if err != nil {
			return false, err
		}
		v, err := dm.GetPersonProperty(p, id)
		if err != nil {
			return false, err
		}
		return c.holds(v, target)
	}
	return partition.Leaf(pred, partition.Sensitivity{
		Kind:  sim.EventPersonPropertyUpdate,
		Label: PropertyLabel{Property: id},
		Person: func(ev sim.Event) (entity.PersonID, bool) {
			e := ev.(UpdateEvent)
			if e.Previous == nil {
				return e.Person, true
			}
			before, errBefore := c.holds(e.Previous, target)
			after, errAfter := c.holds(e.Current, target)
			if errBefore != nil || errAfter != nil {
				return e.Person, true
			}
			return e.Person, before != after
		},
	})
}

// PropertyLabeler labels people by label(value of id). A nil label uses the
// value itself. Labels must be comparable.
func PropertyLabeler(id PropertyID, label func(v any) any) partition.Labeler {
	if label == nil {
		label = func(v any) any { return v }
	}
	lookup := cachedLookup()
	return partition.Labeler{
		Dimension: id,
		Label: func(ctx *sim.Context, p entity.PersonID) (any, error) {
			dm, err := lookup(ctx)
			if err != nil {
				return nil, err
			}
			v, err := dm.GetPersonProperty(p, id)
			if err != nil {
				return nil, err
			}
			return label(v), nil
		},
		Sensitivities: []partition.Sensitivity{{
			Kind:  sim.EventPersonPropertyUpdate,
			Label: PropertyLabel{Property: id},
			Person: func(ev sim.Event) (entity.PersonID, bool) {
				e := ev.(UpdateEvent)
				if e.Previous == nil {
					return e.Person, true
				}
				return e.Person, !sameValue(label(e.Previous), label(e.Current))
			},
		}},
	}
}
