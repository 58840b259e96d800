package personprops

import (
	"fmt"
	"reflect"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/propstore"
)

// PropertyID names a person property.
type PropertyID string

// Definition describes a person property. A nil Default means every person
// must be given a value explicitly before the property can be read.
type Definition struct {
	Type       propstore.ValueType
	Default    any
	Immutable  bool
	TrackTimes bool
	// EnumValues lists the allowed values of a TypeEnum property.
	EnumValues []any
}

// HasDefault reports whether the definition supplies a default value.
func (d Definition) HasDefault() bool { return d.Default != nil }

// Validate checks the definition is self-consistent.
func (d Definition) Validate() error {
	if _, ok := valueTypes[d.Type]; !ok {
		return fmt.Errorf("%w: value type %d", sim.ErrTypeIncompatible, d.Type)
	}
	if d.Type == propstore.TypeEnum && len(d.EnumValues) == 0 {
		return fmt.Errorf("%w: enum property without values", sim.ErrNullArgument)
	}
	for _, v := range d.EnumValues {
		if v == nil || !reflect.TypeOf(v).Comparable() {
			return fmt.Errorf("%w: enum value %v (%T) is not comparable", sim.ErrTypeIncompatible, v, v)
		}
	}
	if d.Default != nil {
		if err := d.check(d.Default); err != nil {
			return fmt.Errorf("default: %w", err)
		}
	}
	return nil
}

// check validates v against the definition's type.
func (d Definition) check(v any) error {
	if !d.Type.Accepts(v) {
		return fmt.Errorf("%w: %v (%T) is not a %s", sim.ErrTypeIncompatible, v, v, d.Type)
	}
	if d.Type == propstore.TypeEnum {
		if !reflect.TypeOf(v).Comparable() {
			return fmt.Errorf("%w: enum value %v (%T) is not comparable", sim.ErrTypeIncompatible, v, v)
		}
		for _, allowed := range d.EnumValues {
			if allowed == v {
				return nil
			}
		}
		return fmt.Errorf("%w: %v is not one of %v", sim.ErrTypeIncompatible, v, d.EnumValues)
	}
	return nil
}

func (d Definition) clone() Definition {
	d.EnumValues = append([]any(nil), d.EnumValues...)
	return d
}

var valueTypes = map[propstore.ValueType]bool{
	propstore.TypeBool:    true,
	propstore.TypeInt8:    true,
	propstore.TypeInt16:   true,
	propstore.TypeInt32:   true,
	propstore.TypeInt64:   true,
	propstore.TypeFloat32: true,
	propstore.TypeFloat64: true,
	propstore.TypeEnum:    true,
	propstore.TypeObject:  true,
}
