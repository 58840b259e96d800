package propstore

import "fmt"

// ValueType tags the value domain of a column.
type ValueType uint8

const (
	TypeBool ValueType = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeEnum
	TypeObject
)

var valueTypeNames = map[ValueType]string{
	TypeBool:    "bool",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeEnum:    "enum",
	TypeObject:  "object",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// ParseValueType maps a name from a scenario file to a ValueType.
func ParseValueType(name string) (ValueType, error) {
	for t, n := range valueTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", name)
}

// Accepts reports whether v belongs to the type's domain. Enum membership is
// checked by the column, so any comparable value is accepted here.
func (t ValueType) Accepts(v any) bool {
	if v == nil {
		return false
	}
	switch t {
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeInt8:
		_, ok := v.(int8)
		return ok
	case TypeInt16:
		_, ok := v.(int16)
		return ok
	case TypeInt32:
		_, ok := v.(int32)
		return ok
	case TypeInt64:
		_, ok := v.(int64)
		return ok
	case TypeFloat32:
		_, ok := v.(float32)
		return ok
	case TypeFloat64:
		_, ok := v.(float64)
		return ok
	case TypeEnum, TypeObject:
		return true
	}
	return false
}

// NewColumn builds the narrowest column for t. def may be nil, in which case
// unset ids read as the zero value of t (the first enum value for enums).
// enumValues is required for TypeEnum and ignored otherwise.
func NewColumn(t ValueType, def any, enumValues []any) (Column, error) {
	if def != nil && !t.Accepts(def) {
		return nil, fmt.Errorf("default %v (%T) is not a %s", def, def, t)
	}
	switch t {
	case TypeBool:
		d, _ := def.(bool)
		return NewBoolColumn(d), nil
	case TypeInt8:
		d, _ := def.(int8)
		return NewNumericColumn(d), nil
	case TypeInt16:
		d, _ := def.(int16)
		return NewNumericColumn(d), nil
	case TypeInt32:
		d, _ := def.(int32)
		return NewNumericColumn(d), nil
	case TypeInt64:
		d, _ := def.(int64)
		return NewNumericColumn(d), nil
	case TypeFloat32:
		d, _ := def.(float32)
		return NewNumericColumn(d), nil
	case TypeFloat64:
		d, _ := def.(float64)
		return NewNumericColumn(d), nil
	case TypeEnum:
		ord := 0
		if def != nil {
			found := false
			for i, v := range enumValues {
				if v == def {
					ord, found = i, true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("enum default %v is not one of %v", def, enumValues)
			}
		}
		return NewEnumColumn(enumValues, ord)
	case TypeObject:
		return NewObjectColumn[any](def), nil
	}
	return nil, fmt.Errorf("unsupported value type %s", t)
}
