package propstore

// Number is the set of fixed-width element types a NumericColumn can hold.
type Number interface {
	int8 | int16 | int32 | int64 | float32 | float64
}

// NumericColumn stores one fixed-width number per id, so an int8 property
// costs one byte per person.
type NumericColumn[T Number] struct {
	values []T
	def    T
	typ    ValueType
}

// NewNumericColumn creates an empty column answering def for unset ids.
func NewNumericColumn[T Number](def T) *NumericColumn[T] {
	return &NumericColumn[T]{def: def, typ: numericType(def)}
}

func numericType(v any) ValueType {
	switch v.(type) {
	case int8:
		return TypeInt8
	case int16:
		return TypeInt16
	case int32:
		return TypeInt32
	case int64:
		return TypeInt64
	case float32:
		return TypeFloat32
	case float64:
		return TypeFloat64
	}
	return TypeObject
}

// GetValue returns the value for id.
func (c *NumericColumn[T]) GetValue(id int) T {
	checkIndex(id)
	if id >= len(c.values) {
		return c.def
	}
	return c.values[id]
}

// SetValue stores v for id.
func (c *NumericColumn[T]) SetValue(id int, v T) {
	checkIndex(id)
	if id >= len(c.values) {
		c.Expand(grownCap(len(c.values), id))
	}
	c.values[id] = v
}

// Get implements Column.
func (c *NumericColumn[T]) Get(id int) any { return c.GetValue(id) }

// Set implements Column.
func (c *NumericColumn[T]) Set(id int, v any) { c.SetValue(id, v.(T)) }

// Reset implements Column.
func (c *NumericColumn[T]) Reset(id int) { c.SetValue(id, c.def) }

// Expand implements Column.
func (c *NumericColumn[T]) Expand(n int) {
	if n <= len(c.values) {
		return
	}
	grown := make([]T, n)
	copy(grown, c.values)
	if c.def != 0 {
		for i := len(c.values); i < n; i++ {
			grown[i] = c.def
		}
	}
	c.values = grown
}

// Cap implements Column.
func (c *NumericColumn[T]) Cap() int { return len(c.values) }

// Type implements Column.
func (c *NumericColumn[T]) Type() ValueType { return c.typ }
