package propstore

// ObjectColumn stores arbitrary values. Reset writes the default back so the
// column stops referencing whatever the slot held.
type ObjectColumn[T any] struct {
	values []T
	def    T
}

// NewObjectColumn creates an empty column answering def for unset ids.
func NewObjectColumn[T any](def T) *ObjectColumn[T] {
	return &ObjectColumn[T]{def: def}
}

// GetValue returns the value for id.
func (c *ObjectColumn[T]) GetValue(id int) T {
	checkIndex(id)
	if id >= len(c.values) {
		return c.def
	}
	return c.values[id]
}

// SetValue stores v for id.
func (c *ObjectColumn[T]) SetValue(id int, v T) {
	checkIndex(id)
	if id >= len(c.values) {
		c.Expand(grownCap(len(c.values), id))
	}
	c.values[id] = v
}

// Get implements Column.
func (c *ObjectColumn[T]) Get(id int) any { return c.GetValue(id) }

// Set implements Column.
func (c *ObjectColumn[T]) Set(id int, v any) { c.SetValue(id, v.(T)) }

// Reset implements Column.
func (c *ObjectColumn[T]) Reset(id int) {
	checkIndex(id)
	if id < len(c.values) {
		c.values[id] = c.def
	}
}

// Expand implements Column.
func (c *ObjectColumn[T]) Expand(n int) {
	if n <= len(c.values) {
		return
	}
	grown := make([]T, n)
	copy(grown, c.values)
	for i := len(c.values); i < n; i++ {
		grown[i] = c.def
	}
	c.values = grown
}

// Cap implements Column.
func (c *ObjectColumn[T]) Cap() int { return len(c.values) }

// Type implements Column.
func (c *ObjectColumn[T]) Type() ValueType { return TypeObject }
