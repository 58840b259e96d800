package propstore

import (
	"fmt"
	"math"
)

// EnumColumn stores the ordinal of a value drawn from a fixed list. Up to 256
// values take one byte per id; larger enums take two.
type EnumColumn struct {
	values   []any
	ordinals map[any]int
	narrow   []uint8
	wide     []uint16
	def      int
}

// NewEnumColumn creates a column over values, answering values[def] for unset
// ids. values must be comparable, distinct and at most 65536 long.
func NewEnumColumn(values []any, def int) (*EnumColumn, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("enum column needs at least one value")
	}
	if len(values) > math.MaxUint16+1 {
		return nil, fmt.Errorf("enum column supports at most %d values, got %d", math.MaxUint16+1, len(values))
	}
	if def < 0 || def >= len(values) {
		return nil, fmt.Errorf("enum default ordinal %d out of range [0, %d)", def, len(values))
	}
	ordinals := make(map[any]int, len(values))
	for i, v := range values {
		if _, dup := ordinals[v]; dup {
			return nil, fmt.Errorf("enum value %v listed twice", v)
		}
		ordinals[v] = i
	}
	return &EnumColumn{
		values:   append([]any(nil), values...),
		ordinals: ordinals,
		def:      def,
	}, nil
}

// Cardinality returns the number of values in the enum.
func (c *EnumColumn) Cardinality() int { return len(c.values) }

// Ordinal returns the ordinal of v, or false if v is not in the enum.
func (c *EnumColumn) Ordinal(v any) (int, bool) {
	ord, ok := c.ordinals[v]
	return ord, ok
}

// GetOrdinal returns the stored ordinal for id.
func (c *EnumColumn) GetOrdinal(id int) int {
	checkIndex(id)
	if c.isNarrow() {
		if id >= len(c.narrow) {
			return c.def
		}
		return int(c.narrow[id])
	}
	if id >= len(c.wide) {
		return c.def
	}
	return int(c.wide[id])
}

// SetOrdinal stores ord for id.
func (c *EnumColumn) SetOrdinal(id int, ord int) {
	checkIndex(id)
	if ord < 0 || ord >= len(c.values) {
		panic(fmt.Sprintf("propstore: enum ordinal %d out of range [0, %d)", ord, len(c.values)))
	}
	if id >= c.Cap() {
		c.Expand(grownCap(c.Cap(), id))
	}
	if c.isNarrow() {
		c.narrow[id] = uint8(ord)
	} else {
		c.wide[id] = uint16(ord)
	}
}

func (c *EnumColumn) isNarrow() bool {
	return len(c.values) <= math.MaxUint8+1
}

// Get implements Column.
func (c *EnumColumn) Get(id int) any { return c.values[c.GetOrdinal(id)] }

// Set implements Column.
func (c *EnumColumn) Set(id int, v any) {
	ord, ok := c.ordinals[v]
	if !ok {
		panic(fmt.Sprintf("propstore: %v is not an enum value", v))
	}
	c.SetOrdinal(id, ord)
}

// Reset implements Column.
func (c *EnumColumn) Reset(id int) { c.SetOrdinal(id, c.def) }

// Expand implements Column.
func (c *EnumColumn) Expand(n int) {
	if n <= c.Cap() {
		return
	}
	if c.isNarrow() {
		grown := make([]uint8, n)
		copy(grown, c.narrow)
		for i := len(c.narrow); i < n; i++ {
			grown[i] = uint8(c.def)
		}
		c.narrow = grown
		return
	}
	grown := make([]uint16, n)
	copy(grown, c.wide)
	for i := len(c.wide); i < n; i++ {
		grown[i] = uint16(c.def)
	}
	c.wide = grown
}

// Cap implements Column.
func (c *EnumColumn) Cap() int {
	if c.isNarrow() {
		return len(c.narrow)
	}
	return len(c.wide)
}

// Type implements Column.
func (c *EnumColumn) Type() ValueType { return TypeEnum }
