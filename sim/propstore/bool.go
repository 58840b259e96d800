package propstore

// BoolColumn packs one bit per id.
type BoolColumn struct {
	words []uint64
	def   bool
}

// NewBoolColumn creates an empty column answering def for unset ids.
func NewBoolColumn(def bool) *BoolColumn {
	return &BoolColumn{def: def}
}

// GetBool returns the bit for id.
func (c *BoolColumn) GetBool(id int) bool {
	checkIndex(id)
	w := id >> 6
	if w >= len(c.words) {
		return c.def
	}
	return c.words[w]&(1<<(uint(id)&63)) != 0
}

// SetBool stores the bit for id.
func (c *BoolColumn) SetBool(id int, v bool) {
	checkIndex(id)
	if id >= c.Cap() {
		c.Expand(grownCap(c.Cap(), id))
	}
	w, bit := id>>6, uint64(1)<<(uint(id)&63)
	if v {
		c.words[w] |= bit
	} else {
		c.words[w] &^= bit
	}
}

// Get implements Column.
func (c *BoolColumn) Get(id int) any { return c.GetBool(id) }

// Set implements Column.
func (c *BoolColumn) Set(id int, v any) { c.SetBool(id, v.(bool)) }

// Reset implements Column.
func (c *BoolColumn) Reset(id int) { c.SetBool(id, c.def) }

// Expand implements Column. Capacity grows in whole 64-bit words; new words
// are filled with the default.
func (c *BoolColumn) Expand(n int) {
	need := (n + 63) >> 6
	if need <= len(c.words) {
		return
	}
	var fill uint64
	if c.def {
		fill = ^uint64(0)
	}
	grown := make([]uint64, need)
	copy(grown, c.words)
	for i := len(c.words); i < need; i++ {
		grown[i] = fill
	}
	c.words = grown
}

// Cap implements Column.
func (c *BoolColumn) Cap() int { return len(c.words) << 6 }

// Type implements Column.
func (c *BoolColumn) Type() ValueType { return TypeBool }

// Count returns the number of ids below limit whose bit is set.
func (c *BoolColumn) Count(limit int) int {
	n := 0
	for id := 0; id < limit; id++ {
		if c.GetBool(id) {
			n++
		}
	}
	return n
}
