// Package propstore provides compact per-entity columns addressed by dense
// integer ids. Each column stores one value per id and answers with the
// column default for ids that were never set.
//
// Columns are not safe for concurrent use. A negative id is a programming
// error and panics.
package propstore

import "fmt"

// Column is the type-erased view over every column kind. Set panics if v is
// not of the column's type; callers validate values first.
type Column interface {
	// Get returns the value stored for id, or the default.
	Get(id int) any
	// Set stores v for id, growing the column if needed.
	Set(id int, v any)
	// Reset restores the default for id and drops any reference it held.
	Reset(id int)
	// Expand grows backing storage so ids below n are addressable without
	// reallocation. It never shrinks and never changes stored values.
	Expand(n int)
	// Cap returns the number of ids addressable without reallocation.
	Cap() int
	// Type returns the column's value type.
	Type() ValueType
}

func checkIndex(id int) {
	if id < 0 {
		panic(fmt.Sprintf("propstore: negative index %d", id))
	}
}

// grownCap returns the capacity to grow to so that id fits, doubling to
// amortize repeated single-slot growth.
func grownCap(current, id int) int {
	n := current * 2
	if n < 16 {
		n = 16
	}
	if n <= id {
		n = id + 1
	}
	return n
}
