package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparable(t *testing.T) {
	type pair struct {
		a, b any
	}
	type holder struct{ v any }
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"string", "household", true},
		{"struct of scalars", pair{1, "x"}, true},
		{"nil interface field", holder{}, true},
		{"slice", []int{1}, false},
		{"map", map[string]int{}, false},
		{"func", noopHandler, false},
		{"slice behind interface field", holder{[]int{}}, false},
		{"nested", pair{1, holder{map[int]int{}}}, false},
		{"array of interfaces", [2]any{1, []string{}}, false},
		{"array of scalars", [2]any{1, "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Comparable(tt.v))
		})
	}
}
