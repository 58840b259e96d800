package people

import (
	"fmt"
	"sort"

	"github.com/popsim/popsim/sim/entity"
)

// Range is an inclusive run of person ids.
type Range struct {
	First entity.PersonID `yaml:"first"`
	Last  entity.PersonID `yaml:"last"`
}

// Len returns the number of ids in the range.
func (r Range) Len() int { return int(r.Last-r.First) + 1 }

// PluginData is the initial population. It is immutable; use a Builder to
// create or modify one.
type PluginData struct {
	ranges  []Range
	idLimit int
}

// Ranges returns the person ranges in ascending order.
func (d PluginData) Ranges() []Range {
	return append([]Range(nil), d.ranges...)
}

// IDLimit returns one past the highest person id ever issued, or 0 when the
// data starts a fresh population.
func (d PluginData) IDLimit() int { return d.idLimit }

// PersonCount returns the number of people in the data.
func (d PluginData) PersonCount() int {
	n := 0
	for _, r := range d.ranges {
		n += r.Len()
	}
	return n
}

// ToBuilder returns a builder seeded with a copy of d.
func (d PluginData) ToBuilder() *Builder {
	return &Builder{ranges: d.Ranges(), idLimit: d.idLimit}
}

// Builder accumulates a PluginData.
type Builder struct {
	ranges  []Range
	idLimit int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddPerson adds a single person id.
func (b *Builder) AddPerson(id entity.PersonID) *Builder {
	return b.AddRange(id, id)
}

// AddPeople adds ids 0..n-1.
func (b *Builder) AddPeople(n int) *Builder {
	if n <= 0 {
		return b
	}
	return b.AddRange(0, entity.PersonID(n-1))
}

// AddRange adds ids first..last inclusive.
func (b *Builder) AddRange(first, last entity.PersonID) *Builder {
	b.ranges = append(b.ranges, Range{First: first, Last: last})
	return b
}

// SetIDLimit records the id limit of the run the data was taken from. Ids
// below it that are not in a range stay retired.
func (b *Builder) SetIDLimit(n int) *Builder {
	b.idLimit = n
	return b
}

// Build validates the accumulated ranges, merges adjacent ones and returns
// the result. The builder is reset.
func (b *Builder) Build() (PluginData, error) {
	ranges := append([]Range(nil), b.ranges...)
	limit := b.idLimit
	b.ranges, b.idLimit = nil, 0

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].First < ranges[j].First })
	merged := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.First < 0 || r.Last < r.First {
			return PluginData{}, fmt.Errorf("invalid person range [%d, %d]", r.First, r.Last)
		}
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if r.First <= last.Last {
				return PluginData{}, fmt.Errorf("person range [%d, %d] overlaps [%d, %d]", r.First, r.Last, last.First, last.Last)
			}
			if r.First == last.Last+1 {
				last.Last = r.Last
				continue
			}
		}
		merged = append(merged, r)
	}
	if limit < 0 {
		return PluginData{}, fmt.Errorf("negative person id limit %d", limit)
	}
	if n := len(merged); n > 0 && limit != 0 && limit <= int(merged[n-1].Last) {
		return PluginData{}, fmt.Errorf("person id limit %d does not cover %s", limit, merged[n-1].Last)
	}
	return PluginData{ranges: merged, idLimit: limit}, nil
}

// rangesOf compresses sorted ids into ranges.
func rangesOf(ids []entity.PersonID) []Range {
	var ranges []Range
	for _, id := range ids {
		if n := len(ranges); n > 0 && ranges[n-1].Last+1 == id {
			ranges[n-1].Last = id
			continue
		}
		ranges = append(ranges, Range{First: id, Last: id})
	}
	return ranges
}
