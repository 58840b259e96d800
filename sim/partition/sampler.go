package partition

import (
	"fmt"
	"math"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// Sampler configures SamplePeople.
type Sampler struct {
	// Labels restricts the draw to matching cells.
	Labels LabelSet
	// Excluded, when set, is never returned.
	Excluded *entity.PersonID
	// Weight selects a cell with probability proportional to
	// Weight(cell labels) times the cell's eligible member count. Weights
	// must be finite and non-negative. Nil means uniform over people.
	Weight func(ctx *sim.Context, labels LabelSet) float64
	// Stream names the random stream. Defaults to one stream per partition.
	Stream string
}

// Excluding returns a copy of s that never draws p.
func (s Sampler) Excluding(p entity.PersonID) Sampler {
	s.Excluded = &p
	return s
}

// SamplePeople draws one person from the partition. It returns false when no
// eligible person exists, including when the excluded person is the only
// candidate.
func (dm *DataManager) SamplePeople(ctx *sim.Context, key any, s Sampler) (entity.PersonID, bool, error) {
	ix, err := dm.lookup(key)
	if err != nil {
		return 0, false, err
	}
	if s.Excluded != nil {
		if err := dm.people.CheckPerson(*s.Excluded); err != nil {
			return 0, false, err
		}
	}
	cells, err := ix.matching(s.Labels)
	if err != nil {
		return 0, false, err
	}

	var excludedCell *cell
	var excludedPos int
	if s.Excluded != nil {
		if c := ix.cellOf(*s.Excluded); c != nil {
			excludedCell, excludedPos = c, int(ix.personPos[*s.Excluded])
		}
	}
	eligible := func(c *cell) int {
		if c == excludedCell {
			return len(c.members) - 1
		}
		return len(c.members)
	}
	pick := func(c *cell, i int) entity.PersonID {
		if c == excludedCell && i >= excludedPos {
			i++
		}
		return c.members[i]
	}

	stream := s.Stream
	if stream == "" {
		stream = sim.SubsystemPartitionFor(key)
	}

	if s.Weight == nil {
		total := 0
		for _, c := range cells {
			total += eligible(c)
		}
		if total == 0 {
			return 0, false, nil
		}
		r := ctx.RNG(stream).Intn(total)
		for _, c := range cells {
			n := eligible(c)
			if r < n {
				return pick(c, r), true, nil
			}
			r -= n
		}
		panic("partition: uniform draw fell outside the candidate range")
	}

	weights := make([]float64, len(cells))
	total := 0.0
	for i, c := range cells {
		n := eligible(c)
		if n == 0 {
			continue
		}
		w := s.Weight(ctx, ix.labelSet(c))
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, false, fmt.Errorf("%w: %v for cell %v of partition %v", sim.ErrMalformedSamplingWeight, w, ix.labelSet(c), key)
		}
		weights[i] = w * float64(n)
		total += weights[i]
	}
	if math.IsInf(total, 0) {
		return 0, false, fmt.Errorf("%w: weights of partition %v overflow", sim.ErrMalformedSamplingWeight, key)
	}
	if total == 0 {
		return 0, false, nil
	}
	rng := ctx.RNG(stream)
	target := rng.Float64() * total
	chosen := -1
	for i, w := range weights {
		if w == 0 {
			continue
		}
		chosen = i
		if target < w {
			break
		}
		target -= w
	}
	c := cells[chosen]
	return pick(c, rng.Intn(eligible(c))), true, nil
}
