package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
)

// SimulationKey is the seed a run's random streams derive from.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemModel is the stream handed to model actors by default. It is
	// seeded with the run seed itself.
	SubsystemModel = "model"

	// SubsystemPartition is the default stream for partition sampling.
	SubsystemPartition = "partition"
)

// SubsystemPartitionFor returns a stream name dedicated to one partition key.
// The key's type is part of the name, so 1 and "1" get different streams.
func SubsystemPartitionFor(key any) string {
	return fmt.Sprintf("partition:%T:%v", key, key)
}

// countingSource wraps a math/rand source and counts the values drawn from
// it. Every draw advances the underlying generator by exactly one step, so a
// fresh source with the same seed reaches the same state after as many
// draws.
type countingSource struct {
	src   rand.Source64
	draws uint64
}

func newCountingSource(seed int64) *countingSource {
	return &countingSource{src: rand.NewSource(seed).(rand.Source64)}
}

func (s *countingSource) Int63() int64 {
	s.draws++
	return s.src.Int63()
}

func (s *countingSource) Uint64() uint64 {
	s.draws++
	return s.src.Uint64()
}

func (s *countingSource) Seed(seed int64) {
	s.src.Seed(seed)
	s.draws = 0
}

// skip advances the source until it has produced n values.
func (s *countingSource) skip(n uint64) {
	for s.draws < n {
		s.Uint64()
	}
}

type stream struct {
	rng *rand.Rand
	src *countingSource
}

// StreamPosition records how far one named stream had advanced.
type StreamPosition struct {
	Name  string `yaml:"name"`
	Draws uint64 `yaml:"draws"`
}

// PartitionedRNG hands out one random stream per subsystem. The model stream
// is seeded with the run seed; every other stream with the seed XOR the FNV-1a
// hash of its name, so drawing from one stream never shifts another.
//
// Streams count their draws. Positions returns them and Restore fast-forwards
// a new PartitionedRNG to them, which lets a continuation run pick every
// stream up where the checkpointed run left it.
//
// Not safe for concurrent use.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*stream
	resume  map[string]uint64
}

// NewPartitionedRNG creates the streams of one run.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*stream),
		resume:  make(map[string]uint64),
	}
}

// ForSubsystem returns the stream for name, creating it on first use. A
// stream created after Restore starts at its restored position.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if s, ok := p.streams[name]; ok {
		return s.rng
	}
	src := newCountingSource(p.seedFor(name))
	if n, ok := p.resume[name]; ok {
		src.skip(n)
		delete(p.resume, name)
	}
	s := &stream{rng: rand.New(src), src: src}
	p.streams[name] = s
	return s.rng
}

// Restore sets the positions streams continue from. Streams already in use
// are fast-forwarded; the rest start there when first requested. A stream
// that has already drawn past its restored position is an error.
func (p *PartitionedRNG) Restore(positions []StreamPosition) error {
	for _, pos := range positions {
		if pos.Name == "" {
			return fmt.Errorf("%w: stream name", ErrNullArgument)
		}
		if s, ok := p.streams[pos.Name]; ok {
			if s.src.draws > pos.Draws {
				return fmt.Errorf("stream %q has drawn %d values, past restored position %d", pos.Name, s.src.draws, pos.Draws)
			}
			s.src.skip(pos.Draws)
			continue
		}
		p.resume[pos.Name] = pos.Draws
	}
	return nil
}

// Positions returns how far every stream has advanced, sorted by name.
// Restored positions of streams never requested are carried over.
func (p *PartitionedRNG) Positions() []StreamPosition {
	out := make([]StreamPosition, 0, len(p.streams)+len(p.resume))
	for name, s := range p.streams {
		out = append(out, StreamPosition{Name: name, Draws: s.src.draws})
	}
	for name, n := range p.resume {
		out = append(out, StreamPosition{Name: name, Draws: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func (p *PartitionedRNG) seedFor(name string) int64 {
	if name == SubsystemModel {
		return int64(p.key)
	}
	return int64(p.key) ^ fnv1a64(name)
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
