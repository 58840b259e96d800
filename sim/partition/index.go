package partition

import (
	"encoding/binary"
	"fmt"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// dimension interns the labels seen on one labeler so cell keys can be built
// from small ordinals.
type dimension struct {
	labeler  Labeler
	ordinals map[any]uint64
	labels   []any
}

func (d *dimension) intern(label any) uint64 {
	if ord, ok := d.ordinals[label]; ok {
		return ord
	}
	ord := uint64(len(d.labels))
	d.ordinals[label] = ord
	d.labels = append(d.labels, label)
	return ord
}

type cell struct {
	index   int
	labels  []any
	members []entity.PersonID
}

// index is the incrementally maintained state of one partition. Every person
// is in at most one cell; personCell and personPos locate it in O(1).
type index struct {
	key        any
	filter     Filter
	dims       []*dimension
	dimIndex   map[any]int
	cells      []*cell
	cellByKey  map[string]*cell
	personCell []int32 // cell index + 1; 0 means not a member
	personPos  []int32
	keyBuf     []byte
	labelBuf   []any
	size       int
	subs       []sim.SubscriptionHandle
	onMove     func()
}

func newIndex(key any, def Partition, onMove func()) *index {
	ix := &index{
		key:       key,
		filter:    def.Filter,
		dimIndex:  make(map[any]int, len(def.Labelers)),
		cellByKey: make(map[string]*cell),
		onMove:    onMove,
	}
	for i, l := range def.Labelers {
		ix.dims = append(ix.dims, &dimension{labeler: l, ordinals: make(map[any]uint64)})
		ix.dimIndex[l.Dimension] = i
	}
	ix.labelBuf = make([]any, len(ix.dims))
	return ix
}

func (ix *index) degenerate() bool { return len(ix.dims) == 0 }

// refresh re-evaluates p and moves it to the cell it now belongs in, or out
// of the partition.
func (ix *index) refresh(ctx *sim.Context, p entity.PersonID) error {
	ok, err := ix.filter.Evaluate(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		ix.detach(p)
		return nil
	}
	if ix.degenerate() {
		ix.place(p, "", nil)
		return nil
	}
	ix.keyBuf = ix.keyBuf[:0]
	for i, d := range ix.dims {
		label, err := d.labeler.Label(ctx, p)
		if err != nil {
			return err
		}
		if !sim.Comparable(label) {
			return fmt.Errorf("%w: label %T for dimension %v is not comparable", sim.ErrTypeIncompatible, label, d.labeler.Dimension)
		}
		ix.labelBuf[i] = label
		ix.keyBuf = binary.AppendUvarint(ix.keyBuf, d.intern(label))
	}
	ix.place(p, string(ix.keyBuf), ix.labelBuf)
	return nil
}

func (ix *index) cellOf(p entity.PersonID) *cell {
	if int(p) >= len(ix.personCell) {
		return nil
	}
	if ci := ix.personCell[p]; ci > 0 {
		return ix.cells[ci-1]
	}
	return nil
}

func (ix *index) place(p entity.PersonID, key string, labels []any) {
	target, ok := ix.cellByKey[key]
	if !ok {
		target = &cell{index: len(ix.cells), labels: append([]any(nil), labels...)}
		ix.cells = append(ix.cells, target)
		ix.cellByKey[key] = target
	}
	current := ix.cellOf(p)
	if current == target {
		return
	}
	if current != nil {
		ix.detach(p)
	}
	ix.grow(int(p) + 1)
	ix.personCell[p] = int32(target.index + 1)
	ix.personPos[p] = int32(len(target.members))
	target.members = append(target.members, p)
	ix.size++
	ix.onMove()
}

// detach swap-removes p from its cell.
func (ix *index) detach(p entity.PersonID) {
	c := ix.cellOf(p)
	if c == nil {
		return
	}
	pos := ix.personPos[p]
	last := len(c.members) - 1
	moved := c.members[last]
	c.members[pos] = moved
	ix.personPos[moved] = pos
	c.members = c.members[:last]
	ix.personCell[p] = 0
	ix.size--
	ix.onMove()
}

func (ix *index) grow(n int) {
	if n <= len(ix.personCell) {
		return
	}
	size := 2 * len(ix.personCell)
	if size < n {
		size = n
	}
	cells := make([]int32, size)
	copy(cells, ix.personCell)
	ix.personCell = cells
	pos := make([]int32, size)
	copy(pos, ix.personPos)
	ix.personPos = pos
}

// matching returns the cells selected by labels, in creation order.
func (ix *index) matching(labels LabelSet) ([]*cell, error) {
	if len(labels) == 0 {
		return ix.cells, nil
	}
	if ix.degenerate() {
		return nil, fmt.Errorf("%w: partition %v", sim.ErrDegenerateMismatch, ix.key)
	}
	type constraint struct {
		dim   int
		label any
	}
	constraints := make([]constraint, 0, len(labels))
	for dim, label := range labels {
		i, ok := ix.dimIndex[dim]
		if !ok {
			return nil, fmt.Errorf("%w: dimension %v in partition %v", sim.ErrUnknownID, dim, ix.key)
		}
		if !sim.Comparable(label) {
			return nil, fmt.Errorf("%w: label %T is not comparable", sim.ErrTypeIncompatible, label)
		}
		constraints = append(constraints, constraint{dim: i, label: label})
	}
	var out []*cell
	for _, c := range ix.cells {
		match := true
		for _, con := range constraints {
			if c.labels[con.dim] != con.label {
				match = false
				break
			}
		}
		if match {
			out = append(out, c)
		}
	}
	return out, nil
}

// labelSet describes a cell's labels by dimension.
func (ix *index) labelSet(c *cell) LabelSet {
	ls := make(LabelSet, len(ix.dims))
	for i, d := range ix.dims {
		ls[d.labeler.Dimension] = c.labels[i]
	}
	return ls
}
