package partition

import (
	"fmt"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/entity"
)

// Labeler classifies people along one dimension of a partition. Labels must
// be comparable.
type Labeler struct {
	Dimension     any
	Label         func(ctx *sim.Context, p entity.PersonID) (any, error)
	Sensitivities []Sensitivity
}

// LabelSet selects cells by dimension. Dimensions left out match any label.
type LabelSet map[any]any

func errNull(what string) error {
	return fmt.Errorf("%w: %s", sim.ErrNullArgument, what)
}

func validateSensitivities(sens []Sensitivity) error {
	for _, s := range sens {
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: event kind %d", sim.ErrUnknownID, s.Kind)
		}
		if s.Person == nil {
			return errNull(fmt.Sprintf("person extractor for %s", s.Kind))
		}
		if s.Label != nil && !sim.Comparable(s.Label) {
			return fmt.Errorf("%w: sensitivity label %T is not comparable", sim.ErrTypeIncompatible, s.Label)
		}
	}
	return nil
}

func validateLabelers(labelers []Labeler) error {
	seen := make(map[any]bool, len(labelers))
	for _, l := range labelers {
		if l.Dimension == nil {
			return errNull("labeler dimension")
		}
		if !sim.Comparable(l.Dimension) {
			return fmt.Errorf("%w: labeler dimension %T is not comparable", sim.ErrTypeIncompatible, l.Dimension)
		}
		if seen[l.Dimension] {
			return fmt.Errorf("%w: labeler dimension %v", sim.ErrDuplicateDefinition, l.Dimension)
		}
		seen[l.Dimension] = true
		if l.Label == nil {
			return errNull(fmt.Sprintf("label function for dimension %v", l.Dimension))
		}
		if err := validateSensitivities(l.Sensitivities); err != nil {
			return err
		}
	}
	return nil
}

