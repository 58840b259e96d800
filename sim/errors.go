package sim

import "errors"

// Error kinds raised by the kernel and the data managers. Every mutator checks
// its arguments and returns one of these (wrapped with context) before it
// changes any state. Callers match them with errors.Is.
var (
	// ErrNullArgument is returned when a required argument is nil or empty.
	ErrNullArgument = errors.New("null argument")
	// ErrUnknownID is returned for unknown people, groups, properties,
	// partitions, data managers or labeler dimensions.
	ErrUnknownID = errors.New("unknown id")
	// ErrDuplicateDefinition is returned when something is defined twice.
	ErrDuplicateDefinition = errors.New("duplicate definition")
	// ErrTypeIncompatible is returned when a value does not match its definition.
	ErrTypeIncompatible = errors.New("incompatible type")
	// ErrImmutableViolation is returned when an immutable value would change.
	ErrImmutableViolation = errors.New("immutable value")
	// ErrMissingDefault is returned when a property has no default and no
	// explicit value was supplied.
	ErrMissingDefault = errors.New("missing default value")
	// ErrMalformedSamplingWeight is returned for negative or non-finite weights.
	ErrMalformedSamplingWeight = errors.New("malformed sampling weight")
	// ErrDegenerateMismatch is returned when a label set is used against a
	// partition that has no labelers.
	ErrDegenerateMismatch = errors.New("label set used against degenerate partition")
	// ErrDependencyCycle is returned when data manager dependencies cannot be ordered.
	ErrDependencyCycle = errors.New("data manager dependency cycle")
	// ErrInvalidPlan is returned for plans scheduled in the past, at a
	// non-finite time, or after the simulation has closed.
	ErrInvalidPlan = errors.New("invalid plan")
)
