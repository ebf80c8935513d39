package types

import "errors"

// Query failure kinds. All engine errors wrap exactly one of these
// sentinels so callers can classify failures with errors.Is.
var (
	// ErrSchema is returned when a query references an unknown table or column.
	ErrSchema = errors.New("unknown table or column")

	// ErrNotFound is returned when a module or function name cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrCyclicDependency is returned when module resolution or derived-table
	// expansion encounters a dependency cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrData is returned for invalid input values, such as a non-positive
	// duration feeding a score computation.
	ErrData = errors.New("invalid data")

	// ErrTypeMismatch is returned when an output value disagrees with its
	// declared column type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// IsSchemaError reports whether err wraps ErrSchema.
func IsSchemaError(err error) bool { return errors.Is(err, ErrSchema) }

// IsNotFoundError reports whether err wraps ErrNotFound.
func IsNotFoundError(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCyclicDependencyError reports whether err wraps ErrCyclicDependency.
func IsCyclicDependencyError(err error) bool { return errors.Is(err, ErrCyclicDependency) }

// IsDataError reports whether err wraps ErrData.
func IsDataError(err error) bool { return errors.Is(err, ErrData) }

// IsTypeMismatchError reports whether err wraps ErrTypeMismatch.
func IsTypeMismatchError(err error) bool { return errors.Is(err, ErrTypeMismatch) }
