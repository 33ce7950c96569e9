package tilt

import "errors"

// Fatal input errors abort a run. ErrDegenerateGeometry is the only per-center
// error and is filtered by the pipeline instead of being returned.
var (
	ErrMalformedInput     = errors.New("malformed input")
	ErrMissingSpecies     = errors.New("species not present in snapshot")
	ErrAtomCountMismatch  = errors.New("snapshots have different atom counts")
	ErrNonOrthorhombic    = errors.New("cell is not orthorhombic")
	ErrInvalidCutoff      = errors.New("cutoff must be positive")
	ErrCutoffTooLarge     = errors.New("cutoff exceeds half the cell length")
	ErrDegenerateGeometry = errors.New("degenerate coordination geometry")
)
