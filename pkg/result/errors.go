package result

import "errors"

// ErrUnsupportedEOp is returned when an observable spec has no resolvable
// kind. It surfaces at recorder construction, before any sample is taken.
var ErrUnsupportedEOp = errors.New("unsupported observable type")

// ErrDuplicateKey is returned when two observable specs share a key.
var ErrDuplicateKey = errors.New("duplicate observable key")

// ErrUnknownKey is returned when a derived statistic is requested for an
// observable key that was never bound.
var ErrUnknownKey = errors.New("unknown observable key")

// ErrNoTrajectories is returned when a derived statistic is read from an
// aggregator before any trajectory was added.
var ErrNoTrajectories = errors.New("no trajectories added")

// ErrNotRetained is returned when per-trajectory data is requested from an
// aggregator that only keeps running sums.
var ErrNotRetained = errors.New("per-trajectory data not retained")

// ErrShapeMismatch is returned when a trajectory's time grid or observable
// key set does not match the trajectories already aggregated.
var ErrShapeMismatch = errors.New("trajectory shape mismatch")

// ErrNoStates is returned when state averages are requested but the
// aggregated trajectories did not retain states.
var ErrNoStates = errors.New("states were not retained")
