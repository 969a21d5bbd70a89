package enhance

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	// ErrDestroyed is returned by every operation on a destroyed engine.
	// Destroyed is terminal; a new engine must be constructed.
	ErrDestroyed = errors.New("enhance: engine destroyed")

	// ErrNotStarted is returned when an operation requires the engine to
	// have been started at least once.
	ErrNotStarted = errors.New("enhance: engine not started")

	// ErrStartPending is returned by Start while another Start is still
	// acquiring the input source. Concurrent starts are rejected, not
	// queued.
	ErrStartPending = errors.New("enhance: start already in progress")

	// ErrNoLiveSource is returned by UseLiveSource when no live source
	// opener was attached at construction.
	ErrNoLiveSource = errors.New("enhance: no live source attached")
)

// Source acquisition errors. ErrSourceUnavailable is the umbrella every
// device failure wraps; the two named conditions below let callers
// distinguish the user-actionable cases.
var (
	ErrSourceUnavailable = errors.New("enhance: source unavailable")
	ErrPermissionDenied  = errors.New("enhance: permission denied")
	ErrDeviceNotFound    = errors.New("enhance: device not found")
)

// PermissionDeniedError tags err as a permission failure under the
// ErrSourceUnavailable umbrella.
func PermissionDeniedError(err error) error {
	return fmt.Errorf("%w: %w: %w", ErrSourceUnavailable, ErrPermissionDenied, err)
}

// DeviceNotFoundError tags err as a missing-device failure under the
// ErrSourceUnavailable umbrella.
func DeviceNotFoundError(err error) error {
	return fmt.Errorf("%w: %w: %w", ErrSourceUnavailable, ErrDeviceNotFound, err)
}

// DeviceError is a generic device failure. It matches
// ErrSourceUnavailable via errors.Is and carries the failing operation
// for diagnostics.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("enhance: device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func (e *DeviceError) Is(target error) bool { return target == ErrSourceUnavailable }
