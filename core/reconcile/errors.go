package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable marks a fetch-stage failure. The run writes nothing.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrIndexUnavailable marks a failure loading the persisted index. The run writes nothing.
	ErrIndexUnavailable = errors.New("persisted index unavailable")

	// ErrReferenceUnresolved marks a required foreign natural key with no persisted entity.
	// The dependent entity is skipped and counted, never returned from Run.
	ErrReferenceUnresolved = errors.New("reference unresolved")

	// ErrWriteFailed marks a storage failure inside one entity's write unit.
	ErrWriteFailed = errors.New("write failed")

	// ErrDuplicateNaturalKey marks an upstream key seen more than once in one fetch.
	// It is logged as a data-quality warning; the later record wins.
	ErrDuplicateNaturalKey = errors.New("duplicate natural key")
)

// Stage names used in StageError.
const (
	StageFetch = "fetch"
	StageIndex = "index"
	StageApply = "apply"
)

// StageError is a fatal failure that aborts a run for one entity type.
type StageError struct {
	Stage  string
	Entity string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s stage: %v", e.Entity, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Unresolved builds an ErrReferenceUnresolved error with a human-readable reason.
func Unresolved(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReferenceUnresolved, fmt.Sprintf(format, args...))
}

// reason strips the sentinel prefix so summaries read "event not found" rather than
// "reference unresolved: event not found".
func reason(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrReferenceUnresolved, ErrWriteFailed} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
