package attempt

import (
	"errors"
	"fmt"
)

var (
	// ErrAttemptNotFound indicates the attempt doesn't exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptInactive indicates the command needs an active attempt.
	ErrAttemptInactive = errors.New("attempt is not active")
	// ErrAttemptInvalidated indicates the attempt was hard undone and accepts no further commands.
	ErrAttemptInvalidated = errors.New("attempt has been invalidated")
	// ErrActiveAttemptExists indicates another open attempt holds the same active key.
	ErrActiveAttemptExists = errors.New("an active attempt already exists for this entity")
	// ErrUnknownEntity indicates the entity is neither a task nor a routine.
	ErrUnknownEntity = errors.New("entity is neither a task nor a routine")
	// ErrInvalidInput indicates invalid attempt input.
	ErrInvalidInput = errors.New("invalid attempt input")
	// ErrInconsistentDurations indicates a manual log whose figures don't add up.
	ErrInconsistentDurations = errors.New("duration does not equal productive plus paused duration")
)

// InconsistentDurationsError carries the figures of a rejected manual log.
type InconsistentDurationsError struct {
	Duration           int64
	ProductiveDuration int64
	PausedDuration     int64
}

func (e *InconsistentDurationsError) Error() string {
	return fmt.Sprintf("%s: duration=%dms productive=%dms paused=%dms",
		ErrInconsistentDurations, e.Duration, e.ProductiveDuration, e.PausedDuration)
}

func (e *InconsistentDurationsError) Unwrap() error {
	return ErrInconsistentDurations
}
