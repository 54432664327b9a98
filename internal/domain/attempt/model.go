package attempt

import "github.com/rpggio/attemptlog/internal/domain/template"

// EntityType identifies which template collection an attempt points at.
type EntityType = template.Kind

const (
	EntityTask    = template.KindTask
	EntityRoutine = template.KindRoutine
)

// Status is the derived lifecycle status of an attempt.
type Status string

const (
	StatusNotStarted  Status = "NOT_STARTED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusInvalidated Status = "INVALIDATED"
)

// Terminal reports whether s can no longer change through normal commands.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusInvalidated
}

// EventType tags the variant of an event.
type EventType string

const (
	EventCreate          EventType = "CREATE"
	EventStart           EventType = "START"
	EventPause           EventType = "PAUSE"
	EventResume          EventType = "RESUME"
	EventComplete        EventType = "COMPLETE"
	EventCancel          EventType = "CANCEL"
	EventCancelDuplicate EventType = "CANCEL_DUPLICATE"
	EventHardUndo        EventType = "HARD_UNDO"
	EventUndoNormal      EventType = "UNDO_NORMAL"
	EventRetry           EventType = "RETRY"
	EventPointsAwarded   EventType = "POINTS_AWARDED"
)

var knownEventTypes = map[EventType]struct{}{
	EventCreate:          {},
	EventStart:           {},
	EventPause:           {},
	EventResume:          {},
	EventComplete:        {},
	EventCancel:          {},
	EventCancelDuplicate: {},
	EventHardUndo:        {},
	EventUndoNormal:      {},
	EventRetry:           {},
	EventPointsAwarded:   {},
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Source records where an event was produced.
type Source string

const (
	SourceTimer  Source = "timer"
	SourceManual Source = "manual"
	SourceSync   Source = "sync"
)

// Payload carries the variant-specific data of an event. Which fields are set
// depends on the event type.
type Payload struct {
	EntityID      string `json:"entity_id,omitempty"`
	PointsAwarded int    `json:"points_awarded,omitempty"`
	Points        int    `json:"points,omitempty"`
	Reason        string `json:"reason,omitempty"`
	FromAttemptID string `json:"from_attempt_id,omitempty"`
	ToAttemptID   string `json:"to_attempt_id,omitempty"`

	// Figures supplied to a manual log, in milliseconds.
	Duration           int64 `json:"duration,omitempty"`
	ProductiveDuration int64 `json:"productive_duration,omitempty"`
	PausedDuration     int64 `json:"paused_duration,omitempty"`
}

// Event is an immutable fact appended to an attempt's history.
// Timestamps are Unix milliseconds.
type Event struct {
	ID         string    `json:"id"`
	AttemptID  string    `json:"attempt_id"`
	Type       EventType `json:"type"`
	Payload    Payload   `json:"payload"`
	Source     Source    `json:"source"`
	OccurredAt int64     `json:"occurred_at"`
	CreatedAt  int64     `json:"created_at"`
}

// Attempt is one instance of work against a task or routine. Everything from
// Status down to PointsEarned is a cache of Reduce over the attempt's events.
type Attempt struct {
	ID         string     `json:"id"`
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	UserID     string     `json:"user_id"`
	Ordinal    int        `json:"ordinal"`
	IsActive   bool       `json:"is_active"`
	ActiveKey  *string    `json:"active_key,omitempty"`
	Date       string     `json:"date"`

	Status         Status `json:"status"`
	Duration       int64  `json:"duration"`
	PausedDuration int64  `json:"paused_duration"`
	StartTime      *int64 `json:"start_time,omitempty"`
	EndTime        *int64 `json:"end_time,omitempty"`
	PointsEarned   int    `json:"points_earned"`

	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Apply overwrites the derived-state cache with s.
func (a *Attempt) Apply(s State) {
	a.Status = s.Status
	a.Duration = s.Duration
	a.PausedDuration = s.PausedDuration
	a.StartTime = s.StartTime
	a.EndTime = s.EndTime
	a.PointsEarned = s.PointsEarned
}

// Deactivate clears the active flag and releases the active key.
func (a *Attempt) Deactivate() {
	a.IsActive = false
	a.ActiveKey = nil
}

// ActiveKey builds the uniqueness token for an open attempt.
func ActiveKey(userID, entityID string) string {
	return userID + "|" + entityID
}

// HydratedAttempt joins an attempt with its events and template.
type HydratedAttempt struct {
	Attempt  Attempt            `json:"attempt"`
	Events   []Event            `json:"events"`
	Template *template.Template `json:"template,omitempty"`
}

// RetryKind selects which annotation NormalUndoOrRetry appends to the old attempt.
type RetryKind string

const (
	KindUndo  RetryKind = "undo"
	KindRetry RetryKind = "retry"
)

func (k RetryKind) eventType() (EventType, bool) {
	switch k {
	case KindUndo:
		return EventUndoNormal, true
	case KindRetry:
		return EventRetry, true
	default:
		return "", false
	}
}
