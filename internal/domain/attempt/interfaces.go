package attempt

import (
	"context"
	"time"

	"github.com/rpggio/attemptlog/internal/domain/template"
)

// Store gives the service transactional access to the attempt and event
// tables plus the non-transactional read paths.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Reader
}

// Reader serves the read surface outside of a write transaction. Attempt
// lookups only see rows owned by userID.
type Reader interface {
	Get(ctx context.Context, userID, id string) (*Attempt, error)
	GetActive(ctx context.Context, userID string) (*Attempt, error)
	ListByDate(ctx context.Context, userID, date string) ([]Attempt, error)
	ListEvents(ctx context.Context, attemptID string) ([]Event, error)
	ListEventsForAttempts(ctx context.Context, attemptIDs []string) ([]Event, error)
}

// Tx is a unit of work spanning both tables. Nothing written through it is
// visible to readers until WithinTx returns nil.
type Tx interface {
	Get(ctx context.Context, userID, id string) (*Attempt, error)
	GetByActiveKey(ctx context.Context, activeKey string) (*Attempt, error)
	MaxOrdinal(ctx context.Context, entityID string) (int, error)
	Insert(ctx context.Context, a *Attempt) error
	Update(ctx context.Context, a *Attempt) error
	// AppendEvents inserts events and reports how many were new; events whose
	// ID already exists are skipped.
	AppendEvents(ctx context.Context, events []Event) (int, error)
	ListEvents(ctx context.Context, attemptID string) ([]Event, error)
	DeleteEvents(ctx context.Context, attemptID string) (int64, error)
}

// TemplateLookup is the read-only view of the task and routine collections.
type TemplateLookup interface {
	// ResolveEntityType checks the user's tasks then routines for id.
	ResolveEntityType(ctx context.Context, userID, id string) (EntityType, error)
	GetTemplates(ctx context.Context, userID string, ids []string) ([]template.Template, error)
}

// Clock supplies "now" for every non-manual timestamp.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// DayBucketer maps an instant to its study-day key (YYYY-MM-DD).
type DayBucketer interface {
	Bucket(t time.Time) string
}

// Observer receives command outcomes, e.g. for metrics.
type Observer interface {
	CommandCompleted(command string, err error)
	RemoteEventsSkipped(attemptID string, count int)
	HydrationObserved(date string, attempts int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) CommandCompleted(string, error) {}
func (nopObserver) RemoteEventsSkipped(string, int) {}
func (nopObserver) HydrationObserved(string, int, time.Duration) {}
