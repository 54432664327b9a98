package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/attemptlog/internal/repository"
	"golang.org/x/sync/singleflight"
)

// Service owns every write to the attempt and event tables. Each command runs
// in a single transaction and rebuilds the attempt's cached state by replaying
// its full event history through Reduce.
type Service struct {
	store     Store
	templates TemplateLookup
	days      DayBucketer
	clock     Clock
	observer  Observer
	logger    *slog.Logger

	hydrations singleflight.Group

	stampMu   sync.Mutex
	lastStamp int64
}

// NewService creates a new attempt service.
func NewService(store Store, templates TemplateLookup, days DayBucketer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		store:     store,
		templates: templates,
		days:      days,
		clock:     ClockFunc(time.Now),
		observer:  nopObserver{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAttempt opens a new attempt for req.EntityID. It fails with
// ErrActiveAttemptExists while another attempt holds the same active key.
func (s *Service) CreateAttempt(ctx context.Context, req CreateRequest) (created *Attempt, err error) {
	defer s.observe("create", &err)

	if strings.TrimSpace(req.EntityID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidInput
	}

	kind, err := s.resolveEntityType(ctx, req.UserID, req.EntityID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	key := ActiveKey(req.UserID, req.EntityID)

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.GetByActiveKey(ctx, key); err == nil {
			return ErrActiveAttemptExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("checking active attempt: %w", err)
		}

		a, err := s.openAttempt(ctx, tx, req.EntityID, kind, req.UserID, now, Payload{EntityID: req.EntityID})
		if err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("attempt created", "attempt_id", created.ID, "entity_id", created.EntityID, "ordinal", created.Ordinal)
	return created, nil
}

// StartAttempt appends START.
func (s *Service) StartAttempt(ctx context.Context, userID, id string) (*Attempt, error) {
	return s.appendTimerEvent(ctx, "start", userID, id, EventStart, Payload{})
}

// PauseAttempt appends PAUSE.
func (s *Service) PauseAttempt(ctx context.Context, userID, id string) (*Attempt, error) {
	return s.appendTimerEvent(ctx, "pause", userID, id, EventPause, Payload{})
}

// ResumeAttempt appends RESUME.
func (s *Service) ResumeAttempt(ctx context.Context, userID, id string) (*Attempt, error) {
	return s.appendTimerEvent(ctx, "resume", userID, id, EventResume, Payload{})
}

// CompleteAttempt appends COMPLETE and releases the active key.
func (s *Service) CompleteAttempt(ctx context.Context, userID, id string, payload CompletePayload) (*Attempt, error) {
	if payload.PointsAwarded < 0 {
		return nil, ErrInvalidInput
	}
	return s.appendTimerEvent(ctx, "complete", userID, id, EventComplete, Payload{PointsAwarded: payload.PointsAwarded})
}

// StopAttempt cancels an active attempt.
func (s *Service) StopAttempt(ctx context.Context, userID, id, reason string) (stopped *Attempt, err error) {
	defer s.observe("stop", &err)

	now := s.clock.Now()
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		a, err := getForUpdate(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return ErrAttemptInactive
		}
		if err := s.appendAndReplay(ctx, tx, a, now, s.newEvent(a.ID, EventCancel, Payload{Reason: reason}, SourceTimer, now)); err != nil {
			return err
		}
		stopped = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stopped, nil
}

// NormalUndoOrRetry annotates the old attempt with UNDO_NORMAL or RETRY and
// opens a fresh attempt for the same entity. Any attempt still holding the
// target active key is cancelled as a duplicate first. The old attempt's
// status is not changed by the annotation.
func (s *Service) NormalUndoOrRetry(ctx context.Context, req RetryRequest) (created *Attempt, err error) {
	defer s.observe("undo_or_retry", &err)

	evType, ok := req.Kind.eventType()
	if !ok || strings.TrimSpace(req.FromAttemptID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidInput
	}

	now := s.clock.Now()
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		old, err := getForUpdate(ctx, tx, req.UserID, req.FromAttemptID)
		if err != nil {
			return err
		}

		newID := uuid.NewString()
		annotation := s.newEvent(old.ID, evType, Payload{Reason: req.Reason, ToAttemptID: newID}, SourceTimer, now)
		if err := s.appendAndReplay(ctx, tx, old, now, annotation); err != nil {
			return err
		}

		key := ActiveKey(req.UserID, old.EntityID)
		dangling, err := tx.GetByActiveKey(ctx, key)
		switch {
		case err == nil:
			cancel := s.newEvent(dangling.ID, EventCancelDuplicate, Payload{Reason: "superseded by " + newID}, SourceTimer, now)
			if err := s.appendAndReplay(ctx, tx, dangling, now, cancel); err != nil {
				return err
			}
			s.logger.Info("cancelled dangling attempt", "attempt_id", dangling.ID, "active_key", key)
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("checking active attempt: %w", err)
		}

		a, err := s.openAttemptWithID(ctx, tx, newID, old.EntityID, old.EntityType, req.UserID, now,
			Payload{EntityID: old.EntityID, FromAttemptID: old.ID})
		if err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// HardUndo invalidates an attempt and deletes its events. This is the only
// destructive operation and cannot be reversed. Every later command on the
// attempt fails with ErrAttemptInvalidated.
func (s *Service) HardUndo(ctx context.Context, userID, id string) (invalidated *Attempt, err error) {
	defer s.observe("hard_undo", &err)

	now := s.clock.Now().UnixMilli()
	var purged int64
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		a, err := getForUpdate(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		purged, err = tx.DeleteEvents(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("deleting events: %w", err)
		}
		// The log is gone, so this is the one status change made without the reducer.
		a.Status = StatusInvalidated
		a.DeletedAt = &now
		a.UpdatedAt = now
		a.Deactivate()
		if err := tx.Update(ctx, a); err != nil {
			return fmt.Errorf("updating attempt: %w", err)
		}
		invalidated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attempt hard undone", "attempt_id", id, "events_deleted", purged)
	return invalidated, nil
}

// ApplyEvents ingests events produced on another device. When the attempt is
// not present locally the call is a logged no-op: its row may simply not have
// synced yet. The same holds for an attempt that was hard undone, whose log
// must stay empty. Events already stored (same ID) are skipped.
func (s *Service) ApplyEvents(ctx context.Context, userID, id string, events []Event) (err error) {
	defer s.observe("apply_events", &err)

	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	for _, ev := range events {
		if (ev.AttemptID != "" && ev.AttemptID != id) || !ev.Type.Valid() {
			return ErrInvalidInput
		}
	}

	now := s.clock.Now()
	var (
		skipped  string
		inserted int
	)
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		a, err := getForUpdate(ctx, tx, userID, id)
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			skipped = "unknown"
			return nil
		case errors.Is(err, ErrAttemptInvalidated):
			skipped = "invalidated"
			return nil
		case err != nil:
			return err
		}

		incoming := make([]Event, len(events))
		for i, ev := range events {
			if ev.ID == "" {
				ev.ID = uuid.NewString()
			}
			ev.AttemptID = id
			ev.Source = SourceSync
			ev.CreatedAt = s.stamp(now)
			incoming[i] = ev
		}
		inserted, err = tx.AppendEvents(ctx, incoming)
		if err != nil {
			return fmt.Errorf("appending events: %w", err)
		}
		return s.replay(ctx, tx, a, now)
	})
	if err != nil {
		return err
	}

	if skipped != "" {
		s.logger.Warn("skipping remote events for "+skipped+" attempt", "attempt_id", id, "events", len(events))
		s.observer.RemoteEventsSkipped(id, len(events))
		return nil
	}
	s.logger.Debug("remote events applied", "attempt_id", id, "received", len(events), "inserted", inserted)
	return nil
}

// GetAttempt returns a single attempt owned by userID.
func (s *Service) GetAttempt(ctx context.Context, userID, id string) (*Attempt, error) {
	a, err := s.store.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("getting attempt: %w", err)
	}
	return a, nil
}

// GetActiveAttempt returns the user's in-progress attempt, or nil when there
// is none.
func (s *Service) GetActiveAttempt(ctx context.Context, userID string) (*Attempt, error) {
	a, err := s.store.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting active attempt: %w", err)
	}
	return a, nil
}

// ListEvents returns an attempt's events in replay order.
func (s *Service) ListEvents(ctx context.Context, userID, id string) ([]Event, error) {
	if _, err := s.GetAttempt(ctx, userID, id); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	SortEvents(events)
	return events, nil
}

func (s *Service) appendTimerEvent(ctx context.Context, command, userID, id string, evType EventType, payload Payload) (updated *Attempt, err error) {
	defer s.observe(command, &err)

	now := s.clock.Now()
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		a, err := getForUpdate(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := s.appendAndReplay(ctx, tx, a, now, s.newEvent(a.ID, evType, payload, SourceTimer, now)); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) openAttempt(ctx context.Context, tx Tx, entityID string, kind EntityType, userID string, now time.Time, payload Payload) (*Attempt, error) {
	return s.openAttemptWithID(ctx, tx, uuid.NewString(), entityID, kind, userID, now, payload)
}

func (s *Service) openAttemptWithID(ctx context.Context, tx Tx, id, entityID string, kind EntityType, userID string, now time.Time, payload Payload) (*Attempt, error) {
	ordinal, err := tx.MaxOrdinal(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("reading ordinal: %w", err)
	}

	key := ActiveKey(userID, entityID)
	ms := now.UnixMilli()
	a := &Attempt{
		ID:         id,
		EntityID:   entityID,
		EntityType: kind,
		UserID:     userID,
		Ordinal:    ordinal + 1,
		IsActive:   true,
		ActiveKey:  &key,
		Date:       s.days.Bucket(now),
		Status:     StatusNotStarted,
		CreatedAt:  ms,
		UpdatedAt:  ms,
	}
	if err := tx.Insert(ctx, a); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrActiveAttemptExists
		}
		return nil, fmt.Errorf("inserting attempt: %w", err)
	}
	if _, err := tx.AppendEvents(ctx, []Event{s.newEvent(a.ID, EventCreate, payload, SourceTimer, now)}); err != nil {
		return nil, fmt.Errorf("appending create event: %w", err)
	}
	return a, nil
}

func (s *Service) appendAndReplay(ctx context.Context, tx Tx, a *Attempt, now time.Time, ev Event) error {
	if _, err := tx.AppendEvents(ctx, []Event{ev}); err != nil {
		return fmt.Errorf("appending %s event: %w", ev.Type, err)
	}
	return s.replay(ctx, tx, a, now)
}

// replay rebuilds a's cached state from its complete event log and persists it.
func (s *Service) replay(ctx context.Context, tx Tx, a *Attempt, now time.Time) error {
	events, err := tx.ListEvents(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}
	a.Apply(Reduce(events))
	if a.Status.Terminal() {
		a.Deactivate()
	}
	a.UpdatedAt = now.UnixMilli()
	if err := tx.Update(ctx, a); err != nil {
		return fmt.Errorf("updating attempt: %w", err)
	}
	return nil
}

func (s *Service) newEvent(attemptID string, evType EventType, payload Payload, source Source, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		AttemptID:  attemptID,
		Type:       evType,
		Payload:    payload,
		Source:     source,
		OccurredAt: occurredAt.UnixMilli(),
		CreatedAt:  s.stamp(s.clock.Now()),
	}
}

// stamp returns a strictly increasing ingestion timestamp so events appended
// within the same millisecond keep their append order during replay.
func (s *Service) stamp(now time.Time) int64 {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()

	ms := now.UnixMilli()
	if ms <= s.lastStamp {
		ms = s.lastStamp + 1
	}
	s.lastStamp = ms
	return ms
}

func (s *Service) resolveEntityType(ctx context.Context, userID, entityID string) (EntityType, error) {
	kind, err := s.templates.ResolveEntityType(ctx, userID, entityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUnknownEntity
		}
		return "", fmt.Errorf("resolving entity type: %w", err)
	}
	return kind, nil
}

func (s *Service) observe(command string, err *error) {
	s.observer.CommandCompleted(command, *err)
}

// getForUpdate loads an attempt the user may write to. Attempts owned by
// someone else are reported as missing.
func getForUpdate(ctx context.Context, tx Tx, userID, id string) (*Attempt, error) {
	a, err := tx.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("loading attempt: %w", err)
	}
	if a.DeletedAt != nil || a.Status == StatusInvalidated {
		return nil, ErrAttemptInvalidated
	}
	return a, nil
}
