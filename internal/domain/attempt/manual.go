package attempt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ManualLogRequest records work that was done without the timer.
type ManualLogRequest struct {
	EntityID           string
	UserID             string
	Duration           time.Duration
	ProductiveDuration time.Duration
	PausedDuration     time.Duration
	Points             int
	CompletedAt        time.Time
}

func (r ManualLogRequest) validate() error {
	if strings.TrimSpace(r.EntityID) == "" || strings.TrimSpace(r.UserID) == "" || r.CompletedAt.IsZero() {
		return ErrInvalidInput
	}
	if r.Duration < 0 || r.ProductiveDuration < 0 || r.PausedDuration < 0 || r.Points < 0 {
		return ErrInvalidInput
	}
	total := r.Duration.Milliseconds()
	productive := r.ProductiveDuration.Milliseconds()
	paused := r.PausedDuration.Milliseconds()
	if total != productive+paused {
		return &InconsistentDurationsError{
			Duration:           total,
			ProductiveDuration: productive,
			PausedDuration:     paused,
		}
	}
	return nil
}

// ManualLog creates a completed attempt whose event history is synthesized
// backwards from CompletedAt: CREATE and START at CompletedAt-Duration, an
// optional PAUSE/RESUME pair around the paused span, and COMPLETE at
// CompletedAt. The attempt is bucketed on the study day of CompletedAt.
func (s *Service) ManualLog(ctx context.Context, req ManualLogRequest) (logged *Attempt, err error) {
	defer s.observe("manual_log", &err)

	if err := req.validate(); err != nil {
		return nil, err
	}

	kind, err := s.resolveEntityType(ctx, req.UserID, req.EntityID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	completedAt := req.CompletedAt.UnixMilli()
	start := completedAt - req.Duration.Milliseconds()
	productive := req.ProductiveDuration.Milliseconds()
	paused := req.PausedDuration.Milliseconds()

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		ordinal, err := tx.MaxOrdinal(ctx, req.EntityID)
		if err != nil {
			return fmt.Errorf("reading ordinal: %w", err)
		}

		a := &Attempt{
			ID:         uuid.NewString(),
			EntityID:   req.EntityID,
			EntityType: kind,
			UserID:     req.UserID,
			Ordinal:    ordinal + 1,
			Date:       s.days.Bucket(req.CompletedAt),
			Status:     StatusNotStarted,
			CreatedAt:  now.UnixMilli(),
			UpdatedAt:  now.UnixMilli(),
		}
		if err := tx.Insert(ctx, a); err != nil {
			return fmt.Errorf("inserting attempt: %w", err)
		}

		events := []Event{
			s.manualEvent(a.ID, EventCreate, start, now, Payload{EntityID: req.EntityID}),
			s.manualEvent(a.ID, EventStart, start, now, Payload{}),
		}
		if paused > 0 {
			events = append(events,
				s.manualEvent(a.ID, EventPause, start+productive, now, Payload{}),
				s.manualEvent(a.ID, EventResume, start+productive+paused, now, Payload{}),
			)
		}
		events = append(events, s.manualEvent(a.ID, EventComplete, completedAt, now, Payload{
			PointsAwarded:      req.Points,
			Duration:           req.Duration.Milliseconds(),
			ProductiveDuration: productive,
			PausedDuration:     paused,
		}))
		if _, err := tx.AppendEvents(ctx, events); err != nil {
			return fmt.Errorf("appending events: %w", err)
		}

		if err := s.replay(ctx, tx, a, now); err != nil {
			return err
		}
		logged = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return logged, nil
}

func (s *Service) manualEvent(attemptID string, evType EventType, occurredAt int64, now time.Time, payload Payload) Event {
	return Event{
		ID:         uuid.NewString(),
		AttemptID:  attemptID,
		Type:       evType,
		Payload:    payload,
		Source:     SourceManual,
		OccurredAt: occurredAt,
		CreatedAt:  s.stamp(now),
	}
}
