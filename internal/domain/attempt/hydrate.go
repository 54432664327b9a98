package attempt

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/attemptlog/internal/domain/template"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// GetHydratedAttemptsByDate returns every attempt of userID bucketed on date,
// joined with its events (in replay order) and its template. Attempts are
// read first; the events and templates are then fetched by an errgroup and
// joined in memory.
//
// Concurrent calls for the same user and date share one read. The shared read
// is detached from the caller's cancellation so that one caller giving up
// doesn't fail the others; each caller still returns as soon as its own
// context is done.
func (s *Service) GetHydratedAttemptsByDate(ctx context.Context, userID, date string) ([]HydratedAttempt, error) {
	if date == "" || userID == "" {
		return nil, ErrInvalidInput
	}

	flight := s.hydrations.DoChan(userID+"|"+date, func() (any, error) {
		return s.hydrate(context.WithoutCancel(ctx), userID, date)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	shared := res.Val.([]HydratedAttempt)
	result := make([]HydratedAttempt, len(shared))
	copy(result, shared)
	return result, nil
}

func (s *Service) hydrate(ctx context.Context, userID, date string) ([]HydratedAttempt, error) {
	started := time.Now()

	attempts, err := s.store.ListByDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	if len(attempts) == 0 {
		s.observer.HydrationObserved(date, 0, time.Since(started))
		return []HydratedAttempt{}, nil
	}

	attemptIDs := make([]string, 0, len(attempts))
	entityIDs := make([]string, 0, len(attempts))
	seen := make(map[string]struct{}, len(attempts))
	for _, a := range attempts {
		attemptIDs = append(attemptIDs, a.ID)
		if _, ok := seen[a.EntityID]; !ok {
			seen[a.EntityID] = struct{}{}
			entityIDs = append(entityIDs, a.EntityID)
		}
	}

	var (
		events    []Event
		templates []template.Template
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = s.store.ListEventsForAttempts(gctx, attemptIDs)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		templates, err = s.templates.GetTemplates(gctx, userID, entityIDs)
		if err != nil {
			return fmt.Errorf("listing templates: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	eventsByAttempt := make(map[string][]Event, len(attempts))
	for _, ev := range events {
		eventsByAttempt[ev.AttemptID] = append(eventsByAttempt[ev.AttemptID], ev)
	}
	templatesByID := make(map[string]*template.Template, len(templates))
	for i := range templates {
		templatesByID[templates[i].ID] = &templates[i]
	}

	result := make([]HydratedAttempt, 0, len(attempts))
	for _, a := range attempts {
		evs := eventsByAttempt[a.ID]
		if evs == nil {
			evs = []Event{}
		}
		SortEvents(evs)
		result = append(result, HydratedAttempt{
			Attempt:  a,
			Events:   evs,
			Template: templatesByID[a.EntityID],
		})
	}

	s.observer.HydrationObserved(date, len(result), time.Since(started))
	return result, nil
}
