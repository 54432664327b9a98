package attempt_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/repository"
)

// memStore is an in-memory attempt.Store with the same uniqueness rules as
// the SQLite schema. Transactions work on a copy that replaces the live data
// on success.
type memStore struct {
	mu   sync.Mutex
	data memData
}

type memData struct {
	attempts map[string]attempt.Attempt
	events   map[string][]attempt.Event
}

func newMemStore() *memStore {
	return &memStore{data: memData{
		attempts: map[string]attempt.Attempt{},
		events:   map[string][]attempt.Event{},
	}}
}

func (d memData) clone() memData {
	c := memData{
		attempts: make(map[string]attempt.Attempt, len(d.attempts)),
		events:   make(map[string][]attempt.Event, len(d.events)),
	}
	for k, v := range d.attempts {
		c.attempts[k] = v
	}
	for k, v := range d.events {
		c.events[k] = append([]attempt.Event(nil), v...)
	}
	return c
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx attempt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{data: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *memStore) Get(ctx context.Context, userID, id string) (*attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{data: s.data}).Get(ctx, userID, id)
}

func (s *memStore) GetActive(ctx context.Context, userID string) (*attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *attempt.Attempt
	for _, a := range s.data.attempts {
		if !a.IsActive || a.UserID != userID {
			continue
		}
		if latest == nil || a.UpdatedAt > latest.UpdatedAt {
			a := a
			latest = &a
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (s *memStore) ListByDate(ctx context.Context, userID, date string) ([]attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []attempt.Attempt
	for _, a := range s.data.attempts {
		if a.UserID == userID && a.Date == date {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}

func (s *memStore) ListEvents(ctx context.Context, attemptID string) ([]attempt.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]attempt.Event(nil), s.data.events[attemptID]...), nil
}

func (s *memStore) ListEventsForAttempts(ctx context.Context, attemptIDs []string) ([]attempt.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []attempt.Event
	for _, id := range attemptIDs {
		out = append(out, s.data.events[id]...)
	}
	return out, nil
}

func (s *memStore) eventCount(attemptID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.events[attemptID])
}

func (s *memStore) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.attempts)
}

// gatedStore holds the first ListByDate until release is closed and reports
// on resumed whether the read's context was still live at that point.
type gatedStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
	resumed chan error
	calls   atomic.Int32
}

func newGatedStore(s *memStore) *gatedStore {
	return &gatedStore{
		memStore: s,
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		resumed:  make(chan error, 1),
	}
}

func (g *gatedStore) ListByDate(ctx context.Context, userID, date string) ([]attempt.Attempt, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		select {
		case <-g.release:
			g.resumed <- ctx.Err()
		case <-ctx.Done():
			g.resumed <- ctx.Err()
			return nil, ctx.Err()
		}
	}
	return g.memStore.ListByDate(ctx, userID, date)
}

type memTx struct {
	data memData
}

func (t *memTx) Get(ctx context.Context, userID, id string) (*attempt.Attempt, error) {
	a, ok := t.data.attempts[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) GetByActiveKey(ctx context.Context, activeKey string) (*attempt.Attempt, error) {
	for _, a := range t.data.attempts {
		if a.ActiveKey != nil && *a.ActiveKey == activeKey {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *memTx) MaxOrdinal(ctx context.Context, entityID string) (int, error) {
	highest := 0
	for _, a := range t.data.attempts {
		if a.EntityID == entityID && a.Ordinal > highest {
			highest = a.Ordinal
		}
	}
	return highest, nil
}

func (t *memTx) Insert(ctx context.Context, a *attempt.Attempt) error {
	if _, ok := t.data.attempts[a.ID]; ok {
		return repository.ErrConflict
	}
	for _, other := range t.data.attempts {
		if other.EntityID == a.EntityID && other.Ordinal == a.Ordinal {
			return repository.ErrConflict
		}
	}
	if err := t.checkActiveKey(a); err != nil {
		return err
	}
	t.data.attempts[a.ID] = *a
	return nil
}

func (t *memTx) Update(ctx context.Context, a *attempt.Attempt) error {
	if _, ok := t.data.attempts[a.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := t.checkActiveKey(a); err != nil {
		return err
	}
	t.data.attempts[a.ID] = *a
	return nil
}

func (t *memTx) checkActiveKey(a *attempt.Attempt) error {
	if a.ActiveKey == nil {
		return nil
	}
	for id, other := range t.data.attempts {
		if id != a.ID && other.ActiveKey != nil && *other.ActiveKey == *a.ActiveKey {
			return repository.ErrConflict
		}
	}
	return nil
}

func (t *memTx) AppendEvents(ctx context.Context, events []attempt.Event) (int, error) {
	inserted := 0
	for _, ev := range events {
		if _, ok := t.data.attempts[ev.AttemptID]; !ok {
			return inserted, repository.ErrForeignKeyViolation
		}
		if t.hasEvent(ev.ID) {
			continue
		}
		t.data.events[ev.AttemptID] = append(t.data.events[ev.AttemptID], ev)
		inserted++
	}
	return inserted, nil
}

func (t *memTx) hasEvent(id string) bool {
	for _, evs := range t.data.events {
		for _, ev := range evs {
			if ev.ID == id {
				return true
			}
		}
	}
	return false
}

func (t *memTx) ListEvents(ctx context.Context, attemptID string) ([]attempt.Event, error) {
	return append([]attempt.Event(nil), t.data.events[attemptID]...), nil
}

func (t *memTx) DeleteEvents(ctx context.Context, attemptID string) (int64, error) {
	n := int64(len(t.data.events[attemptID]))
	delete(t.data.events, attemptID)
	return n, nil
}
