package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/repository"
)

var (
	_ attempt.Store = (*AttemptRepository)(nil)
	_ attempt.Tx    = (*attemptTx)(nil)
)

const attemptColumns = `
	id, entity_id, entity_type, user_id, ordinal, is_active, active_key, date,
	status, duration, paused_duration, start_time, end_time, points_earned,
	created_at, updated_at, deleted_at`

// AttemptRepository implements attempt.Store for SQLite
type AttemptRepository struct {
	db *DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// WithinTx runs fn in a write transaction spanning attempts and events
func (r *AttemptRepository) WithinTx(ctx context.Context, fn func(tx attempt.Tx) error) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&attemptTx{q: tx})
	})
}

// Get retrieves a user's attempt by ID
func (r *AttemptRepository) Get(ctx context.Context, userID, id string) (*attempt.Attempt, error) {
	return getAttempt(ctx, r.db, userID, id)
}

// GetActive returns the user's most recently updated active attempt
func (r *AttemptRepository) GetActive(ctx context.Context, userID string) (*attempt.Attempt, error) {
	query := `SELECT` + attemptColumns + `
		FROM attempts
		WHERE user_id = ? AND is_active = 1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanAttempt(r.db.QueryRowContext(ctx, query, userID))
}

// ListByDate returns a user's attempts bucketed on a study day, oldest first
func (r *AttemptRepository) ListByDate(ctx context.Context, userID, date string) ([]attempt.Attempt, error) {
	query := `SELECT` + attemptColumns + `
		FROM attempts
		WHERE user_id = ? AND date = ?
		ORDER BY created_at ASC, ordinal ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []attempt.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// ListEvents returns the stored events of one attempt
func (r *AttemptRepository) ListEvents(ctx context.Context, attemptID string) ([]attempt.Event, error) {
	return listEvents(ctx, r.db, attemptID)
}

// ListEventsForAttempts returns the stored events of several attempts
func (r *AttemptRepository) ListEventsForAttempts(ctx context.Context, attemptIDs []string) ([]attempt.Event, error) {
	return listEventsForAttempts(ctx, r.db, attemptIDs)
}

type attemptTx struct {
	q queryer
}

func (t *attemptTx) Get(ctx context.Context, userID, id string) (*attempt.Attempt, error) {
	return getAttempt(ctx, t.q, userID, id)
}

func (t *attemptTx) GetByActiveKey(ctx context.Context, activeKey string) (*attempt.Attempt, error) {
	query := `SELECT` + attemptColumns + `
		FROM attempts
		WHERE active_key = ?
	`
	return scanAttempt(t.q.QueryRowContext(ctx, query, activeKey))
}

func (t *attemptTx) MaxOrdinal(ctx context.Context, entityID string) (int, error) {
	var ordinal int
	err := t.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ordinal), 0) FROM attempts WHERE entity_id = ?`, entityID,
	).Scan(&ordinal)
	if err != nil {
		return 0, fmt.Errorf("failed to read max ordinal: %w", err)
	}
	return ordinal, nil
}

func (t *attemptTx) Insert(ctx context.Context, a *attempt.Attempt) error {
	query := `INSERT INTO attempts (` + attemptColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := t.q.ExecContext(ctx, query,
		a.ID,
		a.EntityID,
		a.EntityType,
		a.UserID,
		a.Ordinal,
		a.IsActive,
		a.ActiveKey,
		a.Date,
		a.Status,
		a.Duration,
		a.PausedDuration,
		a.StartTime,
		a.EndTime,
		a.PointsEarned,
		a.CreatedAt,
		a.UpdatedAt,
		a.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	return nil
}

// Update rewrites the mutable columns. Identity columns (entity, type,
// user, ordinal, date) never change after insert.
func (t *attemptTx) Update(ctx context.Context, a *attempt.Attempt) error {
	query := `
		UPDATE attempts
		SET is_active = ?, active_key = ?, status = ?, duration = ?,
		    paused_duration = ?, start_time = ?, end_time = ?, points_earned = ?,
		    updated_at = ?, deleted_at = ?
		WHERE id = ?
	`

	result, err := t.q.ExecContext(ctx, query,
		a.IsActive,
		a.ActiveKey,
		a.Status,
		a.Duration,
		a.PausedDuration,
		a.StartTime,
		a.EndTime,
		a.PointsEarned,
		a.UpdatedAt,
		a.DeletedAt,
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (t *attemptTx) AppendEvents(ctx context.Context, events []attempt.Event) (int, error) {
	return appendEvents(ctx, t.q, events)
}

func (t *attemptTx) ListEvents(ctx context.Context, attemptID string) ([]attempt.Event, error) {
	return listEvents(ctx, t.q, attemptID)
}

func (t *attemptTx) DeleteEvents(ctx context.Context, attemptID string) (int64, error) {
	return deleteEvents(ctx, t.q, attemptID)
}

func getAttempt(ctx context.Context, q queryer, userID, id string) (*attempt.Attempt, error) {
	query := `SELECT` + attemptColumns + `
		FROM attempts
		WHERE id = ? AND user_id = ?
	`
	return scanAttempt(q.QueryRowContext(ctx, query, id, userID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*attempt.Attempt, error) {
	var (
		a         attempt.Attempt
		activeKey sql.NullString
		startTime sql.NullInt64
		endTime   sql.NullInt64
		deletedAt sql.NullInt64
	)
	err := row.Scan(
		&a.ID,
		&a.EntityID,
		&a.EntityType,
		&a.UserID,
		&a.Ordinal,
		&a.IsActive,
		&activeKey,
		&a.Date,
		&a.Status,
		&a.Duration,
		&a.PausedDuration,
		&startTime,
		&endTime,
		&a.PointsEarned,
		&a.CreatedAt,
		&a.UpdatedAt,
		&deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}

	if activeKey.Valid {
		a.ActiveKey = &activeKey.String
	}
	if startTime.Valid {
		a.StartTime = &startTime.Int64
	}
	if endTime.Valid {
		a.EndTime = &endTime.Int64
	}
	if deletedAt.Valid {
		a.DeletedAt = &deletedAt.Int64
	}

	return &a, nil
}
