package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/repository"
)

const eventColumns = `id, attempt_id, type, payload, source, occurred_at, created_at`

// appendEvents inserts events, skipping any whose ID is already stored.
// It returns the number of rows actually inserted.
func appendEvents(ctx context.Context, q queryer, events []attempt.Event) (int, error) {
	query := `
		INSERT INTO attempt_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	inserted := 0
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode payload: %w", err)
		}

		result, err := q.ExecContext(ctx, query,
			ev.ID,
			ev.AttemptID,
			ev.Type,
			string(payload),
			ev.Source,
			ev.OccurredAt,
			ev.CreatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return inserted, repository.ErrForeignKeyViolation
			}
			return inserted, fmt.Errorf("failed to append event: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(n)
	}

	return inserted, nil
}

func listEvents(ctx context.Context, q queryer, attemptID string) ([]attempt.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM attempt_events
		WHERE attempt_id = ?
		ORDER BY occurred_at ASC, created_at ASC, id ASC
	`
	return queryEvents(ctx, q, query, attemptID)
}

func listEventsForAttempts(ctx context.Context, q queryer, attemptIDs []string) ([]attempt.Event, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(attemptIDs)), ",")
	query := `
		SELECT ` + eventColumns + `
		FROM attempt_events
		WHERE attempt_id IN (` + placeholders + `)
		ORDER BY attempt_id, occurred_at ASC, created_at ASC, id ASC
	`

	args := make([]any, len(attemptIDs))
	for i, id := range attemptIDs {
		args[i] = id
	}
	return queryEvents(ctx, q, query, args...)
}

func deleteEvents(ctx context.Context, q queryer, attemptID string) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM attempt_events WHERE attempt_id = ?`, attemptID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func queryEvents(ctx context.Context, q queryer, query string, args ...any) ([]attempt.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []attempt.Event
	for rows.Next() {
		var (
			ev      attempt.Event
			payload string
		)
		if err := rows.Scan(
			&ev.ID,
			&ev.AttemptID,
			&ev.Type,
			&payload,
			&ev.Source,
			&ev.OccurredAt,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload of event %s: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
