package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/domain/template"
	"github.com/rpggio/attemptlog/internal/repository"
)

var (
	_ template.Repository    = (*TemplateRepository)(nil)
	_ attempt.TemplateLookup = (*TemplateRepository)(nil)
)

// TemplateRepository serves the tasks and routines collections
type TemplateRepository struct {
	db *DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a task or routine depending on tpl.Kind
func (r *TemplateRepository) Create(ctx context.Context, tpl *template.Template) error {
	var (
		query string
		args  []any
	)
	switch tpl.Kind {
	case template.KindTask:
		query = `INSERT INTO tasks (id, user_id, title, priority, created_at) VALUES (?, ?, ?, ?, ?)`
		args = []any{tpl.ID, tpl.UserID, tpl.Title, tpl.Priority, tpl.CreatedAt}
	case template.KindRoutine:
		days, err := json.Marshal(nonNilDays(tpl.Days))
		if err != nil {
			return fmt.Errorf("failed to encode days: %w", err)
		}
		query = `INSERT INTO routines (id, user_id, title, priority, days, created_at) VALUES (?, ?, ?, ?, ?, ?)`
		args = []any{tpl.ID, tpl.UserID, tpl.Title, tpl.Priority, string(days), tpl.CreatedAt}
	default:
		return repository.ErrInvalidInput
	}

	// IDs are shared across both collections and all users.
	taken, err := r.idTaken(ctx, tpl.ID)
	if err != nil {
		return err
	}
	if taken {
		return repository.ErrConflict
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// Get retrieves a user's template from whichever collection holds it
func (r *TemplateRepository) Get(ctx context.Context, userID, id string) (*template.Template, error) {
	templates, err := r.GetTemplates(ctx, userID, []string{id})
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, repository.ErrNotFound
	}
	return &templates[0], nil
}

// List returns a user's templates, tasks first
func (r *TemplateRepository) List(ctx context.Context, userID string, opts template.ListOptions) ([]template.Template, error) {
	query := `
		SELECT id, user_id, kind, title, priority, days, created_at FROM (
			SELECT id, user_id, 'task' AS kind, title, priority, '[]' AS days, created_at FROM tasks
			UNION ALL
			SELECT id, user_id, 'routine' AS kind, title, priority, days, created_at FROM routines
		)
		WHERE user_id = ?
	`
	args := []any{userID}

	if opts.Kind != nil {
		query += " AND kind = ?"
		args = append(args, *opts.Kind)
	}

	query += " ORDER BY kind DESC, created_at ASC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return r.queryTemplates(ctx, query, args...)
}

// ResolveEntityType checks the user's tasks first, then routines, for id.
func (r *TemplateRepository) ResolveEntityType(ctx context.Context, userID, id string) (template.Kind, error) {
	lookups := []struct {
		kind  template.Kind
		query string
	}{
		{template.KindTask, `SELECT 1 FROM tasks WHERE id = ? AND user_id = ?`},
		{template.KindRoutine, `SELECT 1 FROM routines WHERE id = ? AND user_id = ?`},
	}

	for _, lookup := range lookups {
		var found int
		err := r.db.QueryRowContext(ctx, lookup.query, id, userID).Scan(&found)
		if err == nil {
			return lookup.kind, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("failed to search %ss: %w", lookup.kind, err)
		}
	}

	return "", repository.ErrNotFound
}

// GetTemplates returns the user's templates among ids, from either collection
func (r *TemplateRepository) GetTemplates(ctx context.Context, userID string, ids []string) ([]template.Template, error) {
	if len(ids) == 0 {
		return []template.Template{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `
		SELECT id, user_id, 'task', title, priority, '[]', created_at
		FROM tasks WHERE user_id = ? AND id IN (` + placeholders + `)
		UNION ALL
		SELECT id, user_id, 'routine', title, priority, days, created_at
		FROM routines WHERE user_id = ? AND id IN (` + placeholders + `)
	`

	args := make([]any, 0, len(ids)*2+2)
	for range 2 {
		args = append(args, userID)
		for _, id := range ids {
			args = append(args, id)
		}
	}

	return r.queryTemplates(ctx, query, args...)
}

func (r *TemplateRepository) queryTemplates(ctx context.Context, query string, args ...any) ([]template.Template, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []template.Template{}
	for rows.Next() {
		var (
			tpl      template.Template
			priority sql.NullInt64
			days     string
		)
		if err := rows.Scan(
			&tpl.ID,
			&tpl.UserID,
			&tpl.Kind,
			&tpl.Title,
			&priority,
			&days,
			&tpl.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if priority.Valid {
			p := int(priority.Int64)
			tpl.Priority = &p
		}
		if days != "" && days != "[]" {
			if err := json.Unmarshal([]byte(days), &tpl.Days); err != nil {
				return nil, fmt.Errorf("failed to decode days: %w", err)
			}
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

func (r *TemplateRepository) idTaken(ctx context.Context, id string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM tasks WHERE id = ?)
		    OR EXISTS (SELECT 1 FROM routines WHERE id = ?)
	`, id, id).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check template id: %w", err)
	}
	return taken, nil
}

func nonNilDays(days []string) []string {
	if days == nil {
		return []string{}
	}
	return days
}
