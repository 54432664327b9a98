package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/attemptlog/internal/repository"
)

// Service handles template operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new template service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// Create creates a new task or routine.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Template, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.UserID) == "" || !req.Kind.Valid() {
		return nil, ErrInvalidInput
	}

	id := req.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	tpl := &Template{
		ID:        id,
		UserID:    req.UserID,
		Kind:      req.Kind,
		Title:     strings.TrimSpace(req.Title),
		Priority:  req.Priority,
		Days:      req.Days,
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := s.repo.Create(ctx, tpl); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("creating template: %w", err)
	}

	s.logger.Debug("template created", "template_id", tpl.ID, "kind", tpl.Kind)
	return tpl, nil
}

// Get fetches one of the user's templates from whichever collection holds it.
func (s *Service) Get(ctx context.Context, userID, id string) (*Template, error) {
	tpl, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("getting template: %w", err)
	}
	return tpl, nil
}

// List returns a user's templates.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Template, error) {
	if opts.Kind != nil && !opts.Kind.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, userID, opts)
}
