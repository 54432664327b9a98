package mocks

import (
	"context"
	"time"

	"github.com/rpggio/attemptlog/internal/domain/template"
	"github.com/stretchr/testify/mock"
)

// TemplateRepository is a mock for template.Repository.
type TemplateRepository struct {
	mock.Mock
}

func (m *TemplateRepository) Create(ctx context.Context, tpl *template.Template) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}

func (m *TemplateRepository) Get(ctx context.Context, userID, id string) (*template.Template, error) {
	args := m.Called(ctx, userID, id)
	if tpl, ok := args.Get(0).(*template.Template); ok {
		return tpl, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TemplateRepository) List(ctx context.Context, userID string, opts template.ListOptions) ([]template.Template, error) {
	args := m.Called(ctx, userID, opts)
	if list, ok := args.Get(0).([]template.Template); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// TemplateLookup is a mock for attempt.TemplateLookup.
type TemplateLookup struct {
	mock.Mock
}

func (m *TemplateLookup) ResolveEntityType(ctx context.Context, userID, id string) (template.Kind, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(template.Kind), args.Error(1)
}

func (m *TemplateLookup) GetTemplates(ctx context.Context, userID string, ids []string) ([]template.Template, error) {
	args := m.Called(ctx, userID, ids)
	if list, ok := args.Get(0).([]template.Template); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Observer is a mock for attempt.Observer.
type Observer struct {
	mock.Mock
}

func (m *Observer) CommandCompleted(command string, err error) {
	m.Called(command, err)
}

func (m *Observer) RemoteEventsSkipped(attemptID string, count int) {
	m.Called(attemptID, count)
}

func (m *Observer) HydrationObserved(date string, attempts int, elapsed time.Duration) {
	m.Called(date, attempts, elapsed)
}
