package template

import "context"

// Repository provides persistence for tasks and routines.
type Repository interface {
	Create(ctx context.Context, tpl *Template) error
	Get(ctx context.Context, userID, id string) (*Template, error)
	List(ctx context.Context, userID string, opts ListOptions) ([]Template, error)
}
