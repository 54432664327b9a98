package template

import "errors"

var (
	// ErrTemplateNotFound indicates the template doesn't exist in either collection.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrInvalidInput indicates invalid template input.
	ErrInvalidInput = errors.New("invalid template input")
	// ErrDuplicateID indicates a template with the same ID already exists.
	ErrDuplicateID = errors.New("template id already exists")
)
