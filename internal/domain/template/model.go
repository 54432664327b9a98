package template

// Kind identifies the collection a template lives in.
type Kind string

const (
	KindTask    Kind = "task"
	KindRoutine Kind = "routine"
)

// Valid reports whether k is a known template kind.
func (k Kind) Valid() bool {
	return k == KindTask || k == KindRoutine
}

// Template is a task or routine that attempts are made against.
type Template struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Kind     Kind     `json:"kind"`
	Title    string   `json:"title"`
	Priority *int     `json:"priority,omitempty"`
	Days     []string `json:"days,omitempty"`
	// CreatedAt is Unix milliseconds.
	CreatedAt int64 `json:"created_at"`
}

// CreateRequest describes a new template.
type CreateRequest struct {
	ID       string
	UserID   string
	Kind     Kind
	Title    string
	Priority *int
	Days     []string
}

// ListOptions filters template listings.
type ListOptions struct {
	Kind  *Kind
	Limit int
}
