package attempt

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for non-manual timestamps.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithObserver registers an observer for command outcomes.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// CreateRequest opens a new attempt for an entity.
type CreateRequest struct {
	EntityID string
	UserID   string
}

// CompletePayload carries the award for a completed attempt.
type CompletePayload struct {
	PointsAwarded int
}

// RetryRequest supersedes an attempt with a fresh one for the same entity.
type RetryRequest struct {
	FromAttemptID string
	UserID        string
	Kind          RetryKind
	Reason        string
}
