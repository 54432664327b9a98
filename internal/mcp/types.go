package mcp

import (
	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/domain/template"
)

type CreateTemplateParams struct {
	ID       string   `json:"id,omitempty" jsonschema:"template identifier, generated when omitted"`
	Kind     string   `json:"kind" jsonschema:"task or routine"`
	Title    string   `json:"title"`
	Priority *int     `json:"priority,omitempty"`
	Days     []string `json:"days,omitempty" jsonschema:"weekdays a routine is scheduled on"`
}

type ListTemplatesParams struct {
	Kind  string `json:"kind,omitempty" jsonschema:"task or routine; omit for both"`
	Limit int    `json:"limit,omitempty"`
}

type CreateAttemptParams struct {
	EntityID string `json:"entity_id" jsonschema:"ID of the task or routine being attempted"`
}

type AttemptIDParams struct {
	AttemptID string `json:"attempt_id"`
}

type CompleteAttemptParams struct {
	AttemptID     string `json:"attempt_id"`
	PointsAwarded int    `json:"points_awarded,omitempty"`
}

type StopAttemptParams struct {
	AttemptID string `json:"attempt_id"`
	Reason    string `json:"reason,omitempty"`
}

type UndoOrRetryParams struct {
	FromAttemptID string `json:"from_attempt_id"`
	Kind          string `json:"kind" jsonschema:"undo or retry"`
	Reason        string `json:"reason,omitempty"`
}

type ManualLogParams struct {
	EntityID          string `json:"entity_id"`
	DurationSeconds   int64  `json:"duration_seconds" jsonschema:"total wall time, equal to productive plus paused"`
	ProductiveSeconds int64  `json:"productive_seconds"`
	PausedSeconds     int64  `json:"paused_seconds,omitempty"`
	Points            int    `json:"points,omitempty"`
	CompletedAt       string `json:"completed_at,omitempty" jsonschema:"RFC 3339 completion time; defaults to now"`
}

type RemoteEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt int64           `json:"occurred_at" jsonschema:"Unix milliseconds"`
	Payload    attempt.Payload `json:"payload,omitempty"`
}

type ApplyEventsParams struct {
	AttemptID string        `json:"attempt_id"`
	Events    []RemoteEvent `json:"events"`
}

type GetAttemptsByDateParams struct {
	Date string `json:"date,omitempty" jsonschema:"study day as YYYY-MM-DD; defaults to the current study day"`
}

type TemplateResponse struct {
	Template template.Template `json:"template"`
}

type TemplateListResponse struct {
	Templates []template.Template `json:"templates"`
}

type AttemptResponse struct {
	Attempt attempt.Attempt `json:"attempt"`
}

type AttemptDetailResponse struct {
	Attempt attempt.Attempt `json:"attempt"`
	Events  []attempt.Event `json:"events"`
}

type ActiveAttemptResponse struct {
	Attempt *attempt.Attempt `json:"attempt"`
}

type ApplyEventsResponse struct {
	AttemptID string `json:"attempt_id"`
	Received  int    `json:"received"`
}

type AttemptsByDateResponse struct {
	Date     string                    `json:"date"`
	StartsAt string                    `json:"starts_at"`
	EndsAt   string                    `json:"ends_at"`
	Attempts []attempt.HydratedAttempt `json:"attempts"`
}

type StudyDayResponse struct {
	Date         string `json:"date"`
	StartedAt    string `json:"started_at"`
	ElapsedMilli int64  `json:"elapsed_ms"`
}
