package mcp

import (
	"context"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/domain/template"
)

// EmptyParams is the input of tools that take no arguments.
type EmptyParams struct{}

type toolHandlers struct {
	svc Services
	now func() time.Time
}

func registerTools(server *sdkmcp.Server, svc Services, now func() time.Time) {
	h := &toolHandlers{svc: svc, now: now}

	// Templates
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_template",
		Description: "Create a task or routine that attempts can be logged against",
	}, h.createTemplate)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_templates",
		Description: "List the current user's tasks and routines",
	}, h.listTemplates)

	// Timer commands
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_attempt",
		Description: "Open a new attempt for a task or routine. Fails while another attempt for the same entity is in progress",
	}, h.createAttempt)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "start_attempt",
		Description: "Start the timer of an attempt",
	}, h.timerCommand(h.svc.Attempts.StartAttempt))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "pause_attempt",
		Description: "Pause a running attempt",
	}, h.timerCommand(h.svc.Attempts.PauseAttempt))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "resume_attempt",
		Description: "Resume a paused attempt",
	}, h.timerCommand(h.svc.Attempts.ResumeAttempt))
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "complete_attempt",
		Description: "Complete an attempt, optionally awarding points",
	}, h.completeAttempt)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "stop_attempt",
		Description: "Cancel an active attempt",
	}, h.stopAttempt)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "undo_or_retry_attempt",
		Description: "Annotate an attempt as undone or retried and open a fresh attempt for the same entity",
	}, h.undoOrRetry)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "manual_log",
		Description: "Record a completed attempt after the fact. duration_seconds must equal productive_seconds + paused_seconds",
	}, h.manualLog)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "hard_undo_attempt",
		Description: "Invalidate an attempt and permanently delete its events. Cannot be reversed",
	}, h.timerCommand(h.svc.Attempts.HardUndo))

	// Sync
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "apply_events",
		Description: "Ingest events recorded on another device. Unknown attempts are skipped; already stored event IDs are ignored",
	}, h.applyEvents)

	// Reads
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_active_attempt",
		Description: "Get the attempt currently in progress, if any",
	}, h.getActiveAttempt)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_attempt",
		Description: "Get an attempt with its event history in replay order",
	}, h.getAttempt)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_attempts_by_date",
		Description: "Get every attempt of a study day joined with its events and template",
	}, h.getAttemptsByDate)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_study_day",
		Description: "Get the current study day and how long ago it started",
	}, h.getStudyDay)
}

func (h *toolHandlers) createTemplate(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateTemplateParams) (*sdkmcp.CallToolResult, TemplateResponse, error) {
	tpl, err := h.svc.Templates.Create(ctx, template.CreateRequest{
		ID:       in.ID,
		UserID:   getUserID(ctx),
		Kind:     template.Kind(in.Kind),
		Title:    in.Title,
		Priority: in.Priority,
		Days:     in.Days,
	})
	if err != nil {
		return nil, TemplateResponse{}, toolError(err)
	}
	return nil, TemplateResponse{Template: *tpl}, nil
}

func (h *toolHandlers) listTemplates(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListTemplatesParams) (*sdkmcp.CallToolResult, TemplateListResponse, error) {
	opts := template.ListOptions{Limit: in.Limit}
	if in.Kind != "" {
		kind := template.Kind(in.Kind)
		opts.Kind = &kind
	}

	templates, err := h.svc.Templates.List(ctx, getUserID(ctx), opts)
	if err != nil {
		return nil, TemplateListResponse{}, toolError(err)
	}
	if templates == nil {
		templates = []template.Template{}
	}
	return nil, TemplateListResponse{Templates: templates}, nil
}

func (h *toolHandlers) createAttempt(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateAttemptParams) (*sdkmcp.CallToolResult, AttemptResponse, error) {
	return attemptResult(h.svc.Attempts.CreateAttempt(ctx, attempt.CreateRequest{
		EntityID: in.EntityID,
		UserID:   getUserID(ctx),
	}))
}

func (h *toolHandlers) timerCommand(cmd func(ctx context.Context, userID, id string) (*attempt.Attempt, error)) sdkmcp.ToolHandlerFor[AttemptIDParams, AttemptResponse] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in AttemptIDParams) (*sdkmcp.CallToolResult, AttemptResponse, error) {
		return attemptResult(cmd(ctx, getUserID(ctx), in.AttemptID))
	}
}

func (h *toolHandlers) completeAttempt(ctx context.Context, _ *sdkmcp.CallToolRequest, in CompleteAttemptParams) (*sdkmcp.CallToolResult, AttemptResponse, error) {
	return attemptResult(h.svc.Attempts.CompleteAttempt(ctx, getUserID(ctx), in.AttemptID, attempt.CompletePayload{
		PointsAwarded: in.PointsAwarded,
	}))
}

func (h *toolHandlers) stopAttempt(ctx context.Context, _ *sdkmcp.CallToolRequest, in StopAttemptParams) (*sdkmcp.CallToolResult, AttemptResponse, error) {
	return attemptResult(h.svc.Attempts.StopAttempt(ctx, getUserID(ctx), in.AttemptID, in.Reason))
}

func (h *toolHandlers) undoOrRetry(ctx context.Context, _ *sdkmcp.CallToolRequest, in UndoOrRetryParams) (*sdkmcp.CallToolResult, AttemptResponse, error) {
	return attemptResult(h.svc.Attempts.NormalUndoOrRetry(ctx, attempt.RetryRequest{
		FromAttemptID: in.FromAttemptID,
		UserID:        getUserID(ctx),
		Kind:          attempt.RetryKind(in.Kind),
		Reason:        in.Reason,
	}))
}

func (h *toolHandlers) manualLog(ctx context.Context, _ *sdkmcp.CallToolRequest, in ManualLogParams) (*sdkmcp.CallToolResult, AttemptResponse, error) {
	completedAt := h.now()
	if in.CompletedAt != "" {
		parsed, err := time.Parse(time.RFC3339, in.CompletedAt)
		if err != nil {
			return nil, AttemptResponse{}, &APIError{Code: "INVALID_INPUT", Message: "completed_at must be RFC 3339"}
		}
		completedAt = parsed
	}

	return attemptResult(h.svc.Attempts.ManualLog(ctx, attempt.ManualLogRequest{
		EntityID:           in.EntityID,
		UserID:             getUserID(ctx),
		Duration:           time.Duration(in.DurationSeconds) * time.Second,
		ProductiveDuration: time.Duration(in.ProductiveSeconds) * time.Second,
		PausedDuration:     time.Duration(in.PausedSeconds) * time.Second,
		Points:             in.Points,
		CompletedAt:        completedAt,
	}))
}

func (h *toolHandlers) applyEvents(ctx context.Context, _ *sdkmcp.CallToolRequest, in ApplyEventsParams) (*sdkmcp.CallToolResult, ApplyEventsResponse, error) {
	events := make([]attempt.Event, 0, len(in.Events))
	for _, e := range in.Events {
		events = append(events, attempt.Event{
			ID:         e.ID,
			AttemptID:  in.AttemptID,
			Type:       attempt.EventType(e.Type),
			Payload:    e.Payload,
			OccurredAt: e.OccurredAt,
		})
	}

	if err := h.svc.Attempts.ApplyEvents(ctx, getUserID(ctx), in.AttemptID, events); err != nil {
		return nil, ApplyEventsResponse{}, toolError(err)
	}
	return nil, ApplyEventsResponse{AttemptID: in.AttemptID, Received: len(events)}, nil
}

func (h *toolHandlers) getActiveAttempt(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, ActiveAttemptResponse, error) {
	a, err := h.svc.Attempts.GetActiveAttempt(ctx, getUserID(ctx))
	if err != nil {
		return nil, ActiveAttemptResponse{}, toolError(err)
	}
	return nil, ActiveAttemptResponse{Attempt: a}, nil
}

func (h *toolHandlers) getAttempt(ctx context.Context, _ *sdkmcp.CallToolRequest, in AttemptIDParams) (*sdkmcp.CallToolResult, AttemptDetailResponse, error) {
	userID := getUserID(ctx)
	a, err := h.svc.Attempts.GetAttempt(ctx, userID, in.AttemptID)
	if err != nil {
		return nil, AttemptDetailResponse{}, toolError(err)
	}
	events, err := h.svc.Attempts.ListEvents(ctx, userID, in.AttemptID)
	if err != nil {
		return nil, AttemptDetailResponse{}, toolError(err)
	}
	if events == nil {
		events = []attempt.Event{}
	}
	return nil, AttemptDetailResponse{Attempt: *a, Events: events}, nil
}

func (h *toolHandlers) getAttemptsByDate(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetAttemptsByDateParams) (*sdkmcp.CallToolResult, AttemptsByDateResponse, error) {
	date := in.Date
	if date == "" {
		date = h.svc.Days.Bucket(h.now())
	}
	start, end, err := h.svc.Days.Range(date)
	if err != nil {
		return nil, AttemptsByDateResponse{}, &APIError{Code: "INVALID_INPUT", Message: "date must be YYYY-MM-DD"}
	}

	attempts, err := h.svc.Attempts.GetHydratedAttemptsByDate(ctx, getUserID(ctx), date)
	if err != nil {
		return nil, AttemptsByDateResponse{}, toolError(err)
	}
	return nil, AttemptsByDateResponse{
		Date:     date,
		StartsAt: start.Format(time.RFC3339),
		EndsAt:   end.Format(time.RFC3339),
		Attempts: attempts,
	}, nil
}

func (h *toolHandlers) getStudyDay(_ context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, StudyDayResponse, error) {
	now := h.now()
	return nil, StudyDayResponse{
		Date:         h.svc.Days.Bucket(now),
		StartedAt:    h.svc.Days.Start(now).Format(time.RFC3339),
		ElapsedMilli: h.svc.Days.SinceStart(now).Milliseconds(),
	}, nil
}

func attemptResult(a *attempt.Attempt, err error) (*sdkmcp.CallToolResult, AttemptResponse, error) {
	if err != nil {
		return nil, AttemptResponse{}, toolError(err)
	}
	return nil, AttemptResponse{Attempt: *a}, nil
}
