package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `attemptlog records work on tasks and routines as attempts, each backed by an append-only event log.

Core concepts:
- Template: a task or routine. Attempts are always made against one.
- Attempt: one try at a template. Its status, durations and points are derived by replaying its events.
- Active attempt: at most one in-progress attempt exists per (user, template).
- Study day: attempts are bucketed by day, and a day starts at 04:00 local time by default.

Default workflow:
1) list_templates, or create_template if the work is new.
2) create_attempt(entity_id), then start_attempt. Use pause_attempt / resume_attempt as needed.
3) complete_attempt (optionally with points_awarded) or stop_attempt to cancel.
4) To start over, use undo_or_retry_attempt. It keeps the history and opens a fresh attempt.
5) Work done away from the timer: manual_log with duration_seconds = productive_seconds + paused_seconds.
6) Review a day with get_attempts_by_date.

hard_undo_attempt deletes an attempt's events for good. Only use it when the user explicitly asks.

Docs:
- attemptlog://docs/index
- attemptlog://docs/lifecycle
- attemptlog://docs/sync
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "attemptlog://docs/index",
		Name:        "docs_index",
		Title:       "attemptlog docs index",
		Description: "Entry point for agent-facing docs.",
		Content: `# attemptlog: Agent Docs Index

- **lifecycle**: statuses, events and how durations are computed.
- **sync**: replaying events recorded on another device.

Read lifecycle before using undo_or_retry_attempt or hard_undo_attempt.
`,
	},
	{
		URI:         "attemptlog://docs/lifecycle",
		Name:        "docs_lifecycle",
		Title:       "Attempt lifecycle",
		Description: "Statuses, event types and duration accounting.",
		Content: `# Attempt lifecycle

## Statuses

| Status | Meaning |
|---|---|
| NOT_STARTED | Open. Running or paused state is derived from the events. |
| COMPLETED | Finished. Points are final unless POINTS_AWARDED events follow. |
| CANCELLED | Stopped, or superseded by a newer attempt (CANCEL_DUPLICATE). |
| INVALIDATED | Hard undone. The events are gone. |

Terminal statuses never change, except COMPLETED becoming INVALIDATED through hard undo.

## Durations

Events are replayed in (occurred_at, created_at) order. Each gap between
consecutive events after the first START counts towards ` + "`duration`" + ` while
running and ` + "`paused_duration`" + ` while paused. A terminal event freezes both.

For a completed attempt: duration + paused_duration = end_time - start_time.

## Undo and retry

undo_or_retry_attempt appends UNDO_NORMAL or RETRY to the old attempt and
opens a new one with the next ordinal. The old attempt's status is left as is,
except that an attempt still holding the active slot is cancelled as a duplicate.
`,
	},
	{
		URI:         "attemptlog://docs/sync",
		Name:        "docs_sync",
		Title:       "Applying remote events",
		Description: "How apply_events treats unknown attempts and repeated events.",
		Content: `# Applying remote events

apply_events(attempt_id, events) stores events produced elsewhere and replays
the attempt.

- Events whose ID is already stored are ignored, so retries are safe.
- If the attempt does not exist locally the call succeeds without changes and
  a warning is logged. Send the events again once the attempt has synced.
- Timestamps are Unix milliseconds.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
