package attempt

import "sort"

// State is the derived portion of an attempt produced by Reduce.
type State struct {
	Status         Status
	Duration       int64
	PausedDuration int64
	StartTime      *int64
	EndTime        *int64
	PointsEarned   int
}

// Reduce folds an attempt's events into its derived state. It does not modify
// events and returns the same State for any permutation of the same input.
//
// Time only accumulates once the attempt has started: each gap between
// consecutive events counts towards Duration while running and towards
// PausedDuration while paused. A terminal event freezes both counters.
func Reduce(events []Event) State {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	SortEvents(sorted)

	state := State{Status: StatusNotStarted}
	var (
		started bool
		paused  bool
		frozen  bool
		last    int64
	)

	for _, ev := range sorted {
		if started && !frozen {
			delta := ev.OccurredAt - last
			if paused {
				state.PausedDuration += delta
			} else {
				state.Duration += delta
			}
		}

		switch ev.Type {
		case EventStart:
			if frozen {
				break
			}
			if state.StartTime == nil {
				state.StartTime = int64Ptr(ev.OccurredAt)
			}
			started = true
			paused = false
		case EventPause:
			paused = true
		case EventResume:
			paused = false
		case EventComplete:
			if state.Status.Terminal() {
				break
			}
			state.Status = StatusCompleted
			state.EndTime = int64Ptr(ev.OccurredAt)
			state.PointsEarned += ev.Payload.PointsAwarded
			frozen = true
		case EventCancel, EventCancelDuplicate:
			if state.Status.Terminal() {
				break
			}
			state.Status = StatusCancelled
			state.EndTime = int64Ptr(ev.OccurredAt)
			frozen = true
		case EventHardUndo:
			if state.Status == StatusCancelled || state.Status == StatusInvalidated {
				break
			}
			state.Status = StatusInvalidated
			frozen = true
		case EventPointsAwarded:
			state.PointsEarned += ev.Payload.Points
		}

		last = ev.OccurredAt
	}

	return state
}

// SortEvents orders events in replay order: (OccurredAt, CreatedAt, ID).
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.OccurredAt != b.OccurredAt {
			return a.OccurredAt < b.OccurredAt
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}

func int64Ptr(v int64) *int64 {
	return &v
}
