package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lexicore/model"
)

// EventType names one event kind on the wire (spec §4.11).
type EventType string

const (
	EventConfig    EventType = "config"
	EventProgress  EventType = "progress"
	EventHeartbeat EventType = "heartbeat"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event is one wire-minimized event: fields equal to their defaults stay
// zero-valued and are tagged omitempty, so json.Marshal naturally drops
// them (spec §4.11: "fields equal to defaults ... are omitted").
type Event struct {
	Type             EventType      `json:"type"`
	Category         string         `json:"category,omitempty"`
	StageDefinitions map[string]int `json:"stage_definitions,omitempty"`
	Stage            string         `json:"stage,omitempty"`
	Progress         int            `json:"progress,omitempty"`
	Message          string         `json:"message,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
	IsComplete       bool           `json:"is_complete,omitempty"`
	Error            string         `json:"error,omitempty"`
	Result           any            `json:"result,omitempty"`
}

// StreamOptions configures CreateStreamingResponse (spec §4.11).
type StreamOptions struct {
	IncludeStageDefinitions bool
	IncludeCompletionData   bool
	HeartbeatInterval       time.Duration
	StreamTimeout           time.Duration
}

const (
	defaultHeartbeatInterval = 15 * time.Second
	defaultStreamTimeout     = 5 * time.Minute
	outputQueueSize          = 64
)

type processResult struct {
	value any
	err   error
}

// CreateStreamingResponse opens a subscription on tracker, runs process
// cooperatively, and returns a channel of Events in the order spec §4.11
// prescribes: an optional config event, progress events as the tracker
// updates, heartbeats while idle, then exactly one of complete/error,
// after which the channel is closed. If total elapsed exceeds
// opts.StreamTimeout, process's context is cancelled and a timeout error
// event is emitted before close.
func CreateStreamingResponse(ctx context.Context, tracker *StateTracker, process func(ctx context.Context) (any, error), opts StreamOptions, log *zap.Logger) <-chan Event {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = defaultStreamTimeout
	}

	out := make(chan Event, outputQueueSize)
	sub, unsubscribe := tracker.Subscribe()

	go func() {
		defer close(out)
		defer unsubscribe()

		procCtx, cancel := context.WithTimeout(ctx, opts.StreamTimeout)
		defer cancel()

		if opts.IncludeStageDefinitions {
			out <- Event{Type: EventConfig, Category: tracker.Category(), StageDefinitions: stageDefinitionsAsStrings(tracker.stages)}
		}

		resultCh := make(chan processResult, 1)
		go func() {
			v, err := process(procCtx)
			resultCh <- processResult{value: v, err: err}
		}()

		heartbeat := time.NewTicker(opts.HeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case state, ok := <-sub:
				if !ok {
					return
				}
				heartbeat.Reset(opts.HeartbeatInterval)
				out <- progressEvent(state)

			case <-heartbeat.C:
				select {
				case out <- Event{Type: EventHeartbeat}:
				default:
					// Output queue saturated: drop the heartbeat, never a
					// progress/complete/error event (spec §4.11 boundary
					// behavior).
				}

			case res := <-resultCh:
				// Flush any progress events already queued ahead of the
				// result (they happened-before resultCh's send in
				// process's goroutine) so progress always precedes the
				// terminal event on the wire (spec §4.11 ordering).
				drainPending(sub, out)
				if res.err != nil {
					out <- Event{Type: EventError, Error: res.err.Error(), IsComplete: true}
					return
				}
				ev := Event{Type: EventComplete, IsComplete: true}
				if opts.IncludeCompletionData {
					ev.Result = res.value
				}
				out <- ev
				return

			case <-procCtx.Done():
				log.Warn("pipeline stream exceeded its deadline, cancelling in-flight process")
				out <- Event{Type: EventError, Error: "stream timeout: process did not complete in time", IsComplete: true}
				return
			}
		}
	}()

	return out
}

func drainPending(sub <-chan model.PipelineState, out chan<- Event) {
	for {
		select {
		case state, ok := <-sub:
			if !ok {
				return
			}
			out <- progressEvent(state)
		default:
			return
		}
	}
}

func progressEvent(state model.PipelineState) Event {
	ev := Event{
		Type:       EventProgress,
		Stage:      string(state.Stage),
		Progress:   state.Progress,
		Details:    state.Details,
		IsComplete: state.IsComplete,
		Error:      state.Error,
	}
	if state.Message != string(state.Stage) {
		ev.Message = state.Message
	}
	return ev
}

func stageDefinitionsAsStrings(stages map[model.PipelineStage]int) map[string]int {
	out := make(map[string]int, len(stages))
	for k, v := range stages {
		out[string(k)] = v
	}
	return out
}
