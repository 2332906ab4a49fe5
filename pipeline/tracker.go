// Package pipeline implements the progress state tracker and streaming
// response from spec §4.11: a StateTracker broadcasting stage transitions
// to bounded per-subscription queues, and a Streamer that turns those
// transitions into an ordered event stream with heartbeats, timeouts, and
// cooperative cancellation. Grounded on teacher's datastore.go
// channel+select+ctx.Done() idiom used for its Iterator/Keys/Merge
// streaming operations, generalized from "stream key/value pairs" to
// "stream pipeline progress events."
package pipeline

import (
	"sync"

	"lexicore/model"
)

// defaultQueueSize bounds each subscriber's event queue (spec §4.11,
// §9 "per-subscription queues are bounded").
const defaultQueueSize = 64

// StateTracker carries a category label and the current PipelineState,
// broadcasting every state change to all active subscribers.
type StateTracker struct {
	category string
	stages   map[model.PipelineStage]int

	mu     sync.Mutex
	state  model.PipelineState
	subs   map[int]chan model.PipelineState
	nextID int
}

// NewStateTracker builds a tracker for category, with stages mapping each
// named stage to its canonical progress percentage.
func NewStateTracker(category string, stages map[model.PipelineStage]int) *StateTracker {
	return &StateTracker{category: category, stages: stages, subs: make(map[int]chan model.PipelineState)}
}

// Category returns the tracker's category label.
func (t *StateTracker) Category() string { return t.category }

// Subscribe returns a bounded FIFO queue receiving every subsequent state
// change, and an unsubscribe function that releases it.
func (t *StateTracker) Subscribe() (<-chan model.PipelineState, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	ch := make(chan model.PipelineState, defaultQueueSize)
	t.subs[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
}

// UpdateStage sets the current stage and looks up its canonical progress
// percentage from the registered stage->progress mapping. An empty message
// defaults to the stage name.
func (t *StateTracker) UpdateStage(stage model.PipelineStage, message string, details map[string]any) {
	if message == "" {
		message = string(stage)
	}
	t.broadcast(model.PipelineState{Stage: stage, Progress: t.stages[stage], Message: message, Details: details})
}

// UpdateComplete marks the tracker complete at 100% progress.
func (t *StateTracker) UpdateComplete(message string) {
	t.broadcast(model.PipelineState{Stage: model.StageComplete, Progress: 100, Message: message, IsComplete: true})
}

// UpdateError marks the tracker complete with an error, preserving the
// progress reached so far.
func (t *StateTracker) UpdateError(message string) {
	t.mu.Lock()
	progress := t.state.Progress
	t.mu.Unlock()
	t.broadcast(model.PipelineState{Stage: model.StageError, Progress: progress, Error: message, IsComplete: true})
}

// Reset clears the tracker's state and drains every subscriber's queue.
func (t *StateTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = model.PipelineState{}
	for _, ch := range t.subs {
		drain(ch)
	}
}

func drain(ch chan model.PipelineState) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// Current returns the tracker's current state snapshot.
func (t *StateTracker) Current() model.PipelineState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *StateTracker) broadcast(state model.PipelineState) {
	t.mu.Lock()
	t.state = state
	subs := make([]chan model.PipelineState, 0, len(t.subs))
	for _, ch := range t.subs {
		subs = append(subs, ch)
	}
	t.mu.Unlock()

	for _, ch := range subs {
		ch <- state // progress/complete/error are never dropped (spec §4.11)
	}
}
