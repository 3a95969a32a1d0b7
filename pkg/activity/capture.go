package activity

import (
	"context"
	"slices"
	"sync"
)

// CaptureHook keeps every event it receives. Tests and examples use it to
// inspect what a merge or a mutation reported.
type CaptureHook struct {
	// Err is returned from every Notify call.
	Err error

	mu     sync.Mutex
	events []Event
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event.Normalize())
	return h.Err
}

// Events returns a copy of the recorded events.
func (h *CaptureHook) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneSlice(h.events)
}

// Len returns the number of recorded events.
func (h *CaptureHook) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// Verbs returns the verbs of the recorded events in order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, event := range h.events {
		out[i] = event.Verb
	}
	return out
}

// ExplicitPaths returns the explicit paths of every recorded event keyed by
// scope name. Events without a scope are keyed by object ID.
func (h *CaptureHook) ExplicitPaths() map[string][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string][]string, len(h.events))
	for _, event := range h.events {
		key := event.Scope.Name
		if key == "" {
			key = event.ObjectID
		}
		out[key] = slices.Clone(event.ExplicitPaths)
	}
	return out
}

// Reset drops the recorded events.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}
