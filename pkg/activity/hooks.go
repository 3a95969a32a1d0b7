package activity

import (
	"context"
	"errors"
)

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans an event out to several hooks.
type Hooks []ActivityHook

// Enabled reports whether there is at least one hook.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Compact returns a copy without nil entries, or nil when nothing is left.
func (h Hooks) Compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

// Notify normalizes event and forwards it to every hook. Invalid events are
// dropped. Errors from individual hooks are joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 || !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	normalized := event.Normalize()

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Predicate selects events.
type Predicate func(Event) bool

// Filter wraps hook so it only sees events pred accepts. A nil pred accepts
// everything.
func Filter(hook ActivityHook, pred Predicate) ActivityHook {
	if pred == nil {
		return hook
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if hook == nil || !pred(event) {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// LayerEvents accepts layer applications.
func LayerEvents(event Event) bool {
	return event.ObjectType == LayerObjectType
}

// DocumentEvents accepts stored document lifecycle events.
func DocumentEvents(event Event) bool {
	return event.ObjectType == DocumentObjectType
}

// Touching accepts events whose explicit paths or changes fall under any of
// prefixes.
func Touching(prefixes ...string) Predicate {
	return func(event Event) bool {
		for _, prefix := range prefixes {
			if event.Touches(prefix) {
				return true
			}
		}
		return false
	}
}

// Changed accepts events that carry at least one change.
func Changed(event Event) bool {
	return len(event.Changes) > 0
}
