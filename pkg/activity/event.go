package activity

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ScopeContext identifies the layer an event was produced for.
type ScopeContext struct {
	Name       string
	Label      string
	Priority   int
	Metadata   map[string]any
	SnapshotID string
}

// Change is one explicit position whose value differs between two explicit
// documents. Old is nil when the position was not explicit before, New is nil
// when it stopped being explicit.
type Change struct {
	Path string `json:"path"`
	Old  any    `json:"old,omitempty"`
	New  any    `json:"new,omitempty"`
}

// Event describes a change to an overlay document or a layer merged into a
// stack. Identity fields are strings so callers are not tied to a UUID type.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Scope          ScopeContext
	// ExplicitPaths lists the explicit positions of the document after the
	// change, sorted.
	ExplicitPaths []string
	Changes       []Change
	Metadata      map[string]any
	OccurredAt    time.Time
}

// Normalize trims identity fields, copies slices and maps, sorts and dedupes
// the explicit paths and stamps OccurredAt when missing.
func (e Event) Normalize() Event {
	out := e
	out.Verb = strings.TrimSpace(e.Verb)
	out.ActorID = strings.TrimSpace(e.ActorID)
	out.UserID = strings.TrimSpace(e.UserID)
	out.TenantID = strings.TrimSpace(e.TenantID)
	out.ObjectType = strings.TrimSpace(e.ObjectType)
	out.ObjectID = strings.TrimSpace(e.ObjectID)
	out.Channel = strings.TrimSpace(e.Channel)
	out.DefinitionCode = strings.TrimSpace(e.DefinitionCode)
	out.Recipients = cloneSlice(e.Recipients)
	out.Scope.Metadata = cloneMap(e.Scope.Metadata)
	out.Metadata = cloneMap(e.Metadata)
	out.Changes = cloneSlice(e.Changes)
	if e.ExplicitPaths != nil {
		paths := slices.Clone(e.ExplicitPaths)
		slices.Sort(paths)
		out.ExplicitPaths = slices.Compact(paths)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// Valid reports whether the event names a verb and an object.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.Verb) != "" &&
		strings.TrimSpace(e.ObjectType) != "" &&
		strings.TrimSpace(e.ObjectID) != ""
}

// Touches reports whether an explicit path or a change of the event lies at
// or under prefix. An empty prefix matches any event that has either.
func (e Event) Touches(prefix string) bool {
	for _, path := range e.ExplicitPaths {
		if under(path, prefix) {
			return true
		}
	}
	for _, change := range e.Changes {
		if under(change.Path, prefix) {
			return true
		}
	}
	return false
}

// ChangedPaths returns the paths of the changes in order.
func (e Event) ChangedPaths() []string {
	if len(e.Changes) == 0 {
		return nil
	}
	out := make([]string, len(e.Changes))
	for i, change := range e.Changes {
		out[i] = change.Path
	}
	return out
}

// Fields flattens the scope, explicitness and changes of the event together
// with its metadata into one map for sinks that store a single bag of data.
// Derived keys overwrite metadata keys of the same name.
func (e Event) Fields() map[string]any {
	out := cloneMap(e.Metadata)
	if out == nil {
		out = map[string]any{}
	}
	if e.Scope.Name != "" {
		out["scope_name"] = e.Scope.Name
		out["scope_priority"] = e.Scope.Priority
		if e.Scope.Label != "" {
			out["scope_label"] = e.Scope.Label
		}
		if len(e.Scope.Metadata) > 0 {
			out["scope_metadata"] = cloneMap(e.Scope.Metadata)
		}
	}
	if e.Scope.SnapshotID != "" {
		out["snapshot_id"] = e.Scope.SnapshotID
	}
	if e.ExplicitPaths != nil {
		out["explicit_paths"] = slices.Clone(e.ExplicitPaths)
		out["explicit_count"] = len(e.ExplicitPaths)
	}
	if len(e.Changes) > 0 {
		out["changes"] = cloneSlice(e.Changes)
		out["changed_paths"] = e.ChangedPaths()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func under(path, prefix string) bool {
	if prefix == "" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+".")
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}

func cloneSlice[S ~[]E, E any](src S) S {
	if len(src) == 0 {
		return nil
	}
	return slices.Clone(src)
}
