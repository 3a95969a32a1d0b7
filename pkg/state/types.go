package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	overlay "github.com/goliatone/go-overlay"
	"github.com/goliatone/go-overlay/pkg/activity"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted document for one overlay domain.
type Ref struct {
	Domain string
	Scope  overlay.Scope
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves the explicit document of a single scope reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (doc *overlay.Overlay[T], meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, doc *overlay.Overlay[T], meta Meta) (Meta, error)
}

// Resolver orchestrates scoped loads and merges them into a single overlay.
type Resolver[T any] struct {
	Store Store[T]
	// Hooks receive layer and document events when set.
	Hooks activity.Hooks
	// Options are forwarded to the merged and mutated overlays.
	Options []overlay.Option
}

// Mutator edits a scope document in place. Only positions it marks explicit
// are persisted.
type Mutator[T any] func(*overlay.Overlay[T]) error

func (r Ref) Identifier() (string, error) {
	switch r.Scope.Name {
	case "system":
		return fmt.Sprintf("system/%s", r.Domain), nil
	case "tenant", "org", "team", "user":
		metadataKey := r.Scope.Name + "_id"
		id, ok := r.Scope.Metadata[metadataKey]
		if !ok {
			return "", fmt.Errorf("missing metadata key %q for scope %q", metadataKey, r.Scope.Name)
		}
		idString, ok := id.(string)
		if !ok || idString == "" {
			return "", fmt.Errorf("missing metadata key %q for scope %q", metadataKey, r.Scope.Name)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope.Name, idString, r.Domain), nil
	default:
		return "", fmt.Errorf("unsupported scope name %q", r.Scope.Name)
	}
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
