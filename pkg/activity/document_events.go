package activity

import (
	"strings"
	"time"
)

// Object types reported by the builders.
const (
	DocumentObjectType = "overlay"
	LayerObjectType    = "overlay.layer"
)

// Verbs reported by the builders.
const (
	VerbDocumentCreated = "overlay.created"
	VerbDocumentUpdated = "overlay.updated"
	VerbDocumentDeleted = "overlay.deleted"
	VerbLayerApplied    = "overlay.layer.applied"
)

// DocumentEventInput carries what a store or a stack knows about one
// document when it reports a change.
type DocumentEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	// ExplicitPaths are the explicit positions of the document afterwards.
	ExplicitPaths []string
	// Changes are usually DiffDocuments of the explicit documents before and
	// after.
	Changes    []Change
	Scope      ScopeContext
	OccurredAt time.Time
}

// BuildDocumentCreatedEvent reports a document stored for the first time.
func BuildDocumentCreatedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent(VerbDocumentCreated, DocumentObjectType, input)
}

// BuildDocumentUpdatedEvent reports a stored document that changed.
func BuildDocumentUpdatedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent(VerbDocumentUpdated, DocumentObjectType, input)
}

// BuildDocumentDeletedEvent reports a removed document. Every previously
// explicit path is expected among the changes with a nil New.
func BuildDocumentDeletedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent(VerbDocumentDeleted, DocumentObjectType, input)
}

// BuildLayerAppliedEvent reports a layer merged into a stack. The explicit
// paths are the positions the layer contributed.
func BuildLayerAppliedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent(VerbLayerApplied, LayerObjectType, input)
}

func buildDocumentEvent(verb, objectType string, input DocumentEventInput) Event {
	event := Event{
		Verb:           verb,
		ActorID:        input.ActorID,
		UserID:         input.UserID,
		TenantID:       input.TenantID,
		ObjectType:     objectType,
		ObjectID:       firstNonEmpty(input.ObjectID, input.Scope.SnapshotID, objectType),
		Channel:        input.Channel,
		DefinitionCode: input.DefinitionCode,
		Recipients:     input.Recipients,
		Scope:          input.Scope,
		ExplicitPaths:  input.ExplicitPaths,
		Changes:        input.Changes,
		Metadata:       input.Metadata,
		OccurredAt:     input.OccurredAt,
	}
	normalized := event.Normalize()
	normalized.OccurredAt = input.OccurredAt
	return normalized
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
