package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-overlay/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook records overlay events on a go-users ActivitySink. The record data is
// Event.Fields, so sinks can index layer applications by scope, snapshot and
// the explicit paths they set.
type Hook struct {
	Sink usertypes.ActivitySink
	// Channel is used when the event carries none.
	Channel string
	// Filter drops events it rejects. Nil accepts everything.
	Filter activity.Predicate
}

func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Valid() {
		return nil
	}
	event = event.Normalize()
	if h.Filter != nil && !h.Filter(event) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, h.record(event))
}

func (h Hook) record(event activity.Event) usertypes.ActivityRecord {
	channel := event.Channel
	if channel == "" {
		channel = strings.TrimSpace(h.Channel)
	}
	data := event.Fields()
	if event.DefinitionCode != "" || len(event.Recipients) > 0 {
		if data == nil {
			data = map[string]any{}
		}
		if event.DefinitionCode != "" {
			data["definition_code"] = event.DefinitionCode
		}
		if len(event.Recipients) > 0 {
			data["recipients"] = append([]string{}, event.Recipients...)
		}
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
