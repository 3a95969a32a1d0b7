package overlay

import "github.com/goliatone/go-overlay/pkg/activity"

// WithActivityHooks attaches activity hooks to the overlay configuration.
// Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// ActivityHooks returns a copy of the configured activity hooks.
func (o *Overlay[T]) ActivityHooks() activity.Hooks {
	if o == nil {
		return nil
	}
	return o.cfg.activityHooks.Compact()
}

// layerReporter builds one layer-applied event per merged layer. Each event
// carries the explicit paths the layer contributed and the changes it made to
// the explicit document of the merged tree.
type layerReporter struct {
	objectID string
	previous map[string]any
}

func newLayerReporter(objectID string, root Node) *layerReporter {
	previous, _ := explicitDocument(root)
	return &layerReporter{objectID: objectID, previous: previous}
}

func (r *layerReporter) applied(source Source, layer, merged Node) (activity.Event, error) {
	current, err := explicitDocument(merged)
	if err != nil {
		return activity.Event{}, err
	}
	paths := explicitPaths(layer)
	if paths == nil {
		paths = []string{}
	}
	event := activity.BuildLayerAppliedEvent(activity.DocumentEventInput{
		ObjectID:      r.objectID,
		Scope:         scopeContext(source.Scope, source.SnapshotID),
		ExplicitPaths: paths,
		Changes:       activity.DiffDocuments(r.previous, current),
	})
	r.previous = current
	return event, nil
}

func scopeContext(scope Scope, snapshotID string) activity.ScopeContext {
	return activity.ScopeContext{
		Name:       scope.Name,
		Label:      scope.Label,
		Priority:   scope.Priority,
		Metadata:   copyMetadata(scope.Metadata),
		SnapshotID: snapshotID,
	}
}

func explicitDocument(root Node) (map[string]any, error) {
	data, err := Encode(root)
	if err != nil {
		return nil, err
	}
	return genericDocument(data)
}
