package overlay

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Select evaluates a JSONPath expression against the full snapshot of the
// overlay, defaults included.
func (o *Overlay[T]) Select(expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("overlay: invalid jsonpath %q: %w", expr, err)
	}
	snapshot, err := o.Snapshot()
	if err != nil {
		return nil, err
	}
	return x.Get(snapshot), nil
}

// SelectExplicit evaluates a JSONPath expression against the explicit
// document only, so defaults never match.
func (o *Overlay[T]) SelectExplicit(expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("overlay: invalid jsonpath %q: %w", expr, err)
	}
	document, err := o.ExplicitDocument()
	if err != nil {
		return nil, err
	}
	return x.Get(document), nil
}
