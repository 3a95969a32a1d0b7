package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	overlay "github.com/goliatone/go-overlay"
	"github.com/tidwall/jsonc"
)

// Context carries identifiers tied to a stored payload.
type Context struct {
	Slug  string
	Scope string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated overlay after
// decoding. Changes made through the overlay keep their explicitness.
type PostHook[T any] func(Context, *overlay.Overlay[T]) error

// CustomDecoder replaces the default overlay decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (*overlay.Overlay[T], error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts generic payloads into overlays of T so callers can tell
// supplied values from defaults.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	options   []overlay.Option
	defaults  *T
	useNumber bool
	custom    CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber keeps numbers held in dynamic positions as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.useNumber = true
		d.options = append(d.options, overlay.WithUseNumber())
	}
}

// WithDisallowUnknownFields rejects keys that match no struct field.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.options = append(d.options, overlay.WithDisallowUnknownFields())
	}
}

// WithOverlayOptions forwards opts to the overlay constructors.
func WithOverlayOptions[T any](opts ...overlay.Option) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.options = append(d.options, opts...)
	}
}

// WithDefaults decodes on top of an implicit overlay of defaults instead of
// the default value of T.
func WithDefaults[T any](defaults T) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.defaults = &defaults
	}
}

// WithCustomDecoder replaces the default decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeBytes parses a JSONC document and decodes it like Decode.
func (d *Decoder[T]) DecodeBytes(ctx Context, data []byte) (*overlay.Overlay[T], error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	if d.useNumber {
		decoder.UseNumber()
	}
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("hydrate: parse document for slug %q: %w", ctx.Slug, err)
	}
	return d.Decode(ctx, payload)
}

// Decode applies payload onto the defaults, running the configured hooks.
// Only keys present in the payload end up explicit.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (*overlay.Overlay[T], error) {
	if payload == nil {
		return nil, fmt.Errorf("hydrate: payload is nil for slug %q", ctx.Slug)
	}

	current, err := d.clonePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("hydrate: clone payload for slug %q: %w", ctx.Slug, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("hydrate: pre-hook for slug %q failed: %w", ctx.Slug, err)
		}
		if next != nil {
			current = next
		}
	}

	var result *overlay.Overlay[T]
	if d.custom != nil {
		result, err = d.custom(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("hydrate: custom decoder for slug %q failed: %w", ctx.Slug, err)
		}
		if result == nil {
			return nil, fmt.Errorf("hydrate: custom decoder for slug %q returned no overlay", ctx.Slug)
		}
	} else {
		buffer, err := json.Marshal(current)
		if err != nil {
			return nil, fmt.Errorf("hydrate: marshal payload for slug %q: %w", ctx.Slug, err)
		}
		opts := d.overlayOptions(ctx)
		if d.defaults != nil {
			result, err = overlay.DecodeWithDefaults(*d.defaults, buffer, opts...)
		} else {
			result, err = overlay.Decode[T](buffer, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate: decode slug %q: %w", ctx.Slug, err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, result); err != nil {
			return nil, fmt.Errorf("hydrate: post-hook for slug %q failed: %w", ctx.Slug, err)
		}
	}

	return result, nil
}

func (d *Decoder[T]) overlayOptions(ctx Context) []overlay.Option {
	opts := append([]overlay.Option{}, d.options...)
	if ctx.Scope != "" {
		opts = append(opts, overlay.WithScope(overlay.NewScope(ctx.Scope, 0)))
	}
	return opts
}

func (d *Decoder[T]) clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.useNumber {
		decoder.UseNumber()
	}
	var out map[string]any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
