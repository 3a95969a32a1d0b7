package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	overlay "github.com/goliatone/go-overlay"
)

// MemoryStore is an in-memory Store intended for tests and examples. It keys
// records by Ref.Identifier() and keeps the explicit JSON encoding of each
// document, so a loaded document carries exactly the explicitness that was
// saved.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	options []overlay.Option
	newID   func() string
	now     func() time.Time
}

type memoryRecord struct {
	document []byte
	meta     Meta
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	options []overlay.Option
	newID   func() string
	now     func() time.Time
}

// WithDecodeOptions sets the overlay options used to rebuild loaded documents.
func WithDecodeOptions(opts ...overlay.Option) MemoryStoreOption {
	return func(cfg *memoryStoreConfig) {
		cfg.options = append(cfg.options, opts...)
	}
}

// WithIDGenerator replaces the uuid based snapshot id and etag generator.
func WithIDGenerator(fn func() string) MemoryStoreOption {
	return func(cfg *memoryStoreConfig) {
		if fn != nil {
			cfg.newID = fn
		}
	}
}

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(fn func() time.Time) MemoryStoreOption {
	return func(cfg *memoryStoreConfig) {
		if fn != nil {
			cfg.now = fn
		}
	}
}

func NewMemoryStore[T any](opts ...MemoryStoreOption) *MemoryStore[T] {
	cfg := memoryStoreConfig{
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &MemoryStore[T]{
		records: map[string]memoryRecord{},
		options: cfg.options,
		newID:   cfg.newID,
		now:     cfg.now,
	}
}

func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (*overlay.Overlay[T], Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	doc, err := overlay.Decode[T](record.document, s.options...)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, cloneMeta(record.meta), true, nil
}

// Save stores the explicit encoding of doc. An empty SnapshotID is assigned,
// the ETag is replaced on every save and a zero UpdatedAt is stamped.
func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, doc *overlay.Overlay[T], meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if doc == nil {
		return Meta{}, fmt.Errorf("nil document for %s", key)
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return Meta{}, fmt.Errorf("encode %s: %w", key, err)
	}

	stored := cloneMeta(meta)
	if stored.SnapshotID == "" {
		stored.SnapshotID = s.newID()
	}
	stored.ETag = s.newID()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now()
	}

	s.mu.Lock()
	s.records[key] = memoryRecord{document: data, meta: stored}
	s.mu.Unlock()
	return cloneMeta(stored), nil
}

// Len reports the number of stored documents.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
