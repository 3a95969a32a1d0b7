package overlay

import (
	"sync"

	"github.com/goliatone/go-overlay/layering"
)

// Leaf is the representation that carries one primitive value together with
// its explicitness bit. Strategies decide which concrete representation is used
// so callers can attach extra metadata to every leaf of a tree.
type Leaf interface {
	Value() any
	Explicit() bool
	Set(value any, explicit bool)
	Clone() Leaf
}

// Strategy produces leaves. Implementations must be safe for concurrent use.
type Strategy interface {
	NewLeaf(value any, explicit bool) Leaf
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(value any, explicit bool) Leaf

// NewLeaf implements Strategy.
func (f StrategyFunc) NewLeaf(value any, explicit bool) Leaf {
	return f(value, explicit)
}

// ContextReceiver is implemented by leaf representations that accept a
// context during Visit.
type ContextReceiver interface {
	ReceiveContext(ctx any)
}

// PlainLeaf is the leaf produced by DefaultStrategy: a value and a flag.
type PlainLeaf struct {
	value    any
	explicit bool
}

// NewPlainLeaf returns a PlainLeaf holding value.
func NewPlainLeaf(value any, explicit bool) *PlainLeaf {
	return &PlainLeaf{value: value, explicit: explicit}
}

func (l *PlainLeaf) Value() any     { return l.value }
func (l *PlainLeaf) Explicit() bool { return l.explicit }

func (l *PlainLeaf) Set(value any, explicit bool) {
	l.value = value
	l.explicit = explicit
}

func (l *PlainLeaf) Clone() Leaf {
	return &PlainLeaf{value: layering.Clone(l.value), explicit: l.explicit}
}

// DefaultStrategy builds PlainLeaf values.
var DefaultStrategy Strategy = StrategyFunc(func(value any, explicit bool) Leaf {
	return NewPlainLeaf(value, explicit)
})

var (
	processStrategyMu sync.RWMutex
	processStrategy   = DefaultStrategy
)

// SetDefaultStrategy replaces the process-wide strategy used when an overlay
// is built without WithStrategy and returns the previous one. A nil strategy
// restores DefaultStrategy.
func SetDefaultStrategy(s Strategy) Strategy {
	if s == nil {
		s = DefaultStrategy
	}
	processStrategyMu.Lock()
	defer processStrategyMu.Unlock()
	previous := processStrategy
	processStrategy = s
	return previous
}

func currentStrategy() Strategy {
	processStrategyMu.RLock()
	defer processStrategyMu.RUnlock()
	return processStrategy
}
