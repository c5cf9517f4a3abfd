// Package relation implements the relation resolution engine: the four
// relation descriptors, the lazy proxy standing in for unexecuted relation
// queries, the batched eager-load orchestrator, and the load context that
// bounds automatic relation registration depth.
package relation

// LoadContext carries the recursion depth and auto-loading state through
// hydration and relation registration. It is passed by value down the call
// chain, so state can never leak across requests and needs no cleanup when
// a registration fails partway.
type LoadContext struct {
	// Depth is the number of automatic registration levels already entered.
	Depth int
	// MaxDepth bounds automatic registration; at or beyond it, registration
	// is skipped for the entity (relation accessors still work on demand).
	MaxDepth int
	// AutoLoading is set for the full duration of a top-level registration
	// call. Relation-defining code skips expensive configuration (nested
	// eager-load hints, modifier queueing) while it is set.
	AutoLoading bool
}

// DefaultMaxDepth is the default automatic registration depth. One level
// populates an entity's own relations without chasing back-references.
const DefaultMaxDepth = 1

// NewLoadContext returns a top-level context with the given depth limit.
// Non-positive limits fall back to DefaultMaxDepth.
func NewLoadContext(maxDepth int) LoadContext {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return LoadContext{MaxDepth: maxDepth}
}

// AtLimit reports whether automatic registration should be skipped at this
// depth.
func (lc LoadContext) AtLimit() bool {
	return lc.Depth >= lc.MaxDepth
}

// Descend returns the context for one level deeper, with the auto-loading
// flag asserted. Cycles such as A→B→A terminate because every hop consumes
// one level of the shared budget regardless of entity type.
func (lc LoadContext) Descend() LoadContext {
	lc.Depth++
	lc.AutoLoading = true
	return lc
}
