package relation

import (
	"context"

	"github.com/beyondautomation/spot2"
	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/query"
)

type proxyState int

const (
	stateUnbuilt proxyState = iota
	stateBuilt
	stateExecuted
)

// Proxy stands in for a relation that has not been queried yet. Query
// modifier calls accumulate in order and replay against the built query on
// first execution; the execution result is cached for the proxy's lifetime.
// Transitions are strictly forward: Unbuilt → Built → Executed.
type Proxy struct {
	desc *Descriptor
	lc   LoadContext

	modifiers []query.Modifier
	scopes    []string

	state proxyState
	built *query.Query

	one  *entity.Entity
	many *entity.Collection
	none bool
}

// NewProxy wraps a descriptor. The load context decides whether modifier
// calls queue or are dropped: during automatic hydration they are silently
// discarded to bound memory across large result sets.
func NewProxy(desc *Descriptor, lc LoadContext) *Proxy {
	return &Proxy{desc: desc, lc: lc}
}

// Descriptor returns the backing relation descriptor.
func (p *Proxy) Descriptor() *Descriptor { return p.desc }

// queue adds a modifier unless the proxy was created during automatic
// loading or has already executed.
func (p *Proxy) queue(m query.Modifier) *Proxy {
	if p.lc.AutoLoading || p.state == stateExecuted {
		return p
	}
	p.modifiers = append(p.modifiers, m)
	return p
}

// Where queues a condition map.
func (p *Proxy) Where(conds map[string]any) *Proxy {
	return p.queue(func(q *query.Query) error {
		q.Where(conds)
		return q.Err()
	})
}

// Order queues an ordering field.
func (p *Proxy) Order(field string, dir query.Direction) *Proxy {
	return p.queue(func(q *query.Query) error {
		q.Order(field, dir)
		return q.Err()
	})
}

// Limit queues a limit with optional offset.
func (p *Proxy) Limit(n uint64, offset ...uint64) *Proxy {
	return p.queue(func(q *query.Query) error {
		q.Limit(n, offset...)
		return q.Err()
	})
}

// With queues nested eager-load paths.
func (p *Proxy) With(paths ...string) *Proxy {
	return p.queue(func(q *query.Query) error {
		q.With(paths...)
		return q.Err()
	})
}

// Scope queues a named scope by name. Resolution is deferred to execution;
// a name matching no registered scope fails then with NoSuchMethodError
// naming the proxy's relation kind.
func (p *Proxy) Scope(name string) *Proxy {
	if p.lc.AutoLoading || p.state == stateExecuted {
		return p
	}
	p.scopes = append(p.scopes, name)
	return p.queue(func(q *query.Query) error {
		scopes := p.desc.source.Scopes(p.desc.def.Target)
		modifier, ok := scopes[name]
		if !ok {
			return spot2.NewNoSuchMethodError(name, string(p.desc.Kind()))
		}
		return modifier(q)
	})
}

// ClearAutoLoading marks the end of the registration window the proxy was
// created in. The mapper calls this when the top-level hydration returns;
// modifier calls queue normally from then on.
func (p *Proxy) ClearAutoLoading() {
	p.lc.AutoLoading = false
}

// build constructs the scoped query and applies queued modifiers in call
// order. Idempotent.
func (p *Proxy) build(ctx context.Context) error {
	if p.state >= stateBuilt {
		return nil
	}
	q, err := p.desc.BuildQuery(ctx)
	if err != nil {
		return err
	}
	// Eager-load hints configured on the relation definition are honored on
	// explicit execution but skipped while automatic loading is in
	// progress.
	if !p.lc.AutoLoading && len(p.desc.def.EagerPaths) > 0 {
		q.With(p.desc.def.EagerPaths...)
	}
	for _, m := range p.modifiers {
		if err := m(q); err != nil {
			return err
		}
	}
	if err := q.Err(); err != nil {
		return err
	}
	p.built = q
	p.state = stateBuilt
	return nil
}

// Execute runs the relation query once and caches the result: a single
// entity, a collection, or the none sentinel. Repeated calls return the
// cache without re-querying.
func (p *Proxy) Execute(ctx context.Context) error {
	if p.state == stateExecuted {
		return nil
	}
	if err := p.build(ctx); err != nil {
		return err
	}

	results, err := p.desc.source.RunQuery(ctx, p.lc, p.built)
	if err != nil {
		return err
	}

	if p.desc.def.ToMany() {
		p.many = results
	} else if results.Len() > 0 {
		p.one = results.First()
	} else {
		p.none = true
	}
	p.state = stateExecuted
	return nil
}

// One resolves a to-one relation: the matched entity, or nil with no error
// when the relation is empty.
func (p *Proxy) One(ctx context.Context) (*entity.Entity, error) {
	if err := p.Execute(ctx); err != nil {
		return nil, err
	}
	if p.none {
		return nil, nil
	}
	if p.one != nil {
		return p.one, nil
	}
	// To-many relation read through One: first entity or nil.
	return p.many.First(), nil
}

// All resolves the relation as a collection. To-one results are wrapped in
// a collection of zero or one entity.
func (p *Proxy) All(ctx context.Context) (*entity.Collection, error) {
	if err := p.Execute(ctx); err != nil {
		return nil, err
	}
	if p.many != nil {
		return p.many, nil
	}
	if p.one != nil {
		return entity.NewCollectionWithIdentities([]*entity.Entity{p.one}, nil), nil
	}
	return entity.NewCollectionWithIdentities(nil, nil), nil
}

// Result returns the cached execution result: *entity.Entity,
// *entity.Collection, or None. It requires Execute to have run.
func (p *Proxy) Result() any {
	switch {
	case p.state != stateExecuted:
		return nil
	case p.none:
		return None
	case p.one != nil:
		return p.one
	default:
		return p.many
	}
}
