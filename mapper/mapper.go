// Package mapper drives the datamapper: it hydrates storage rows into
// entities, registers lazy relation proxies under a bounded load context,
// orchestrates eager loading, and persists entities and their relations
// through the backend boundary.
package mapper

import (
	"context"
	"fmt"

	"github.com/beyondautomation/spot2/backend"
	"github.com/beyondautomation/spot2/convert"
	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/logging"
	"github.com/beyondautomation/spot2/metadata"
	"github.com/beyondautomation/spot2/operator"
	"github.com/beyondautomation/spot2/query"
	"github.com/beyondautomation/spot2/relation"
)

// DefaultBatchMaxInClause caps identity values per IN clause before a batch
// query is chunked into multiple statements.
const DefaultBatchMaxInClause = 1000

// Mapper is the entry point for reading and writing entities.
type Mapper struct {
	backend          backend.Backend
	types            *metadata.Registry
	operators        *operator.Registry
	scopes           map[string]query.Scopes
	logger           *logging.Logger
	maxEagerDepth    int
	batchMaxInClause int
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the mapper's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// WithOperators replaces the default operator registry, allowing custom
// condition tokens registered at startup.
func WithOperators(reg *operator.Registry) Option {
	return func(m *Mapper) { m.operators = reg }
}

// WithMaxEagerDepth sets how many levels of automatic relation registration
// happen per hydrated entity.
func WithMaxEagerDepth(depth int) Option {
	return func(m *Mapper) { m.maxEagerDepth = depth }
}

// WithBatchMaxInClause sets the IN-clause chunking threshold.
func WithBatchMaxInClause(max int) Option {
	return func(m *Mapper) { m.batchMaxInClause = max }
}

// NewMapper builds a mapper over a backend and an entity type registry.
func NewMapper(b backend.Backend, types *metadata.Registry, opts ...Option) *Mapper {
	m := &Mapper{
		backend:          b,
		types:            types,
		operators:        operator.NewRegistry(),
		scopes:           make(map[string]query.Scopes),
		maxEagerDepth:    relation.DefaultMaxDepth,
		batchMaxInClause: DefaultBatchMaxInClause,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NewLogger(logging.Config{})
	}
	return m
}

// RegisterScope adds a named scope for an entity type, callable through
// queries and lazy relation proxies. Duplicate names are a configuration
// error.
func (m *Mapper) RegisterScope(entityType, name string, modifier query.Modifier) error {
	set, ok := m.scopes[entityType]
	if !ok {
		set = make(query.Scopes)
		m.scopes[entityType] = set
	}
	if _, exists := set[name]; exists {
		return fmt.Errorf("mapper: scope %s.%s already registered", entityType, name)
	}
	set[name] = modifier
	return nil
}

// EntityType resolves a registered entity type by name.
func (m *Mapper) EntityType(name string) (*metadata.EntityType, error) {
	return m.types.Lookup(name)
}

// Scopes returns the named scopes registered for an entity type.
func (m *Mapper) Scopes(entityType string) query.Scopes {
	return m.scopes[entityType]
}

// BatchMaxInClause returns the IN-clause chunking threshold.
func (m *Mapper) BatchMaxInClause() int {
	return m.batchMaxInClause
}

// NewQuery returns an empty query for an entity type.
func (m *Mapper) NewQuery(entityType string) (*query.Query, error) {
	t, err := m.types.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	return query.New(t.Name, t.Table, m.operators), nil
}

// Query is NewQuery for callers that treat unknown types as programmer
// error.
func (m *Mapper) Query(entityType string) *query.Query {
	q, err := m.NewQuery(entityType)
	if err != nil {
		panic(err)
	}
	return q
}

// RunQuery executes a read under a load context: rows are fetched,
// converted, hydrated, and relation proxies are registered up to the
// context's depth budget. Queries carrying eager-load paths have them
// resolved here unless the context is already inside automatic loading.
func (m *Mapper) RunQuery(ctx context.Context, lc relation.LoadContext, q *query.Query) (*entity.Collection, error) {
	t, err := m.types.Lookup(q.EntityType())
	if err != nil {
		return nil, err
	}
	req, err := q.ReadRequest()
	if err != nil {
		return nil, err
	}

	rows, err := m.backend.ExecuteRead(ctx, req)
	if err != nil {
		return nil, err
	}

	entities := make([]*entity.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := m.hydrate(t, row)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	collection := m.newCollection(t, entities)

	if !lc.AtLimit() {
		for _, e := range entities {
			if err := m.registerRelations(t, e, lc.Descend()); err != nil {
				return nil, err
			}
		}
	}

	if !lc.AutoLoading {
		if err := relation.EagerLoad(ctx, m, lc, collection, q.WithPaths()); err != nil {
			return nil, err
		}
		clearAutoLoadingFlags(collection, m.maxEagerDepth+1)
	}
	return collection, nil
}

// hydrate converts one storage row into an entity using the type's field
// definitions. Columns without a definition keep their raw value.
func (m *Mapper) hydrate(t *metadata.EntityType, row map[string]any) (*entity.Entity, error) {
	fields := make(map[string]any, len(row))
	for name, raw := range row {
		def := t.FieldNamed(name)
		if def == nil {
			fields[name] = raw
			continue
		}
		typed, err := convert.FromStorage(def.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("mapper: hydrate %s.%s: %w", t.Name, name, err)
		}
		fields[name] = typed
	}
	return entity.Hydrate(t.Name, fields), nil
}

func (m *Mapper) newCollection(t *metadata.EntityType, entities []*entity.Entity) *entity.Collection {
	pk, err := t.PrimaryKeyField()
	if err != nil {
		return entity.NewCollectionWithIdentities(entities, nil)
	}
	return entity.NewCollection(entities, pk.Name)
}

// registerRelations attaches a lazy proxy for every relation the entity
// type defines, scoped to this entity's key values. The descended context
// carries the auto-loading flag, so proxies drop modifier configuration
// until the top-level call clears them.
func (m *Mapper) registerRelations(t *metadata.EntityType, e *entity.Entity, lc relation.LoadContext) error {
	for _, name := range t.RelationNames() {
		proxy, err := m.buildProxy(t, e, name, lc)
		if err != nil {
			return err
		}
		e.Relation(name, proxy)
	}
	return nil
}

func (m *Mapper) buildProxy(t *metadata.EntityType, e *entity.Entity, name string, lc relation.LoadContext) (*relation.Proxy, error) {
	desc, err := relation.NewDescriptor(m, t, name)
	if err != nil {
		return nil, err
	}
	owners := m.newCollection(t, []*entity.Entity{e})
	if err := desc.IdentityFromCollection(owners); err != nil {
		return nil, err
	}
	return relation.NewProxy(desc, lc), nil
}

// RelationOf returns the entity's relation proxy, creating one on demand
// when registration was skipped by the depth limit. Values already attached
// by eager loading are returned as-is.
func (m *Mapper) RelationOf(e *entity.Entity, name string) (any, error) {
	if e.HasRelation(name) {
		return e.Relation(name), nil
	}
	t, err := m.types.Lookup(e.TypeName())
	if err != nil {
		return nil, err
	}
	proxy, err := m.buildProxy(t, e, name, relation.NewLoadContext(m.maxEagerDepth))
	if err != nil {
		return nil, err
	}
	e.Relation(name, proxy)
	return proxy, nil
}

// clearAutoLoadingFlags walks proxies attached beneath the collection and
// ends their registration window. Depth is bounded by the registration
// budget that created them.
func clearAutoLoadingFlags(c *entity.Collection, budget int) {
	if c == nil || budget <= 0 {
		return
	}
	for _, e := range c.Entities() {
		clearEntityAutoLoading(e, budget)
	}
}

func clearEntityAutoLoading(e *entity.Entity, budget int) {
	if budget <= 0 {
		return
	}
	for _, name := range e.RelationNames() {
		switch value := e.Relation(name).(type) {
		case *relation.Proxy:
			value.ClearAutoLoading()
		case *entity.Entity:
			clearEntityAutoLoading(value, budget-1)
		case *entity.Collection:
			clearAutoLoadingFlags(value, budget-1)
		}
	}
}
