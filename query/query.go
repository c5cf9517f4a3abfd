// Package query builds scoped read requests for one entity type: where
// conditions compiled through the operator registry, ordering, limits, and
// eager-load paths. Queries are value builders; modifier closures queued by
// lazy relation proxies replay against them in call order.
package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/beyondautomation/spot2/backend"
	"github.com/beyondautomation/spot2/operator"
	"github.com/beyondautomation/spot2/sqlutil"
)

// Direction orders results ascending or descending.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Query is a scoped read against one entity type's table.
type Query struct {
	entityType string
	table      string
	registry   *operator.Registry

	conditions []sq.Sqlizer
	order      []string
	limit      uint64
	offset     uint64
	withPaths  []string

	// err is sticky: the first compilation failure survives chaining and
	// surfaces when the query is built or executed.
	err error
}

// New returns an empty query for an entity type backed by table, compiling
// conditions through reg.
func New(entityType, table string, reg *operator.Registry) *Query {
	return &Query{entityType: entityType, table: table, registry: reg}
}

// EntityType returns the entity type name this query targets.
func (q *Query) EntityType() string { return q.entityType }

// Table returns the backing table name.
func (q *Query) Table() string { return q.table }

// WithPaths returns the queued eager-load paths.
func (q *Query) WithPaths() []string { return q.withPaths }

// Err returns the first error recorded while building the query.
func (q *Query) Err() error { return q.err }

// Where compiles a condition map joined by AND and adds it to the query.
func (q *Query) Where(conds map[string]any) *Query {
	return q.addConditions(conds, operator.And)
}

// WhereOr compiles a condition map joined by OR and adds it to the query.
func (q *Query) WhereOr(conds map[string]any) *Query {
	return q.addConditions(conds, operator.Or)
}

func (q *Query) addConditions(conds map[string]any, conn operator.Connective) *Query {
	if q.err != nil || len(conds) == 0 {
		return q
	}
	fragment, err := operator.Compile(q.registry, conds, conn)
	if err != nil {
		q.err = err
		return q
	}
	if fragment != nil {
		q.conditions = append(q.conditions, fragment)
	}
	return q
}

// WhereFragment adds a pre-built fragment. Used by the relation engine for
// identity scoping.
func (q *Query) WhereFragment(fragment sq.Sqlizer) *Query {
	if q.err != nil || fragment == nil {
		return q
	}
	q.conditions = append(q.conditions, fragment)
	return q
}

// Order appends an ordering field. Unknown directions are a build error.
func (q *Query) Order(field string, dir Direction) *Query {
	if q.err != nil {
		return q
	}
	switch dir {
	case Asc, Desc:
	case "":
		dir = Asc
	default:
		q.err = fmt.Errorf("query: invalid order direction %q for %s", dir, field)
		return q
	}
	q.order = append(q.order, fmt.Sprintf("%s %s", sqlutil.QuoteColumn(field), dir))
	return q
}

// Limit caps the result set, with an optional offset.
func (q *Query) Limit(n uint64, offset ...uint64) *Query {
	if q.err != nil {
		return q
	}
	q.limit = n
	if len(offset) > 0 {
		q.offset = offset[0]
	}
	return q
}

// With queues relation paths for eager loading, deduplicating repeats.
func (q *Query) With(paths ...string) *Query {
	if q.err != nil {
		return q
	}
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		duplicate := false
		for _, existing := range q.withPaths {
			if existing == path {
				duplicate = true
				break
			}
		}
		if !duplicate {
			q.withPaths = append(q.withPaths, path)
		}
	}
	return q
}

// ReadRequest renders the query into a backend read request.
func (q *Query) ReadRequest() (backend.ReadRequest, error) {
	if q.err != nil {
		return backend.ReadRequest{}, q.err
	}
	req := backend.ReadRequest{
		Table:   q.table,
		OrderBy: q.order,
		Limit:   q.limit,
		Offset:  q.offset,
	}
	switch len(q.conditions) {
	case 0:
	case 1:
		req.Where = q.conditions[0]
	default:
		req.Where = sq.And(q.conditions)
	}
	return req, nil
}

// Modifier mutates a query, or fails. Lazy proxies queue modifiers and
// replay them in order before first execution.
type Modifier func(*Query) error

// Scopes is a set of named query modifiers registered for an entity type.
type Scopes map[string]Modifier
