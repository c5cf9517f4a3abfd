package relation

import (
	"context"

	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/metadata"
	"github.com/beyondautomation/spot2/query"
)

// Source is what the relation engine needs from the mapper: metadata
// lookups, query construction, and read execution. Reads issued here hydrate
// rows into entities but never recurse into eager loading themselves; the
// orchestrator drives nesting explicitly.
type Source interface {
	// EntityType resolves a registered entity type by name.
	EntityType(name string) (*metadata.EntityType, error)
	// NewQuery returns an empty query for an entity type's table.
	NewQuery(entityType string) (*query.Query, error)
	// RunQuery executes a read and hydrates the rows under the given load
	// context.
	RunQuery(ctx context.Context, lc LoadContext, q *query.Query) (*entity.Collection, error)
	// Scopes returns the named scopes registered for an entity type.
	Scopes(entityType string) query.Scopes
	// BatchMaxInClause caps identity values per IN clause; batches larger
	// than this are chunked into multiple statements of one logical query.
	BatchMaxInClause() int
}

// WriteSource extends Source with the write operations relation saving
// needs.
type WriteSource interface {
	Source
	// SaveEntity inserts or updates one entity by its new/persisted flag.
	SaveEntity(ctx context.Context, e *entity.Entity) error
	// DeleteWhere deletes rows of an entity type matching conditions.
	DeleteWhere(ctx context.Context, entityType string, conds map[string]any) error
	// UpdateWhere updates fields on rows of an entity type matching
	// conditions.
	UpdateWhere(ctx context.Context, entityType string, values, conds map[string]any) error
	// InsertRow inserts a bare row for an entity type. Used for pivot rows,
	// which are not tracked entities on the owner side.
	InsertRow(ctx context.Context, entityType string, values map[string]any) error
}
