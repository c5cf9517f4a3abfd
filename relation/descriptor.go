package relation

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/metadata"
	"github.com/beyondautomation/spot2/query"
	"github.com/beyondautomation/spot2/sqlutil"
)

// NoRelation is the explicit "no related row" sentinel stored on a to-one
// relation field when the batch query matched nothing for an owner. It keeps
// "loaded but absent" distinguishable from "never loaded".
type NoRelation struct{}

// None is the shared NoRelation sentinel value.
var None = NoRelation{}

// Descriptor encapsulates one relation of one owner entity type: the
// foreign/local key pair, the target type, and the identity values scoping
// its query. Descriptors are cheap and constructed per access; once built
// for a query their configuration does not change.
type Descriptor struct {
	source    Source
	name      string
	ownerType *metadata.EntityType
	def       metadata.RelationDef

	identities []any

	// pivotPairs caches (ownerKey, targetKey) rows between the two queries
	// of a through relation.
	pivotPairs []pivotPair
}

type pivotPair struct {
	ownerKey  any
	targetKey any
}

// NewDescriptor resolves the named relation on the owner type. Unknown
// names surface spot2.UnknownRelationError.
func NewDescriptor(src Source, ownerType *metadata.EntityType, name string) (*Descriptor, error) {
	def, err := ownerType.RelationNamed(name)
	if err != nil {
		return nil, err
	}
	return &Descriptor{source: src, name: name, ownerType: ownerType, def: def}, nil
}

// Name returns the relation name on the owner type.
func (d *Descriptor) Name() string { return d.name }

// Def returns the relation definition.
func (d *Descriptor) Def() metadata.RelationDef { return d.def }

// Kind returns the relation topology.
func (d *Descriptor) Kind() metadata.RelationKind { return d.def.Kind }

// SetIdentity scopes the descriptor's query to explicit identity values,
// used when resolving a relation for a single owner.
func (d *Descriptor) SetIdentity(values ...any) {
	d.identities = append([]any(nil), values...)
}

// IdentityFromCollection seeds the identity set from a batch of owners:
// primary keys (or the configured local key) for forward and through
// relations, owner foreign-key values for belongs-to.
func (d *Descriptor) IdentityFromCollection(c *entity.Collection) error {
	ownerField, err := d.ownerKeyField()
	if err != nil {
		return err
	}

	pk, pkErr := d.ownerType.PrimaryKeyField()
	if pkErr == nil && ownerField == pk.Name && len(c.Identities()) > 0 {
		d.identities = append([]any(nil), c.Identities()...)
		return nil
	}

	seen := make(map[string]struct{}, c.Len())
	d.identities = d.identities[:0]
	for _, owner := range c.Entities() {
		raw := owner.Get(ownerField)
		if raw == nil {
			continue
		}
		key := fmt.Sprint(raw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		d.identities = append(d.identities, raw)
	}
	return nil
}

// ownerKeyField is the owner-side field whose values scope the query.
func (d *Descriptor) ownerKeyField() (string, error) {
	if d.def.Direction() == metadata.KeyOnOwner {
		return d.def.ForeignKey, nil
	}
	if d.def.LocalKey != "" {
		return d.def.LocalKey, nil
	}
	pk, err := d.ownerType.PrimaryKeyField()
	if err != nil {
		return "", err
	}
	return pk.Name, nil
}

// targetKeyField is the target-side field the scoping values match against.
// Note the direction inversion for belongs-to: there the target side holds
// the primary key, not the foreign key.
func (d *Descriptor) targetKeyField() (string, error) {
	switch {
	case d.def.Kind == metadata.KindHasManyThrough:
		return d.targetPrimaryKey()
	case d.def.Direction() == metadata.KeyOnOwner:
		if d.def.LocalKey != "" {
			return d.def.LocalKey, nil
		}
		return d.targetPrimaryKey()
	default:
		return d.def.ForeignKey, nil
	}
}

func (d *Descriptor) targetPrimaryKey() (string, error) {
	targetType, err := d.source.EntityType(d.def.Target)
	if err != nil {
		return "", err
	}
	pk, err := targetType.PrimaryKeyField()
	if err != nil {
		return "", err
	}
	return pk.Name, nil
}

// BuildQuery returns the target query scoped by the current identity values.
// For through relations this first resolves the pivot rows, which costs the
// first of the variant's two queries.
func (d *Descriptor) BuildQuery(ctx context.Context) (*query.Query, error) {
	if d.def.Kind == metadata.KindHasManyThrough {
		return d.buildThroughQuery(ctx)
	}
	targetField, err := d.targetKeyField()
	if err != nil {
		return nil, err
	}
	q, err := d.source.NewQuery(d.def.Target)
	if err != nil {
		return nil, err
	}
	return q.WhereFragment(identityFragment(targetField, d.identities)), nil
}

func (d *Descriptor) buildThroughQuery(ctx context.Context) (*query.Query, error) {
	if err := d.loadPivot(ctx); err != nil {
		return nil, err
	}
	targetField, err := d.targetKeyField()
	if err != nil {
		return nil, err
	}
	q, err := d.source.NewQuery(d.def.Target)
	if err != nil {
		return nil, err
	}
	return q.WhereFragment(identityFragment(targetField, d.pivotTargetKeys())), nil
}

// pivotTargetKeys returns the deduplicated target-side keys of the cached
// pivot rows in encounter order.
func (d *Descriptor) pivotTargetKeys() []any {
	keys := make([]any, 0, len(d.pivotPairs))
	seen := make(map[string]struct{}, len(d.pivotPairs))
	for _, pair := range d.pivotPairs {
		key := fmt.Sprint(pair.targetKey)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, pair.targetKey)
	}
	return keys
}

// loadPivot runs the pivot query for the current identity set and caches the
// key pairs.
func (d *Descriptor) loadPivot(ctx context.Context) error {
	pivotQuery, err := d.source.NewQuery(d.def.Through)
	if err != nil {
		return err
	}
	pivotQuery.WhereFragment(identityFragment(d.def.ThroughLocalKey, d.identities))
	pivotRows, err := d.runChunked(ctx, pivotQuery, d.def.Through, d.def.ThroughLocalKey)
	if err != nil {
		return err
	}

	d.pivotPairs = d.pivotPairs[:0]
	for _, row := range pivotRows.Entities() {
		ownerKey := row.Get(d.def.ThroughLocalKey)
		targetKey := row.Get(d.def.ThroughForeignKey)
		if ownerKey == nil || targetKey == nil {
			continue
		}
		d.pivotPairs = append(d.pivotPairs, pivotPair{ownerKey: ownerKey, targetKey: targetKey})
	}
	return nil
}

// runChunked executes a query scoped by the descriptor's identity values,
// chunking when they exceed the IN clause cap.
func (d *Descriptor) runChunked(ctx context.Context, q *query.Query, entityType, keyField string) (*entity.Collection, error) {
	return d.runChunkedValues(ctx, q, entityType, keyField, d.identities)
}

// runChunkedValues executes a query whose key scoping may exceed the IN
// clause cap, splitting into chunks and merging results. It rebuilds the
// scoping fragment per chunk; queries already under the cap run as-is.
func (d *Descriptor) runChunkedValues(ctx context.Context, q *query.Query, entityType, keyField string, values []any) (*entity.Collection, error) {
	max := d.source.BatchMaxInClause()
	if max <= 0 || len(values) <= max {
		return d.source.RunQuery(ctx, LoadContext{AutoLoading: true}, q)
	}

	var merged []*entity.Entity
	for start := 0; start < len(values); start += max {
		end := start + max
		if end > len(values) {
			end = len(values)
		}
		chunkQuery, err := d.source.NewQuery(entityType)
		if err != nil {
			return nil, err
		}
		chunkQuery.WhereFragment(identityFragment(keyField, values[start:end]))
		part, err := d.source.RunQuery(ctx, LoadContext{AutoLoading: true}, chunkQuery)
		if err != nil {
			return nil, err
		}
		merged = append(merged, part.Entities()...)
	}
	return entity.NewCollectionWithIdentities(merged, nil), nil
}

func identityFragment(field string, values []any) sq.Sqlizer {
	return sq.Eq{sqlutil.QuoteIdentifier(field): values}
}
