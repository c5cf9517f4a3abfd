package metadata

import "fmt"

// RelationKind identifies one of the four relation topologies.
type RelationKind string

const (
	// KindHasOne is a one-to-one relation whose foreign key lives on the
	// target table.
	KindHasOne RelationKind = "has_one"
	// KindHasMany is a one-to-many relation whose foreign key lives on the
	// target table.
	KindHasMany RelationKind = "has_many"
	// KindBelongsTo is a one-to-one relation whose foreign key lives on the
	// owner table.
	KindBelongsTo RelationKind = "belongs_to"
	// KindHasManyThrough is a many-to-many relation mediated by a pivot
	// entity type.
	KindHasManyThrough RelationKind = "has_many_through"
)

// KeyDirection states which side of a relation holds the scoping key. The
// batch-mapping algorithm is parameterized by this instead of being
// duplicated per relation kind.
type KeyDirection int

const (
	// KeyOnTarget scopes the batch query by the target table's foreign key
	// against the owners' primary keys (has-one, has-many).
	KeyOnTarget KeyDirection = iota
	// KeyOnOwner scopes the batch query by the target table's primary key
	// against the owners' local foreign-key values (belongs-to).
	KeyOnOwner
)

// RelationDef declares a relation from one entity type to another.
type RelationDef struct {
	Kind   RelationKind
	Target string
	// ForeignKey is the key field on the side named by Direction(): the
	// target's FK field for has-one/has-many, the owner's for belongs-to.
	ForeignKey string
	// LocalKey is the owner field the relation joins on. Empty means the
	// owner's primary key (has-one/has-many) or the target's primary key
	// (belongs-to).
	LocalKey string
	// Through names the pivot entity type for has-many-through.
	Through string
	// ThroughLocalKey is the pivot field referencing the owner.
	ThroughLocalKey string
	// ThroughForeignKey is the pivot field referencing the target.
	ThroughForeignKey string
	// EagerPaths are nested eager-load hints applied on explicit queries.
	// They are skipped during automatic (hydration-time) registration.
	EagerPaths []string
	// NullableKey controls save semantics for removed has-many members:
	// null the foreign key when true, delete the row when false.
	NullableKey bool
}

// Direction returns which side holds the scoping key.
func (d RelationDef) Direction() KeyDirection {
	if d.Kind == KindBelongsTo {
		return KeyOnOwner
	}
	return KeyOnTarget
}

// ToMany reports whether the relation resolves to a collection.
func (d RelationDef) ToMany() bool {
	return d.Kind == KindHasMany || d.Kind == KindHasManyThrough
}

func (d RelationDef) validate() error {
	if d.Target == "" {
		return fmt.Errorf("missing target entity type")
	}
	switch d.Kind {
	case KindHasOne, KindHasMany, KindBelongsTo:
		if d.ForeignKey == "" {
			return fmt.Errorf("missing foreign key")
		}
	case KindHasManyThrough:
		if d.Through == "" || d.ThroughLocalKey == "" || d.ThroughForeignKey == "" {
			return fmt.Errorf("through relation needs pivot type and both pivot keys")
		}
	default:
		return fmt.Errorf("unknown relation kind %q", d.Kind)
	}
	return nil
}

// HasOne declares a one-to-one relation with the foreign key on the target.
func HasOne(target, foreignKey string) RelationDef {
	return RelationDef{Kind: KindHasOne, Target: target, ForeignKey: foreignKey}
}

// HasMany declares a one-to-many relation with the foreign key on the target.
func HasMany(target, foreignKey string) RelationDef {
	return RelationDef{Kind: KindHasMany, Target: target, ForeignKey: foreignKey}
}

// BelongsTo declares the inverse one-to-one relation, with the foreign key on
// the owner.
func BelongsTo(target, foreignKey string) RelationDef {
	return RelationDef{Kind: KindBelongsTo, Target: target, ForeignKey: foreignKey}
}

// HasManyThrough declares a many-to-many relation mediated by the pivot
// entity type through. throughLocalKey references the owner on the pivot,
// throughForeignKey references the target.
func HasManyThrough(target, through, throughLocalKey, throughForeignKey string) RelationDef {
	return RelationDef{
		Kind:              KindHasManyThrough,
		Target:            target,
		Through:           through,
		ThroughLocalKey:   throughLocalKey,
		ThroughForeignKey: throughForeignKey,
	}
}

// WithEagerPaths returns a copy of d carrying nested eager-load hints.
func (d RelationDef) WithEagerPaths(paths ...string) RelationDef {
	d.EagerPaths = append([]string(nil), paths...)
	return d
}

// WithLocalKey returns a copy of d joining on the given owner field instead
// of the primary key.
func (d RelationDef) WithLocalKey(field string) RelationDef {
	d.LocalKey = field
	return d
}

// WithNullableKey returns a copy of d whose removed has-many members are
// key-nulled instead of deleted on save.
func (d RelationDef) WithNullableKey() RelationDef {
	d.NullableKey = true
	return d
}
