package relation

import (
	"context"
	"fmt"

	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/metadata"
)

// SaveOnOwner persists the given relation value for one owner entity. The
// owner itself must already have a primary key value; saving the owner row
// is the caller's job.
//
// Forward relations diff the desired set against the stored one: entities no
// longer present are key-nulled when the foreign key is nullable, deleted
// otherwise; kept and new entities are saved with the foreign key pointing
// at the owner. Through relations reconcile pivot membership with one
// batched existence query instead of one check per pair; target entities
// are saved independently of pivot membership. Belongs-to saves the target
// and points the owner's foreign key at it.
func SaveOnOwner(ctx context.Context, src WriteSource, ownerType *metadata.EntityType, owner *entity.Entity, name string, value any) error {
	desc, err := NewDescriptor(src, ownerType, name)
	if err != nil {
		return err
	}

	switch desc.def.Kind {
	case metadata.KindBelongsTo:
		return desc.saveBelongsTo(ctx, src, owner, value)
	case metadata.KindHasOne, metadata.KindHasMany:
		return desc.saveForward(ctx, src, owner, value)
	case metadata.KindHasManyThrough:
		return desc.saveThrough(ctx, src, owner, value)
	}
	return fmt.Errorf("relation: cannot save relation kind %q", desc.def.Kind)
}

func (d *Descriptor) saveBelongsTo(ctx context.Context, src WriteSource, owner *entity.Entity, value any) error {
	target, err := asSingleEntity(value)
	if err != nil {
		return fmt.Errorf("relation: save %s.%s: %w", d.ownerType.Name, d.name, err)
	}
	if target == nil {
		owner.Set(d.def.ForeignKey, nil)
		owner.Relation(d.name, None)
		return nil
	}
	if target.IsNew() || target.IsModified() {
		if err := src.SaveEntity(ctx, target); err != nil {
			return err
		}
	}
	targetPK, err := d.targetPrimaryKey()
	if err != nil {
		return err
	}
	owner.Set(d.def.ForeignKey, target.Get(targetPK))
	owner.Relation(d.name, target)
	return nil
}

func (d *Descriptor) saveForward(ctx context.Context, src WriteSource, owner *entity.Entity, value any) error {
	ownerKey, err := d.ownerKeyValue(owner)
	if err != nil {
		return err
	}
	desired, err := asEntitySlice(value)
	if err != nil {
		return fmt.Errorf("relation: save %s.%s: %w", d.ownerType.Name, d.name, err)
	}

	targetType, err := d.source.EntityType(d.def.Target)
	if err != nil {
		return err
	}
	targetPK, err := targetType.PrimaryKeyField()
	if err != nil {
		return err
	}

	// One query for the stored members, then an in-memory diff.
	d.SetIdentity(ownerKey)
	currentQuery, err := d.BuildQuery(ctx)
	if err != nil {
		return err
	}
	current, err := d.source.RunQuery(ctx, LoadContext{AutoLoading: true}, currentQuery)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(desired))
	for _, e := range desired {
		if raw := e.Get(targetPK.Name); raw != nil {
			keep[fmt.Sprint(raw)] = struct{}{}
		}
	}

	var removed []any
	for _, e := range current.Entities() {
		raw := e.Get(targetPK.Name)
		if raw == nil {
			continue
		}
		if _, ok := keep[fmt.Sprint(raw)]; !ok {
			removed = append(removed, raw)
		}
	}
	if len(removed) > 0 {
		where := map[string]any{targetPK.Name: removed}
		if d.def.NullableKey {
			if err := src.UpdateWhere(ctx, d.def.Target, map[string]any{d.def.ForeignKey: nil}, where); err != nil {
				return err
			}
		} else if err := src.DeleteWhere(ctx, d.def.Target, where); err != nil {
			return err
		}
	}

	for _, e := range desired {
		e.Set(d.def.ForeignKey, ownerKey)
		if e.IsNew() || e.IsModified() {
			if err := src.SaveEntity(ctx, e); err != nil {
				return err
			}
		}
	}

	d.assign(owner, desired, targetPK.Name)
	return nil
}

func (d *Descriptor) saveThrough(ctx context.Context, src WriteSource, owner *entity.Entity, value any) error {
	ownerKey, err := d.ownerKeyValue(owner)
	if err != nil {
		return err
	}
	desired, err := asEntitySlice(value)
	if err != nil {
		return fmt.Errorf("relation: save %s.%s: %w", d.ownerType.Name, d.name, err)
	}

	targetPK, err := d.targetPrimaryKey()
	if err != nil {
		return err
	}

	// Targets are saved regardless of pivot membership changes.
	for _, e := range desired {
		if e.IsNew() || e.IsModified() {
			if err := src.SaveEntity(ctx, e); err != nil {
				return err
			}
		}
	}

	// One pivot query covers the existence check for the entire candidate
	// pair set.
	d.SetIdentity(ownerKey)
	if err := d.loadPivot(ctx); err != nil {
		return err
	}
	existing := make(map[string]struct{}, len(d.pivotPairs))
	for _, pair := range d.pivotPairs {
		existing[fmt.Sprint(pair.targetKey)] = struct{}{}
	}

	wanted := make(map[string]any, len(desired))
	for _, e := range desired {
		raw := e.Get(targetPK)
		if raw == nil {
			return fmt.Errorf("relation: save %s.%s: member has no primary key value", d.ownerType.Name, d.name)
		}
		wanted[fmt.Sprint(raw)] = raw
	}

	inserted := make(map[string]struct{}, len(desired))
	for _, e := range desired {
		raw := e.Get(targetPK)
		key := fmt.Sprint(raw)
		if _, ok := existing[key]; ok {
			continue
		}
		if _, ok := inserted[key]; ok {
			continue
		}
		inserted[key] = struct{}{}
		values := map[string]any{
			d.def.ThroughLocalKey:   ownerKey,
			d.def.ThroughForeignKey: raw,
		}
		if err := src.InsertRow(ctx, d.def.Through, values); err != nil {
			return err
		}
	}

	var removed []any
	for _, pair := range d.pivotPairs {
		if _, ok := wanted[fmt.Sprint(pair.targetKey)]; !ok {
			removed = append(removed, pair.targetKey)
		}
	}
	if len(removed) > 0 {
		where := map[string]any{
			d.def.ThroughLocalKey:   ownerKey,
			d.def.ThroughForeignKey: removed,
		}
		if err := src.DeleteWhere(ctx, d.def.Through, where); err != nil {
			return err
		}
	}

	owner.Relation(d.name, entity.NewCollection(desired, targetPK))
	return nil
}

func (d *Descriptor) ownerKeyValue(owner *entity.Entity) (any, error) {
	field, err := d.ownerKeyField()
	if err != nil {
		return nil, err
	}
	raw := owner.Get(field)
	if raw == nil {
		return nil, fmt.Errorf("relation: save %s.%s: owner has no %s value", d.ownerType.Name, d.name, field)
	}
	return raw, nil
}

func asSingleEntity(value any) (*entity.Entity, error) {
	switch v := value.(type) {
	case nil, NoRelation:
		return nil, nil
	case *entity.Entity:
		return v, nil
	case *entity.Collection:
		return v.First(), nil
	default:
		return nil, fmt.Errorf("expected an entity, got %T", value)
	}
}

func asEntitySlice(value any) ([]*entity.Entity, error) {
	switch v := value.(type) {
	case nil, NoRelation:
		return nil, nil
	case *entity.Entity:
		return []*entity.Entity{v}, nil
	case []*entity.Entity:
		return v, nil
	case *entity.Collection:
		return v.Entities(), nil
	default:
		return nil, fmt.Errorf("expected a collection, got %T", value)
	}
}
