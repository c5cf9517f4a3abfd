package mapper

import (
	"context"
	"fmt"

	"github.com/beyondautomation/spot2"
	"github.com/beyondautomation/spot2/backend"
	"github.com/beyondautomation/spot2/convert"
	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/metadata"
	"github.com/beyondautomation/spot2/operator"
	"github.com/beyondautomation/spot2/query"
	"github.com/beyondautomation/spot2/relation"
)

// All executes the query and returns the hydrated collection.
func (m *Mapper) All(ctx context.Context, q *query.Query) (*entity.Collection, error) {
	return m.RunQuery(ctx, relation.NewLoadContext(m.maxEagerDepth), q)
}

// First executes the query limited to one row. Returns spot2.ErrNotFound
// when nothing matches.
func (m *Mapper) First(ctx context.Context, q *query.Query) (*entity.Entity, error) {
	results, err := m.All(ctx, q.Limit(1))
	if err != nil {
		return nil, err
	}
	if results.Len() == 0 {
		return nil, spot2.ErrNotFound
	}
	return results.First(), nil
}

// Get looks up one entity by primary key. Returns spot2.ErrNotFound when
// absent.
func (m *Mapper) Get(ctx context.Context, entityType string, pkValue any) (*entity.Entity, error) {
	t, err := m.types.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	pk, err := t.PrimaryKeyField()
	if err != nil {
		return nil, err
	}
	q, err := m.NewQuery(entityType)
	if err != nil {
		return nil, err
	}
	return m.First(ctx, q.Where(map[string]any{pk.Name: pkValue}))
}

// Count returns the number of rows the query matches, ignoring its limit
// and eager-load paths.
func (m *Mapper) Count(ctx context.Context, q *query.Query) (int64, error) {
	req, err := q.ReadRequest()
	if err != nil {
		return 0, err
	}
	req.Columns = []string{"COUNT(*) AS cnt"}
	req.OrderBy = nil
	req.Limit = 0
	req.Offset = 0

	rows, err := m.backend.ExecuteRead(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	count, err := convert.FromStorage(metadata.TypeInteger, rows[0]["cnt"])
	if err != nil {
		return 0, fmt.Errorf("mapper: count: %w", err)
	}
	return count.(int64), nil
}

// Save persists one entity: insert when new, dirty-fields-only update
// otherwise. Backend-assigned identities are written back onto the entity,
// and pending modifications fold into the loaded view on success.
func (m *Mapper) Save(ctx context.Context, e *entity.Entity) error {
	t, err := m.types.Lookup(e.TypeName())
	if err != nil {
		return err
	}
	if e.IsNew() {
		return m.insert(ctx, t, e)
	}
	return m.update(ctx, t, e)
}

// SaveEntity implements relation.WriteSource.
func (m *Mapper) SaveEntity(ctx context.Context, e *entity.Entity) error {
	return m.Save(ctx, e)
}

func (m *Mapper) insert(ctx context.Context, t *metadata.EntityType, e *entity.Entity) error {
	values := make(map[string]any)
	for i := range t.Fields {
		field := &t.Fields[i]
		raw := e.Get(field.Name)
		if raw == nil {
			if field.AutoIncrement {
				continue
			}
			if field.Default != nil && !e.Has(field.Name) {
				raw = field.Default
			}
		}
		if raw == nil && !e.Has(field.Name) {
			continue
		}
		stored, err := convert.ToStorage(field.Type, raw)
		if err != nil {
			return fmt.Errorf("mapper: save %s.%s: %w", t.Name, field.Name, err)
		}
		values[field.Name] = stored
	}

	result, err := m.backend.ExecuteWrite(ctx, backend.WriteRequest{
		Kind:   backend.WriteInsert,
		Table:  t.Table,
		Values: values,
	})
	if err != nil {
		return err
	}
	if result.HasNewIdentity {
		if pk, pkErr := t.PrimaryKeyField(); pkErr == nil && e.Get(pk.Name) == nil {
			e.Set(pk.Name, result.NewIdentity)
		}
	}
	e.MarkPersisted()
	return nil
}

func (m *Mapper) update(ctx context.Context, t *metadata.EntityType, e *entity.Entity) error {
	if !e.IsModified() {
		return nil
	}
	pk, err := t.PrimaryKeyField()
	if err != nil {
		return err
	}
	pkValue := e.Get(pk.Name)
	if pkValue == nil {
		return fmt.Errorf("mapper: update %s: entity has no %s value", t.Name, pk.Name)
	}

	values := make(map[string]any)
	for name, raw := range e.Modified() {
		field := t.FieldNamed(name)
		if field == nil {
			values[name] = raw
			continue
		}
		stored, err := convert.ToStorage(field.Type, raw)
		if err != nil {
			return fmt.Errorf("mapper: save %s.%s: %w", t.Name, name, err)
		}
		values[name] = stored
	}

	where, err := operator.Compile(m.operators, map[string]any{pk.Name: pkValue}, operator.And)
	if err != nil {
		return err
	}
	_, err = m.backend.ExecuteWrite(ctx, backend.WriteRequest{
		Kind:   backend.WriteUpdate,
		Table:  t.Table,
		Values: values,
		Where:  where,
	})
	if err != nil {
		return err
	}
	e.MarkPersisted()
	return nil
}

// Delete removes one entity by primary key.
func (m *Mapper) Delete(ctx context.Context, e *entity.Entity) error {
	t, err := m.types.Lookup(e.TypeName())
	if err != nil {
		return err
	}
	pk, err := t.PrimaryKeyField()
	if err != nil {
		return err
	}
	pkValue := e.Get(pk.Name)
	if pkValue == nil {
		return fmt.Errorf("mapper: delete %s: entity has no %s value", t.Name, pk.Name)
	}
	return m.DeleteWhere(ctx, t.Name, map[string]any{pk.Name: pkValue})
}

// DeleteWhere implements relation.WriteSource: delete rows matching the
// condition map.
func (m *Mapper) DeleteWhere(ctx context.Context, entityType string, conds map[string]any) error {
	t, err := m.types.Lookup(entityType)
	if err != nil {
		return err
	}
	where, err := operator.Compile(m.operators, conds, operator.And)
	if err != nil {
		return err
	}
	_, err = m.backend.ExecuteWrite(ctx, backend.WriteRequest{
		Kind:  backend.WriteDelete,
		Table: t.Table,
		Where: where,
	})
	return err
}

// UpdateWhere implements relation.WriteSource: update fields on rows
// matching the condition map.
func (m *Mapper) UpdateWhere(ctx context.Context, entityType string, values, conds map[string]any) error {
	t, err := m.types.Lookup(entityType)
	if err != nil {
		return err
	}
	converted := make(map[string]any, len(values))
	for name, raw := range values {
		field := t.FieldNamed(name)
		if field == nil {
			converted[name] = raw
			continue
		}
		stored, err := convert.ToStorage(field.Type, raw)
		if err != nil {
			return fmt.Errorf("mapper: update %s.%s: %w", t.Name, name, err)
		}
		converted[name] = stored
	}
	where, err := operator.Compile(m.operators, conds, operator.And)
	if err != nil {
		return err
	}
	_, err = m.backend.ExecuteWrite(ctx, backend.WriteRequest{
		Kind:   backend.WriteUpdate,
		Table:  t.Table,
		Values: converted,
		Where:  where,
	})
	return err
}

// InsertRow implements relation.WriteSource: insert a bare row, used for
// pivot membership.
func (m *Mapper) InsertRow(ctx context.Context, entityType string, values map[string]any) error {
	t, err := m.types.Lookup(entityType)
	if err != nil {
		return err
	}
	_, err = m.backend.ExecuteWrite(ctx, backend.WriteRequest{
		Kind:   backend.WriteInsert,
		Table:  t.Table,
		Values: values,
	})
	return err
}

// SaveRelation persists the given relation value for an owner entity,
// diffing stored membership where the relation kind calls for it.
func (m *Mapper) SaveRelation(ctx context.Context, owner *entity.Entity, name string, value any) error {
	t, err := m.types.Lookup(owner.TypeName())
	if err != nil {
		return err
	}
	return relation.SaveOnOwner(ctx, m, t, owner, name, value)
}

// With eager-loads relation paths onto an already-hydrated collection.
func (m *Mapper) With(ctx context.Context, c *entity.Collection, paths ...string) error {
	return relation.EagerLoad(ctx, m, relation.NewLoadContext(m.maxEagerDepth), c, paths)
}
