// Package entity holds the generic entity record and ordered collections of
// entities. An entity keeps its loaded values and its pending modifications
// in separate maps so the original and modified views never alias, and owns
// a private side-table of relation values keyed by relation name.
package entity

import (
	"reflect"
	"sort"
)

// RelationUnset is the sentinel passed to Relation to clear a stored
// relation value.
type relationUnset struct{}

// Unset clears a relation when passed as the value to Relation.
var Unset = relationUnset{}

// Entity is a typed record hydrated from storage or built by the caller.
type Entity struct {
	typeName string
	loaded   map[string]any
	modified map[string]any
	isNew    bool
	// relations is the per-instance side-table for lazy proxies and
	// eager-loaded values, scoped to this entity's lifetime.
	relations map[string]any
}

// New returns a fresh, unpersisted entity of the given type with the given
// initial field values, all considered modified.
func New(typeName string, fields map[string]any) *Entity {
	e := &Entity{
		typeName:  typeName,
		loaded:    make(map[string]any),
		modified:  make(map[string]any, len(fields)),
		isNew:     true,
		relations: make(map[string]any),
	}
	for name, value := range fields {
		e.modified[name] = value
	}
	return e
}

// Hydrate returns a persisted entity whose fields come straight from a
// storage row. Nothing is considered modified.
func Hydrate(typeName string, row map[string]any) *Entity {
	e := &Entity{
		typeName:  typeName,
		loaded:    make(map[string]any, len(row)),
		modified:  make(map[string]any),
		relations: make(map[string]any),
	}
	for name, value := range row {
		e.loaded[name] = value
	}
	return e
}

// TypeName returns the entity type name this record belongs to.
func (e *Entity) TypeName() string { return e.typeName }

// IsNew reports whether the entity has never been persisted.
func (e *Entity) IsNew() bool { return e.isNew }

// Get returns the current value of a field: the pending modification when
// one exists, the loaded value otherwise.
func (e *Entity) Get(name string) any {
	if value, ok := e.modified[name]; ok {
		return value
	}
	return e.loaded[name]
}

// Has reports whether the field carries any value, loaded or modified.
func (e *Entity) Has(name string) bool {
	if _, ok := e.modified[name]; ok {
		return true
	}
	_, ok := e.loaded[name]
	return ok
}

// Set records a pending modification. Setting a field back to its loaded
// value clears the modification. Non-comparable values, such as decoded
// serialized fields, always mark the field dirty.
func (e *Entity) Set(name string, value any) {
	if loaded, ok := e.loaded[name]; ok && bothComparable(loaded, value) && loaded == value {
		delete(e.modified, name)
		return
	}
	e.modified[name] = value
}

func bothComparable(a, b any) bool {
	if a == nil || b == nil {
		return true
	}
	return reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable()
}

// Fields returns a snapshot of the current field view, modifications
// overlaid on loaded values.
func (e *Entity) Fields() map[string]any {
	out := make(map[string]any, len(e.loaded)+len(e.modified))
	for name, value := range e.loaded {
		out[name] = value
	}
	for name, value := range e.modified {
		out[name] = value
	}
	return out
}

// Modified returns a snapshot of the pending modifications only.
func (e *Entity) Modified() map[string]any {
	out := make(map[string]any, len(e.modified))
	for name, value := range e.modified {
		out[name] = value
	}
	return out
}

// ModifiedFields returns the names of fields with pending modifications in
// sorted order.
func (e *Entity) ModifiedFields() []string {
	names := make([]string, 0, len(e.modified))
	for name := range e.modified {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsModified reports whether any field has a pending modification.
func (e *Entity) IsModified() bool { return len(e.modified) > 0 }

// MarkPersisted folds pending modifications into the loaded view and clears
// the new flag. Called by the mapper after a successful save.
func (e *Entity) MarkPersisted() {
	for name, value := range e.modified {
		e.loaded[name] = value
	}
	e.modified = make(map[string]any)
	e.isNew = false
}

// Relation reads or writes the relation side-table. With no value it returns
// the stored relation (a lazy proxy, an entity, a collection, or nil when
// never set). With a value it stores it; passing Unset clears the slot.
func (e *Entity) Relation(name string, value ...any) any {
	if len(value) == 0 {
		return e.relations[name]
	}
	if _, ok := value[0].(relationUnset); ok {
		delete(e.relations, name)
		return nil
	}
	e.relations[name] = value[0]
	return value[0]
}

// HasRelation reports whether the side-table holds a value for name.
func (e *Entity) HasRelation(name string) bool {
	_, ok := e.relations[name]
	return ok
}

// RelationNames returns the names present in the relation side-table in
// sorted order.
func (e *Entity) RelationNames() []string {
	names := make([]string, 0, len(e.relations))
	for name := range e.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
