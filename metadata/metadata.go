// Package metadata describes entity types declaratively: fields with their
// storage attributes, the primary key, and named relation definitions. It is
// the metadata provider the mapper and relation engine consume.
package metadata

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"

	"github.com/beyondautomation/spot2"
)

// FieldType identifies the storage representation of a field.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeText       FieldType = "text"
	TypeInteger    FieldType = "integer"
	TypeFloat      FieldType = "float"
	TypeBoolean    FieldType = "boolean"
	TypeDatetime   FieldType = "datetime"
	TypeDate       FieldType = "date"
	TypeUUID       FieldType = "uuid"
	TypeSerialized FieldType = "serialized"
)

// Field describes one column of an entity type.
type Field struct {
	Name     string
	Type     FieldType
	Primary  bool
	Unique   bool
	Nullable bool
	Default  any
	// AutoIncrement marks integer primary keys assigned by the backend.
	AutoIncrement bool
}

// EntityType is the declarative description of one mapped entity.
type EntityType struct {
	Name      string
	Table     string
	Fields    []Field
	Relations map[string]RelationDef
}

// FieldNamed returns the field definition for name, or nil.
func (t *EntityType) FieldNamed(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// PrimaryKeyField returns the primary key field, or an error when the type
// defines none.
func (t *EntityType) PrimaryKeyField() (*Field, error) {
	for i := range t.Fields {
		if t.Fields[i].Primary {
			return &t.Fields[i], nil
		}
	}
	return nil, spot2.NewMissingPrimaryKeyError(t.Name)
}

// RelationNamed returns the relation definition for name.
func (t *EntityType) RelationNamed(name string) (RelationDef, error) {
	if def, ok := t.Relations[name]; ok {
		return def, nil
	}
	return RelationDef{}, spot2.NewUnknownRelationError(t.Name, name)
}

// RelationNames returns the defined relation names in sorted order.
func (t *EntityType) RelationNames() []string {
	names := make([]string, 0, len(t.Relations))
	for name := range t.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the known entity types. Registration happens at startup;
// lookups are safe for concurrent use afterwards.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
}

// NewRegistry returns an empty entity type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*EntityType)}
}

// Register adds an entity type. The table name defaults to the pluralized
// snake_case entity name when unset. Registering a duplicate name or a type
// whose relations reference themselves inconsistently is a configuration
// error.
func (r *Registry) Register(t *EntityType) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("metadata: entity type must have a name")
	}
	if t.Table == "" {
		t.Table = DefaultTableName(t.Name)
	}
	if t.Relations == nil {
		t.Relations = make(map[string]RelationDef)
	}
	for name, def := range t.Relations {
		if err := def.validate(); err != nil {
			return fmt.Errorf("metadata: relation %s.%s: %w", t.Name, name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t.Name]; ok {
		return fmt.Errorf("metadata: entity type %s already registered", t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// MustRegister registers t and panics on configuration errors. Intended for
// startup wiring only.
func (r *Registry) MustRegister(t *EntityType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the entity type registered under name.
func (r *Registry) Lookup(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("metadata: unknown entity type %s", name)
	}
	return t, nil
}

// Names returns all registered entity type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultTableName derives a table name from an entity type name:
// "PostComment" becomes "post_comments".
func DefaultTableName(entityName string) string {
	return inflection.Plural(toSnake(entityName))
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
