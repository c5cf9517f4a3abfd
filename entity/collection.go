package entity

import "fmt"

// Collection is an ordered sequence of entities plus the deduplicated list
// of their identity values, fixed at construction. The identity list seeds
// relation batch queries without re-scanning the collection; appending
// entities later does not extend it.
type Collection struct {
	entities   []*Entity
	identities []any
}

// NewCollection builds a collection over entities, deduplicating the given
// identity field's values in encounter order.
func NewCollection(entities []*Entity, identityField string) *Collection {
	c := &Collection{entities: entities}
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		raw := e.Get(identityField)
		if raw == nil {
			continue
		}
		key := fmt.Sprint(raw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		c.identities = append(c.identities, raw)
	}
	return c
}

// NewCollectionWithIdentities builds a collection with an explicit identity
// list, used when the identities were computed elsewhere.
func NewCollectionWithIdentities(entities []*Entity, identities []any) *Collection {
	return &Collection{entities: entities, identities: identities}
}

// Entities returns the underlying entity slice.
func (c *Collection) Entities() []*Entity {
	if c == nil {
		return nil
	}
	return c.entities
}

// Identities returns the identity values captured at construction.
func (c *Collection) Identities() []any {
	if c == nil {
		return nil
	}
	return c.identities
}

// Len returns the number of entities.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entities)
}

// First returns the first entity, or nil when empty.
func (c *Collection) First() *Entity {
	if c.Len() == 0 {
		return nil
	}
	return c.entities[0]
}

// Add appends an entity. The identity list stays fixed.
func (c *Collection) Add(e *Entity) {
	c.entities = append(c.entities, e)
}
