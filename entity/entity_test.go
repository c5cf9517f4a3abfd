package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityDirtyTracking(t *testing.T) {
	t.Run("new entities start with every field pending", func(t *testing.T) {
		e := New("Post", map[string]any{"title": "draft"})
		assert.True(t, e.IsNew())
		assert.True(t, e.IsModified())
		assert.Equal(t, "draft", e.Get("title"))
		assert.Equal(t, []string{"title"}, e.ModifiedFields())
	})

	t.Run("hydrated entities start clean", func(t *testing.T) {
		e := Hydrate("Post", map[string]any{"id": int64(1), "title": "stored"})
		assert.False(t, e.IsNew())
		assert.False(t, e.IsModified())
	})

	t.Run("modifications overlay loaded values", func(t *testing.T) {
		e := Hydrate("Post", map[string]any{"id": int64(1), "title": "stored"})
		e.Set("title", "edited")
		assert.Equal(t, "edited", e.Get("title"))
		assert.Equal(t, map[string]any{"title": "edited"}, e.Modified())
		assert.Equal(t, map[string]any{"id": int64(1), "title": "edited"}, e.Fields())
	})

	t.Run("setting a field back to its loaded value clears the modification", func(t *testing.T) {
		e := Hydrate("Post", map[string]any{"title": "stored"})
		e.Set("title", "edited")
		require.True(t, e.IsModified())
		e.Set("title", "stored")
		assert.False(t, e.IsModified())
	})

	t.Run("non-comparable values mark the field dirty without panicking", func(t *testing.T) {
		e := Hydrate("Post", map[string]any{"meta": map[string]any{"a": 1}})
		e.Set("meta", map[string]any{"a": 2})
		assert.True(t, e.IsModified())
		assert.Equal(t, map[string]any{"a": 2}, e.Get("meta"))
	})

	t.Run("setting a non-comparable field to its loaded instance stays dirty", func(t *testing.T) {
		tags := []any{"go"}
		e := Hydrate("Post", map[string]any{"tags": tags})
		e.Set("tags", tags)
		assert.True(t, e.IsModified())
	})

	t.Run("nil clears a modification over a nil loaded value", func(t *testing.T) {
		e := Hydrate("Post", map[string]any{"meta": nil})
		e.Set("meta", map[string]any{"a": 1})
		require.True(t, e.IsModified())
		e.Set("meta", nil)
		assert.False(t, e.IsModified())
	})

	t.Run("mark persisted folds changes and clears the new flag", func(t *testing.T) {
		e := New("Post", map[string]any{"title": "draft"})
		e.MarkPersisted()
		assert.False(t, e.IsNew())
		assert.False(t, e.IsModified())
		assert.Equal(t, "draft", e.Get("title"))
	})
}

func TestEntityRelationSideTable(t *testing.T) {
	e := Hydrate("Post", map[string]any{"id": int64(1)})

	t.Run("unset relations read as nil", func(t *testing.T) {
		assert.Nil(t, e.Relation("comments"))
		assert.False(t, e.HasRelation("comments"))
	})

	t.Run("stored values read back", func(t *testing.T) {
		related := Hydrate("Author", map[string]any{"id": int64(2)})
		e.Relation("author", related)
		assert.Same(t, related, e.Relation("author"))
		assert.True(t, e.HasRelation("author"))
	})

	t.Run("relations never appear as fields", func(t *testing.T) {
		_, ok := e.Fields()["author"]
		assert.False(t, ok)
		assert.False(t, e.IsModified())
	})

	t.Run("unset sentinel clears the slot", func(t *testing.T) {
		e.Relation("author", Unset)
		assert.Nil(t, e.Relation("author"))
		assert.False(t, e.HasRelation("author"))
	})

	t.Run("names come back sorted", func(t *testing.T) {
		e.Relation("tags", "b")
		e.Relation("author", "a")
		assert.Equal(t, []string{"author", "tags"}, e.RelationNames())
	})
}

func TestCollection(t *testing.T) {
	t.Run("captures deduplicated identities in encounter order", func(t *testing.T) {
		c := NewCollection([]*Entity{
			Hydrate("Post", map[string]any{"id": int64(2)}),
			Hydrate("Post", map[string]any{"id": int64(1)}),
			Hydrate("Post", map[string]any{"id": int64(2)}),
			Hydrate("Post", map[string]any{"id": nil}),
		}, "id")
		assert.Equal(t, 4, c.Len())
		assert.Equal(t, []any{int64(2), int64(1)}, c.Identities())
		assert.Equal(t, int64(2), c.First().Get("id"))
	})

	t.Run("adding entities keeps the identity list fixed", func(t *testing.T) {
		c := NewCollection([]*Entity{
			Hydrate("Post", map[string]any{"id": int64(1)}),
		}, "id")
		c.Add(Hydrate("Post", map[string]any{"id": int64(9)}))
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, []any{int64(1)}, c.Identities())
	})

	t.Run("nil collection reads as empty", func(t *testing.T) {
		var c *Collection
		assert.Equal(t, 0, c.Len())
		assert.Nil(t, c.Entities())
		assert.Nil(t, c.Identities())
	})
}
