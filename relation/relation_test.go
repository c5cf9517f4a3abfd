package relation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/metadata"
	"github.com/beyondautomation/spot2/operator"
	"github.com/beyondautomation/spot2/query"
)

// fakeSource serves scripted collections in order and records every query
// it ran, so tests can assert query counts and generated SQL.
type fakeSource struct {
	t      *testing.T
	types  *metadata.Registry
	ops    *operator.Registry
	scopes map[string]query.Scopes
	batch  int

	results []*entity.Collection
	ran     []*query.Query
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	return &fakeSource{
		t:      t,
		types:  blogTypes(t),
		ops:    operator.NewRegistry(),
		scopes: make(map[string]query.Scopes),
		batch:  1000,
	}
}

func (s *fakeSource) expect(results ...*entity.Collection) {
	s.results = append(s.results, results...)
}

func (s *fakeSource) EntityType(name string) (*metadata.EntityType, error) {
	return s.types.Lookup(name)
}

func (s *fakeSource) NewQuery(entityType string) (*query.Query, error) {
	t, err := s.types.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	return query.New(t.Name, t.Table, s.ops), nil
}

func (s *fakeSource) RunQuery(ctx context.Context, lc LoadContext, q *query.Query) (*entity.Collection, error) {
	if err := q.Err(); err != nil {
		return nil, err
	}
	s.ran = append(s.ran, q)
	require.NotEmpty(s.t, s.results, "unexpected query against %s", q.Table())
	next := s.results[0]
	s.results = s.results[1:]
	return next, nil
}

func (s *fakeSource) Scopes(entityType string) query.Scopes {
	return s.scopes[entityType]
}

func (s *fakeSource) BatchMaxInClause() int { return s.batch }

// fakeWriteSource records write calls and assigns primary keys to new
// entities on save.
type fakeWriteSource struct {
	*fakeSource

	nextID  int64
	saved   []*entity.Entity
	inserts []map[string]any
	updates []map[string]any
	deletes []map[string]any
}

func newFakeWriteSource(t *testing.T) *fakeWriteSource {
	t.Helper()
	return &fakeWriteSource{fakeSource: newFakeSource(t), nextID: 100}
}

func (s *fakeWriteSource) SaveEntity(ctx context.Context, e *entity.Entity) error {
	s.saved = append(s.saved, e)
	if e.IsNew() {
		t, err := s.types.Lookup(e.TypeName())
		if err != nil {
			return err
		}
		pk, err := t.PrimaryKeyField()
		if err != nil {
			return err
		}
		if e.Get(pk.Name) == nil {
			s.nextID++
			e.Set(pk.Name, s.nextID)
		}
	}
	e.MarkPersisted()
	return nil
}

func (s *fakeWriteSource) DeleteWhere(ctx context.Context, entityType string, conds map[string]any) error {
	s.deletes = append(s.deletes, map[string]any{"type": entityType, "conds": conds})
	return nil
}

func (s *fakeWriteSource) UpdateWhere(ctx context.Context, entityType string, values, conds map[string]any) error {
	s.updates = append(s.updates, map[string]any{"type": entityType, "values": values, "conds": conds})
	return nil
}

func (s *fakeWriteSource) InsertRow(ctx context.Context, entityType string, values map[string]any) error {
	s.inserts = append(s.inserts, map[string]any{"type": entityType, "values": values})
	return nil
}

func blogTypes(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry()
	reg.MustRegister(&metadata.EntityType{
		Name: "Post",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "title", Type: metadata.TypeString},
			{Name: "author_id", Type: metadata.TypeInteger, Nullable: true},
		},
		Relations: map[string]metadata.RelationDef{
			"comments": metadata.HasMany("Comment", "post_id"),
			"author":   metadata.BelongsTo("Author", "author_id"),
			"tags":     metadata.HasManyThrough("Tag", "PostTag", "post_id", "tag_id"),
		},
	})
	reg.MustRegister(&metadata.EntityType{
		Name: "Comment",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "post_id", Type: metadata.TypeInteger, Nullable: true},
			{Name: "body", Type: metadata.TypeText},
		},
		Relations: map[string]metadata.RelationDef{
			"post": metadata.BelongsTo("Post", "post_id"),
		},
	})
	reg.MustRegister(&metadata.EntityType{
		Name: "Author",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "name", Type: metadata.TypeString},
		},
	})
	reg.MustRegister(&metadata.EntityType{
		Name: "Tag",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "name", Type: metadata.TypeString},
		},
	})
	reg.MustRegister(&metadata.EntityType{
		Name:  "PostTag",
		Table: "post_tags",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "post_id", Type: metadata.TypeInteger},
			{Name: "tag_id", Type: metadata.TypeInteger},
		},
	})
	return reg
}

func hydratePosts(ids ...int64) *entity.Collection {
	entities := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, entity.Hydrate("Post", map[string]any{
			"id":    id,
			"title": fmt.Sprintf("post %d", id),
		}))
	}
	return entity.NewCollection(entities, "id")
}

func hydrateComments(postIDs ...int64) *entity.Collection {
	entities := make([]*entity.Entity, 0, len(postIDs))
	for i, postID := range postIDs {
		entities = append(entities, entity.Hydrate("Comment", map[string]any{
			"id":      int64(i + 1),
			"post_id": postID,
			"body":    fmt.Sprintf("comment %d", i+1),
		}))
	}
	return entity.NewCollection(entities, "id")
}

func hydrateTags(ids ...int64) *entity.Collection {
	entities := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, entity.Hydrate("Tag", map[string]any{
			"id":   id,
			"name": fmt.Sprintf("tag %d", id),
		}))
	}
	return entity.NewCollection(entities, "id")
}

func hydratePivot(pairs ...[2]int64) *entity.Collection {
	entities := make([]*entity.Entity, 0, len(pairs))
	for i, pair := range pairs {
		entities = append(entities, entity.Hydrate("PostTag", map[string]any{
			"id":      int64(i + 1),
			"post_id": pair[0],
			"tag_id":  pair[1],
		}))
	}
	return entity.NewCollection(entities, "id")
}

// whereSQL renders a query's where clause for assertions.
func whereSQL(t *testing.T, q *query.Query) (string, []any) {
	t.Helper()
	req, err := q.ReadRequest()
	require.NoError(t, err)
	require.NotNil(t, req.Where)
	sql, args, err := req.Where.ToSql()
	require.NoError(t, err)
	return sql, args
}
