package mapper

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondautomation/spot2"
	"github.com/beyondautomation/spot2/backend"
	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/metadata"
	"github.com/beyondautomation/spot2/query"
	"github.com/beyondautomation/spot2/relation"
)

func testTypes(t *testing.T) *metadata.Registry {
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

func newTestMapper(t *testing.T) (*Mapper, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMapper(backend.NewSQLBackend(db), testTypes(t)), mock
}

func postRows(ids ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title"})
	for _, id := range ids {
		rows.AddRow(id, "title")
	}
	return rows
}

func TestMapperAll_EagerLoadsInOneQueryPerRelation(t *testing.T) {
	m, mock := newTestMapper(t)
	mock.ExpectQuery("SELECT \\* FROM `posts`").
		WillReturnRows(postRows(1, 2, 3))
	mock.ExpectQuery("SELECT \\* FROM `comments` WHERE `post_id` IN \\(\\?,\\?,\\?\\)").
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "body"}).
			AddRow(1, 1, "a").AddRow(2, 1, "b").AddRow(3, 1, "c").
			AddRow(4, 2, "d").AddRow(5, 2, "e").AddRow(6, 2, "f").
			AddRow(7, 3, "g").AddRow(8, 3, "h").AddRow(9, 3, "i"))

	posts, err := m.All(context.Background(), m.Query("Post").With("comments"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Equal(t, 3, posts.Len())
	for _, post := range posts.Entities() {
		comments, ok := post.Relation("comments").(*entity.Collection)
		require.True(t, ok)
		assert.Equal(t, 3, comments.Len())
	}
}

func TestMapperAll_ThroughRelationUsesTwoQueries(t *testing.T) {
	m, mock := newTestMapper(t)
	mock.ExpectQuery("SELECT \\* FROM `posts`").
		WillReturnRows(postRows(1, 2))
	mock.ExpectQuery("SELECT \\* FROM `post_tags` WHERE `post_id` IN \\(\\?,\\?\\)").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "tag_id"}).
			AddRow(1, 1, 10).AddRow(2, 1, 11).AddRow(3, 2, 10))
	mock.ExpectQuery("SELECT \\* FROM `tags` WHERE `id` IN \\(\\?,\\?\\)").
		WithArgs(int64(10), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(10, "go").AddRow(11, "orm"))

	posts, err := m.All(context.Background(), m.Query("Post").With("tags"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	first, ok := posts.Entities()[0].Relation("tags").(*entity.Collection)
	require.True(t, ok)
	second, ok := posts.Entities()[1].Relation("tags").(*entity.Collection)
	require.True(t, ok)
	assert.Equal(t, 2, first.Len())
	require.Equal(t, 1, second.Len())
	assert.Same(t, first.First(), second.First())
}

func TestMapperLazyProxyAfterDepthLimit(t *testing.T) {
	m, mock := newTestMapper(t)
	mock.ExpectQuery("SELECT \\* FROM `posts`").
		WillReturnRows(postRows(1))
	mock.ExpectQuery("SELECT \\* FROM `comments` WHERE `post_id` IN \\(\\?\\)").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "body"}).AddRow(1, 1, "a"))

	posts, err := m.All(context.Background(), m.Query("Post").With("comments"))
	require.NoError(t, err)

	comments := posts.First().Relation("comments").(*entity.Collection)
	comment := comments.First()

	// Depth budget stopped registration on the nested level; the accessor
	// builds a proxy on demand.
	assert.False(t, comment.HasRelation("post"))

	mock.ExpectQuery("SELECT \\* FROM `posts` WHERE `id` IN \\(\\?\\)").
		WithArgs(int64(1)).
		WillReturnRows(postRows(1))

	value, err := m.RelationOf(comment, "post")
	require.NoError(t, err)
	proxy, ok := value.(*relation.Proxy)
	require.True(t, ok)

	post, err := proxy.One(context.Background())
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, int64(1), post.Get("id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapperGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		m, mock := newTestMapper(t)
		mock.ExpectQuery("SELECT \\* FROM `posts` WHERE `id` = \\? LIMIT 1").
			WithArgs(int64(5)).
			WillReturnRows(postRows(5))

		post, err := m.Get(context.Background(), "Post", int64(5))
		require.NoError(t, err)
		assert.Equal(t, int64(5), post.Get("id"))
	})

	t.Run("missing row is ErrNotFound", func(t *testing.T) {
		m, mock := newTestMapper(t)
		mock.ExpectQuery("SELECT \\* FROM `posts` WHERE `id` = \\? LIMIT 1").
			WithArgs(int64(5)).
			WillReturnRows(postRows())

		_, err := m.Get(context.Background(), "Post", int64(5))
		assert.ErrorIs(t, err, spot2.ErrNotFound)
	})

	t.Run("unknown entity type", func(t *testing.T) {
		m, _ := newTestMapper(t)
		_, err := m.Get(context.Background(), "Ghost", int64(1))
		assert.Error(t, err)
	})
}

func TestMapperCount(t *testing.T) {
	m, mock := newTestMapper(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS cnt FROM `posts` WHERE `title` LIKE \\?").
		WithArgs("%go%").
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(7))

	count, err := m.Count(context.Background(), m.Query("Post").Where(map[string]any{"title :like": "%go%"}))
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestMapperSave(t *testing.T) {
	t.Run("insert assigns the backend identity", func(t *testing.T) {
		m, mock := newTestMapper(t)
		mock.ExpectExec("INSERT INTO `posts` \\(`title`\\) VALUES \\(\\?\\)").
			WithArgs("hello").
			WillReturnResult(sqlmock.NewResult(42, 1))

		post := entity.New("Post", map[string]any{"title": "hello"})
		require.NoError(t, m.Save(context.Background(), post))
		require.NoError(t, mock.ExpectationsWereMet())

		assert.Equal(t, int64(42), post.Get("id"))
		assert.False(t, post.IsNew())
		assert.False(t, post.IsModified())
	})

	t.Run("update writes dirty fields only", func(t *testing.T) {
		m, mock := newTestMapper(t)
		mock.ExpectExec("UPDATE `posts` SET `title` = \\? WHERE `id` = \\?").
			WithArgs("edited", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		post := entity.Hydrate("Post", map[string]any{"id": int64(1), "title": "old", "author_id": int64(9)})
		post.Set("title", "edited")
		require.NoError(t, m.Save(context.Background(), post))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.False(t, post.IsModified())
	})

	t.Run("clean persisted entities skip the write", func(t *testing.T) {
		m, mock := newTestMapper(t)
		post := entity.Hydrate("Post", map[string]any{"id": int64(1), "title": "old"})
		require.NoError(t, m.Save(context.Background(), post))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMapperDelete(t *testing.T) {
	m, mock := newTestMapper(t)
	mock.ExpectExec("DELETE FROM `posts` WHERE `id` = \\?").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	post := entity.Hydrate("Post", map[string]any{"id": int64(1)})
	require.NoError(t, m.Delete(context.Background(), post))
	require.NoError(t, mock.ExpectationsWereMet())

	t.Run("missing primary key value", func(t *testing.T) {
		err := m.Delete(context.Background(), entity.Hydrate("Post", map[string]any{"title": "x"}))
		assert.Error(t, err)
	})
}

func TestMapperSaveRelation(t *testing.T) {
	m, mock := newTestMapper(t)
	post := entity.Hydrate("Post", map[string]any{"id": int64(1)})
	fresh := entity.New("Comment", map[string]any{"body": "hi"})

	// Stored members first, then the insert for the new comment.
	mock.ExpectQuery("SELECT \\* FROM `comments` WHERE `post_id` IN \\(\\?\\)").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "body"}))
	mock.ExpectExec("INSERT INTO `comments` \\(`body`,`post_id`\\) VALUES \\(\\?,\\?\\)").
		WithArgs("hi", int64(1)).
		WillReturnResult(sqlmock.NewResult(7, 1))

	err := m.SaveRelation(context.Background(), post, "comments", []*entity.Entity{fresh})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, int64(7), fresh.Get("id"))
	assert.Equal(t, int64(1), fresh.Get("post_id"))
}

func TestMapperRegisterScope(t *testing.T) {
	m, _ := newTestMapper(t)
	recent := func(q *query.Query) error {
		q.Order("id", query.Desc).Limit(5)
		return q.Err()
	}

	require.NoError(t, m.RegisterScope("Comment", "recent", recent))
	require.Contains(t, m.Scopes("Comment"), "recent")

	t.Run("duplicate names are rejected", func(t *testing.T) {
		err := m.RegisterScope("Comment", "recent", recent)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("unknown type has no scopes", func(t *testing.T) {
		assert.Empty(t, m.Scopes("Ghost"))
	})
}
