// Command spot2-demo exercises the mapper against a live database. It
// registers a small blog schema (posts, comments, tags plus a pivot table),
// seeds a few rows and runs eager-loaded reads.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/beyondautomation/spot2/backend"
	"github.com/beyondautomation/spot2/config"
	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/logging"
	"github.com/beyondautomation/spot2/mapper"
	"github.com/beyondautomation/spot2/metadata"
)

func main() {
	if err := run(); err != nil {
		slog.Error("demo error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := sql.Open(cfg.Database.DriverName(), cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)

	ctx := logging.WithLogger(context.Background(), logger)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	types := metadata.NewRegistry()
	registerBlogSchema(types)

	m := mapper.NewMapper(backend.NewSQLBackend(db), types,
		mapper.WithLogger(logger),
		mapper.WithMaxEagerDepth(cfg.Mapper.MaxEagerDepth),
		mapper.WithBatchMaxInClause(cfg.Mapper.BatchMaxInClause),
	)

	if err := createTables(ctx, db, cfg.Database.Driver); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := seed(ctx, m); err != nil {
		return fmt.Errorf("failed to seed data: %w", err)
	}
	return report(ctx, m)
}

func registerBlogSchema(types *metadata.Registry) {
	types.MustRegister(&metadata.EntityType{
		Name: "Post",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "title", Type: metadata.TypeString},
			{Name: "body", Type: metadata.TypeText},
			{Name: "author_id", Type: metadata.TypeInteger, Nullable: true},
			{Name: "created_at", Type: metadata.TypeDatetime, Nullable: true},
		},
		Relations: map[string]metadata.RelationDef{
			"comments": metadata.HasMany("Comment", "post_id"),
			"author":   metadata.BelongsTo("Author", "author_id"),
			"tags":     metadata.HasManyThrough("Tag", "PostTag", "post_id", "tag_id"),
		},
	})
	types.MustRegister(&metadata.EntityType{
		Name: "Comment",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "post_id", Type: metadata.TypeInteger},
			{Name: "body", Type: metadata.TypeText},
		},
		Relations: map[string]metadata.RelationDef{
			"post": metadata.BelongsTo("Post", "post_id"),
		},
	})
	types.MustRegister(&metadata.EntityType{
		Name: "Author",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "name", Type: metadata.TypeString},
		},
		Relations: map[string]metadata.RelationDef{
			"posts": metadata.HasMany("Post", "author_id"),
		},
	})
	types.MustRegister(&metadata.EntityType{
		Name: "Tag",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "name", Type: metadata.TypeString, Unique: true},
		},
	})
	types.MustRegister(&metadata.EntityType{
		Name:  "PostTag",
		Table: "post_tags",
		Fields: []metadata.Field{
			{Name: "id", Type: metadata.TypeInteger, Primary: true, AutoIncrement: true},
			{Name: "post_id", Type: metadata.TypeInteger},
			{Name: "tag_id", Type: metadata.TypeInteger},
		},
	})
}

func createTables(ctx context.Context, db *sql.DB, driver string) error {
	autoinc := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "mysql" {
		autoinc = "BIGINT PRIMARY KEY AUTO_INCREMENT"
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS authors (id %s, name VARCHAR(255))", autoinc),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS posts (id %s, title VARCHAR(255), body TEXT, author_id BIGINT NULL, created_at DATETIME NULL)", autoinc),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS comments (id %s, post_id BIGINT, body TEXT)", autoinc),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS tags (id %s, name VARCHAR(255))", autoinc),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS post_tags (id %s, post_id BIGINT, tag_id BIGINT)", autoinc),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func seed(ctx context.Context, m *mapper.Mapper) error {
	author := entity.New("Author", map[string]any{"name": "Ada"})
	if err := m.Save(ctx, author); err != nil {
		return err
	}

	post := entity.New("Post", map[string]any{
		"title":     "Batched loading",
		"body":      "One query per relation per level.",
		"author_id": author.Get("id"),
	})
	if err := m.Save(ctx, post); err != nil {
		return err
	}

	comments := []*entity.Entity{
		entity.New("Comment", map[string]any{"post_id": post.Get("id"), "body": "First!"}),
		entity.New("Comment", map[string]any{"post_id": post.Get("id"), "body": "Nice writeup."}),
	}
	if err := m.SaveRelation(ctx, post, "comments", comments); err != nil {
		return err
	}

	tag := entity.New("Tag", map[string]any{"name": "orm"})
	if err := m.Save(ctx, tag); err != nil {
		return err
	}
	return m.SaveRelation(ctx, post, "tags", []*entity.Entity{tag})
}

func report(ctx context.Context, m *mapper.Mapper) error {
	q, err := m.NewQuery("Post")
	if err != nil {
		return err
	}
	posts, err := m.All(ctx, q.With("comments", "tags", "author"))
	if err != nil {
		return err
	}

	for _, post := range posts.Entities() {
		fmt.Printf("post %v: %v\n", post.Get("id"), post.Get("title"))
		if comments, ok := post.Relation("comments").(*entity.Collection); ok {
			for _, c := range comments.Entities() {
				fmt.Printf("  comment: %v\n", c.Get("body"))
			}
		}
		if tags, ok := post.Relation("tags").(*entity.Collection); ok {
			for _, t := range tags.Entities() {
				fmt.Printf("  tag: %v\n", t.Get("name"))
			}
		}
	}
	return nil
}
