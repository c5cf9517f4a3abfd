// Package backend defines the persistence boundary the mapper and relation
// engine talk to: structured read and write requests in, rows or affected
// counts out. The core never renders backend-specific SQL itself beyond the
// fragments carried inside a request.
package backend

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// ReadRequest describes one SELECT against a single table.
type ReadRequest struct {
	Table   string
	Columns []string
	Where   sq.Sqlizer
	// OrderBy entries are "column" or "column DESC" pairs, already validated
	// by the query layer.
	OrderBy []string
	Limit   uint64
	Offset  uint64
}

// WriteRequest describes one INSERT, UPDATE, or DELETE against a single
// table. Kind dispatches; Values is ignored for deletes, Where for inserts.
type WriteRequest struct {
	Kind   WriteKind
	Table  string
	Values map[string]any
	Where  sq.Sqlizer
}

// WriteKind selects the write statement shape.
type WriteKind int

const (
	// WriteInsert inserts Values as a new row.
	WriteInsert WriteKind = iota
	// WriteUpdate updates Values on rows matching Where.
	WriteUpdate
	// WriteDelete deletes rows matching Where.
	WriteDelete
)

// WriteResult reports the outcome of a write.
type WriteResult struct {
	// AffectedCount is the number of rows touched.
	AffectedCount int64
	// NewIdentity is the backend-assigned identity for inserts, when the
	// backend produces one.
	NewIdentity int64
	// HasNewIdentity reports whether NewIdentity is meaningful.
	HasNewIdentity bool
}

// Backend executes structured requests. Implementations own connection
// management, dialect syntax, and transient-failure behavior; errors they
// return propagate unchanged through the core.
type Backend interface {
	ExecuteRead(ctx context.Context, req ReadRequest) ([]map[string]any, error)
	ExecuteWrite(ctx context.Context, req WriteRequest) (WriteResult, error)
	QuoteIdentifier(name string) string
}
