package backend

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/beyondautomation/spot2/logging"
	"github.com/beyondautomation/spot2/sqlutil"
)

// SQLBackend executes requests against a database/sql handle, rendering SQL
// with squirrel and question-mark placeholders.
type SQLBackend struct {
	db *sql.DB
}

// NewSQLBackend wraps a database handle.
func NewSQLBackend(db *sql.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

// ExecuteRead renders and runs a SELECT, scanning every row into a
// column-keyed map.
func (b *SQLBackend) ExecuteRead(ctx context.Context, req ReadRequest) ([]map[string]any, error) {
	if b.db == nil {
		return nil, sql.ErrConnDone
	}

	columns := req.Columns
	if len(columns) == 0 {
		columns = []string{"*"}
	} else {
		quoted := make([]string, len(columns))
		for i, col := range columns {
			quoted[i] = sqlutil.QuoteColumn(col)
		}
		columns = quoted
	}

	builder := sq.Select(columns...).From(sqlutil.QuoteIdentifier(req.Table))
	if req.Where != nil {
		builder = builder.Where(req.Where)
	}
	for _, clause := range req.OrderBy {
		builder = builder.OrderBy(clause)
	}
	if req.Limit > 0 {
		builder = builder.Limit(req.Limit)
	}
	if req.Offset > 0 {
		builder = builder.Offset(req.Offset)
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, fmt.Errorf("backend: render read: %w", err)
	}
	logging.FromContext(ctx).Debug("executing read", "sql", query, "args", args)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// ExecuteWrite renders and runs an INSERT, UPDATE, or DELETE.
func (b *SQLBackend) ExecuteWrite(ctx context.Context, req WriteRequest) (WriteResult, error) {
	if b.db == nil {
		return WriteResult{}, sql.ErrConnDone
	}

	var (
		query string
		args  []any
		err   error
	)
	switch req.Kind {
	case WriteInsert:
		builder := sq.Insert(sqlutil.QuoteIdentifier(req.Table))
		cols, vals := sortedColumnsAndValues(req.Values)
		builder = builder.Columns(cols...).Values(vals...)
		query, args, err = builder.PlaceholderFormat(sq.Question).ToSql()
	case WriteUpdate:
		builder := sq.Update(sqlutil.QuoteIdentifier(req.Table))
		cols, vals := sortedColumnsAndValues(req.Values)
		for i, col := range cols {
			builder = builder.Set(col, vals[i])
		}
		if req.Where != nil {
			builder = builder.Where(req.Where)
		}
		query, args, err = builder.PlaceholderFormat(sq.Question).ToSql()
	case WriteDelete:
		builder := sq.Delete(sqlutil.QuoteIdentifier(req.Table))
		if req.Where != nil {
			builder = builder.Where(req.Where)
		}
		query, args, err = builder.PlaceholderFormat(sq.Question).ToSql()
	default:
		return WriteResult{}, fmt.Errorf("backend: unknown write kind %d", req.Kind)
	}
	if err != nil {
		return WriteResult{}, fmt.Errorf("backend: render write: %w", err)
	}
	logging.FromContext(ctx).Debug("executing write", "sql", query, "args", args)

	result, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return WriteResult{}, err
	}

	out := WriteResult{}
	if affected, err := result.RowsAffected(); err == nil {
		out.AffectedCount = affected
	}
	if req.Kind == WriteInsert {
		if id, err := result.LastInsertId(); err == nil && id != 0 {
			out.NewIdentity = id
			out.HasNewIdentity = true
		}
	}
	return out, nil
}

// QuoteIdentifier quotes a table or column name for this backend's dialect.
func (b *SQLBackend) QuoteIdentifier(name string) string {
	return sqlutil.QuoteIdentifier(name)
}

func sortedColumnsAndValues(values map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	quoted := make([]string, len(cols))
	vals := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = sqlutil.QuoteIdentifier(col)
		vals[i] = values[col]
	}
	return quoted, vals
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// normalizeValue converts driver []byte payloads to strings so downstream
// comparisons and map keys behave consistently across drivers.
func normalizeValue(val any) any {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}
