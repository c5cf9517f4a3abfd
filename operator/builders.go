package operator

import (
	"fmt"
	"reflect"

	sq "github.com/Masterminds/squirrel"

	"github.com/beyondautomation/spot2"
)

// asValueList normalizes any slice value (other than []byte) into []any.
// The second result reports whether value was a slice at all.
func asValueList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []byte:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// equalsBuilder handles scalar equality, IS NULL for nil values, and
// membership for array values.
type equalsBuilder struct{}

func (equalsBuilder) Fragment(column string, value any) (sq.Sqlizer, error) {
	if list, ok := asValueList(value); ok {
		if len(list) == 0 {
			return nil, spot2.NewInvalidOperandError("=", "membership test requires a non-empty array")
		}
		return sq.Eq{column: list}, nil
	}
	return sq.Eq{column: value}, nil
}

// notBuilder is the inverse of equalsBuilder: inequality, IS NOT NULL, and
// negated membership.
type notBuilder struct{}

func (notBuilder) Fragment(column string, value any) (sq.Sqlizer, error) {
	if list, ok := asValueList(value); ok {
		if len(list) == 0 {
			return nil, spot2.NewInvalidOperandError("!=", "membership test requires a non-empty array")
		}
		return sq.NotEq{column: list}, nil
	}
	return sq.NotEq{column: value}, nil
}

// compareBuilder covers the four direct comparisons.
type compareBuilder struct {
	op string
}

func (b compareBuilder) Fragment(column string, value any) (sq.Sqlizer, error) {
	if value == nil {
		return nil, spot2.NewInvalidOperandError(b.op, "comparison requires a scalar, got null")
	}
	if _, ok := asValueList(value); ok {
		return nil, spot2.NewInvalidOperandError(b.op, "comparison requires a scalar, got an array")
	}
	switch b.op {
	case "<":
		return sq.Lt{column: value}, nil
	case "<=":
		return sq.LtOrEq{column: value}, nil
	case ">":
		return sq.Gt{column: value}, nil
	case ">=":
		return sq.GtOrEq{column: value}, nil
	}
	return nil, fmt.Errorf("operator: unknown comparison %q", b.op)
}

// inBuilder is strict membership: the value must be a non-empty array.
type inBuilder struct{}

func (inBuilder) Fragment(column string, value any) (sq.Sqlizer, error) {
	list, ok := asValueList(value)
	if !ok {
		return nil, spot2.NewInvalidOperandError("in", fmt.Sprintf("requires an array, got %T", value))
	}
	if len(list) == 0 {
		return nil, spot2.NewInvalidOperandError("in", "requires a non-empty array")
	}
	return sq.Eq{column: list}, nil
}

// likeBuilder handles pattern matching with SQL wildcards.
type likeBuilder struct {
	negate bool
}

func (b likeBuilder) Fragment(column string, value any) (sq.Sqlizer, error) {
	pattern, ok := value.(string)
	if !ok {
		token := ":like"
		if b.negate {
			token = ":notlike"
		}
		return nil, spot2.NewInvalidOperandError(token, fmt.Sprintf("requires a string pattern, got %T", value))
	}
	if b.negate {
		return sq.NotLike{column: pattern}, nil
	}
	return sq.Like{column: pattern}, nil
}

// regexBuilder emits a backend-dependent REGEXP match.
type regexBuilder struct{}

func (regexBuilder) Fragment(column string, value any) (sq.Sqlizer, error) {
	pattern, ok := value.(string)
	if !ok {
		return nil, spot2.NewInvalidOperandError(":regex", fmt.Sprintf("requires a string pattern, got %T", value))
	}
	return sq.Expr(fmt.Sprintf("%s REGEXP ?", column), pattern), nil
}

// fulltextBuilder emits a MATCH ... AGAINST fragment, natural or boolean
// mode.
type fulltextBuilder struct {
	boolean bool
}

func (b fulltextBuilder) Fragment(column string, value any) (sq.Sqlizer, error) {
	needle, ok := value.(string)
	if !ok {
		token := ":fulltext"
		if b.boolean {
			token = ":fulltext_boolean"
		}
		return nil, spot2.NewInvalidOperandError(token, fmt.Sprintf("requires a string, got %T", value))
	}
	if b.boolean {
		return sq.Expr(fmt.Sprintf("MATCH(%s) AGAINST(? IN BOOLEAN MODE)", column), needle), nil
	}
	return sq.Expr(fmt.Sprintf("MATCH(%s) AGAINST(?)", column), needle), nil
}
