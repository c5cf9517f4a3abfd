package operator

import (
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/beyondautomation/spot2/convert"
	"github.com/beyondautomation/spot2/metadata"
	"github.com/beyondautomation/spot2/sqlutil"
)

// Connective joins compiled condition fragments.
type Connective string

const (
	// And is the default connective.
	And Connective = "AND"
	// Or joins fragments disjunctively.
	Or Connective = "OR"
)

// Compile parses a map of "field" or "field <operator-token>" keys into SQL
// fragments and joins them with the connective. Keys are processed in sorted
// order so output is deterministic.
func Compile(reg *Registry, conds map[string]any, conn Connective) (sq.Sqlizer, error) {
	return CompileQualified(reg, "", conds, conn)
}

// CompileQualified compiles conditions with column names qualified by a
// table name or alias.
func CompileQualified(reg *Registry, qualifier string, conds map[string]any, conn Connective) (sq.Sqlizer, error) {
	if len(conds) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(conds))
	for key := range conds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fragments := make([]sq.Sqlizer, 0, len(keys))
	for _, key := range keys {
		field, token := splitConditionKey(key)
		var builder Builder
		if token == "" {
			builder = equalsBuilder{}
		} else {
			resolved, err := reg.Resolve(token)
			if err != nil {
				return nil, err
			}
			builder = resolved
		}
		fragment, err := builder.Fragment(quoteField(qualifier, field), coerceTemporal(conds[key]))
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}

	if len(fragments) == 1 {
		return fragments[0], nil
	}
	if conn == Or {
		return sq.Or(fragments), nil
	}
	return sq.And(fragments), nil
}

// splitConditionKey separates a condition key into field and operator token.
// Multi-word keys split on the last whitespace-delimited token; single-word
// keys have no token and default to equality.
func splitConditionKey(key string) (field, token string) {
	trimmed := strings.TrimSpace(key)
	idx := strings.LastIndexAny(trimmed, " \t")
	if idx < 0 {
		return trimmed, ""
	}
	return strings.TrimSpace(trimmed[:idx]), trimmed[idx+1:]
}

// quoteField quotes plain identifiers and leaves expressions untouched.
func quoteField(qualifier, field string) string {
	if !isPlainIdentifier(field) {
		return field
	}
	return sqlutil.QuoteQualified(qualifier, field)
}

func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// coerceTemporal converts time values (including inside arrays) to the
// backend storage representation so they are bound as parameters, never
// compiled as literal SQL.
func coerceTemporal(value any) any {
	switch v := value.(type) {
	case time.Time:
		converted, err := convert.ToStorage(metadata.TypeDatetime, v)
		if err != nil {
			return v
		}
		return converted
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = coerceTemporal(item)
		}
		return out
	case []time.Time:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = coerceTemporal(item)
		}
		return out
	default:
		return value
	}
}
