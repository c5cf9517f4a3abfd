// Package sqlutil provides identifier quoting shared by the operator
// compiler and the SQL backend.
package sqlutil

import "strings"

// QuoteIdentifier quotes a table or column name with backticks, escaping
// embedded backticks by doubling them.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteQualified quotes a column name optionally qualified by a table or
// alias, as in "table.column".
func QuoteQualified(qualifier, column string) string {
	if qualifier == "" {
		return QuoteIdentifier(column)
	}
	return QuoteIdentifier(qualifier) + "." + QuoteIdentifier(column)
}

// QuoteColumn quotes plain column names and passes expressions (anything
// carrying characters outside [A-Za-z0-9_]) through untouched, so selection
// lists may mix identifiers with aggregates like "COUNT(*) AS cnt".
func QuoteColumn(name string) string {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return name
		}
	}
	return QuoteIdentifier(name)
}
