package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`posts`", QuoteIdentifier("posts"))
	assert.Equal(t, "`weird``name`", QuoteIdentifier("weird`name"))
}

func TestQuoteQualified(t *testing.T) {
	assert.Equal(t, "`posts`.`id`", QuoteQualified("posts", "id"))
	assert.Equal(t, "`id`", QuoteQualified("", "id"))
}

func TestQuoteColumn(t *testing.T) {
	assert.Equal(t, "`title`", QuoteColumn("title"))
	assert.Equal(t, "COUNT(*) AS cnt", QuoteColumn("COUNT(*) AS cnt"))
	assert.Equal(t, "posts.id", QuoteColumn("posts.id"))
}
