package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMarkdown(t *testing.T) {
	text := "## Review\n\n1. **Location:** Lines 4-5\n   The *ramp* is too steep.\n2. **Location:** Line 9\n   Add `alt` text.\n"

	out := NormalizeMarkdown(text)
	assert.Contains(t, out, "1. Location: Lines 4-5")
	assert.Contains(t, out, "2. Location: Line 9")
	assert.Contains(t, out, "alt")
	assert.NotContains(t, out, "**")

	batch := Parse(text, WithMarkdown(true))
	require.Len(t, batch.Comments, 2)
	assert.Equal(t, []int{4, 5}, batch.Comments[0].Lines)
	assert.Equal(t, []int{9}, batch.Comments[1].Lines)
}

func TestNormalizeMarkdownListStart(t *testing.T) {
	out := NormalizeMarkdown("3. first\n4. second\n")
	assert.Contains(t, out, "3. first")
	assert.Contains(t, out, "4. second")
}

func TestParseMarkdownKeepsNumbering(t *testing.T) {
	batch := Parse("3. Location: Line 2\nToo steep.\n4. Location: Line 5\nCite.", WithMarkdown(true))
	if assert.Len(t, batch.Comments, 2) {
		assert.Equal(t, "3. Location: Line 2\nToo steep.", batch.Comments[0].Text)
		assert.Equal(t, []int{2}, batch.Comments[0].Lines)
		assert.Equal(t, "4. Location: Line 5\nCite.", batch.Comments[1].Text)
		assert.Equal(t, []int{5}, batch.Comments[1].Lines)
	}
}
