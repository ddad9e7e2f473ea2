package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkdown_RemovesCommonDecoration(t *testing.T) {
	in := "# Heading\n\nThis is **bold** and *italic* text with a [link](https://example.com) " +
		"and `inline code` and:\n\n```go\nfunc main() {}\n```\n\n> a quote\n- a list item"
	out := stripMarkdown(in)

	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "```")
	assert.NotContains(t, out, "func main")
	assert.Contains(t, out, "link")
	assert.Contains(t, out, "bold")
	assert.Contains(t, out, "italic")
	assert.Contains(t, out, "inline code")
}

func TestStripMarkdown_PassesThroughPlainText(t *testing.T) {
	in := "nothing special here"
	assert.Equal(t, in, stripMarkdown(in))
}
