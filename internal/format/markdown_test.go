package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarkdownBold(t *testing.T) {
	res := ParseMarkdown("⏰ **Reminder**\n\nstandup")
	assert.Equal(t, "⏰ Reminder\n\nstandup", res.Text)
	if assert.Len(t, res.Entities, 1) {
		assert.Equal(t, "bold", res.Entities[0].Type)
		assert.Equal(t, 2, res.Entities[0].Offset)
		assert.Equal(t, 8, res.Entities[0].Length)
	}
}

func TestParseMarkdownHeaderBecomesBold(t *testing.T) {
	res := ParseMarkdown("# Daily summary\nrest")
	assert.Equal(t, "Daily summary\nrest", res.Text)
	if assert.Len(t, res.Entities, 1) {
		assert.Equal(t, "bold", res.Entities[0].Type)
		assert.Equal(t, 0, res.Entities[0].Offset)
	}
}

func TestParseMarkdownCode(t *testing.T) {
	res := ParseMarkdown("run `go version` first")
	assert.Equal(t, "run go version first", res.Text)
	if assert.Len(t, res.Entities, 1) {
		assert.Equal(t, "code", res.Entities[0].Type)
		assert.Equal(t, 4, res.Entities[0].Offset)
		assert.Equal(t, 10, res.Entities[0].Length)
	}
}

func TestParseMarkdownEntitiesSorted(t *testing.T) {
	res := ParseMarkdown("`b` then **a**")
	if assert.Len(t, res.Entities, 2) {
		assert.LessOrEqual(t, res.Entities[0].Offset, res.Entities[1].Offset)
	}
}

func TestUTF16LenSurrogates(t *testing.T) {
	assert.Equal(t, 2, UTF16Len("💤"))
	assert.Equal(t, 1, UTF16Len("⏰"))
	assert.Equal(t, 5, UTF16Len("hello"))
}
