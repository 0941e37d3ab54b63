package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTextProcessor(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	t.Run("sanitize drops invalid bytes", func(t *testing.T) {
		assert.Equal(t, "abc", tp.SanitizeUTF8("a\xffb\xfec"))
		assert.Equal(t, "héllo", tp.SanitizeUTF8("héllo"))
	})

	t.Run("normalize composes accents", func(t *testing.T) {
		assert.Equal(t, "café", tp.NormalizeText("café"))
	})

	t.Run("truncate on rune boundary", func(t *testing.T) {
		assert.Equal(t, "short", tp.TruncateText("short", 10))
		assert.Equal(t, "ab [truncated]", tp.TruncateText("abé", 3))
		assert.Equal(t, "anything", tp.TruncateText("anything", 0))
	})

	t.Run("process", func(t *testing.T) {
		assert.Equal(t, "café [truncated]", tp.ProcessText("café au lait", 5))
	})
}
