package logger

import (
	"bytes"
	"context"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("ShouldWriteJSONWithKeyvals", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&Config{Level: "debug", Output: &buf, JSON: true})
		log.With("doc", "a").Debug("upserted", "chunks", 3)
		out := buf.String()
		assert.Contains(t, out, `"msg":"upserted"`)
		assert.Contains(t, out, `"doc":"a"`)
		assert.Contains(t, out, `"chunks":3`)
	})

	t.Run("ShouldFilterBelowLevel", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&Config{Level: "warn", Output: &buf})
		log.Info("hidden")
		assert.Empty(t, buf.String())
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, charmlog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, charmlog.InfoLevel, ParseLevel("nonsense"))
}

func TestFromContext(t *testing.T) {
	custom := Nop()
	ctx := ContextWithLogger(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
