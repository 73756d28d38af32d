package ledger

import (
	"context"
	"testing"

	"github.com/LerianStudio/lib-ledger/ledger/log"
	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	log.NopLogger

	messages []string
}

func (l *recordingLogger) Log(_ context.Context, _ log.Level, msg string, _ ...log.Field) {
	l.messages = append(l.messages, msg)
}

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	t.Run("round trips the logger", func(t *testing.T) {
		t.Parallel()

		logger := &recordingLogger{}
		ctx := ContextWithLogger(context.Background(), logger)

		got := LoggerFromContext(ctx)
		got.Log(ctx, log.LevelInfo, "persisted")

		assert.Equal(t, []string{"persisted"}, logger.messages)
	})

	t.Run("nil logger leaves parent untouched", func(t *testing.T) {
		t.Parallel()

		parent := context.Background()
		assert.Equal(t, parent, ContextWithLogger(parent, nil))
	})

	t.Run("falls back to nop when absent", func(t *testing.T) {
		t.Parallel()

		got := LoggerFromContext(context.Background())

		assert.IsType(t, &log.NopLogger{}, got)
		assert.False(t, got.Enabled(log.LevelError))
	})
}
