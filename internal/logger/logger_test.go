package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/logger"
)

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "adapter", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "short created", "vault_id", 1, "protocol", "OPYN_GAMMA")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "short created", entry["msg"])
	assert.Equal(t, "adapter", entry["logger"])
	assert.Equal(t, "OPYN_GAMMA", entry["protocol"])
	assert.Equal(t, float64(1), entry["vault_id"])
	assert.Equal(t, "abc123", entry["trace_id"])
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "adapter", nil)

	log.Debug(context.Background(), "dropped")
	log.Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	log.Errorc(context.Background(), 1, "kept")
	assert.Contains(t, buf.String(), "kept")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.NewNop().Error(context.Background(), "nothing", "k", "v")
	})
}
