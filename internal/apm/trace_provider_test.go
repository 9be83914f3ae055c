package apm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/apm"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

func TestParseHeaders(t *testing.T) {
	got := apm.ParseHeaders("x-team=abc, x-dataset=adapter,broken,=v")
	assert.Equal(t, map[string]string{"x-team": "abc", "x-dataset": "adapter"}, got)
	assert.Empty(t, apm.ParseHeaders(""))
}

func TestNewTraceProvider_None(t *testing.T) {
	tp, err := apm.NewTraceProvider(context.Background(), apm.Config{Provider: apm.EmptyProvider}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, tp.Stop())
}
