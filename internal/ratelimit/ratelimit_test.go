package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/ratelimit"
)

func TestLimiter_Burst(t *testing.T) {
	l := ratelimit.New(60) // one per second, burst of one
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiter_WaitDeadline(t *testing.T) {
	l := ratelimit.New(1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.Equal(t, apperror.CodeRateLimitExceeded, apperror.GetCode(err))
}

func TestLimiter_Unlimited(t *testing.T) {
	l := ratelimit.New(0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow())
	}
}
