package circuitbreaker_test

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/circuitbreaker"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("rpc")
	cfg.FailureThreshold = 2

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	cb := circuitbreaker.New[int](cfg)

	boom := errors.New("dial tcp: connection refused")
	for range 2 {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestCircuitBreaker_IgnoresDomainErrors(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("rpc")
	cfg.FailureThreshold = 1
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || apperror.IsAppError(err)
	}
	cb := circuitbreaker.New[int](cfg)

	domainErr := apperror.New(apperror.CodeUnknownOption)
	_, err := cb.Execute(func() (int, error) { return 0, domainErr })
	require.ErrorIs(t, err, domainErr)

	v, err := cb.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
