package apperror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fd1az/otoken-adapter/internal/apperror"
)

func TestHasCode_ThroughWrapping(t *testing.T) {
	inner := apperror.New(apperror.CodeZeroProfit, apperror.WithContext("0xabc"))
	wrapped := fmt.Errorf("exercise: %w", inner)

	assert.True(t, apperror.HasCode(wrapped, apperror.CodeZeroProfit))
	assert.True(t, errors.Is(wrapped, apperror.New(apperror.CodeZeroProfit)))
	assert.False(t, apperror.HasCode(wrapped, apperror.CodeNotYetExpired))
	assert.Equal(t, apperror.CodeZeroProfit, apperror.GetCode(wrapped))
	assert.Equal(t, apperror.CodeUnknownError, apperror.GetCode(errors.New("plain")))
}

func TestWrap_KeepsExistingCode(t *testing.T) {
	inner := apperror.New(apperror.CodeInsufficientFunds)
	err := apperror.Wrap(inner, apperror.CodeContractCallFailed, "transfer")

	assert.Equal(t, apperror.CodeInsufficientFunds, err.Code)
	assert.Equal(t, "transfer", err.Context)
	assert.Nil(t, apperror.Wrap(nil, apperror.CodeInternalError, ""))

	plain := apperror.Wrap(errors.New("dial tcp: refused"), apperror.CodeEthereumRPCError, "call")
	assert.Equal(t, apperror.CodeEthereumRPCError, plain.Code)
	assert.Contains(t, plain.Error(), "dial tcp: refused")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want apperror.Kind
	}{
		{apperror.New(apperror.CodeUnknownOption), apperror.KindNotFound},
		{apperror.New(apperror.CodeOrderMismatch), apperror.KindValidation},
		{apperror.New(apperror.CodeNotYetExpired), apperror.KindState},
		{apperror.New(apperror.CodeInsufficientFunds), apperror.KindFunds},
		{apperror.New(apperror.CodeCircuitOpen), apperror.KindExternal},
		{apperror.Validation(apperror.CodeInternalError, "x"), apperror.KindValidation},
		{errors.New("plain"), apperror.KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, apperror.KindOf(tt.err), tt.err.Error())
	}
}

func TestError_Format(t *testing.T) {
	err := apperror.New(apperror.CodeCollateralTooSmall, apperror.WithContext("1 < 100000000"))
	assert.Contains(t, err.Error(), "COLLATERAL_TOO_SMALL")
	assert.Contains(t, err.Error(), "1 < 100000000")

	custom := apperror.New(apperror.Code("SOMETHING_ODD"))
	assert.Equal(t, "something odd", custom.Message)
}
