// Package apperror provides coded errors shared by every layer.
package apperror

import (
	"errors"
	"strings"
	"time"
)

// Kind groups codes by what a caller can do about them.
type Kind uint8

const (
	KindInternal   Kind = iota
	KindValidation      // the request itself is wrong
	KindNotFound
	KindState    // valid request, wrong moment (not expired, nothing to pay)
	KindFunds    // the caller or a pool cannot cover the amounts
	KindExternal // a node, API or database misbehaved; retrying may help
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindFunds:
		return "funds"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

// AppError is an error carrying a Code.
type AppError struct {
	Code      Code      `json:"code"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Context)
		sb.WriteString(")")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError with the same code, so errors.Is(err, New(code))
// tests for a code anywhere in the chain.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Option configures an AppError.
type Option func(*AppError)

// WithMessage replaces the code's default message.
func WithMessage(message string) Option {
	return func(e *AppError) { e.Message = message }
}

// WithContext attaches the values the error is about.
func WithContext(context string) Option {
	return func(e *AppError) { e.Context = context }
}

// WithCause wraps an underlying error.
func WithCause(cause error) Option {
	return func(e *AppError) { e.cause = cause }
}

// WithKind overrides the code's default kind.
func WithKind(kind Kind) Option {
	return func(e *AppError) { e.Kind = kind }
}

// New creates an error for code.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:      code,
		Kind:      kindOf(code),
		Message:   messages[code],
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = strings.ToLower(strings.ReplaceAll(string(code), "_", " "))
	}
	return err
}

// NotFound creates a not found error.
func NotFound(code Code, context string) *AppError {
	return New(code, WithContext(context), WithKind(KindNotFound))
}

// Validation creates an error for a malformed request.
func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithKind(KindValidation))
}

// Internal creates an error for a broken invariant or failed local write.
func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithKind(KindInternal))
}

// External creates an error for a misbehaving dependency.
func External(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithKind(KindExternal))
}

// Wrap converts err to an AppError with code. Errors that already carry a
// code keep it; context is only added when they have none.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if context != "" && appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}
	return New(code, WithContext(context), WithCause(err))
}

// IsAppError reports whether err's chain holds an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &AppError{Code: code})
}

// GetCode returns the outermost code in err's chain, or UNKNOWN_ERROR.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// KindOf returns the kind of the outermost AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func kindOf(code Code) Kind {
	switch code {
	case CodeUnknownOption, CodeNotFound:
		return KindNotFound
	case CodeInsufficientFunds, CodeResidualBalance:
		return KindFunds
	case CodeNotYetExpired, CodeZeroProfit, CodeNoVaultsConfigured, CodeInvalidState:
		return KindState
	case CodeInvalidOption, CodeInvalidInput, CodeRequiredField, CodeValidationError,
		CodeOrderMismatch, CodeStaleOrSentinel, CodeCollateralTooSmall, CodeOverflow,
		CodeUnauthorizedCaller, CodeConfigurationError:
		return KindValidation
	case CodeExternalServiceError, CodeServiceUnavailable, CodeRateLimitExceeded,
		CodeEthereumConnectionFailed, CodeEthereumRPCError, CodeContractCallFailed,
		CodeTransactionFailed, CodeGasEstimationFailed, CodeCircuitOpen:
		return KindExternal
	default:
		return KindInternal
	}
}
