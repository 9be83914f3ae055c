package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Adapter error codes. Callers branch on these.
const (
	// Terms resolution
	CodeUnknownOption Code = "UNKNOWN_OPTION"
	CodeInvalidOption Code = "INVALID_OPTION"

	// Purchase
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeOrderMismatch     Code = "ORDER_MISMATCH"
	CodeStaleOrSentinel   Code = "STALE_OR_SENTINEL"

	// Exercise
	CodeNotYetExpired Code = "NOT_YET_EXPIRED"
	CodeZeroProfit    Code = "ZERO_PROFIT"

	// Short creation
	CodeCollateralTooSmall Code = "COLLATERAL_TOO_SMALL"

	// Arithmetic
	CodeOverflow Code = "OVERFLOW"

	// Custody and ownership
	CodeResidualBalance    Code = "RESIDUAL_BALANCE"
	CodeUnauthorizedCaller Code = "UNAUTHORIZED_CALLER"
	CodeNoVaultsConfigured Code = "NO_VAULTS_CONFIGURED"
)

// Infrastructure error codes
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeTransactionFailed        Code = "TRANSACTION_FAILED"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"

	CodeJournalWriteFailed Code = "JOURNAL_WRITE_FAILED"

	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
