package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeUnknownOption: "No option token is issued for these terms",
	CodeInvalidOption: "Invalid oToken",

	CodeInsufficientFunds: "Value does not cover cost",
	CodeOrderMismatch:     "Swap order does not match the requested option",
	CodeStaleOrSentinel:   "Swap order carries sentinel or expired values",

	CodeNotYetExpired: "Option has not expired yet",
	CodeZeroProfit:    "Option has no exercise profit",

	CodeCollateralTooSmall: "Collateral is below the protocol minimum",

	CodeOverflow: "Arithmetic overflow",

	CodeResidualBalance:    "Adapter holds a residual balance",
	CodeUnauthorizedCaller: "only owner",
	CodeNoVaultsConfigured: "No vaults configured for option token",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeTransactionFailed:        "Transaction failed",
	CodeGasEstimationFailed:      "Gas estimation failed",

	CodeJournalWriteFailed: "Failed to write event journal",

	CodeCircuitOpen: "Circuit breaker is open",
}
