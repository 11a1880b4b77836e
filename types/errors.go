package types

import "errors"

// Error is the typed error surfaced to callers. Code is stable and meant
// for programmatic handling; Message is for humans.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Err     error       `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrProtocolViolation   = "PROTOCOL_VIOLATION"
	ErrChallengeExpired    = "CHALLENGE_EXPIRED"
	ErrSpendLimitExceeded  = "SPEND_LIMIT_EXCEEDED"
	ErrSigningFailed       = "SIGNING_FAILED"
	ErrNetworkError        = "NETWORK_ERROR"
	ErrSettlementAmbiguous = "SETTLEMENT_AMBIGUOUS"
	ErrSettlementFailed    = "SETTLEMENT_FAILED"
	ErrValidationError     = "VALIDATION_ERROR"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrConfigError         = "CONFIG_ERROR"
)

// NewError creates an Error wrapping a cause.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the whole call may safely be retried from
// outside. Only transient network failures and unresolved settlements
// qualify; the ledger prevents duplicate payment on such retries.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrNetworkError, ErrSettlementAmbiguous:
		return true
	}
	return false
}
