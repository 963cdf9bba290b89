package fisher

import (
	"errors"
	"fmt"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any PaymentError with the same code, so the sentinels below
// work with errors.Is regardless of message or details.
func (e *PaymentError) Is(target error) bool {
	var other *PaymentError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Kind groups a code into the error classes callers branch on
func (e *PaymentError) Kind() ErrorKind {
	switch e.Code {
	case ErrCodeSelfPayment, ErrCodeInvalidAmount, ErrCodeMissingHandle,
		ErrCodeMissingWallet, ErrCodeInvalidWallet:
		return KindValidation
	case ErrCodeLedgerUnavailable:
		return KindLedger
	case ErrCodeSigningAborted, ErrCodeSigningError:
		return KindSigning
	case ErrCodeSubmissionFailed, ErrCodeTransactionReverted:
		return KindSubmission
	default:
		return KindState
	}
}

// ErrorKind classifies payment errors
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindLedger     ErrorKind = "ledger"
	KindSigning    ErrorKind = "signing"
	KindSubmission ErrorKind = "submission"
	KindState      ErrorKind = "state"
)

// Error codes
const (
	ErrCodeSelfPayment         = "self_payment"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeMissingHandle       = "missing_handle"
	ErrCodeMissingWallet       = "missing_wallet"
	ErrCodeInvalidWallet       = "invalid_wallet"
	ErrCodeNoPendingPayment    = "no_pending_payment"
	ErrCodePaymentExpired      = "payment_expired"
	ErrCodePaymentInFlight     = "payment_in_flight"
	ErrCodeLedgerUnavailable   = "ledger_unavailable"
	ErrCodeSigningAborted      = "signing_aborted"
	ErrCodeSigningError        = "signing_error"
	ErrCodeSubmissionFailed    = "submission_failed"
	ErrCodeTransactionReverted = "transaction_reverted"
	ErrCodeIdempotencyReused   = "idempotency_key_reused"
)

// Sentinels for errors.Is
var (
	ErrSelfPayment       = &PaymentError{Code: ErrCodeSelfPayment}
	ErrInvalidAmount     = &PaymentError{Code: ErrCodeInvalidAmount}
	ErrMissingHandle     = &PaymentError{Code: ErrCodeMissingHandle}
	ErrMissingWallet     = &PaymentError{Code: ErrCodeMissingWallet}
	ErrInvalidWallet     = &PaymentError{Code: ErrCodeInvalidWallet}
	ErrNoPendingPayment  = &PaymentError{Code: ErrCodeNoPendingPayment}
	ErrPaymentExpired    = &PaymentError{Code: ErrCodePaymentExpired}
	ErrPaymentInFlight   = &PaymentError{Code: ErrCodePaymentInFlight}
	ErrLedgerUnavailable = &PaymentError{Code: ErrCodeLedgerUnavailable}
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the PaymentError code carried by err, or "" if there is none
func CodeOf(err error) string {
	var paymentErr *PaymentError
	if errors.As(err, &paymentErr) {
		return paymentErr.Code
	}
	return ""
}
