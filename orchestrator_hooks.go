package fisher

import (
	"context"
	"time"

	"github.com/socialpay/fisher/mechanisms/evm"
)

// ============================================================================
// Confirm Hook Context Types
// ============================================================================

// ConfirmContext contains information passed to confirm hooks
type ConfirmContext struct {
	Ctx       context.Context
	Initiator Initiator
	Payment   PendingPayment
	Timestamp time.Time
}

// SubmittedContext is passed once the payment transaction has been broadcast
type SubmittedContext struct {
	ConfirmContext
	Intent evm.SignedIntent
	TxHash string
}

// SettleResultContext contains a settled payment's outcome and context
type SettleResultContext struct {
	ConfirmContext
	Outcome  ConfirmOutcome
	Duration time.Duration
}

// ConfirmFailureContext contains a failed confirm's outcome and context
type ConfirmFailureContext struct {
	ConfirmContext
	Outcome  ConfirmOutcome
	Error    error
	Duration time.Duration
}

// ============================================================================
// Confirm Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the payment is dropped with the given Reason
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Confirm Hook Function Types
// ============================================================================

// BeforeConfirmHook is called after a proposal is claimed and before anything is signed.
// Returning Abort=true or an error drops the payment without signing
type BeforeConfirmHook func(ConfirmContext) (*BeforeHookResult, error)

// SubmittedHook is called when the transaction hash is known, before the receipt.
// Any error returned will be logged but will not affect the outcome
type SubmittedHook func(SubmittedContext) error

// AfterSettleHook is called after a payment settled on-chain.
// Any error returned will be logged but will not affect the outcome
type AfterSettleHook func(SettleResultContext) error

// ConfirmFailureHook is called when a claimed payment fails at any stage.
// Any error returned will be logged but will not affect the outcome
type ConfirmFailureHook func(ConfirmFailureContext) error
