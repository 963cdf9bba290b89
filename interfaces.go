package fisher

import (
	"context"
)

// PaymentService is the command surface transports drive.
// *PaymentOrchestrator implements it.
type PaymentService interface {
	// RequestPayment validates and stores a proposed transfer
	RequestPayment(ctx context.Context, initiator Initiator, recipient, amountDecimal string) (RequestResult, error)

	// SetWallet registers the wallet the initiator sends from
	SetWallet(ctx context.Context, initiator Initiator, address string) (WalletRegistration, error)

	// ConfirmPayment executes the initiator's proposal at most once
	ConfirmPayment(ctx context.Context, initiator Initiator) ConfirmOutcome

	// CancelPayment drops the initiator's proposal
	CancelPayment(ctx context.Context, initiator Initiator) CancelResult

	// Pending returns the initiator's current record, if any
	Pending(initiator Initiator) (PendingPayment, bool)

	// CheckHandle reports a handle's claim status and pending balance
	CheckHandle(ctx context.Context, handle string) (HandleInfo, error)

	// Balance reports the initiator's own claim status and pending balance
	Balance(ctx context.Context, initiator Initiator) (HandleInfo, error)
}

var _ PaymentService = (*PaymentOrchestrator)(nil)
