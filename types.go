package fisher

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/socialpay/fisher/mechanisms/evm"
)

// PaymentState is the lifecycle position of a pending payment
type PaymentState string

const (
	StateProposed  PaymentState = "proposed"
	StateConfirmed PaymentState = "confirmed"
	StateSubmitted PaymentState = "submitted"
	StateSettled   PaymentState = "settled"
	StateCancelled PaymentState = "cancelled"
	StateExpired   PaymentState = "expired"
	StateFailed    PaymentState = "failed"
)

// Initiator identifies the user issuing commands on a transport.
// Identity is the opaque transport user id; Handle is their public username.
type Initiator struct {
	Identity string `json:"identity"`
	Handle   string `json:"handle"`
}

// PendingPayment is a proposed transfer awaiting confirmation
type PendingPayment struct {
	ID                string       `json:"id"`
	InitiatorIdentity string       `json:"initiatorIdentity"`
	InitiatorHandle   string       `json:"initiatorHandle"`
	FromWallet        string       `json:"fromWallet"`
	RecipientHandle   string       `json:"recipientHandle"`
	AmountDecimal     string       `json:"amount"`
	CreatedAt         time.Time    `json:"createdAt"`
	State             PaymentState `json:"state"`
}

// inFlight reports whether the payment was claimed by a confirm
func (p PendingPayment) inFlight() bool {
	return p.State == StateConfirmed || p.State == StateSubmitted
}

// WalletRegistration is returned when an initiator sets their sender wallet
type WalletRegistration struct {
	Identity string         `json:"identity"`
	Address  common.Address `json:"address"`
	Replaced bool           `json:"replaced"`
}

// HandleInfo describes a handle's on-ledger status
type HandleInfo struct {
	Handle                string          `json:"handle"`
	Platform              string          `json:"platform"`
	IsClaimed             bool            `json:"isClaimed"`
	LinkedWallet          *common.Address `json:"linkedWallet,omitempty"`
	PendingBalance        *big.Int        `json:"pendingBalance"`
	PendingBalanceDecimal string          `json:"pendingBalanceDecimal"`
}

// RequestResult is returned by a successful payment request
type RequestResult struct {
	Status   PaymentState   `json:"status"`
	Payment  PendingPayment `json:"payment"`
	Replaced bool           `json:"replaced"`
}

// ConfirmStatus is the terminal status of a confirm attempt
type ConfirmStatus string

const (
	ConfirmSettled          ConfirmStatus = "settled"
	ConfirmFailed           ConfirmStatus = "failed"
	ConfirmNoPendingPayment ConfirmStatus = "no_pending_payment"
	ConfirmExpired          ConfirmStatus = "payment_expired"
	ConfirmKeyConflict      ConfirmStatus = "idempotency_key_reused"
)

// ConfirmOutcome reports what happened to a confirmed payment
type ConfirmOutcome struct {
	Status      ConfirmStatus     `json:"status"`
	PaymentID   string            `json:"paymentId,omitempty"`
	TxHash      string            `json:"txHash,omitempty"`
	BlockNumber uint64            `json:"blockNumber,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	ErrorCode   string            `json:"errorCode,omitempty"`
	Recipient   *HandleInfo       `json:"recipient,omitempty"`
	Replayed    bool              `json:"replayed,omitempty"`
	Intent      *evm.SignedIntent `json:"-"`
}

// CancelStatus is the result of a cancel request
type CancelStatus string

const (
	CancelCancelled        CancelStatus = "cancelled"
	CancelNoPendingPayment CancelStatus = "no_pending_payment"
)

// CancelResult reports the outcome of a cancel request
type CancelResult struct {
	Status    CancelStatus    `json:"status"`
	Payment   *PendingPayment `json:"payment,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
}
