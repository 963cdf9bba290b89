package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidHandle   = errors.New("invalid handle")
	ErrInvalidPlatform = errors.New("invalid platform")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidUint256  = errors.New("value does not fit in uint256")
)

// PaymentIntent is the typed message the executor key authorizes.
// Fields are values so a copied intent never aliases another.
type PaymentIntent struct {
	Handle     string
	Platform   string
	Amount     uint256.Int
	AsyncNonce uint256.Int
	Deadline   uint256.Int
}

// NewPaymentIntent validates and builds an intent from arbitrary precision values
func NewPaymentIntent(handle, platform string, amount, asyncNonce, deadline *big.Int) (PaymentIntent, error) {
	if handle == "" || strings.HasPrefix(handle, "@") {
		return PaymentIntent{}, fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	if platform == "" {
		return PaymentIntent{}, ErrInvalidPlatform
	}

	intent := PaymentIntent{Handle: handle, Platform: platform}
	if err := setUint256(&intent.Amount, amount, "amount"); err != nil {
		return PaymentIntent{}, err
	}
	if intent.Amount.IsZero() {
		return PaymentIntent{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if err := setUint256(&intent.AsyncNonce, asyncNonce, "asyncNonce"); err != nil {
		return PaymentIntent{}, err
	}
	if err := setUint256(&intent.Deadline, deadline, "deadline"); err != nil {
		return PaymentIntent{}, err
	}
	return intent, nil
}

func setUint256(dst *uint256.Int, v *big.Int, field string) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidUint256, field)
	}
	if dst.SetFromBig(v) {
		return fmt.Errorf("%w: %s", ErrInvalidUint256, field)
	}
	return nil
}

// Message returns the intent as an EIP-712 message map
func (p PaymentIntent) Message() map[string]interface{} {
	return map[string]interface{}{
		"handle":     p.Handle,
		"platform":   p.Platform,
		"amount":     p.Amount.ToBig(),
		"asyncNonce": p.AsyncNonce.ToBig(),
		"deadline":   p.Deadline.ToBig(),
	}
}

// IntentDomain carries the domain separator a digest is bound to.
// VerifyingContract and ChainID describe where Separator is expected to come from.
type IntentDomain struct {
	VerifyingContract common.Address
	ChainID           *big.Int
	Separator         common.Hash
}

// Signature is a secp256k1 signature with V in {27, 28}
type Signature struct {
	R [32]byte
	S [32]byte
	V uint8
}

// SignatureFromBytes parses a 65-byte r||s||v signature, accepting V as 0/1 or 27/28
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != 65 {
		return Signature{}, fmt.Errorf("invalid signature length: %d", len(b))
	}
	var sig Signature
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	if sig.V < 27 {
		sig.V += 27
	}
	if sig.V != 27 && sig.V != 28 {
		return Signature{}, fmt.Errorf("invalid signature recovery id: %d", b[64])
	}
	return sig, nil
}

// Bytes returns the packed 65-byte r||s||v form submitted to the contract
func (s Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

func (s Signature) Hex() string {
	return hexutil.Encode(s.Bytes())
}

// SignedIntent is an intent together with the executor signature over its digest
type SignedIntent struct {
	Intent    PaymentIntent
	Signature Signature
	Signer    common.Address
	Digest    common.Hash
}

// TransactionReceipt represents the receipt of a mined transaction
type TransactionReceipt struct {
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	TxHash      string `json:"transactionHash"`
}

// Ledger is the contract surface the payment core depends on.
// Implementations own RPC transport, gas and transaction signing.
type Ledger interface {
	// IsHandleClaimed reports whether a handle is linked to a wallet
	IsHandleClaimed(ctx context.Context, handle, platform string) (bool, common.Address, error)

	// GetPendingBalance returns the unclaimed balance held for a handle, in base units
	GetPendingBalance(ctx context.Context, handle, platform string) (*big.Int, error)

	// GetDomainSeparator returns the EIP-712 domain separator the contract verifies against
	GetDomainSeparator(ctx context.Context) (common.Hash, error)

	// PayToHandleWithSignature submits the signed intent and returns the transaction hash
	PayToHandleWithSignature(ctx context.Context, signed SignedIntent) (common.Hash, error)

	// WaitForTransactionReceipt waits for a transaction to be mined
	WaitForTransactionReceipt(ctx context.Context, txHash common.Hash) (*TransactionReceipt, error)
}

// IntentSigner produces signatures and replay-protection parameters for intents
type IntentSigner interface {
	// Address returns the executor address the contract recovers
	Address() common.Address

	// Sign signs a 32-byte digest
	Sign(digest common.Hash) (Signature, error)

	// SignIntent signs intent under domain, refusing intents whose deadline has passed
	SignIntent(intent PaymentIntent, domain IntentDomain) (SignedIntent, error)

	// GenerateNonce returns a fresh asyncNonce
	GenerateNonce() *big.Int

	// GenerateDeadline returns now plus windowMinutes, in Unix seconds
	GenerateDeadline(windowMinutes int) *big.Int
}
