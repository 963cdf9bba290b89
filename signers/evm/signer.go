package evm

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	fisherevm "github.com/socialpay/fisher/mechanisms/evm"
)

var (
	// ErrSigningKeyUnavailable is returned when a signer has no private key loaded
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")

	// ErrDeadlinePassed is returned when asked to sign an intent that is already expired
	ErrDeadlinePassed = errors.New("intent deadline is not in the future")
)

// nonceSpread is the width of the random tie-breaker appended to the time component
const nonceSpread = 1000

// IntentSigner implements fisherevm.IntentSigner using an ECDSA private key.
// The key is held only in memory and is never logged or serialized.
type IntentSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	now        func() time.Time

	mu         sync.Mutex
	lastMicros int64
}

// Option configures an IntentSigner
type Option func(*IntentSigner)

// WithClock overrides the wall clock used for nonces and deadlines
func WithClock(now func() time.Time) Option {
	return func(s *IntentSigner) {
		s.now = now
	}
}

// NewIntentSignerFromPrivateKey creates a signer from a hex-encoded private key.
//
// Example:
//
//	signer, err := evm.NewIntentSignerFromPrivateKey(os.Getenv("EXECUTOR_PRIVATE_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewIntentSignerFromPrivateKey(privateKeyHex string, opts ...Option) (*IntentSigner, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, ErrSigningKeyUnavailable
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		// The parse error can echo key material, so it is not wrapped
		return nil, errors.New("invalid private key")
	}
	return NewIntentSigner(privateKey, opts...)
}

// NewIntentSigner creates a signer from a parsed private key
func NewIntentSigner(privateKey *ecdsa.PrivateKey, opts ...Option) (*IntentSigner, error) {
	if privateKey == nil {
		return nil, ErrSigningKeyUnavailable
	}
	s := &IntentSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Address returns the Ethereum address of the signer.
func (s *IntentSigner) Address() common.Address {
	return s.address
}

// String prints the address only
func (s *IntentSigner) String() string {
	return fmt.Sprintf("IntentSigner(%s)", s.address.Hex())
}

// Sign signs a digest with deterministic (RFC 6979) ECDSA.
//
// Returns the signature with V adjusted to 27/28 as ecrecover expects.
func (s *IntentSigner) Sign(digest common.Hash) (fisherevm.Signature, error) {
	if s == nil || s.privateKey == nil {
		return fisherevm.Signature{}, ErrSigningKeyUnavailable
	}

	signature, err := crypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return fisherevm.Signature{}, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 → 27/28)
	signature[64] += 27

	return fisherevm.SignatureFromBytes(signature)
}

// SignIntent builds the digest of intent under domain and signs it.
// Intents whose deadline is not strictly in the future are rejected.
func (s *IntentSigner) SignIntent(intent fisherevm.PaymentIntent, domain fisherevm.IntentDomain) (fisherevm.SignedIntent, error) {
	if intent.Deadline.IsUint64() && intent.Deadline.Uint64() <= uint64(s.now().Unix()) {
		return fisherevm.SignedIntent{}, ErrDeadlinePassed
	}

	digest := fisherevm.BuildDigest(intent, domain)
	signature, err := s.Sign(digest)
	if err != nil {
		return fisherevm.SignedIntent{}, err
	}

	return fisherevm.SignedIntent{
		Intent:    intent,
		Signature: signature,
		Signer:    s.address,
		Digest:    digest,
	}, nil
}

// SignTx signs a relayer transaction for chainID with the executor key
func (s *IntentSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, ErrSigningKeyUnavailable
	}
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signedTx, nil
}

// GenerateNonce returns micros*1000 + r where r is uniform in [0, 1000).
//
// micros is the wall clock in microseconds, forced strictly above the value
// used by the previous call on this signer so nonces never repeat within a
// process. Uniqueness across processes sharing a key is probabilistic only.
func (s *IntentSigner) GenerateNonce() *big.Int {
	s.mu.Lock()
	micros := s.now().UnixMicro()
	if micros <= s.lastMicros {
		micros = s.lastMicros + 1
	}
	s.lastMicros = micros
	s.mu.Unlock()

	r, err := rand.Int(rand.Reader, big.NewInt(nonceSpread))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("nonce entropy unavailable: %v", err))
	}

	nonce := new(big.Int).Mul(big.NewInt(micros), big.NewInt(nonceSpread))
	return nonce.Add(nonce, r)
}

// GenerateDeadline returns now + windowMinutes*60 in Unix seconds.
// A non-positive window uses the default of 60 minutes.
func (s *IntentSigner) GenerateDeadline(windowMinutes int) *big.Int {
	if windowMinutes <= 0 {
		windowMinutes = fisherevm.DefaultDeadlineMinutes
	}
	return big.NewInt(s.now().Unix() + int64(windowMinutes)*60)
}
