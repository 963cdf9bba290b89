package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PaymentIntentTypeHash is keccak256 of the PaymentIntent type string
var PaymentIntentTypeHash = crypto.Keccak256Hash([]byte(PaymentIntentType))

// EIP712DomainTypes is the domain field list used by the ledger contract
var EIP712DomainTypes = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// PaymentIntentTypes is the EIP-712 field list of a payment intent
var PaymentIntentTypes = []apitypes.Type{
	{Name: "handle", Type: "string"},
	{Name: "platform", Type: "string"},
	{Name: "amount", Type: "uint256"},
	{Name: "asyncNonce", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
}

// HashPaymentIntent computes the EIP-712 struct hash of an intent.
//
// Strings are hashed as their raw UTF-8 bytes with no normalization, so
// visually identical handles in different Unicode forms hash differently.
func HashPaymentIntent(intent PaymentIntent) common.Hash {
	amount := intent.Amount.Bytes32()
	nonce := intent.AsyncNonce.Bytes32()
	deadline := intent.Deadline.Bytes32()

	return crypto.Keccak256Hash(
		PaymentIntentTypeHash.Bytes(),
		crypto.Keccak256([]byte(intent.Handle)),
		crypto.Keccak256([]byte(intent.Platform)),
		amount[:],
		nonce[:],
		deadline[:],
	)
}

// BuildDigest creates the EIP-712 digest the executor signs.
//
// The digest is computed as: keccak256("\x19\x01" + domain.Separator + structHash).
// The separator is taken as given; callers fetch it from the contract.
func BuildDigest(intent PaymentIntent, domain IntentDomain) common.Hash {
	structHash := HashPaymentIntent(intent)

	// Create EIP-712 digest: 0x19 0x01 <domainSeparator> <structHash>
	rawData := make([]byte, 0, 66)
	rawData = append(rawData, 0x19, 0x01)
	rawData = append(rawData, domain.Separator.Bytes()...)
	rawData = append(rawData, structHash.Bytes()...)
	return crypto.Keccak256Hash(rawData)
}

// PaymentIntentTypedData returns the intent as go-ethereum typed data for the given domain
func PaymentIntentTypedData(intent PaymentIntent, name, version string, chainID *big.Int, contract common.Address) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":           EIP712DomainTypes,
			PrimaryTypePaymentIntent: PaymentIntentTypes,
		},
		PrimaryType: PrimaryTypePaymentIntent,
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: contract.Hex(),
		},
		Message: intent.Message(),
	}
}

// ComputeDomainSeparator computes the separator a contract deployed at
// contract on chainID is expected to return.
func ComputeDomainSeparator(name, version string, chainID *big.Int, contract common.Address) (common.Hash, error) {
	if chainID == nil {
		return common.Hash{}, fmt.Errorf("chain id is required")
	}
	typedData := apitypes.TypedData{
		Types: apitypes.Types{"EIP712Domain": EIP712DomainTypes},
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: contract.Hex(),
		},
	}

	separator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}
	return common.BytesToHash(separator), nil
}

// RecoverSigner returns the address that produced sig over digest
func RecoverSigner(digest common.Hash, sig Signature) (common.Address, error) {
	raw := sig.Bytes()
	// Adjust v value back to recovery ID (27/28 → 0/1)
	raw[64] -= 27

	pubKey, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
