package evm

import (
	"math/big"
)

const (
	// EIP-712 domain of the SocialPay ledger contract
	DomainName    = "SocialPayEVVM"
	DomainVersion = "1"

	// PaymentIntentType is the canonical EIP-712 type string of a payment intent
	PaymentIntentType = "PaymentIntent(string handle,string platform,uint256 amount,uint256 asyncNonce,uint256 deadline)"

	// PrimaryTypePaymentIntent is the EIP-712 primary type name
	PrimaryTypePaymentIntent = "PaymentIntent"

	// Default token decimals for USDC
	DefaultDecimals = 6

	// Default platform handles are scoped to
	DefaultPlatform = "telegram"

	// Default intent validity window
	DefaultDeadlineMinutes = 60

	// Contract function names
	FunctionIsHandleClaimed          = "isHandleClaimed"
	FunctionGetPendingBalance        = "getPendingBalance"
	FunctionGetDomainSeparator       = "getDomainSeparator"
	FunctionPayToHandleWithSignature = "payToHandleWithSignature"

	// Transaction status
	TxStatusSuccess = 1
	TxStatusFailed  = 0

	// Gas limit used when estimation is unavailable
	DefaultGasLimit = 300000
)

var (
	// Network chain IDs
	ChainIDSepolia = big.NewInt(11155111)

	// SocialPayABI covers the ledger functions the relayer calls
	SocialPayABI = []byte(`[
		{
			"inputs": [
				{"name": "handle", "type": "string"},
				{"name": "platform", "type": "string"}
			],
			"name": "isHandleClaimed",
			"outputs": [
				{"name": "claimed", "type": "bool"},
				{"name": "wallet", "type": "address"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "handle", "type": "string"},
				{"name": "platform", "type": "string"}
			],
			"name": "getPendingBalance",
			"outputs": [
				{"name": "", "type": "uint256"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "getDomainSeparator",
			"outputs": [
				{"name": "", "type": "bytes32"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "handle", "type": "string"},
				{"name": "platform", "type": "string"},
				{"name": "amount", "type": "uint256"},
				{"name": "asyncNonce", "type": "uint256"},
				{"name": "deadline", "type": "uint256"},
				{"name": "signature", "type": "bytes"}
			],
			"name": "payToHandleWithSignature",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
)
