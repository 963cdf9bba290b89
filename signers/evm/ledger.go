package evm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	fisherevm "github.com/socialpay/fisher/mechanisms/evm"
)

const (
	defaultPollInterval   = time.Second
	defaultReceiptTimeout = 2 * time.Minute
	// gasHeadroomPercent is added on top of the node's gas estimate
	gasHeadroomPercent = 20
)

// Backend is the subset of *ethclient.Client the ledger client uses
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// TxSigner signs relayer transactions without exposing the key
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// RevertError is returned when the contract rejects a call
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// LedgerClient implements fisherevm.Ledger against a deployed SocialPay contract
type LedgerClient struct {
	backend        Backend
	contract       common.Address
	contractABI    abi.ABI
	signer         TxSigner
	chainID        *big.Int
	pollInterval   time.Duration
	receiptTimeout time.Duration
	logger         *zap.Logger
}

// LedgerOption configures a LedgerClient
type LedgerOption func(*LedgerClient)

// WithPollInterval sets how often receipts are polled
func WithPollInterval(d time.Duration) LedgerOption {
	return func(c *LedgerClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithReceiptTimeout bounds how long WaitForTransactionReceipt waits
func WithReceiptTimeout(d time.Duration) LedgerOption {
	return func(c *LedgerClient) {
		if d > 0 {
			c.receiptTimeout = d
		}
	}
}

// WithLedgerLogger sets the logger
func WithLedgerLogger(logger *zap.Logger) LedgerOption {
	return func(c *LedgerClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewLedgerClient creates a client for the contract at contract on chainID.
// signer pays gas for submissions and is the executor recovered from intents.
func NewLedgerClient(backend Backend, contract common.Address, signer TxSigner, chainID *big.Int, opts ...LedgerOption) (*LedgerClient, error) {
	if backend == nil {
		return nil, errors.New("ledger backend is required")
	}
	if chainID == nil {
		return nil, errors.New("chain id is required")
	}

	contractABI, err := abi.JSON(bytes.NewReader(fisherevm.SocialPayABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	c := &LedgerClient{
		backend:        backend,
		contract:       contract,
		contractABI:    contractABI,
		signer:         signer,
		chainID:        new(big.Int).Set(chainID),
		pollInterval:   defaultPollInterval,
		receiptTimeout: defaultReceiptTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Contract returns the ledger contract address
func (c *LedgerClient) Contract() common.Address {
	return c.contract
}

// ChainID returns the configured chain id
func (c *LedgerClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// VerifyChainID checks that the connected node serves the configured chain
func (c *LedgerClient) VerifyChainID(ctx context.Context) error {
	remote, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if remote.Cmp(c.chainID) != 0 {
		return fmt.Errorf("chain id mismatch: node reports %s, configured %s", remote, c.chainID)
	}
	return nil
}

// IsHandleClaimed reports whether handle is linked to a wallet
func (c *LedgerClient) IsHandleClaimed(ctx context.Context, handle, platform string) (bool, common.Address, error) {
	outputs, err := c.call(ctx, fisherevm.FunctionIsHandleClaimed, handle, platform)
	if err != nil {
		return false, common.Address{}, err
	}
	if len(outputs) != 2 {
		return false, common.Address{}, fmt.Errorf("unexpected %s result length: %d", fisherevm.FunctionIsHandleClaimed, len(outputs))
	}

	claimed, ok := outputs[0].(bool)
	if !ok {
		return false, common.Address{}, fmt.Errorf("unexpected claimed type: %T", outputs[0])
	}
	wallet, ok := outputs[1].(common.Address)
	if !ok {
		return false, common.Address{}, fmt.Errorf("unexpected wallet type: %T", outputs[1])
	}
	return claimed, wallet, nil
}

// GetPendingBalance returns the unclaimed balance held for handle
func (c *LedgerClient) GetPendingBalance(ctx context.Context, handle, platform string) (*big.Int, error) {
	outputs, err := c.call(ctx, fisherevm.FunctionGetPendingBalance, handle, platform)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected %s result length: %d", fisherevm.FunctionGetPendingBalance, len(outputs))
	}

	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type: %T", outputs[0])
	}
	return balance, nil
}

// GetDomainSeparator returns the contract's EIP-712 domain separator
func (c *LedgerClient) GetDomainSeparator(ctx context.Context) (common.Hash, error) {
	outputs, err := c.call(ctx, fisherevm.FunctionGetDomainSeparator)
	if err != nil {
		return common.Hash{}, err
	}
	if len(outputs) != 1 {
		return common.Hash{}, fmt.Errorf("unexpected %s result length: %d", fisherevm.FunctionGetDomainSeparator, len(outputs))
	}

	separator, ok := outputs[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected separator type: %T", outputs[0])
	}
	return common.Hash(separator), nil
}

// PayToHandleWithSignature sends the signed intent in a transaction paid by the signer.
//
// Gas is estimated first so a rejected intent fails here with the
// contract's revert reason instead of being mined as a failed transaction.
func (c *LedgerClient) PayToHandleWithSignature(ctx context.Context, signed fisherevm.SignedIntent) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, ErrSigningKeyUnavailable
	}

	intent := signed.Intent
	data, err := c.contractABI.Pack(
		fisherevm.FunctionPayToHandleWithSignature,
		intent.Handle,
		intent.Platform,
		intent.Amount.ToBig(),
		intent.AsyncNonce.ToBig(),
		intent.Deadline.ToBig(),
		signed.Signature.Bytes(),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack method call: %w", err)
	}

	from := c.signer.Address()
	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.contract, Data: data})
	if err != nil {
		return common.Hash{}, revertError(err)
	}
	gasLimit += gasLimit * gasHeadroomPercent / 100

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, revertError(err)
	}

	c.logger.Debug("submitted payment transaction",
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gasLimit),
	)
	return signedTx.Hash(), nil
}

// WaitForTransactionReceipt polls until the transaction is mined, ctx is
// done or the receipt timeout elapses.
func (c *LedgerClient) WaitForTransactionReceipt(ctx context.Context, txHash common.Hash) (*fisherevm.TransactionReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			var blockNumber uint64
			if receipt.BlockNumber != nil {
				blockNumber = receipt.BlockNumber.Uint64()
			}
			return &fisherevm.TransactionReceipt{
				Status:      receipt.Status,
				BlockNumber: blockNumber,
				TxHash:      receipt.TxHash.Hex(),
			}, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("receipt poll failed", zap.String("tx_hash", txHash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction receipt not found for %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *LedgerClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call %s failed: %w", method, err)
	}

	outputs, err := c.contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return outputs, nil
}

// revertError extracts a Solidity revert reason from an RPC error when present
func revertError(err error) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return &RevertError{Reason: reason}
				}
			}
		}
	}
	return err
}

var _ fisherevm.Ledger = (*LedgerClient)(nil)
var _ fisherevm.IntentSigner = (*IntentSigner)(nil)
var _ TxSigner = (*IntentSigner)(nil)
