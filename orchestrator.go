package fisher

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/socialpay/fisher/mechanisms/evm"
)

// PaymentOrchestrator runs the request, confirm and cancel commands.
// It holds no per-payment state of its own; everything lives in the store.
type PaymentOrchestrator struct {
	mu sync.RWMutex

	ledger   evm.Ledger
	signer   evm.IntentSigner
	store    *PendingStore
	wallets  *WalletStore
	resolver *HandleResolver

	platform          string
	chainID           *big.Int
	contract          common.Address
	domainName        string
	domainVersion     string
	deadlineMinutes   int
	expectedSeparator *common.Hash
	logger            *zap.Logger

	// Lifecycle hooks
	beforeConfirmHooks  []BeforeConfirmHook
	submittedHooks      []SubmittedHook
	afterSettleHooks    []AfterSettleHook
	confirmFailureHooks []ConfirmFailureHook
}

// OrchestratorOption configures a PaymentOrchestrator
type OrchestratorOption func(*PaymentOrchestrator)

// WithPlatform sets the platform handles are scoped to
func WithPlatform(platform string) OrchestratorOption {
	return func(o *PaymentOrchestrator) {
		if platform != "" {
			o.platform = platform
		}
	}
}

// WithChainID sets the chain the ledger is deployed on
func WithChainID(chainID *big.Int) OrchestratorOption {
	return func(o *PaymentOrchestrator) {
		if chainID != nil {
			o.chainID = new(big.Int).Set(chainID)
		}
	}
}

// WithVerifyingContract sets the ledger contract address used for domain checks
func WithVerifyingContract(contract common.Address) OrchestratorOption {
	return func(o *PaymentOrchestrator) {
		o.contract = contract
	}
}

// WithDomain overrides the EIP-712 domain name and version
func WithDomain(name, version string) OrchestratorOption {
	return func(o *PaymentOrchestrator) {
		o.domainName = name
		o.domainVersion = version
	}
}

// WithDeadlineWindow sets the intent validity window in minutes
func WithDeadlineWindow(minutes int) OrchestratorOption {
	return func(o *PaymentOrchestrator) {
		o.deadlineMinutes = minutes
	}
}

// WithWalletStore shares a sender wallet registry with the orchestrator
func WithWalletStore(wallets *WalletStore) OrchestratorOption {
	return func(o *PaymentOrchestrator) {
		if wallets != nil {
			o.wallets = wallets
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *PaymentOrchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewPaymentOrchestrator wires the payment commands to a ledger, signer and store
func NewPaymentOrchestrator(ledger evm.Ledger, signer evm.IntentSigner, store *PendingStore, opts ...OrchestratorOption) *PaymentOrchestrator {
	if store == nil {
		store = NewPendingStore()
	}
	o := &PaymentOrchestrator{
		ledger:          ledger,
		signer:          signer,
		store:           store,
		wallets:         NewWalletStore(),
		resolver:        NewHandleResolver(ledger),
		platform:        evm.DefaultPlatform,
		chainID:         new(big.Int).Set(evm.ChainIDSepolia),
		domainName:      evm.DomainName,
		domainVersion:   evm.DomainVersion,
		deadlineMinutes: evm.DefaultDeadlineMinutes,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.contract != (common.Address{}) {
		separator, err := evm.ComputeDomainSeparator(o.domainName, o.domainVersion, o.chainID, o.contract)
		if err != nil {
			o.logger.Warn("cannot compute expected domain separator", zap.Error(err))
		} else {
			o.expectedSeparator = &separator
		}
	}
	return o
}

// Store returns the pending payment store
func (o *PaymentOrchestrator) Store() *PendingStore {
	return o.store
}

// Wallets returns the sender wallet registry
func (o *PaymentOrchestrator) Wallets() *WalletStore {
	return o.wallets
}

// Platform returns the platform handles are scoped to
func (o *PaymentOrchestrator) Platform() string {
	return o.platform
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (o *PaymentOrchestrator) OnBeforeConfirm(hook BeforeConfirmHook) *PaymentOrchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.beforeConfirmHooks = append(o.beforeConfirmHooks, hook)
	return o
}

func (o *PaymentOrchestrator) OnSubmitted(hook SubmittedHook) *PaymentOrchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submittedHooks = append(o.submittedHooks, hook)
	return o
}

func (o *PaymentOrchestrator) OnAfterSettle(hook AfterSettleHook) *PaymentOrchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.afterSettleHooks = append(o.afterSettleHooks, hook)
	return o
}

func (o *PaymentOrchestrator) OnConfirmFailure(hook ConfirmFailureHook) *PaymentOrchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.confirmFailureHooks = append(o.confirmFailureHooks, hook)
	return o
}

// ============================================================================
// Commands
// ============================================================================

// RequestPayment validates a transfer request and stores it as the
// initiator's proposal, replacing any earlier unconfirmed proposal.
//
// Validation order: initiator handle, sender wallet, recipient handle, then
// self-payment, then amount. Self-payment is rejected regardless of the
// amount given.
func (o *PaymentOrchestrator) RequestPayment(ctx context.Context, initiator Initiator, recipient, amountDecimal string) (RequestResult, error) {
	initiatorHandle := normalizeHandle(initiator.Handle)
	if initiator.Identity == "" || initiatorHandle == "" {
		return RequestResult{}, NewPaymentError(ErrCodeMissingHandle,
			"a public username is required to send payments", nil)
	}

	fromWallet, ok := o.wallets.Get(initiator.Identity)
	if !ok {
		return RequestResult{}, NewPaymentError(ErrCodeMissingWallet,
			"set a sender wallet before sending payments", nil)
	}

	recipient = normalizeHandle(recipient)
	if recipient == "" || strings.ContainsAny(recipient, " \t\r\n@") {
		return RequestResult{}, NewPaymentError(ErrCodeMissingHandle,
			"a recipient handle is required", map[string]interface{}{"recipient": recipient})
	}

	if strings.EqualFold(recipient, initiatorHandle) {
		return RequestResult{}, NewPaymentError(ErrCodeSelfPayment, "cannot send a payment to yourself", nil)
	}

	if _, err := evm.ParseAmount(amountDecimal, evm.DefaultDecimals); err != nil {
		return RequestResult{}, NewPaymentError(ErrCodeInvalidAmount, err.Error(),
			map[string]interface{}{"amount": amountDecimal})
	}

	stored, replaced, err := o.store.Propose(PendingPayment{
		InitiatorIdentity: initiator.Identity,
		InitiatorHandle:   initiatorHandle,
		FromWallet:        fromWallet.Hex(),
		RecipientHandle:   recipient,
		AmountDecimal:     amountDecimal,
	})
	if err != nil {
		return RequestResult{}, err
	}

	o.logger.Info("payment proposed",
		zap.String("payment_id", stored.ID),
		zap.String("initiator", initiator.Identity),
		zap.String("recipient", recipient),
		zap.Bool("replaced", replaced),
	)
	return RequestResult{Status: StateProposed, Payment: stored, Replaced: replaced}, nil
}

// SetWallet registers the wallet the initiator sends from.
// A later registration replaces the earlier one; pending proposals keep the
// wallet they were created with.
func (o *PaymentOrchestrator) SetWallet(ctx context.Context, initiator Initiator, address string) (WalletRegistration, error) {
	if initiator.Identity == "" {
		return WalletRegistration{}, NewPaymentError(ErrCodeMissingHandle,
			"an initiator identity is required to set a wallet", nil)
	}

	wallet, replaced, err := o.wallets.Set(initiator.Identity, address)
	if err != nil {
		return WalletRegistration{}, err
	}

	o.logger.Info("wallet registered",
		zap.String("initiator", initiator.Identity),
		zap.String("wallet", wallet.Hex()),
		zap.Bool("replaced", replaced),
	)
	return WalletRegistration{Identity: initiator.Identity, Address: wallet, Replaced: replaced}, nil
}

// ConfirmPayment executes the initiator's proposal on the ledger.
//
// The proposal is claimed atomically, so concurrent confirms for the same
// initiator execute it at most once. Every failure is reported in the
// returned outcome and removes the proposal; nothing is retried.
func (o *PaymentOrchestrator) ConfirmPayment(ctx context.Context, initiator Initiator) ConfirmOutcome {
	start := time.Now()

	payment, err := o.store.Claim(initiator.Identity)
	if err != nil {
		if CodeOf(err) == ErrCodePaymentExpired {
			o.logger.Info("payment expired before confirm",
				zap.String("payment_id", payment.ID),
				zap.String("initiator", initiator.Identity),
			)
			return ConfirmOutcome{
				Status:    ConfirmExpired,
				PaymentID: payment.ID,
				ErrorCode: ErrCodePaymentExpired,
				Reason:    "payment proposal expired, please request it again",
			}
		}
		return ConfirmOutcome{
			Status:    ConfirmNoPendingPayment,
			ErrorCode: ErrCodeNoPendingPayment,
			Reason:    "no pending payment to confirm",
		}
	}

	hookCtx := ConfirmContext{
		Ctx:       ctx,
		Initiator: initiator,
		Payment:   payment,
		Timestamp: start,
	}
	logger := o.logger.With(
		zap.String("payment_id", payment.ID),
		zap.String("initiator", initiator.Identity),
		zap.String("from_wallet", payment.FromWallet),
		zap.String("recipient", payment.RecipientHandle),
	)

	o.mu.RLock()
	beforeHooks := o.beforeConfirmHooks
	o.mu.RUnlock()
	for _, hook := range beforeHooks {
		result, hookErr := hook(hookCtx)
		if hookErr != nil {
			return o.fail(hookCtx, logger, ConfirmOutcome{ErrorCode: ErrCodeSigningAborted, Reason: hookErr.Error()}, hookErr)
		}
		if result != nil && result.Abort {
			return o.fail(hookCtx, logger, ConfirmOutcome{ErrorCode: ErrCodeSigningAborted, Reason: result.Reason}, nil)
		}
	}

	// Recipient status is informational only
	var recipient *HandleInfo
	if info, resolveErr := o.resolver.Resolve(ctx, payment.RecipientHandle, o.platform); resolveErr != nil {
		logger.Warn("recipient lookup failed", zap.Error(resolveErr))
	} else {
		recipient = &info
	}

	amount, err := evm.ParseAmount(payment.AmountDecimal, evm.DefaultDecimals)
	if err != nil {
		return o.fail(hookCtx, logger, ConfirmOutcome{ErrorCode: ErrCodeInvalidAmount, Reason: err.Error(), Recipient: recipient}, err)
	}

	nonce := o.signer.GenerateNonce()
	deadline := o.signer.GenerateDeadline(o.deadlineMinutes)

	separator, err := o.ledger.GetDomainSeparator(ctx)
	if err != nil {
		return o.fail(hookCtx, logger, ConfirmOutcome{
			ErrorCode: ErrCodeSigningAborted,
			Reason:    fmt.Sprintf("cannot read domain separator: %v", err),
			Recipient: recipient,
		}, err)
	}
	if o.expectedSeparator != nil && *o.expectedSeparator != separator {
		logger.Warn("ledger domain separator differs from configured domain",
			zap.String("ledger", separator.Hex()),
			zap.String("expected", o.expectedSeparator.Hex()),
		)
	}

	intent, err := evm.NewPaymentIntent(payment.RecipientHandle, o.platform, amount, nonce, deadline)
	if err != nil {
		return o.fail(hookCtx, logger, ConfirmOutcome{ErrorCode: ErrCodeSigningError, Reason: err.Error(), Recipient: recipient}, err)
	}

	signed, err := o.signer.SignIntent(intent, evm.IntentDomain{
		VerifyingContract: o.contract,
		ChainID:           o.chainID,
		Separator:         separator,
	})
	if err != nil {
		return o.fail(hookCtx, logger, ConfirmOutcome{ErrorCode: ErrCodeSigningError, Reason: err.Error(), Recipient: recipient}, err)
	}

	txHash, err := o.ledger.PayToHandleWithSignature(ctx, signed)
	if err != nil {
		return o.fail(hookCtx, logger, ConfirmOutcome{
			ErrorCode: ErrCodeSubmissionFailed,
			Reason:    err.Error(),
			Recipient: recipient,
			Intent:    &signed,
		}, err)
	}
	o.store.MarkSubmitted(initiator.Identity, payment.ID)
	logger.Info("payment submitted", zap.String("tx_hash", txHash.Hex()))

	o.mu.RLock()
	submittedHooks := o.submittedHooks
	o.mu.RUnlock()
	submittedCtx := SubmittedContext{ConfirmContext: hookCtx, Intent: signed, TxHash: txHash.Hex()}
	for _, hook := range submittedHooks {
		if hookErr := hook(submittedCtx); hookErr != nil {
			logger.Warn("submitted hook failed", zap.Error(hookErr))
		}
	}

	receipt, err := o.ledger.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return o.fail(hookCtx, logger, ConfirmOutcome{
			ErrorCode: ErrCodeSubmissionFailed,
			Reason:    err.Error(),
			TxHash:    txHash.Hex(),
			Recipient: recipient,
			Intent:    &signed,
		}, err)
	}
	if receipt.Status != evm.TxStatusSuccess {
		return o.fail(hookCtx, logger, ConfirmOutcome{
			ErrorCode:   ErrCodeTransactionReverted,
			Reason:      "transaction reverted",
			TxHash:      txHash.Hex(),
			BlockNumber: receipt.BlockNumber,
			Recipient:   recipient,
			Intent:      &signed,
		}, nil)
	}

	o.store.Settle(initiator.Identity, payment.ID)
	outcome := ConfirmOutcome{
		Status:      ConfirmSettled,
		PaymentID:   payment.ID,
		TxHash:      txHash.Hex(),
		BlockNumber: receipt.BlockNumber,
		Recipient:   recipient,
		Intent:      &signed,
	}
	logger.Info("payment settled",
		zap.String("tx_hash", outcome.TxHash),
		zap.Uint64("block", outcome.BlockNumber),
	)

	o.mu.RLock()
	afterHooks := o.afterSettleHooks
	o.mu.RUnlock()
	resultCtx := SettleResultContext{ConfirmContext: hookCtx, Outcome: outcome, Duration: time.Since(start)}
	for _, hook := range afterHooks {
		if hookErr := hook(resultCtx); hookErr != nil {
			logger.Warn("after settle hook failed", zap.Error(hookErr))
		}
	}

	return outcome
}

// fail drops the claimed payment and reports outcome as failed
func (o *PaymentOrchestrator) fail(hookCtx ConfirmContext, logger *zap.Logger, outcome ConfirmOutcome, cause error) ConfirmOutcome {
	o.store.Fail(hookCtx.Initiator.Identity, hookCtx.Payment.ID)

	outcome.Status = ConfirmFailed
	outcome.PaymentID = hookCtx.Payment.ID
	logger.Warn("payment failed",
		zap.String("code", outcome.ErrorCode),
		zap.String("reason", outcome.Reason),
		zap.String("tx_hash", outcome.TxHash),
	)

	o.mu.RLock()
	failureHooks := o.confirmFailureHooks
	o.mu.RUnlock()
	failureCtx := ConfirmFailureContext{
		ConfirmContext: hookCtx,
		Outcome:        outcome,
		Error:          cause,
		Duration:       time.Since(hookCtx.Timestamp),
	}
	for _, hook := range failureHooks {
		if hookErr := hook(failureCtx); hookErr != nil {
			logger.Warn("confirm failure hook failed", zap.Error(hookErr))
		}
	}
	return outcome
}

// CancelPayment drops the initiator's proposal if there is one.
// A payment already confirmed cannot be cancelled and is reported as
// no_pending_payment with ErrorCode payment_in_flight.
func (o *PaymentOrchestrator) CancelPayment(ctx context.Context, initiator Initiator) CancelResult {
	cancelled, err := o.store.Cancel(initiator.Identity)
	if err != nil {
		return CancelResult{Status: CancelNoPendingPayment, ErrorCode: CodeOf(err)}
	}

	o.logger.Info("payment cancelled",
		zap.String("payment_id", cancelled.ID),
		zap.String("initiator", initiator.Identity),
	)
	return CancelResult{Status: CancelCancelled, Payment: &cancelled}
}

// Pending returns the initiator's current record, if any
func (o *PaymentOrchestrator) Pending(initiator Initiator) (PendingPayment, bool) {
	return o.store.Get(initiator.Identity)
}

// CheckHandle reports a handle's claim status and pending balance
func (o *PaymentOrchestrator) CheckHandle(ctx context.Context, handle string) (HandleInfo, error) {
	handle = normalizeHandle(handle)
	if handle == "" {
		return HandleInfo{}, NewPaymentError(ErrCodeMissingHandle, "a handle is required", nil)
	}
	return o.resolver.Resolve(ctx, handle, o.platform)
}

// Balance reports the initiator's own claim status and pending balance
func (o *PaymentOrchestrator) Balance(ctx context.Context, initiator Initiator) (HandleInfo, error) {
	handle := normalizeHandle(initiator.Handle)
	if handle == "" {
		return HandleInfo{}, NewPaymentError(ErrCodeMissingHandle,
			"a public username is required to check a balance", nil)
	}
	return o.resolver.Resolve(ctx, handle, o.platform)
}

// normalizeHandle strips surrounding whitespace and one leading "@"
func normalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}
