package fisher

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/socialpay/fisher/mechanisms/evm"
)

// HandleResolver answers whether a handle is claimed and how much is waiting for it.
// Every call reads the ledger; nothing is cached.
type HandleResolver struct {
	ledger evm.Ledger
}

// NewHandleResolver creates a resolver over ledger
func NewHandleResolver(ledger evm.Ledger) *HandleResolver {
	return &HandleResolver{ledger: ledger}
}

// Resolve reads the claim status and pending balance of handle on platform.
// Both reads run concurrently; a failure of either is reported as ledger_unavailable.
func (r *HandleResolver) Resolve(ctx context.Context, handle, platform string) (HandleInfo, error) {
	var (
		claimed bool
		wallet  common.Address
		balance *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		claimed, wallet, err = r.ledger.IsHandleClaimed(gctx, handle, platform)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = r.ledger.GetPendingBalance(gctx, handle, platform)
		return err
	})
	if err := g.Wait(); err != nil {
		return HandleInfo{}, NewPaymentError(ErrCodeLedgerUnavailable, err.Error(),
			map[string]interface{}{"handle": handle, "platform": platform})
	}

	if balance == nil {
		balance = new(big.Int)
	}
	info := HandleInfo{
		Handle:                handle,
		Platform:              platform,
		IsClaimed:             claimed,
		PendingBalance:        balance,
		PendingBalanceDecimal: evm.FormatAmount(balance, evm.DefaultDecimals),
	}
	if claimed && wallet != (common.Address{}) {
		info.LinkedWallet = &wallet
	}
	return info, nil
}
