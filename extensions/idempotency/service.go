package idempotency

import (
	"context"
	"fmt"
	"time"

	fisher "github.com/socialpay/fisher"
)

// Service wraps a payment service so keyed confirms can be replayed.
// Every other command delegates directly to the wrapped service.
type Service struct {
	inner        fisher.PaymentService
	store        ConfirmStore
	keyGenerator KeyGenerator
}

// Wrap creates a Service around inner.
//
// Default configuration:
//   - InMemoryStore with 10-minute TTL
//   - SHA256 key generator
func Wrap(inner fisher.PaymentService, opts ...Option) *Service {
	cfg := &config{
		ttl:          10 * time.Minute,
		keyGenerator: DefaultKeyGenerator,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}

	return &Service{
		inner:        inner,
		store:        store,
		keyGenerator: cfg.keyGenerator,
	}
}

// ConfirmPayment confirms with replay protection when ctx carries an idempotency key.
func (s *Service) ConfirmPayment(ctx context.Context, initiator fisher.Initiator) fisher.ConfirmOutcome {
	idempotencyKey, ok := KeyFromContext(ctx)
	if !ok {
		return s.inner.ConfirmPayment(ctx, initiator)
	}
	cacheKey := s.keyGenerator(initiator.Identity, idempotencyKey)

	for {
		status, cached, done := s.store.CheckAndMark(cacheKey)
		switch status {
		case StatusCached:
			return s.replay(initiator, *cached)

		case StatusInFlight:
			result, err := s.store.WaitForResult(ctx, cacheKey, done)
			if err != nil {
				return fisher.ConfirmOutcome{
					Status: fisher.ConfirmFailed,
					Reason: err.Error(),
				}
			}
			if result != nil {
				return s.replay(initiator, *result)
			}
			// The other confirm did not settle; take our own turn
			continue

		case StatusNotFound:
		}

		outcome := s.inner.ConfirmPayment(ctx, initiator)
		if outcome.Status == fisher.ConfirmSettled {
			s.store.Complete(cacheKey, outcome, done)
		} else {
			s.store.Fail(cacheKey, done)
		}
		return outcome
	}
}

// replay returns a cached outcome unless the sender has since proposed a
// different payment, in which case the key is refused instead of answering
// for a payment it never confirmed.
func (s *Service) replay(initiator fisher.Initiator, outcome fisher.ConfirmOutcome) fisher.ConfirmOutcome {
	if current, ok := s.inner.Pending(initiator); ok && current.ID != outcome.PaymentID {
		return fisher.ConfirmOutcome{
			Status:    fisher.ConfirmKeyConflict,
			PaymentID: current.ID,
			ErrorCode: fisher.ErrCodeIdempotencyReused,
			Reason:    fmt.Sprintf("idempotency key already confirmed payment %s; use a new key", outcome.PaymentID),
		}
	}
	outcome.Replayed = true
	return outcome
}

// SetWallet delegates to the wrapped service.
func (s *Service) SetWallet(ctx context.Context, initiator fisher.Initiator, address string) (fisher.WalletRegistration, error) {
	return s.inner.SetWallet(ctx, initiator, address)
}

// RequestPayment delegates to the wrapped service.
func (s *Service) RequestPayment(ctx context.Context, initiator fisher.Initiator, recipient, amountDecimal string) (fisher.RequestResult, error) {
	return s.inner.RequestPayment(ctx, initiator, recipient, amountDecimal)
}

// CancelPayment delegates to the wrapped service.
func (s *Service) CancelPayment(ctx context.Context, initiator fisher.Initiator) fisher.CancelResult {
	return s.inner.CancelPayment(ctx, initiator)
}

// Pending delegates to the wrapped service.
func (s *Service) Pending(initiator fisher.Initiator) (fisher.PendingPayment, bool) {
	return s.inner.Pending(initiator)
}

// CheckHandle delegates to the wrapped service.
func (s *Service) CheckHandle(ctx context.Context, handle string) (fisher.HandleInfo, error) {
	return s.inner.CheckHandle(ctx, handle)
}

// Balance delegates to the wrapped service.
func (s *Service) Balance(ctx context.Context, initiator fisher.Initiator) (fisher.HandleInfo, error) {
	return s.inner.Balance(ctx, initiator)
}

// Inner returns the wrapped service.
func (s *Service) Inner() fisher.PaymentService {
	return s.inner
}

var _ fisher.PaymentService = (*Service)(nil)
