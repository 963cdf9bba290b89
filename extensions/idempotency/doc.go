// Package idempotency makes payment confirmation safe to retry.
//
// # Overview
//
// Confirming a payment claims the sender's proposal, so a client that times out
// and retries the same confirm would otherwise be told there is nothing pending
// even though its first attempt settled. Wrapping the payment service lets a
// caller attach an idempotency key to the confirm; repeats of the same key by
// the same sender get the original settled outcome back, marked as replayed.
//
// # Usage
//
//	service := idempotency.Wrap(orchestrator,
//	    idempotency.WithTTL(10 * time.Minute),
//	)
//
//	ctx = idempotency.ContextWithKey(ctx, r.Header.Get("Idempotency-Key"))
//	outcome := service.ConfirmPayment(ctx, initiator)
//
// Confirms without a key pass straight through.
//
// # How It Works
//
// 1. The key is scoped to the sender identity and hashed (SHA256 by default)
// 2. The store atomically checks for a cached outcome or an in-flight confirm
// 3. If cached: return it without touching the ledger, unless the sender now
// has a different payment pending, which is refused as idempotency_key_reused
// 4. If in-flight: wait for the other confirm to finish, then return its outcome
// 5. Otherwise: confirm, then cache the outcome if it settled
//
// Unsettled outcomes are NOT cached, so a retry after a failure sees the
// service's current state.
//
// For deployments with several instances, implement ConfirmStore on a shared
// backend and pass it with WithStore.
package idempotency
