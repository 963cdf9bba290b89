package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	fisher "github.com/socialpay/fisher"
)

// ConfirmStatus represents the result of checking the store.
type ConfirmStatus int

const (
	// StatusNotFound means no cached outcome and no in-flight confirm.
	StatusNotFound ConfirmStatus = iota
	// StatusCached means a cached outcome was found.
	StatusCached
	// StatusInFlight means another request is currently confirming under this key.
	StatusInFlight
)

// ConfirmStore defines the storage behind confirm idempotency.
// Implementations must be safe for concurrent use.
type ConfirmStore interface {
	// CheckAndMark atomically checks the store and marks the key as in-flight if needed.
	//
	// Returns:
	//   - StatusCached + outcome + nil: a cached outcome exists, return it immediately
	//   - StatusInFlight + nil + done: another request is confirming, wait on done
	//   - StatusNotFound + nil + done: this request should proceed (now marked in-flight)
	//
	// done must be passed to Complete or Fail when the confirm finishes.
	CheckAndMark(key string) (ConfirmStatus, *fisher.ConfirmOutcome, chan struct{})

	// WaitForResult waits for an in-flight confirm, respecting context cancellation.
	// It returns nil without error when the in-flight confirm did not settle.
	WaitForResult(ctx context.Context, key string, done chan struct{}) (*fisher.ConfirmOutcome, error)

	// Complete caches outcome and signals waiters through done.
	Complete(key string, outcome fisher.ConfirmOutcome, done chan struct{})

	// Fail removes the in-flight marker without caching and signals waiters.
	Fail(key string, done chan struct{})
}

// KeyGenerator derives the store key for a sender's idempotency key.
type KeyGenerator func(identity, idempotencyKey string) string

// DefaultKeyGenerator hashes the sender identity together with the caller's key,
// so two senders choosing the same key never share an outcome.
func DefaultKeyGenerator(identity, idempotencyKey string) string {
	h := sha256.New()
	h.Write([]byte(identity))
	h.Write([]byte{0})
	h.Write([]byte(idempotencyKey))
	return hex.EncodeToString(h.Sum(nil))
}

type contextKey struct{}

// ContextWithKey attaches an idempotency key to ctx. An empty key leaves ctx unchanged.
func ContextWithKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, key)
}

// KeyFromContext returns the idempotency key attached to ctx, if any.
func KeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(contextKey{}).(string)
	return key, ok && key != ""
}
