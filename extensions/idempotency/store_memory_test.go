package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	fisher "github.com/socialpay/fisher"
)

func settled(txHash string) fisher.ConfirmOutcome {
	return fisher.ConfirmOutcome{Status: fisher.ConfirmSettled, PaymentID: "pay_1", TxHash: txHash}
}

func TestDefaultKeyGenerator(t *testing.T) {
	key1 := DefaultKeyGenerator("1001", "retry-1")
	key2 := DefaultKeyGenerator("1002", "retry-1")
	key3 := DefaultKeyGenerator("1001", "retry-1")
	key4 := DefaultKeyGenerator("10011", "retry-")

	if key1 != key3 {
		t.Errorf("Expected same inputs to produce same key, got %s and %s", key1, key3)
	}
	if key1 == key2 {
		t.Error("Expected different senders to produce different keys")
	}
	if key1 == key4 {
		t.Error("Expected identity and key to be separated")
	}
	if len(key1) != 64 {
		t.Errorf("Expected key to be 64 hex chars, got %d", len(key1))
	}
}

func TestContextKey(t *testing.T) {
	ctx := context.Background()
	if _, ok := KeyFromContext(ctx); ok {
		t.Error("Expected no key on a bare context")
	}
	if ContextWithKey(ctx, "") != ctx {
		t.Error("Expected empty key to leave the context unchanged")
	}
	key, ok := KeyFromContext(ContextWithKey(ctx, "abc"))
	if !ok || key != "abc" {
		t.Errorf("Expected key abc, got %q (%v)", key, ok)
	}
}

func TestInMemoryStore_CheckAndMark_Cached(t *testing.T) {
	store := NewInMemoryStore(5 * time.Minute)
	key := "test-key"

	status, result, done := store.CheckAndMark(key)
	if status != StatusNotFound {
		t.Errorf("Expected StatusNotFound, got %v", status)
	}
	if result != nil {
		t.Error("Expected nil result for NotFound")
	}

	store.Complete(key, settled("0x123"), done)

	status, result, _ = store.CheckAndMark(key)
	if status != StatusCached {
		t.Errorf("Expected StatusCached, got %v", status)
	}
	if result == nil || result.TxHash != "0x123" {
		t.Errorf("Expected cached outcome with tx 0x123")
	}
}

func TestInMemoryStore_CheckAndMark_InFlight(t *testing.T) {
	store := NewInMemoryStore(5 * time.Minute)
	key := "inflight-test"

	status1, _, done1 := store.CheckAndMark(key)
	if status1 != StatusNotFound {
		t.Errorf("Expected StatusNotFound, got %v", status1)
	}

	status2, _, done2 := store.CheckAndMark(key)
	if status2 != StatusInFlight {
		t.Errorf("Expected StatusInFlight, got %v", status2)
	}
	if done1 != done2 {
		t.Error("Expected same done channel for in-flight requests")
	}
}

func TestInMemoryStore_Expiry(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	key := "expiry-test"

	_, _, done := store.CheckAndMark(key)
	store.Complete(key, settled("0x999"), done)

	now = now.Add(59 * time.Second)
	if status, _, _ := store.CheckAndMark(key); status != StatusCached {
		t.Errorf("Expected StatusCached before the TTL, got %v", status)
	}

	now = now.Add(time.Second)
	status, _, done := store.CheckAndMark(key)
	if status != StatusNotFound {
		t.Errorf("Expected StatusNotFound after expiry, got %v", status)
	}
	store.Fail(key, done)
	if store.Len() != 0 {
		t.Errorf("Expected expired entry to be dropped, got %d", store.Len())
	}
}

func TestInMemoryStore_Fail(t *testing.T) {
	store := NewInMemoryStore(5 * time.Minute)
	key := "fail-test"

	status, _, done := store.CheckAndMark(key)
	if status != StatusNotFound {
		t.Fatalf("Expected StatusNotFound, got %v", status)
	}

	store.Fail(key, done)

	status, _, done2 := store.CheckAndMark(key)
	if status != StatusNotFound {
		t.Errorf("Expected StatusNotFound after fail (retry allowed), got %v", status)
	}
	store.Fail(key, done2)
}

func TestInMemoryStore_WaitForResult(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		store := NewInMemoryStore(5 * time.Minute)
		key := "wait-test"
		_, _, done := store.CheckAndMark(key)

		var wg sync.WaitGroup
		var waitResult *fisher.ConfirmOutcome
		var waitErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			waitResult, waitErr = store.WaitForResult(context.Background(), key, done)
		}()

		store.Complete(key, settled("0xwaited"), done)
		wg.Wait()

		if waitErr != nil {
			t.Errorf("Expected no error, got %v", waitErr)
		}
		if waitResult == nil || waitResult.TxHash != "0xwaited" {
			t.Errorf("Expected outcome with tx 0xwaited, got %v", waitResult)
		}
	})

	t.Run("failed", func(t *testing.T) {
		store := NewInMemoryStore(5 * time.Minute)
		key := "wait-fail"
		_, _, done := store.CheckAndMark(key)
		store.Fail(key, done)

		result, err := store.WaitForResult(context.Background(), key, done)
		if err != nil || result != nil {
			t.Errorf("Expected nil outcome and no error, got %v, %v", result, err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		store := NewInMemoryStore(5 * time.Minute)
		key := "cancel-test"
		_, _, done := store.CheckAndMark(key)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := store.WaitForResult(ctx, key, done); err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		store.Fail(key, done)
	})
}

func TestInMemoryStore_AtomicCheckAndMark(t *testing.T) {
	store := NewInMemoryStore(5 * time.Minute)
	key := "atomic-test"

	var wg sync.WaitGroup
	var mu sync.Mutex
	notFoundCount, inFlightCount := 0, 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _ := store.CheckAndMark(key)
			mu.Lock()
			defer mu.Unlock()
			switch status {
			case StatusNotFound:
				notFoundCount++
			case StatusInFlight:
				inFlightCount++
			}
		}()
	}
	wg.Wait()

	if notFoundCount != 1 {
		t.Errorf("Expected exactly 1 NotFound, got %d", notFoundCount)
	}
	if inFlightCount != 9 {
		t.Errorf("Expected 9 InFlight, got %d", inFlightCount)
	}
}
