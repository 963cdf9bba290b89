package fisher

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func proposal(identity, recipient, amount string) PendingPayment {
	return PendingPayment{
		InitiatorIdentity: identity,
		InitiatorHandle:   "alice",
		RecipientHandle:   recipient,
		AmountDecimal:     amount,
	}
}

func TestPendingStore_Propose(t *testing.T) {
	clock := newTestClock()
	store := NewPendingStore(WithStoreClock(clock.Now))

	stored, replaced, err := store.Propose(proposal("u1", "bob", "10"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if replaced {
		t.Error("Expected first proposal not to replace anything")
	}
	if stored.State != StateProposed {
		t.Errorf("Expected state proposed, got %s", stored.State)
	}
	if stored.ID == "" {
		t.Error("Expected an id to be assigned")
	}
	if !stored.CreatedAt.Equal(clock.Now()) {
		t.Errorf("Expected createdAt %v, got %v", clock.Now(), stored.CreatedAt)
	}
}

func TestPendingStore_ProposeOverwrites(t *testing.T) {
	clock := newTestClock()
	store := NewPendingStore(WithStoreClock(clock.Now))

	first, _, _ := store.Propose(proposal("u1", "bob", "10"))
	clock.Advance(4 * time.Minute)
	second, replaced, err := store.Propose(proposal("u1", "carol", "20"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !replaced {
		t.Error("Expected second proposal to replace the first")
	}
	if store.Len() != 1 {
		t.Errorf("Expected exactly one record, got %d", store.Len())
	}

	// The replacement gets a fresh TTL window
	clock.Advance(4 * time.Minute)
	claimed, err := store.Claim("u1")
	if err != nil {
		t.Fatalf("Expected claim to succeed, got %v", err)
	}
	if claimed.ID != second.ID || claimed.ID == first.ID {
		t.Errorf("Expected to claim the replacement %s, got %s", second.ID, claimed.ID)
	}
	if claimed.RecipientHandle != "carol" || claimed.AmountDecimal != "20" {
		t.Errorf("Expected carol/20, got %s/%s", claimed.RecipientHandle, claimed.AmountDecimal)
	}
}

func TestPendingStore_ProposeWhileSubmitted(t *testing.T) {
	store := NewPendingStore()
	store.Propose(proposal("u1", "bob", "10"))
	if _, err := store.Claim("u1"); err != nil {
		t.Fatalf("Expected claim to succeed, got %v", err)
	}

	_, _, err := store.Propose(proposal("u1", "carol", "20"))
	if !errors.Is(err, ErrPaymentInFlight) {
		t.Errorf("Expected payment_in_flight, got %v", err)
	}
}

func TestPendingStore_ClaimExpiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"well within ttl", 299 * time.Second, nil},
		{"exactly ttl", 300 * time.Second, nil},
		{"past ttl", 301 * time.Second, ErrPaymentExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newTestClock()
			store := NewPendingStore(WithStoreClock(clock.Now))
			store.Propose(proposal("u1", "bob", "10"))
			clock.Advance(tt.elapsed)

			_, err := store.Claim("u1")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Expected claim to succeed, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if store.Len() != 0 {
				t.Error("Expected expired record to be removed")
			}
			// A second confirm finds nothing
			if _, err := store.Claim("u1"); !errors.Is(err, ErrNoPendingPayment) {
				t.Errorf("Expected no_pending_payment after expiry, got %v", err)
			}
		})
	}
}

func TestPendingStore_ClaimConcurrent(t *testing.T) {
	store := NewPendingStore()
	store.Propose(proposal("u1", "bob", "10"))

	const workers = 50
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		noPending atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Claim("u1")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrNoPendingPayment):
				noPending.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Errorf("Expected exactly one successful claim, got %d", succeeded.Load())
	}
	if noPending.Load() != workers-1 {
		t.Errorf("Expected %d no_pending_payment results, got %d", workers-1, noPending.Load())
	}
}

func TestPendingStore_IdentitiesAreIndependent(t *testing.T) {
	store := NewPendingStore()
	store.Propose(proposal("u1", "bob", "10"))
	store.Propose(proposal("u2", "bob", "10"))

	if _, err := store.Claim("u1"); err != nil {
		t.Fatalf("Expected u1 claim to succeed, got %v", err)
	}
	if _, err := store.Claim("u2"); err != nil {
		t.Fatalf("Expected u2 claim to succeed, got %v", err)
	}
}

func TestPendingStore_Cancel(t *testing.T) {
	clock := newTestClock()
	store := NewPendingStore(WithStoreClock(clock.Now))

	if _, err := store.Cancel("u1"); !errors.Is(err, ErrNoPendingPayment) {
		t.Errorf("Expected no_pending_payment, got %v", err)
	}

	store.Propose(proposal("u1", "bob", "10"))
	clock.Advance(10 * time.Minute)
	cancelled, err := store.Cancel("u1")
	if err != nil {
		t.Fatalf("Expected expired proposal to be cancellable, got %v", err)
	}
	if cancelled.State != StateCancelled {
		t.Errorf("Expected state cancelled, got %s", cancelled.State)
	}
	if _, err := store.Claim("u1"); !errors.Is(err, ErrNoPendingPayment) {
		t.Errorf("Expected confirm after cancel to find nothing, got %v", err)
	}

	store.Propose(proposal("u1", "bob", "10"))
	store.Claim("u1")
	if _, err := store.Cancel("u1"); !errors.Is(err, ErrPaymentInFlight) {
		t.Errorf("Expected payment_in_flight for submitted payment, got %v", err)
	}
}

func TestPendingStore_SettleAndFail(t *testing.T) {
	store := NewPendingStore()

	stored, _, _ := store.Propose(proposal("u1", "bob", "10"))
	if _, ok := store.Settle("u1", stored.ID); ok {
		t.Error("Expected settle of an unclaimed proposal to be ignored")
	}

	store.Claim("u1")
	if _, ok := store.Settle("u1", "pay_other"); ok {
		t.Error("Expected settle with a foreign id to be ignored")
	}
	settled, ok := store.Settle("u1", stored.ID)
	if !ok || settled.State != StateSettled {
		t.Errorf("Expected settled record, got %v %s", ok, settled.State)
	}
	if store.Len() != 0 {
		t.Error("Expected record to be removed after settle")
	}

	stored, _, _ = store.Propose(proposal("u1", "bob", "10"))
	store.Claim("u1")
	failed, ok := store.Fail("u1", stored.ID)
	if !ok || failed.State != StateFailed {
		t.Errorf("Expected failed record, got %v %s", ok, failed.State)
	}
	if _, exists := store.Get("u1"); exists {
		t.Error("Expected record to be removed after fail")
	}
}

func TestPendingStore_Get(t *testing.T) {
	clock := newTestClock()
	store := NewPendingStore(WithStoreClock(clock.Now), WithProposalTTL(time.Minute))

	store.Propose(proposal("u1", "bob", "10"))
	got, ok := store.Get("u1")
	if !ok || got.State != StateProposed {
		t.Fatalf("Expected proposed record, got %v %s", ok, got.State)
	}

	clock.Advance(2 * time.Minute)
	got, _ = store.Get("u1")
	if got.State != StateExpired {
		t.Errorf("Expected expired view, got %s", got.State)
	}
	if store.Len() != 1 {
		t.Error("Expected Get not to remove the record")
	}
}

func TestPendingStore_ClaimThenMarkSubmitted(t *testing.T) {
	store := NewPendingStore()
	stored, _, _ := store.Propose(proposal("u1", "bob", "10"))

	if store.MarkSubmitted("u1", stored.ID) {
		t.Error("Expected an unclaimed proposal not to be marked submitted")
	}

	claimed, err := store.Claim("u1")
	if err != nil {
		t.Fatalf("Expected claim to succeed, got %v", err)
	}
	if claimed.State != StateConfirmed {
		t.Errorf("Expected claimed payment to be confirmed, got %s", claimed.State)
	}
	if _, err := store.Cancel("u1"); !errors.Is(err, ErrPaymentInFlight) {
		t.Errorf("Expected payment_in_flight for a confirmed payment, got %v", err)
	}

	if store.MarkSubmitted("u1", "pay_other") {
		t.Error("Expected a foreign id not to be marked submitted")
	}
	if !store.MarkSubmitted("u1", stored.ID) {
		t.Fatal("Expected confirmed payment to be marked submitted")
	}
	if got, _ := store.Get("u1"); got.State != StateSubmitted {
		t.Errorf("Expected state submitted, got %s", got.State)
	}
	if store.MarkSubmitted("u1", stored.ID) {
		t.Error("Expected a submitted payment not to be marked twice")
	}

	settled, ok := store.Settle("u1", stored.ID)
	if !ok || settled.State != StateSettled {
		t.Errorf("Expected submitted payment to settle, got %v %s", ok, settled.State)
	}
}
