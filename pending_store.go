package fisher

import (
	"sync"
	"time"
)

// DefaultProposalTTL is how long a proposed payment stays confirmable
const DefaultProposalTTL = 5 * time.Minute

// PendingStore holds at most one pending payment per initiator identity.
//
// Records live only in memory. Expiry is evaluated lazily when a record is
// claimed; there is no background sweeper. All transitions happen under a
// single mutex and no network I/O is performed while it is held.
type PendingStore struct {
	mu      sync.Mutex
	records map[string]PendingPayment
	ttl     time.Duration
	nowF    func() time.Time
}

// StoreOption configures a PendingStore
type StoreOption func(*PendingStore)

// WithProposalTTL overrides the proposal lifetime
func WithProposalTTL(ttl time.Duration) StoreOption {
	return func(s *PendingStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStoreClock overrides the clock used for creation times and expiry
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *PendingStore) {
		s.nowF = now
	}
}

// NewPendingStore creates an empty store
func NewPendingStore(opts ...StoreOption) *PendingStore {
	s := &PendingStore{
		records: make(map[string]PendingPayment),
		ttl:     DefaultProposalTTL,
		nowF:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the proposal lifetime
func (s *PendingStore) TTL() time.Duration {
	return s.ttl
}

// Propose stores p as the initiator's proposed payment, replacing any earlier
// proposal. A payment already submitted for the initiator is never replaced.
// Returns the stored copy and whether an earlier proposal was overwritten.
func (s *PendingStore) Propose(p PendingPayment) (PendingPayment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[p.InitiatorIdentity]
	if exists && existing.inFlight() {
		return PendingPayment{}, false, NewPaymentError(ErrCodePaymentInFlight,
			"a payment is already being submitted", map[string]interface{}{"paymentId": existing.ID})
	}

	if p.ID == "" {
		p.ID = GeneratePaymentID()
	}
	p.CreatedAt = s.nowF()
	p.State = StateProposed
	s.records[p.InitiatorIdentity] = p

	return p, exists, nil
}

// Claim atomically moves the initiator's proposal to confirmed.
//
// Exactly one caller can claim a given proposal. A proposal older than the
// TTL is removed and reported as expired; a proposal exactly TTL old is valid.
func (s *PendingStore) Claim(identity string) (PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.records[identity]
	if !exists || p.State != StateProposed {
		return PendingPayment{}, NewPaymentError(ErrCodeNoPendingPayment, "no pending payment to confirm", nil)
	}

	if s.expiredLocked(p) {
		delete(s.records, identity)
		p.State = StateExpired
		return p, NewPaymentError(ErrCodePaymentExpired, "payment proposal expired",
			map[string]interface{}{"paymentId": p.ID})
	}

	p.State = StateConfirmed
	s.records[identity] = p
	return p, nil
}

// MarkSubmitted records that a claimed payment was broadcast to the ledger.
// It only acts on the confirmed record with the given id.
func (s *PendingStore) MarkSubmitted(identity, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.records[identity]
	if !exists || p.ID != id || p.State != StateConfirmed {
		return false
	}
	p.State = StateSubmitted
	s.records[identity] = p
	return true
}

// Cancel removes the initiator's proposal.
// Proposals are cancellable even after they expire; claimed payments are not.
func (s *PendingStore) Cancel(identity string) (PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.records[identity]
	if !exists {
		return PendingPayment{}, NewPaymentError(ErrCodeNoPendingPayment, "no pending payment to cancel", nil)
	}
	if p.inFlight() {
		return PendingPayment{}, NewPaymentError(ErrCodePaymentInFlight,
			"payment already submitted and can no longer be cancelled", map[string]interface{}{"paymentId": p.ID})
	}

	delete(s.records, identity)
	p.State = StateCancelled
	return p, nil
}

// Settle removes a claimed payment after it was mined successfully.
// It only acts on the record with the given id.
func (s *PendingStore) Settle(identity, id string) (PendingPayment, bool) {
	return s.finish(identity, id, StateSettled)
}

// Fail removes a claimed payment that could not be executed.
// It only acts on the record with the given id.
func (s *PendingStore) Fail(identity, id string) (PendingPayment, bool) {
	return s.finish(identity, id, StateFailed)
}

func (s *PendingStore) finish(identity, id string, final PaymentState) (PendingPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.records[identity]
	if !exists || p.ID != id || !p.inFlight() {
		return PendingPayment{}, false
	}

	delete(s.records, identity)
	p.State = final
	return p, true
}

// Get returns a copy of the initiator's record. An expired proposal is
// reported with StateExpired but left in place.
func (s *PendingStore) Get(identity string) (PendingPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.records[identity]
	if !exists {
		return PendingPayment{}, false
	}
	if p.State == StateProposed && s.expiredLocked(p) {
		p.State = StateExpired
	}
	return p, true
}

// Len returns the number of records held
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// expiredLocked reports whether a record is past its TTL. Must be called with lock held.
func (s *PendingStore) expiredLocked(p PendingPayment) bool {
	return s.nowF().Sub(p.CreatedAt) > s.ttl
}
