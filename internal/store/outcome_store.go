package store

import (
	"sync"
	"time"

	"quantumpay/pkg/payment"
)

type entry struct {
	outcome    payment.Outcome
	resolvedAt time.Time
}

// OutcomeStore holds one single-assignment outcome slot per checkout request
// id. The callback path and the polling path race to resolve the same
// payment; whichever writes first wins and the loser reads the existing
// value, so the consumer always sees exactly one authoritative outcome.
// Entries expire after ttl since nothing here is durable by design.
type OutcomeStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
}

func NewOutcomeStore(ttl time.Duration) *OutcomeStore {
	s := &OutcomeStore{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
	go s.cleanup()
	return s
}

// Resolve writes the outcome for checkoutRequestID unless one is already
// set. It returns the authoritative outcome and whether this call won the
// slot.
func (s *OutcomeStore) Resolve(checkoutRequestID string, outcome payment.Outcome) (payment.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[checkoutRequestID]; ok {
		return existing.outcome, false
	}
	s.entries[checkoutRequestID] = entry{outcome: outcome, resolvedAt: time.Now()}
	return outcome, true
}

// Get returns the resolved outcome for checkoutRequestID, if any.
func (s *OutcomeStore) Get(checkoutRequestID string) (payment.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[checkoutRequestID]
	return e.outcome, ok
}

func (s *OutcomeStore) cleanup() {
	tick := time.NewTicker(time.Minute)
	for range tick.C {
		cutoff := time.Now().Add(-s.ttl)
		s.mu.Lock()
		for id, e := range s.entries {
			if e.resolvedAt.Before(cutoff) {
				delete(s.entries, id)
			}
		}
		s.mu.Unlock()
	}
}
