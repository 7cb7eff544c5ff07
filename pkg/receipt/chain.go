package receipt

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// Chain is an append-only, chronologically ordered sequence of receipts. An
// insertion whose started_at precedes the last member is rejected, as is a
// duplicate run id.
type Chain struct {
	receipts []contract.Receipt
	seen     map[uuid.UUID]struct{}
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{seen: map[uuid.UUID]struct{}{}}
}

// Append adds a receipt, enforcing monotonic started_at and unique run ids.
func (c *Chain) Append(r contract.Receipt) error {
	if _, dup := c.seen[r.Meta.RunID]; dup {
		return fmt.Errorf("chain: duplicate run id %s", r.Meta.RunID)
	}
	if n := len(c.receipts); n > 0 {
		last := c.receipts[n-1].Meta.StartedAt
		if r.Meta.StartedAt.Before(last) {
			return fmt.Errorf("chain: receipt started_at %s precedes last member %s",
				r.Meta.StartedAt, last)
		}
	}
	c.receipts = append(c.receipts, r)
	c.seen[r.Meta.RunID] = struct{}{}
	return nil
}

// Len returns the chain length.
func (c *Chain) Len() int { return len(c.receipts) }

// Receipts returns a copy of the chain, oldest first.
func (c *Chain) Receipts() []contract.Receipt {
	return append([]contract.Receipt(nil), c.receipts...)
}

// Store persists receipts. Implementations outside this module own the
// durable forms; the contract here is lookup by run id and chronological
// listing.
type Store interface {
	Put(r contract.Receipt) error
	Get(runID uuid.UUID) (contract.Receipt, bool, error)
	List() ([]contract.Receipt, error)
}

// MemoryStore is the in-process Store used by the runtime and tests.
type MemoryStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	byID  map[uuid.UUID]contract.Receipt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[uuid.UUID]contract.Receipt{}}
}

// Put implements Store. Re-putting a run id replaces its receipt.
func (s *MemoryStore) Put(r contract.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.Meta.RunID]; !exists {
		s.order = append(s.order, r.Meta.RunID)
	}
	s.byID[r.Meta.RunID] = r
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(runID uuid.UUID) (contract.Receipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[runID]
	return r, ok, nil
}

// List implements Store, returning receipts in insertion order.
func (s *MemoryStore) List() ([]contract.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contract.Receipt, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}
