package inventory

import (
	"context"
	"fmt"
	"sync"
)

// MemCounterStore is an in-process CounterStore keyed by ticket type. It
// backs unit tests and mirrors the SQL store's guard semantics exactly.
type MemCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memCounter
}

type memCounter struct {
	total     int
	available int
}

func NewMemCounterStore() *MemCounterStore {
	return &MemCounterStore{counters: make(map[string]*memCounter)}
}

// Seed registers a ticket type with the given capacity, fully available.
func (s *MemCounterStore) Seed(ticketTypeID string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[ticketTypeID] = &memCounter{total: total, available: total}
}

func (s *MemCounterStore) Decrement(_ context.Context, ticketTypeID string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[ticketTypeID]
	if !ok {
		return false, fmt.Errorf("inventory: unknown ticket type %s", ticketTypeID)
	}
	if c.available < qty {
		return false, nil
	}
	c.available -= qty
	return true, nil
}

func (s *MemCounterStore) Increment(_ context.Context, ticketTypeID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[ticketTypeID]
	if !ok {
		return fmt.Errorf("inventory: unknown ticket type %s", ticketTypeID)
	}
	c.available += qty
	if c.available > c.total {
		c.available = c.total
	}
	return nil
}

func (s *MemCounterStore) AdjustCapacity(_ context.Context, ticketTypeID string, delta int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[ticketTypeID]
	if !ok {
		return false, fmt.Errorf("inventory: unknown ticket type %s", ticketTypeID)
	}
	if c.total+delta < 0 || c.available+delta < 0 {
		return false, nil
	}
	c.total += delta
	c.available += delta
	return true, nil
}

func (s *MemCounterStore) Available(_ context.Context, ticketTypeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[ticketTypeID]
	if !ok {
		return 0, fmt.Errorf("inventory: unknown ticket type %s", ticketTypeID)
	}
	return c.available, nil
}
