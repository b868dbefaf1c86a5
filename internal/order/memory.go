package order

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory for tests and local runs.
// The mutex gives ApplyTransition the same compare-and-swap atomicity the
// Postgres conditional update provides.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*Order
}

// NewMemoryStore creates an in-memory order store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

// Create inserts a new order with its initial history entry
func (s *MemoryStore) Create(ctx context.Context, ord *Order, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneOrder(ord)
	stored.History = append(stored.History, entry)
	s.orders[ord.ID] = stored
	return nil
}

// Get fetches an order and its full history
func (s *MemoryStore) Get(ctx context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(ord), nil
}

// ApplyTransition swaps the order state conditionally on the expected pairing
func (s *MemoryStore) ApplyTransition(ctx context.Context, expectedStatus Status, expectedDelivery DeliveryStatus, updated *Order, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[updated.ID]
	if !ok {
		return ErrOrderNotFound
	}
	if current.Status != expectedStatus || current.DeliveryStatus != expectedDelivery {
		return &ConcurrentModificationError{OrderID: updated.ID}
	}

	next := cloneOrder(updated)
	next.History = append(append([]HistoryEntry(nil), current.History...), entry)
	s.orders[updated.ID] = next
	return nil
}

func cloneOrder(ord *Order) *Order {
	copy := *ord
	copy.History = append([]HistoryEntry(nil), ord.History...)
	return &copy
}
