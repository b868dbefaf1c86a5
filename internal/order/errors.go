package order

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when an order id does not resolve
var ErrOrderNotFound = errors.New("order not found")

// ErrDelayReasonRequired is returned when a transition to delayed carries no reason
var ErrDelayReasonRequired = errors.New("delay reason is required when marking an order delayed")

// InvalidTransitionError rejects a source/target pair outside the rule tables
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// ConcurrentModificationError rejects a transition whose last-known state no
// longer matches the order. The caller must re-read and retry.
type ConcurrentModificationError struct {
	OrderID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("order %s was modified concurrently, re-read and retry", e.OrderID)
}
