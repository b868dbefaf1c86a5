package order

// validStatusTransitions is the commercial status rule table. Cancelled and
// completed are terminal.
var validStatusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// validDeliveryTransitions is the fulfillment rule table. The forward path is
// pending -> preparing -> ready -> out_for_delivery -> delivered, with a
// pickup branch ready -> pickup_ready -> picked_up. Delayed is a flag state
// reachable from the mid-path states; the actor names the state to resume
// into. Cancelled is reachable from any non-terminal state.
var validDeliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:        {DeliveryPreparing, DeliveryCancelled},
	DeliveryPreparing:      {DeliveryReady, DeliveryDelayed, DeliveryCancelled},
	DeliveryReady:          {DeliveryOutForDelivery, DeliveryPickupReady, DeliveryDelayed, DeliveryCancelled},
	DeliveryOutForDelivery: {DeliveryDelivered, DeliveryDelayed, DeliveryCancelled},
	DeliveryPickupReady:    {DeliveryPickedUp, DeliveryCancelled},
	DeliveryDelayed:        {DeliveryPreparing, DeliveryReady, DeliveryOutForDelivery, DeliveryCancelled},
}

// CanTransition reports whether the commercial status change is allowed
func CanTransition(from, to Status) bool {
	for _, allowed := range validStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionDelivery reports whether the fulfillment status change is allowed
func CanTransitionDelivery(from, to DeliveryStatus) bool {
	for _, allowed := range validDeliveryTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
