package order

import (
	"time"
)

// Order represents a customer order owned by the fulfillment state machine.
// Display and marketing metadata live elsewhere; this type carries only what
// the state machine and its invariants need.
type Order struct {
	ID               string         `json:"id" db:"id"`
	Number           string         `json:"order_number" db:"order_number"`
	CustomerEmail    string         `json:"customer_email" db:"customer_email"`
	Subtotal         float64        `json:"subtotal" db:"subtotal"`
	TaxGST           float64        `json:"tax_gst" db:"tax_gst"`
	TaxQST           float64        `json:"tax_qst" db:"tax_qst"`
	DeliveryFee      float64        `json:"delivery_fee" db:"delivery_fee"`
	Total            float64        `json:"total" db:"total"`
	Status           Status         `json:"status" db:"status"`
	DeliveryStatus   DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	DelayReason      string         `json:"delay_reason,omitempty" db:"delay_reason"`
	ReadyAt          *time.Time     `json:"ready_at,omitempty" db:"ready_at"`
	OutForDeliveryAt *time.Time     `json:"out_for_delivery_at,omitempty" db:"out_for_delivery_at"`
	DeliveredAt      *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	PickedUpAt       *time.Time     `json:"picked_up_at,omitempty" db:"picked_up_at"`
	History          []HistoryEntry `json:"status_history"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// Status represents the commercial lifecycle of an order
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// DeliveryStatus represents the fulfillment lifecycle of an order
type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryPreparing      DeliveryStatus = "preparing"
	DeliveryReady          DeliveryStatus = "ready"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryDelayed        DeliveryStatus = "delayed"
	DeliveryCancelled      DeliveryStatus = "cancelled"
	DeliveryPickupReady    DeliveryStatus = "pickup_ready"
	DeliveryPickedUp       DeliveryStatus = "picked_up"
)

// Terminal reports whether the delivery status admits no further transitions
func (d DeliveryStatus) Terminal() bool {
	return d == DeliveryDelivered || d == DeliveryPickedUp || d == DeliveryCancelled
}

// HistoryEntry is one append-only audit record per applied transition. From
// and To hold the status/deliveryStatus pairing at each side of the change.
type HistoryEntry struct {
	From    string    `json:"from" db:"from_status"`
	To      string    `json:"to" db:"to_status"`
	Actor   string    `json:"actor" db:"actor"`
	Note    string    `json:"note,omitempty" db:"note"`
	At      time.Time `json:"at" db:"changed_at"`
	OrderID string    `json:"-" db:"order_id"`
}

// StatePair formats the status/deliveryStatus pairing recorded in history
func StatePair(s Status, d DeliveryStatus) string {
	return string(s) + "/" + string(d)
}
