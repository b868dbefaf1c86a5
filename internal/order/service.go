package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/events"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
)

// ErrNoTarget is returned when a transition request names no target state
var ErrNoTarget = errors.New("transition requires exactly one target status")

// Store persists orders. ApplyTransition must be conditional on the expected
// current state pairing and must append the history entry with the same
// atomicity as the state change.
type Store interface {
	Create(ctx context.Context, ord *Order, entry HistoryEntry) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ApplyTransition(ctx context.Context, expectedStatus Status, expectedDelivery DeliveryStatus, updated *Order, entry HistoryEntry) error
}

// EventPublisher publishes order domain events
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event events.OrderEvent) error
}

// TransitionRequest carries one requested state change. Exactly one of
// Target and DeliveryTarget must be set. Expected* carry the caller's
// last-known state pairing for the optimistic concurrency check.
type TransitionRequest struct {
	Target           Status
	DeliveryTarget   DeliveryStatus
	ExpectedStatus   Status
	ExpectedDelivery DeliveryStatus
	Actor            string
	Note             string
	DelayReason      string
}

// Service owns order lifecycle mutations. All writes go through Create and
// Transition; nothing else touches order state.
type Service struct {
	store     Store
	queue     jobqueue.Store
	publisher EventPublisher
	logger    *zap.Logger
}

// NewService creates the order state machine service
func NewService(store Store, queue jobqueue.Store, publisher EventPublisher, logger *zap.Logger) *Service {
	return &Service{store: store, queue: queue, publisher: publisher, logger: logger}
}

// Create records a new order at pending/pending on checkout completion
func (s *Service) Create(ctx context.Context, ord *Order) (*Order, error) {
	if ord.ID == "" {
		ord.ID = uuid.New().String()
	}
	if ord.Number == "" {
		ord.Number = generateOrderNumber()
	}
	now := time.Now()
	ord.Status = StatusPending
	ord.DeliveryStatus = DeliveryPending
	ord.CreatedAt = now
	ord.UpdatedAt = now

	entry := HistoryEntry{
		OrderID: ord.ID,
		From:    "",
		To:      StatePair(ord.Status, ord.DeliveryStatus),
		Actor:   "system",
		Note:    "order created",
		At:      now,
	}
	if err := s.store.Create(ctx, ord, entry); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	ord.History = append(ord.History, entry)

	s.enqueueJobs(ctx, []jobqueue.Job{{
		TemplateName: "order_received",
		Recipient:    ord.CustomerEmail,
		Priority:     jobqueue.PriorityHigh,
		OrderID:      ord.ID,
		Variables:    orderVariables(ord),
	}})
	s.publishEvent(ctx, events.OrderEvent{
		Type:        "order.created",
		OrderID:     ord.ID,
		OrderNumber: ord.Number,
		To:          entry.To,
		Actor:       entry.Actor,
		At:          now,
	})

	s.logger.Info("Order created",
		zap.String("order_id", ord.ID),
		zap.String("order_number", ord.Number),
	)
	return ord, nil
}

// Transition applies one state change to an order. Invalid transitions and
// stale expectations are reported synchronously; notification and event
// failures are logged and never fail the transition.
func (s *Service) Transition(ctx context.Context, orderID string, req TransitionRequest) (*Order, error) {
	if (req.Target == "") == (req.DeliveryTarget == "") {
		return nil, ErrNoTarget
	}

	ord, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.Status != req.ExpectedStatus || ord.DeliveryStatus != req.ExpectedDelivery {
		return nil, &ConcurrentModificationError{OrderID: orderID}
	}

	updated := *ord
	now := time.Now()

	if req.Target != "" {
		if !CanTransition(ord.Status, req.Target) {
			return nil, &InvalidTransitionError{From: string(ord.Status), To: string(req.Target)}
		}
		updated.Status = req.Target
		if req.Target == StatusCancelled && !ord.DeliveryStatus.Terminal() {
			updated.DeliveryStatus = DeliveryCancelled
		}
	} else {
		// A cancelled order never re-enters fulfillment
		if ord.Status == StatusCancelled {
			return nil, &InvalidTransitionError{From: string(ord.DeliveryStatus), To: string(req.DeliveryTarget)}
		}
		if !CanTransitionDelivery(ord.DeliveryStatus, req.DeliveryTarget) {
			return nil, &InvalidTransitionError{From: string(ord.DeliveryStatus), To: string(req.DeliveryTarget)}
		}
		if req.DeliveryTarget == DeliveryDelayed {
			if req.DelayReason == "" {
				return nil, ErrDelayReasonRequired
			}
			updated.DelayReason = req.DelayReason
		} else if ord.DeliveryStatus == DeliveryDelayed {
			updated.DelayReason = ""
		}
		updated.DeliveryStatus = req.DeliveryTarget
		stampMilestone(&updated, req.DeliveryTarget, now)
	}
	updated.UpdatedAt = now

	entry := HistoryEntry{
		OrderID: ord.ID,
		From:    StatePair(ord.Status, ord.DeliveryStatus),
		To:      StatePair(updated.Status, updated.DeliveryStatus),
		Actor:   req.Actor,
		Note:    req.Note,
		At:      now,
	}

	if err := s.store.ApplyTransition(ctx, req.ExpectedStatus, req.ExpectedDelivery, &updated, entry); err != nil {
		return nil, err
	}
	updated.History = append(updated.History, entry)

	s.enqueueJobs(ctx, jobsForTransition(ord, &updated))
	s.publishEvent(ctx, events.OrderEvent{
		Type:        "order.transitioned",
		OrderID:     ord.ID,
		OrderNumber: ord.Number,
		From:        entry.From,
		To:          entry.To,
		Actor:       req.Actor,
		At:          now,
	})

	s.logger.Info("Order transitioned",
		zap.String("order_id", ord.ID),
		zap.String("from", entry.From),
		zap.String("to", entry.To),
		zap.String("actor", req.Actor),
	)
	return &updated, nil
}

// Get returns an order with its full history
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.store.Get(ctx, orderID)
}

// HandlePaymentSucceeded confirms a pending order on a payment event
func (s *Service) HandlePaymentSucceeded(ctx context.Context, orderID string) (*Order, error) {
	ord, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, orderID, TransitionRequest{
		Target:           StatusConfirmed,
		ExpectedStatus:   ord.Status,
		ExpectedDelivery: ord.DeliveryStatus,
		Actor:            "payments",
		Note:             "payment succeeded",
	})
}

// HandlePaymentFailed cancels a pending order on a payment failure event
func (s *Service) HandlePaymentFailed(ctx context.Context, orderID string) (*Order, error) {
	ord, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, orderID, TransitionRequest{
		Target:           StatusCancelled,
		ExpectedStatus:   ord.Status,
		ExpectedDelivery: ord.DeliveryStatus,
		Actor:            "payments",
		Note:             "payment failed",
	})
}

// stampMilestone records the first time an order reaches a milestone state.
// A delayed detour that resumes into the same state never re-stamps.
func stampMilestone(ord *Order, target DeliveryStatus, now time.Time) {
	switch target {
	case DeliveryReady, DeliveryPickupReady:
		if ord.ReadyAt == nil {
			ord.ReadyAt = &now
		}
	case DeliveryOutForDelivery:
		if ord.OutForDeliveryAt == nil {
			ord.OutForDeliveryAt = &now
		}
	case DeliveryDelivered:
		if ord.DeliveredAt == nil {
			ord.DeliveredAt = &now
		}
	case DeliveryPickedUp:
		if ord.PickedUpAt == nil {
			ord.PickedUpAt = &now
		}
	}
}

// jobsForTransition maps an applied transition to the notifications it owes
func jobsForTransition(before, after *Order) []jobqueue.Job {
	vars := orderVariables(after)
	base := jobqueue.Job{Recipient: after.CustomerEmail, OrderID: after.ID, Variables: vars}

	var jobs []jobqueue.Job
	if before.Status != after.Status {
		switch after.Status {
		case StatusConfirmed:
			job := base
			job.TemplateName = "order_confirmation"
			job.Priority = jobqueue.PriorityHigh
			jobs = append(jobs, job)
		case StatusCancelled:
			job := base
			job.TemplateName = "order_cancelled"
			job.Priority = jobqueue.PriorityHigh
			jobs = append(jobs, job)
		case StatusCompleted:
			job := base
			job.TemplateName = "order_completed"
			job.Priority = jobqueue.PriorityNormal
			jobs = append(jobs, job)
		}
	}
	if before.DeliveryStatus != after.DeliveryStatus {
		switch after.DeliveryStatus {
		case DeliveryDelayed:
			job := base
			job.TemplateName = "delay_notice"
			job.Priority = jobqueue.PriorityHigh
			jobs = append(jobs, job)
		case DeliveryReady:
			job := base
			job.TemplateName = "order_ready"
			job.Priority = jobqueue.PriorityNormal
			jobs = append(jobs, job)
		case DeliveryPickupReady:
			job := base
			job.TemplateName = "pickup_ready"
			job.Priority = jobqueue.PriorityNormal
			jobs = append(jobs, job)
		case DeliveryOutForDelivery:
			job := base
			job.TemplateName = "out_for_delivery"
			job.Priority = jobqueue.PriorityNormal
			jobs = append(jobs, job)
		case DeliveryDelivered:
			job := base
			job.TemplateName = "delivery_confirmation"
			job.Priority = jobqueue.PriorityNormal
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func orderVariables(ord *Order) map[string]string {
	vars := map[string]string{
		"order_number": ord.Number,
		"total":        fmt.Sprintf("%.2f", ord.Total),
	}
	if ord.DelayReason != "" {
		vars["delay_reason"] = ord.DelayReason
	}
	return vars
}

// enqueueJobs is fire-and-forget; a notification failure never blocks or
// rolls back the order's transition
func (s *Service) enqueueJobs(ctx context.Context, jobs []jobqueue.Job) {
	for i := range jobs {
		if jobs[i].Recipient == "" {
			continue
		}
		if _, err := s.queue.Enqueue(ctx, &jobs[i]); err != nil {
			s.logger.Error("Failed to enqueue notification job",
				zap.String("template", jobs[i].TemplateName),
				zap.String("order_id", jobs[i].OrderID),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) publishEvent(ctx context.Context, event events.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("order_id", event.OrderID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

func generateOrderNumber() string {
	return "DC-" + time.Now().Format("20060102") + "-" + uuid.New().String()[:8]
}
