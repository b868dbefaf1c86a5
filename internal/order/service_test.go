package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
)

func newTestService(t *testing.T) (*Service, *jobqueue.MemoryStore) {
	t.Helper()
	queue := jobqueue.NewMemoryStore(2 * time.Minute)
	svc := NewService(NewMemoryStore(), queue, nil, zap.NewNop())
	return svc, queue
}

func createTestOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	ord, err := svc.Create(context.Background(), &Order{
		CustomerEmail: "client@example.com",
		Subtotal:      100,
		TaxGST:        5,
		TaxQST:        9.98,
		DeliveryFee:   8,
		Total:         122.98,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ord
}

func pendingJobs(t *testing.T, queue *jobqueue.MemoryStore) []*jobqueue.Job {
	t.Helper()
	jobs, err := queue.ListByStatus(context.Background(), jobqueue.StatusPending, -time.Minute)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	return jobs
}

func TestCreateStartsAtPendingPending(t *testing.T) {
	svc, queue := newTestService(t)
	ord := createTestOrder(t, svc)

	if ord.Status != StatusPending || ord.DeliveryStatus != DeliveryPending {
		t.Fatalf("new order at %s, want pending/pending", StatePair(ord.Status, ord.DeliveryStatus))
	}
	if len(ord.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(ord.History))
	}
	if ord.History[0].To != "pending/pending" {
		t.Errorf("initial history To = %q, want pending/pending", ord.History[0].To)
	}
	if ord.Number == "" {
		t.Error("order number not generated")
	}

	jobs := pendingJobs(t, queue)
	if len(jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(jobs))
	}
	if jobs[0].TemplateName != "order_received" || jobs[0].Priority != jobqueue.PriorityHigh {
		t.Errorf("got job %s priority %d, want order_received priority %d",
			jobs[0].TemplateName, jobs[0].Priority, jobqueue.PriorityHigh)
	}
}

func TestConfirmAppendsHistoryAndEnqueuesConfirmation(t *testing.T) {
	svc, queue := newTestService(t)
	ord := createTestOrder(t, svc)

	updated, err := svc.Transition(context.Background(), ord.ID, TransitionRequest{
		Target:           StatusConfirmed,
		ExpectedStatus:   StatusPending,
		ExpectedDelivery: DeliveryPending,
		Actor:            "admin",
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if updated.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
	if len(updated.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(updated.History))
	}
	last := updated.History[len(updated.History)-1]
	if last.From != "pending/pending" || last.To != "confirmed/pending" || last.Actor != "admin" {
		t.Errorf("history entry = %+v", last)
	}
	if updated.ReadyAt != nil || updated.OutForDeliveryAt != nil || updated.DeliveredAt != nil || updated.PickedUpAt != nil {
		t.Error("milestone timestamps stamped on a non-milestone transition")
	}

	var confirmation *jobqueue.Job
	for _, job := range pendingJobs(t, queue) {
		if job.TemplateName == "order_confirmation" {
			confirmation = job
		}
	}
	if confirmation == nil {
		t.Fatal("no order_confirmation job enqueued")
	}
	if confirmation.Priority != jobqueue.PriorityHigh {
		t.Errorf("confirmation priority = %d, want %d", confirmation.Priority, jobqueue.PriorityHigh)
	}
	if confirmation.OrderID != ord.ID {
		t.Errorf("confirmation order id = %q, want %q", confirmation.OrderID, ord.ID)
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	svc, queue := newTestService(t)
	ord := createTestOrder(t, svc)

	_, err := svc.Transition(context.Background(), ord.ID, TransitionRequest{
		Target:           StatusCompleted,
		ExpectedStatus:   StatusPending,
		ExpectedDelivery: DeliveryPending,
		Actor:            "admin",
	})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}

	current, err := svc.Get(context.Background(), ord.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(current.History) != 1 {
		t.Errorf("rejected transition appended history, length = %d", len(current.History))
	}
	if len(pendingJobs(t, queue)) != 1 {
		t.Error("rejected transition enqueued a notification job")
	}
}

func TestTransitionRequiresExactlyOneTarget(t *testing.T) {
	svc, _ := newTestService(t)
	ord := createTestOrder(t, svc)

	_, err := svc.Transition(context.Background(), ord.ID, TransitionRequest{
		ExpectedStatus:   StatusPending,
		ExpectedDelivery: DeliveryPending,
	})
	if !errors.Is(err, ErrNoTarget) {
		t.Errorf("no target: err = %v, want ErrNoTarget", err)
	}

	_, err = svc.Transition(context.Background(), ord.ID, TransitionRequest{
		Target:           StatusConfirmed,
		DeliveryTarget:   DeliveryPreparing,
		ExpectedStatus:   StatusPending,
		ExpectedDelivery: DeliveryPending,
	})
	if !errors.Is(err, ErrNoTarget) {
		t.Errorf("both targets: err = %v, want ErrNoTarget", err)
	}
}

func TestDelayedDetourKeepsMilestones(t *testing.T) {
	svc, _ := newTestService(t)
	ord := createTestOrder(t, svc)
	ctx := context.Background()

	steps := []TransitionRequest{
		{Target: StatusConfirmed, ExpectedStatus: StatusPending, ExpectedDelivery: DeliveryPending, Actor: "payments"},
		{DeliveryTarget: DeliveryPreparing, ExpectedStatus: StatusConfirmed, ExpectedDelivery: DeliveryPending, Actor: "kitchen"},
		{DeliveryTarget: DeliveryReady, ExpectedStatus: StatusConfirmed, ExpectedDelivery: DeliveryPreparing, Actor: "kitchen"},
		{DeliveryTarget: DeliveryOutForDelivery, ExpectedStatus: StatusConfirmed, ExpectedDelivery: DeliveryReady, Actor: "driver"},
	}
	var current *Order
	var err error
	for _, step := range steps {
		current, err = svc.Transition(ctx, ord.ID, step)
		if err != nil {
			t.Fatalf("Transition to %s%s: %v", step.Target, step.DeliveryTarget, err)
		}
	}
	if current.OutForDeliveryAt == nil {
		t.Fatal("OutForDeliveryAt not stamped")
	}
	firstOut := *current.OutForDeliveryAt

	// Delaying without a reason is rejected
	_, err = svc.Transition(ctx, ord.ID, TransitionRequest{
		DeliveryTarget:   DeliveryDelayed,
		ExpectedStatus:   StatusConfirmed,
		ExpectedDelivery: DeliveryOutForDelivery,
		Actor:            "driver",
	})
	if !errors.Is(err, ErrDelayReasonRequired) {
		t.Fatalf("delay without reason: err = %v, want ErrDelayReasonRequired", err)
	}

	delayed, err := svc.Transition(ctx, ord.ID, TransitionRequest{
		DeliveryTarget:   DeliveryDelayed,
		ExpectedStatus:   StatusConfirmed,
		ExpectedDelivery: DeliveryOutForDelivery,
		Actor:            "driver",
		DelayReason:      "traffic on the bridge",
	})
	if err != nil {
		t.Fatalf("Transition to delayed: %v", err)
	}
	if delayed.DelayReason != "traffic on the bridge" {
		t.Errorf("delay reason = %q", delayed.DelayReason)
	}

	resumed, err := svc.Transition(ctx, ord.ID, TransitionRequest{
		DeliveryTarget:   DeliveryOutForDelivery,
		ExpectedStatus:   StatusConfirmed,
		ExpectedDelivery: DeliveryDelayed,
		Actor:            "driver",
	})
	if err != nil {
		t.Fatalf("Transition back to out_for_delivery: %v", err)
	}
	if resumed.DelayReason != "" {
		t.Errorf("delay reason not cleared on resume: %q", resumed.DelayReason)
	}
	if resumed.OutForDeliveryAt == nil || !resumed.OutForDeliveryAt.Equal(firstOut) {
		t.Errorf("OutForDeliveryAt re-stamped on resume: %v, want %v", resumed.OutForDeliveryAt, firstOut)
	}
	if len(resumed.History) != 7 {
		t.Errorf("history length = %d, want 7", len(resumed.History))
	}
}

func TestPickupBranchStampsReadyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ord := createTestOrder(t, svc)
	ctx := context.Background()

	mustTransition := func(req TransitionRequest) *Order {
		updated, err := svc.Transition(ctx, ord.ID, req)
		if err != nil {
			t.Fatalf("Transition: %v", err)
		}
		return updated
	}

	mustTransition(TransitionRequest{Target: StatusConfirmed, ExpectedStatus: StatusPending, ExpectedDelivery: DeliveryPending, Actor: "payments"})
	mustTransition(TransitionRequest{DeliveryTarget: DeliveryPreparing, ExpectedStatus: StatusConfirmed, ExpectedDelivery: DeliveryPending, Actor: "kitchen"})
	ready := mustTransition(TransitionRequest{DeliveryTarget: DeliveryReady, ExpectedStatus: StatusConfirmed, ExpectedDelivery: DeliveryPreparing, Actor: "kitchen"})
	if ready.ReadyAt == nil {
		t.Fatal("ReadyAt not stamped")
	}
	readyAt := *ready.ReadyAt

	picked := mustTransition(TransitionRequest{DeliveryTarget: DeliveryPickupReady, ExpectedStatus: StatusConfirmed, ExpectedDelivery: DeliveryReady, Actor: "counter"})
	if picked.ReadyAt == nil || !picked.ReadyAt.Equal(readyAt) {
		t.Errorf("ReadyAt changed on pickup_ready: %v, want %v", picked.ReadyAt, readyAt)
	}

	done := mustTransition(TransitionRequest{DeliveryTarget: DeliveryPickedUp, ExpectedStatus: StatusConfirmed, ExpectedDelivery: DeliveryPickupReady, Actor: "counter"})
	if done.PickedUpAt == nil {
		t.Error("PickedUpAt not stamped")
	}
}

func TestCancelOrderCancelsDelivery(t *testing.T) {
	svc, _ := newTestService(t)
	ord := createTestOrder(t, svc)
	ctx := context.Background()

	cancelled, err := svc.Transition(ctx, ord.ID, TransitionRequest{
		Target:           StatusCancelled,
		ExpectedStatus:   StatusPending,
		ExpectedDelivery: DeliveryPending,
		Actor:            "admin",
		Note:             "customer request",
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if cancelled.DeliveryStatus != DeliveryCancelled {
		t.Errorf("delivery status = %s, want cancelled", cancelled.DeliveryStatus)
	}

	// A cancelled order never re-enters fulfillment
	_, err = svc.Transition(ctx, ord.ID, TransitionRequest{
		DeliveryTarget:   DeliveryPreparing,
		ExpectedStatus:   StatusCancelled,
		ExpectedDelivery: DeliveryCancelled,
		Actor:            "kitchen",
	})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Errorf("err = %v, want InvalidTransitionError", err)
	}
}

func TestStaleExpectationRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ord := createTestOrder(t, svc)
	ctx := context.Background()

	if _, err := svc.Transition(ctx, ord.ID, TransitionRequest{
		Target:           StatusConfirmed,
		ExpectedStatus:   StatusPending,
		ExpectedDelivery: DeliveryPending,
		Actor:            "payments",
	}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	_, err := svc.Transition(ctx, ord.ID, TransitionRequest{
		Target:           StatusCancelled,
		ExpectedStatus:   StatusPending,
		ExpectedDelivery: DeliveryPending,
		Actor:            "admin",
	})
	var conflict *ConcurrentModificationError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConcurrentModificationError", err)
	}
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	svc, _ := newTestService(t)
	ord := createTestOrder(t, svc)
	ctx := context.Background()

	const racers = 2
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, ord.ID, TransitionRequest{
				Target:           StatusConfirmed,
				ExpectedStatus:   StatusPending,
				ExpectedDelivery: DeliveryPending,
				Actor:            "admin",
			})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		var conflict *ConcurrentModificationError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d, conflicts = %d, want exactly one of each", wins, conflicts)
	}

	current, err := svc.Get(ctx, ord.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", current.Status)
	}
	if len(current.History) != 2 {
		t.Errorf("history length = %d, want 2", len(current.History))
	}
}

func TestPaymentEvents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	confirmed := createTestOrder(t, svc)
	updated, err := svc.HandlePaymentSucceeded(ctx, confirmed.ID)
	if err != nil {
		t.Fatalf("HandlePaymentSucceeded: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}

	failed := createTestOrder(t, svc)
	updated, err = svc.HandlePaymentFailed(ctx, failed.ID)
	if err != nil {
		t.Fatalf("HandlePaymentFailed: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", updated.Status)
	}
	if updated.DeliveryStatus != DeliveryCancelled {
		t.Errorf("delivery status = %s, want cancelled", updated.DeliveryStatus)
	}
}

func TestGetUnknownOrder(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}
