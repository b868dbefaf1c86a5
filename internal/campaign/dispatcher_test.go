package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *MemoryStore, *jobqueue.MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	queue := jobqueue.NewMemoryStore(time.Minute)
	dispatcher := NewDispatcher(store, queue, nil, nil, config.CampaignConfig{}, zap.NewNop())
	return dispatcher, store, queue
}

func seedCampaign(store *MemoryStore, camp *Campaign) {
	if camp.TemplateName == "" {
		camp.TemplateName = "summer_menu"
	}
	store.PutCampaign(camp)
}

func campaignJobs(t *testing.T, queue *jobqueue.MemoryStore, campaignID string) []*jobqueue.Job {
	t.Helper()
	jobs, err := queue.ListByStatus(context.Background(), jobqueue.StatusPending, -time.Minute)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	var out []*jobqueue.Job
	for _, job := range jobs {
		if job.CampaignID == campaignID {
			out = append(out, job)
		}
	}
	return out
}

func TestDispatchFiltersAudience(t *testing.T) {
	dispatcher, store, queue := newTestDispatcher(t)
	now := time.Now()

	seedCampaign(store, &Campaign{
		ID:                  "camp-1",
		Name:                "Summer Menu",
		Category:            "newsletter",
		Segment:             SegmentAll,
		MinDaysBetweenSends: 7,
	})
	store.PutRecipient(&Recipient{ID: "r1", Email: "fresh@example.com"})
	store.PutRecipient(&Recipient{ID: "r2", Email: "unsubscribed@example.com", Unsubscribed: true})
	store.PutRecipient(&Recipient{ID: "r3", Email: "recent@example.com",
		LastSends: map[string]time.Time{"newsletter": now.Add(-2 * 24 * time.Hour)}})
	store.PutRecipient(&Recipient{ID: "r4", Email: "stale@example.com",
		LastSends: map[string]time.Time{"newsletter": now.Add(-10 * 24 * time.Hour)}})
	store.PutRecipient(&Recipient{ID: "r5", Email: "other-category@example.com",
		LastSends: map[string]time.Time{"promo": now.Add(-1 * 24 * time.Hour)}})

	enqueued, err := dispatcher.Dispatch(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if enqueued != 3 {
		t.Fatalf("enqueued = %d, want 3", enqueued)
	}

	got := make(map[string]bool)
	for _, job := range campaignJobs(t, queue, "camp-1") {
		got[job.Recipient] = true
		if job.TemplateName != "summer_menu" {
			t.Errorf("job template = %q", job.TemplateName)
		}
		if job.Variables["campaign_name"] != "Summer Menu" {
			t.Errorf("campaign_name variable = %q", job.Variables["campaign_name"])
		}
	}
	want := []string{"fresh@example.com", "stale@example.com", "other-category@example.com"}
	for _, recipient := range want {
		if !got[recipient] {
			t.Errorf("recipient %s not enqueued", recipient)
		}
	}
	if got["unsubscribed@example.com"] {
		t.Error("unsubscribed recipient enqueued")
	}
	if got["recent@example.com"] {
		t.Error("frequency-capped recipient enqueued")
	}
}

func TestDispatchSegmentFilter(t *testing.T) {
	dispatcher, store, queue := newTestDispatcher(t)

	seedCampaign(store, &Campaign{ID: "camp-vip", Name: "VIP Tasting", Category: "event", Segment: "vip"})
	store.PutRecipient(&Recipient{ID: "r1", Email: "vip@example.com", Segments: []string{"vip", "regulars"}})
	store.PutRecipient(&Recipient{ID: "r2", Email: "regular@example.com", Segments: []string{"regulars"}})
	store.PutRecipient(&Recipient{ID: "r3", Email: "nosegments@example.com"})

	enqueued, err := dispatcher.Dispatch(context.Background(), "camp-vip")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", enqueued)
	}
	jobs := campaignJobs(t, queue, "camp-vip")
	if len(jobs) != 1 || jobs[0].Recipient != "vip@example.com" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestDispatchIdempotentPerWindow(t *testing.T) {
	dispatcher, store, queue := newTestDispatcher(t)

	seedCampaign(store, &Campaign{ID: "camp-1", Name: "Summer Menu", Category: "newsletter", Segment: SegmentAll})
	store.PutRecipient(&Recipient{ID: "r1", Email: "a@example.com"})
	store.PutRecipient(&Recipient{ID: "r2", Email: "b@example.com"})

	first, err := dispatcher.Dispatch(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	if first != 2 {
		t.Fatalf("first dispatch enqueued %d, want 2", first)
	}

	second, err := dispatcher.Dispatch(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if second != 0 {
		t.Errorf("second dispatch enqueued %d, want 0", second)
	}
	if jobs := campaignJobs(t, queue, "camp-1"); len(jobs) != 2 {
		t.Errorf("queue holds %d campaign jobs, want 2", len(jobs))
	}
}

func TestDispatchScheduledWindowKey(t *testing.T) {
	dispatcher, store, _ := newTestDispatcher(t)

	scheduled := time.Date(2026, 9, 1, 18, 30, 0, 0, time.UTC)
	seedCampaign(store, &Campaign{ID: "camp-1", Name: "Dinner Special", Category: "promo", Segment: SegmentAll, ScheduledAt: &scheduled})
	store.PutRecipient(&Recipient{ID: "r1", Email: "a@example.com"})

	if _, err := dispatcher.Dispatch(context.Background(), "camp-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// A second process arriving later in the day hits the same scheduled window
	dispatcher.now = func() time.Time { return time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC) }
	second, err := dispatcher.Dispatch(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if second != 0 {
		t.Errorf("second dispatch enqueued %d, want 0", second)
	}
}

func TestDispatchNeverEnqueuesHighPriority(t *testing.T) {
	dispatcher, store, queue := newTestDispatcher(t)

	seedCampaign(store, &Campaign{
		ID:       "camp-1",
		Name:     "Flash Sale",
		Category: "promo",
		Segment:  SegmentAll,
		Priority: jobqueue.PriorityHigh,
	})
	store.PutRecipient(&Recipient{ID: "r1", Email: "a@example.com"})

	if _, err := dispatcher.Dispatch(context.Background(), "camp-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	for _, job := range campaignJobs(t, queue, "camp-1") {
		if job.Priority >= jobqueue.PriorityHigh {
			t.Errorf("campaign job enqueued at priority %d", job.Priority)
		}
	}
}

func TestDispatchUnknownCampaign(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t)
	if _, err := dispatcher.Dispatch(context.Background(), "missing"); !errors.Is(err, ErrCampaignNotFound) {
		t.Errorf("err = %v, want ErrCampaignNotFound", err)
	}
}

func TestStatsRollup(t *testing.T) {
	dispatcher, store, queue := newTestDispatcher(t)
	ctx := context.Background()

	seedCampaign(store, &Campaign{ID: "camp-1", Name: "Summer Menu", Category: "newsletter", Segment: SegmentAll})
	store.PutRecipient(&Recipient{ID: "r1", Email: "a@example.com"})
	store.PutRecipient(&Recipient{ID: "r2", Email: "b@example.com"})
	store.PutRecipient(&Recipient{ID: "r3", Email: "c@example.com"})

	if _, err := dispatcher.Dispatch(ctx, "camp-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// Resolve one job sent and one failed
	sent, err := queue.ClaimNext(ctx, "w")
	if err != nil || sent == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", sent, err)
	}
	if err := queue.MarkSent(ctx, sent.ID); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	failed, err := queue.ClaimNext(ctx, "w")
	if err != nil || failed == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", failed, err)
	}
	if err := queue.MarkFailed(ctx, failed.ID, "bad address", true); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	for _, kind := range []EngagementKind{EngagementOpened, EngagementOpened, EngagementClicked, EngagementBounced} {
		if err := dispatcher.RecordEngagement(ctx, "camp-1", kind); err != nil {
			t.Fatalf("RecordEngagement(%s): %v", kind, err)
		}
	}

	stats, err := dispatcher.Stats(ctx, "camp-1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Enqueued: 3, Sent: 1, Failed: 1, Opened: 2, Clicked: 1, Bounced: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestDispatchDefaultFrequencyCap(t *testing.T) {
	store := NewMemoryStore()
	queue := jobqueue.NewMemoryStore(time.Minute)
	dispatcher := NewDispatcher(store, queue, nil, nil, config.CampaignConfig{DefaultMinDaysBetweenSends: 7}, zap.NewNop())
	now := time.Now()

	// MinDaysBetweenSends unset on the campaign falls back to the config default
	seedCampaign(store, &Campaign{ID: "camp-1", Name: "Summer Menu", Category: "newsletter", Segment: SegmentAll})
	store.PutRecipient(&Recipient{ID: "r1", Email: "recent@example.com",
		LastSends: map[string]time.Time{"newsletter": now.Add(-2 * 24 * time.Hour)}})
	store.PutRecipient(&Recipient{ID: "r2", Email: "stale@example.com",
		LastSends: map[string]time.Time{"newsletter": now.Add(-10 * 24 * time.Hour)}})

	enqueued, err := dispatcher.Dispatch(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", enqueued)
	}
	jobs := campaignJobs(t, queue, "camp-1")
	if len(jobs) != 1 || jobs[0].Recipient != "stale@example.com" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestDispatchIncrementsSendCounter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	redisClient := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { redisClient.Close() })

	store := NewMemoryStore()
	queue := jobqueue.NewMemoryStore(time.Minute)
	dispatcher := NewDispatcher(store, queue, nil, redisClient, config.CampaignConfig{}, zap.NewNop())

	seedCampaign(store, &Campaign{ID: "camp-1", Name: "Summer Menu", Category: "newsletter", Segment: SegmentAll})
	store.PutRecipient(&Recipient{ID: "r1", Email: "a@example.com"})
	store.PutRecipient(&Recipient{ID: "r2", Email: "b@example.com"})

	if _, err := dispatcher.Dispatch(context.Background(), "camp-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	count, err := mr.Get("campaign_sends:camp-1")
	if err != nil {
		t.Fatalf("send counter not written: %v", err)
	}
	if count != "2" {
		t.Errorf("send counter = %s, want 2", count)
	}
	if mr.TTL("campaign_sends:camp-1") <= 0 {
		t.Error("send counter has no expiry")
	}
}

func TestRecordEngagementValidatesKind(t *testing.T) {
	dispatcher, store, _ := newTestDispatcher(t)
	seedCampaign(store, &Campaign{ID: "camp-1", Name: "Summer Menu", Category: "newsletter", Segment: SegmentAll})

	if err := dispatcher.RecordEngagement(context.Background(), "camp-1", EngagementKind("forwarded")); !errors.Is(err, ErrUnknownEngagementKind) {
		t.Errorf("err = %v, want ErrUnknownEngagementKind", err)
	}
	if err := dispatcher.RecordEngagement(context.Background(), "missing", EngagementOpened); !errors.Is(err, ErrCampaignNotFound) {
		t.Errorf("err = %v, want ErrCampaignNotFound", err)
	}
}
