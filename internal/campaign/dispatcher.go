package campaign

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/events"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
)

// dispatchCountWindow bounds the lifetime of the per-campaign send counter
const dispatchCountWindow = 24 * time.Hour

// EventPublisher publishes campaign domain events
type EventPublisher interface {
	PublishCampaignEvent(ctx context.Context, event events.CampaignEvent) error
}

// Dispatcher expands a campaign into individual notification jobs against
// its computed audience. Bulk jobs never enqueue at high priority, so
// transactional order traffic always drains first.
type Dispatcher struct {
	store     Store
	queue     jobqueue.Store
	publisher EventPublisher
	redis     *database.RedisClient
	cfg       config.CampaignConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewDispatcher creates a campaign dispatcher. redis may be nil; the send
// counter is then skipped.
func NewDispatcher(store Store, queue jobqueue.Store, publisher EventPublisher, redisClient *database.RedisClient, cfg config.CampaignConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		queue:     queue,
		publisher: publisher,
		redis:     redisClient,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch expands the campaign audience into queue jobs. Repeat calls for
// the same scheduling window are no-ops.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID string) (int, error) {
	camp, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	windowKey := windowKey(camp, d.now())
	claimed, err := d.store.BeginDispatch(ctx, campaignID, windowKey)
	if err != nil {
		return 0, fmt.Errorf("failed to claim dispatch window: %w", err)
	}
	if !claimed {
		d.logger.Info("Campaign already dispatched for window",
			zap.String("campaign_id", campaignID),
			zap.String("window", windowKey),
		)
		return 0, nil
	}

	recipients, err := d.store.ListRecipients(ctx, camp.Segment)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve audience: %w", err)
	}

	now := d.now()
	minDays := camp.MinDaysBetweenSends
	if minDays == 0 {
		minDays = d.cfg.DefaultMinDaysBetweenSends
	}
	minGap := time.Duration(minDays) * 24 * time.Hour
	priority := camp.Priority
	if priority == 0 || priority >= jobqueue.PriorityHigh {
		priority = jobqueue.PriorityNormal
	}

	enqueued := 0
	for _, recipient := range recipients {
		if recipient.Unsubscribed || !recipient.InSegment(camp.Segment) {
			continue
		}
		if last, ok := recipient.LastSends[camp.Category]; ok && minGap > 0 && now.Sub(last) < minGap {
			continue
		}

		job := jobqueue.Job{
			TemplateName: camp.TemplateName,
			Recipient:    recipient.Email,
			Priority:     priority,
			CampaignID:   camp.ID,
			Variables: map[string]string{
				"campaign_name": camp.Name,
				"email":         recipient.Email,
			},
		}
		if _, err := d.queue.Enqueue(ctx, &job); err != nil {
			d.logger.Error("Failed to enqueue campaign job",
				zap.String("campaign_id", camp.ID),
				zap.String("recipient", recipient.Email),
				zap.Error(err),
			)
			continue
		}
		if err := d.store.MarkRecipientSent(ctx, recipient.ID, camp.Category, now); err != nil {
			d.logger.Error("Failed to stamp recipient last send",
				zap.String("recipient_id", recipient.ID),
				zap.Error(err),
			)
		}
		enqueued++
	}

	if err := d.store.CompleteDispatch(ctx, campaignID, windowKey, enqueued); err != nil {
		d.logger.Error("Failed to record dispatch count",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
	}

	if d.redis != nil && enqueued > 0 {
		if _, err := d.redis.IncrementDispatchCount(ctx, camp.ID, int64(enqueued), dispatchCountWindow); err != nil {
			d.logger.Warn("Failed to increment campaign send counter",
				zap.String("campaign_id", camp.ID),
				zap.Error(err),
			)
		}
	}

	if d.publisher != nil {
		event := events.CampaignEvent{
			Type:       "campaign.dispatched",
			CampaignID: camp.ID,
			WindowKey:  windowKey,
			Enqueued:   enqueued,
			At:         now,
		}
		if err := d.publisher.PublishCampaignEvent(ctx, event); err != nil {
			d.logger.Error("Failed to publish campaign event", zap.Error(err))
		}
	}

	d.logger.Info("Campaign dispatched",
		zap.String("campaign_id", camp.ID),
		zap.String("window", windowKey),
		zap.Int("enqueued", enqueued),
	)
	return enqueued, nil
}

// Stats rolls up spawned-job outcomes with externally-reported engagement
func (d *Dispatcher) Stats(ctx context.Context, campaignID string) (*Stats, error) {
	if _, err := d.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	counts, err := d.queue.CampaignCounts(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate job counts: %w", err)
	}
	engagement, err := d.store.GetEngagement(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to read engagement counters: %w", err)
	}

	return &Stats{
		Enqueued: counts.Enqueued,
		Sent:     counts.Sent,
		Failed:   counts.Failed,
		Opened:   engagement.Opened,
		Clicked:  engagement.Clicked,
		Bounced:  engagement.Bounced,
	}, nil
}

// RecordEngagement applies one open/click/bounce event from the tracking
// collaborator
func (d *Dispatcher) RecordEngagement(ctx context.Context, campaignID string, kind EngagementKind) error {
	switch kind {
	case EngagementOpened, EngagementClicked, EngagementBounced:
	default:
		return ErrUnknownEngagementKind
	}
	return d.store.RecordEngagement(ctx, campaignID, kind)
}

// windowKey buckets dispatches: scheduled campaigns key on their scheduled
// time, immediate campaigns on the calendar day.
func windowKey(camp *Campaign, now time.Time) string {
	if camp.ScheduledAt != nil {
		return camp.ScheduledAt.UTC().Format("2006-01-02T15:04")
	}
	return now.UTC().Format("2006-01-02")
}
