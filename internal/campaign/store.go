package campaign

import (
	"context"
	"errors"
	"time"
)

// ErrCampaignNotFound is returned when a campaign id does not resolve
var ErrCampaignNotFound = errors.New("campaign not found")

// EngagementKind names an externally-reported tracking event
type EngagementKind string

const (
	EngagementOpened  EngagementKind = "opened"
	EngagementClicked EngagementKind = "clicked"
	EngagementBounced EngagementKind = "bounced"
)

// ErrUnknownEngagementKind rejects tracking events outside the taxonomy
var ErrUnknownEngagementKind = errors.New("unknown engagement kind")

// Store persists campaigns, the recipient population, and the dispatch
// ledger that keeps repeated dispatch calls idempotent per window.
type Store interface {
	GetCampaign(ctx context.Context, campaignID string) (*Campaign, error)

	// ListRecipients returns the population for a segment predicate,
	// including unsubscribed members; the dispatcher filters them.
	ListRecipients(ctx context.Context, segment string) ([]*Recipient, error)

	// BeginDispatch claims the (campaign, window) pair. It returns false
	// when the window was already dispatched, atomically under concurrent
	// callers.
	BeginDispatch(ctx context.Context, campaignID, windowKey string) (bool, error)

	// CompleteDispatch records how many jobs the dispatch enqueued.
	CompleteDispatch(ctx context.Context, campaignID, windowKey string, enqueued int) error

	// MarkRecipientSent stamps the recipient's last send for a category,
	// feeding the frequency cap on later dispatches.
	MarkRecipientSent(ctx context.Context, recipientID, category string, at time.Time) error

	// RecordEngagement applies one externally-reported open/click/bounce.
	RecordEngagement(ctx context.Context, campaignID string, kind EngagementKind) error

	// GetEngagement returns accumulated engagement counters.
	GetEngagement(ctx context.Context, campaignID string) (Engagement, error)
}
