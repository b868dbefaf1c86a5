package campaign

import (
	"time"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
)

// Campaign represents a bulk send authored by the admin surface. Dispatch is
// the only operation the core applies to it.
type Campaign struct {
	ID                  string            `json:"id" db:"id"`
	Name                string            `json:"name" db:"name"`
	TemplateName        string            `json:"template_name" db:"template_name"`
	Category            string            `json:"category" db:"category"`
	Segment             string            `json:"segment" db:"segment"`
	Priority            jobqueue.Priority `json:"priority" db:"priority"`
	ScheduledAt         *time.Time        `json:"scheduled_at,omitempty" db:"scheduled_at"`
	MinDaysBetweenSends int               `json:"min_days_between_sends" db:"min_days_between_sends"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}

// Recipient is one member of the campaign audience population
type Recipient struct {
	ID           string               `json:"id" db:"id"`
	Email        string               `json:"email" db:"email"`
	Segments     []string             `json:"segments,omitempty" db:"segments"`
	Unsubscribed bool                 `json:"unsubscribed" db:"unsubscribed"`
	LastSends    map[string]time.Time `json:"last_sends,omitempty" db:"last_sends"` // category -> last campaign send
}

// InSegment reports whether the recipient belongs to the named segment.
// The "all" segment matches everyone.
func (r *Recipient) InSegment(segment string) bool {
	if segment == "" || segment == SegmentAll {
		return true
	}
	for _, s := range r.Segments {
		if s == segment {
			return true
		}
	}
	return false
}

// SegmentAll is the audience predicate matching the whole population
const SegmentAll = "all"

// Engagement holds externally-reported tracking counters for a campaign
type Engagement struct {
	Opened  int `json:"opened"`
	Clicked int `json:"clicked"`
	Bounced int `json:"bounced"`
}

// Stats combines spawned-job outcomes with engagement counters
type Stats struct {
	Enqueued int `json:"enqueued"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Opened   int `json:"opened"`
	Clicked  int `json:"clicked"`
	Bounced  int `json:"bounced"`
}

// DispatchRecord marks a (campaign, window) pair as dispatched
type DispatchRecord struct {
	CampaignID    string    `json:"campaign_id" db:"campaign_id"`
	WindowKey     string    `json:"window_key" db:"window_key"`
	EnqueuedCount int       `json:"enqueued_count" db:"enqueued_count"`
	DispatchedAt  time.Time `json:"dispatched_at" db:"dispatched_at"`
}
