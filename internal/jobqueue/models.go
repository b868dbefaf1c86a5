package jobqueue

import (
	"time"
)

// Job represents a queued notification delivery job
type Job struct {
	ID            string            `json:"id" db:"id"`
	TemplateName  string            `json:"template_name" db:"template_name"`
	Recipient     string            `json:"recipient" db:"recipient"`
	Variables     map[string]string `json:"variables,omitempty" db:"variables"`
	Priority      Priority          `json:"priority" db:"priority"`
	Status        Status            `json:"status" db:"status"`
	Attempts      int               `json:"attempts" db:"attempts"`
	MaxAttempts   int               `json:"max_attempts" db:"max_attempts"`
	ErrorMessage  string            `json:"error_message,omitempty" db:"error_message"`
	WorkerID      string            `json:"worker_id,omitempty" db:"worker_id"`
	LeaseExpires  *time.Time        `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	NextAttemptAt time.Time         `json:"next_attempt_at" db:"next_attempt_at"`
	OrderID       string            `json:"order_id,omitempty" db:"order_id"`
	CampaignID    string            `json:"campaign_id,omitempty" db:"campaign_id"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	SentAt        *time.Time        `json:"sent_at,omitempty" db:"sent_at"`
}

// Status represents the lifecycle state of a job
type Status string

const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status admits no further transitions
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Priority orders jobs across tiers; higher drains first
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// DefaultMaxAttempts bounds transient retries per job
const DefaultMaxAttempts = 3

// CampaignCounts aggregates terminal job states spawned by one campaign
type CampaignCounts struct {
	Enqueued int `json:"enqueued"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}
