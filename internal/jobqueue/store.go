package jobqueue

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when a job id does not resolve
var ErrJobNotFound = errors.New("job not found")

// Store is the durable notification job queue. All mutation goes through the
// claim and mark operations; callers never read-modify-write job rows directly.
type Store interface {
	// Enqueue inserts a new pending job and returns its id.
	Enqueue(ctx context.Context, job *Job) (string, error)

	// ClaimNext atomically moves the oldest eligible pending job of the
	// highest available priority tier to sending, attributing it to workerID
	// under a lease. Returns nil when no job is eligible.
	ClaimNext(ctx context.Context, workerID string) (*Job, error)

	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, jobID string) error

	// MarkFailed records a failed attempt. Transient failures return the job
	// to pending with an increased backoff until attempts are exhausted;
	// permanent failures terminate the job immediately.
	MarkFailed(ctx context.Context, jobID, errMsg string, permanent bool) error

	// Requeue returns a claimed job to pending without counting an attempt.
	Requeue(ctx context.Context, jobID string) error

	// ReclaimExpired releases sending jobs whose lease has lapsed so another
	// worker can claim them. Returns how many were released.
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)

	// GetJob fetches a job by id.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListByStatus returns jobs in the given state older than the cutoff,
	// the operational introspection surface for stuck/failed jobs.
	ListByStatus(ctx context.Context, status Status, olderThan time.Duration) ([]*Job, error)

	// CountByStatus reports queue depth per state.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// CampaignCounts aggregates job outcomes for one campaign.
	CampaignCounts(ctx context.Context, campaignID string) (CampaignCounts, error)
}
