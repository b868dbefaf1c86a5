package jobqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. It backs the worker and
// dispatcher tests and serves as a single-process fallback; the claim and
// mark operations hold one mutex, so the no-double-claim property matches
// the Postgres implementation.
type MemoryStore struct {
	mu            sync.Mutex
	jobs          map[string]*Job
	seq           map[string]int64 // insertion order tie-break for equal timestamps
	nextSeq       int64
	leaseDuration time.Duration
	now           func() time.Time
}

// NewMemoryStore creates an in-memory queue store
func NewMemoryStore(leaseDuration time.Duration) *MemoryStore {
	if leaseDuration <= 0 {
		leaseDuration = 2 * time.Minute
	}
	return &MemoryStore{
		jobs:          make(map[string]*Job),
		seq:           make(map[string]int64),
		leaseDuration: leaseDuration,
		now:           time.Now,
	}
}

// Enqueue inserts a new pending job
func (s *MemoryStore) Enqueue(ctx context.Context, job *Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	if job.Priority == 0 {
		job.Priority = PriorityNormal
	}
	now := s.now()
	stored := *job
	stored.Status = StatusPending
	stored.CreatedAt = now
	stored.NextAttemptAt = now
	s.jobs[stored.ID] = &stored
	s.seq[stored.ID] = s.nextSeq
	s.nextSeq++
	return stored.ID, nil
}

// ClaimNext claims the oldest eligible pending job of the highest priority tier
func (s *MemoryStore) ClaimNext(ctx context.Context, workerID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var candidate *Job
	for _, job := range s.jobs {
		if job.Status != StatusPending || job.NextAttemptAt.After(now) {
			continue
		}
		if candidate == nil ||
			job.Priority > candidate.Priority ||
			(job.Priority == candidate.Priority && s.seq[job.ID] < s.seq[candidate.ID]) {
			candidate = job
		}
	}
	if candidate == nil {
		return nil, nil
	}

	candidate.Status = StatusSending
	candidate.WorkerID = workerID
	expires := now.Add(s.leaseDuration)
	candidate.LeaseExpires = &expires

	claimed := *candidate
	return &claimed, nil
}

// MarkSent records a successful delivery
func (s *MemoryStore) MarkSent(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != StatusSending {
		return ErrJobNotFound
	}
	now := s.now()
	job.Status = StatusSent
	job.SentAt = &now
	job.ErrorMessage = ""
	job.WorkerID = ""
	job.LeaseExpires = nil
	return nil
}

// MarkFailed records a failed attempt
func (s *MemoryStore) MarkFailed(ctx context.Context, jobID, errMsg string, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != StatusSending {
		return ErrJobNotFound
	}

	job.Attempts++
	job.ErrorMessage = errMsg
	job.WorkerID = ""
	job.LeaseExpires = nil

	if permanent || job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		return nil
	}
	job.Status = StatusPending
	job.NextAttemptAt = s.now().Add(RetryBackoff(job.Attempts))
	return nil
}

// Requeue returns a claimed job to pending without counting an attempt
func (s *MemoryStore) Requeue(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != StatusSending {
		return ErrJobNotFound
	}
	job.Status = StatusPending
	job.WorkerID = ""
	job.LeaseExpires = nil
	job.NextAttemptAt = s.now()
	return nil
}

// ReclaimExpired releases sending jobs whose lease lapsed
func (s *MemoryStore) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	for _, job := range s.jobs {
		if job.Status == StatusSending && job.LeaseExpires != nil && job.LeaseExpires.Before(now) {
			job.Status = StatusPending
			job.WorkerID = ""
			job.LeaseExpires = nil
			job.NextAttemptAt = now
			reclaimed++
		}
	}
	return reclaimed, nil
}

// GetJob fetches a job by id
func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	copy := *job
	return &copy, nil
}

// ListByStatus returns jobs in a state older than the cutoff
func (s *MemoryStore) ListByStatus(ctx context.Context, status Status, olderThan time.Duration) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var jobs []*Job
	for _, job := range s.jobs {
		if job.Status == status && job.CreatedAt.Before(cutoff) {
			copy := *job
			jobs = append(jobs, &copy)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// CountByStatus reports queue depth per state
func (s *MemoryStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Status]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// CampaignCounts aggregates job outcomes for one campaign
func (s *MemoryStore) CampaignCounts(ctx context.Context, campaignID string) (CampaignCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts CampaignCounts
	for _, job := range s.jobs {
		if job.CampaignID != campaignID {
			continue
		}
		counts.Enqueued++
		switch job.Status {
		case StatusSent:
			counts.Sent++
		case StatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}
