package jobqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
)

// PostgresStore implements Store on the notification_jobs table
type PostgresStore struct {
	db            *database.PostgresDB
	leaseDuration time.Duration
}

// NewPostgresStore creates a Postgres-backed queue store
func NewPostgresStore(db *database.PostgresDB, leaseDuration time.Duration) *PostgresStore {
	if leaseDuration <= 0 {
		leaseDuration = 2 * time.Minute
	}
	return &PostgresStore{db: db, leaseDuration: leaseDuration}
}

// Enqueue inserts a new pending job
func (s *PostgresStore) Enqueue(ctx context.Context, job *Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	if job.Priority == 0 {
		job.Priority = PriorityNormal
	}
	now := time.Now()
	job.Status = StatusPending
	job.CreatedAt = now
	job.NextAttemptAt = now

	varsJSON, err := json.Marshal(job.Variables)
	if err != nil {
		return "", fmt.Errorf("failed to marshal variables: %w", err)
	}

	query := `
		INSERT INTO notification_jobs
			(id, template_name, recipient, variables, priority, status, attempts, max_attempts, next_attempt_at, order_id, campaign_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.TemplateName, job.Recipient, varsJSON, job.Priority, job.Status,
		job.MaxAttempts, job.NextAttemptAt, nullIfEmpty(job.OrderID), nullIfEmpty(job.CampaignID), job.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}
	return job.ID, nil
}

// ClaimNext claims the oldest eligible pending job of the highest priority
// tier. The claim is one conditional UPDATE; SKIP LOCKED keeps concurrent
// workers off the same row.
func (s *PostgresStore) ClaimNext(ctx context.Context, workerID string) (*Job, error) {
	query := `
		UPDATE notification_jobs
		SET status = $1, worker_id = $2, lease_expires_at = $3
		WHERE id = (
			SELECT id FROM notification_jobs
			WHERE status = $4 AND next_attempt_at <= NOW()
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, template_name, recipient, variables, priority, status, attempts, max_attempts,
		          error_message, worker_id, lease_expires_at, next_attempt_at, order_id, campaign_id, created_at, sent_at
	`
	row := s.db.QueryRowContext(ctx, query,
		StatusSending, workerID, time.Now().Add(s.leaseDuration), StatusPending)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// MarkSent records a successful delivery
func (s *PostgresStore) MarkSent(ctx context.Context, jobID string) error {
	query := `
		UPDATE notification_jobs
		SET status = $1, sent_at = NOW(), error_message = NULL, worker_id = NULL, lease_expires_at = NULL
		WHERE id = $2 AND status = $3
	`
	res, err := s.db.ExecContext(ctx, query, StatusSent, jobID, StatusSending)
	if err != nil {
		return fmt.Errorf("failed to mark job sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed records a failed attempt, retrying transient failures with
// backoff until attempts are exhausted
func (s *PostgresStore) MarkFailed(ctx context.Context, jobID, errMsg string, permanent bool) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	attempts := job.Attempts + 1
	if permanent || attempts >= job.MaxAttempts {
		query := `
			UPDATE notification_jobs
			SET status = $1, attempts = $2, error_message = $3, worker_id = NULL, lease_expires_at = NULL
			WHERE id = $4 AND status = $5
		`
		res, err := s.db.ExecContext(ctx, query, StatusFailed, attempts, errMsg, jobID, StatusSending)
		if err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrJobNotFound
		}
		return nil
	}

	query := `
		UPDATE notification_jobs
		SET status = $1, attempts = $2, error_message = $3, worker_id = NULL, lease_expires_at = NULL, next_attempt_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := s.db.ExecContext(ctx, query,
		StatusPending, attempts, errMsg, time.Now().Add(RetryBackoff(attempts)), jobID, StatusSending)
	if err != nil {
		return fmt.Errorf("failed to requeue job after failure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Requeue returns a claimed job to pending without counting an attempt
func (s *PostgresStore) Requeue(ctx context.Context, jobID string) error {
	query := `
		UPDATE notification_jobs
		SET status = $1, worker_id = NULL, lease_expires_at = NULL, next_attempt_at = NOW()
		WHERE id = $2 AND status = $3
	`
	res, err := s.db.ExecContext(ctx, query, StatusPending, jobID, StatusSending)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ReclaimExpired releases sending jobs whose lease lapsed
func (s *PostgresStore) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE notification_jobs
		SET status = $1, worker_id = NULL, lease_expires_at = NULL, next_attempt_at = $2
		WHERE status = $3 AND lease_expires_at < $2
	`
	res, err := s.db.ExecContext(ctx, query, StatusPending, now, StatusSending)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim expired leases: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetJob fetches a job by id
func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, template_name, recipient, variables, priority, status, attempts, max_attempts,
		       error_message, worker_id, lease_expires_at, next_attempt_at, order_id, campaign_id, created_at, sent_at
		FROM notification_jobs WHERE id = $1
	`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListByStatus returns jobs in a state older than the cutoff
func (s *PostgresStore) ListByStatus(ctx context.Context, status Status, olderThan time.Duration) ([]*Job, error) {
	query := `
		SELECT id, template_name, recipient, variables, priority, status, attempts, max_attempts,
		       error_message, worker_id, lease_expires_at, next_attempt_at, order_id, campaign_id, created_at, sent_at
		FROM notification_jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, status, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByStatus reports queue depth per state
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM notification_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CampaignCounts aggregates job outcomes for one campaign
func (s *PostgresStore) CampaignCounts(ctx context.Context, campaignID string) (CampaignCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2)
		FROM notification_jobs WHERE campaign_id = $3
	`
	var counts CampaignCounts
	err := s.db.QueryRowContext(ctx, query, StatusSent, StatusFailed, campaignID).
		Scan(&counts.Enqueued, &counts.Sent, &counts.Failed)
	if err != nil {
		return CampaignCounts{}, fmt.Errorf("failed to aggregate campaign counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var varsJSON []byte
	var errMsg, workerID, orderID, campaignID sql.NullString
	var leaseExpires, sentAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.TemplateName, &job.Recipient, &varsJSON, &job.Priority, &job.Status,
		&job.Attempts, &job.MaxAttempts, &errMsg, &workerID, &leaseExpires,
		&job.NextAttemptAt, &orderID, &campaignID, &job.CreatedAt, &sentAt,
	)
	if err != nil {
		return nil, err
	}

	if len(varsJSON) > 0 {
		if err := json.Unmarshal(varsJSON, &job.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}
	if errMsg.Valid {
		job.ErrorMessage = errMsg.String
	}
	if workerID.Valid {
		job.WorkerID = workerID.String
	}
	if orderID.Valid {
		job.OrderID = orderID.String
	}
	if campaignID.Valid {
		job.CampaignID = campaignID.String
	}
	if leaseExpires.Valid {
		job.LeaseExpires = &leaseExpires.Time
	}
	if sentAt.Valid {
		job.SentAt = &sentAt.Time
	}
	return &job, nil
}

func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
