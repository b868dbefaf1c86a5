package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
)

// PostgresStore implements Store on the campaigns, recipients, and
// campaign_dispatches tables
type PostgresStore struct {
	db *database.PostgresDB
}

// NewPostgresStore creates a Postgres-backed campaign store
func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetCampaign fetches a campaign by id
func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	query := `
		SELECT id, name, template_name, category, segment, priority, scheduled_at, min_days_between_sends, created_at, updated_at
		FROM campaigns WHERE id = $1
	`

	var camp Campaign
	var scheduledAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, campaignID).Scan(
		&camp.ID, &camp.Name, &camp.TemplateName, &camp.Category, &camp.Segment,
		&camp.Priority, &scheduledAt, &camp.MinDaysBetweenSends, &camp.CreatedAt, &camp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if scheduledAt.Valid {
		camp.ScheduledAt = &scheduledAt.Time
	}
	return &camp, nil
}

// ListRecipients returns the population for a segment predicate
func (s *PostgresStore) ListRecipients(ctx context.Context, segment string) ([]*Recipient, error) {
	query := `
		SELECT id, email, segments, unsubscribed, last_sends
		FROM recipients
	`
	var args []interface{}
	if segment != "" && segment != SegmentAll {
		segJSON, err := json.Marshal([]string{segment})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal segment: %w", err)
		}
		query += ` WHERE segments @> $1::jsonb`
		args = append(args, segJSON)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []*Recipient
	for rows.Next() {
		var recipient Recipient
		var segmentsJSON, lastSendsJSON []byte
		if err := rows.Scan(&recipient.ID, &recipient.Email, &segmentsJSON, &recipient.Unsubscribed, &lastSendsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		if len(segmentsJSON) > 0 {
			if err := json.Unmarshal(segmentsJSON, &recipient.Segments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
			}
		}
		if len(lastSendsJSON) > 0 {
			if err := json.Unmarshal(lastSendsJSON, &recipient.LastSends); err != nil {
				return nil, fmt.Errorf("failed to unmarshal last sends: %w", err)
			}
		}
		recipients = append(recipients, &recipient)
	}
	return recipients, rows.Err()
}

// BeginDispatch claims the (campaign, window) pair. ON CONFLICT DO NOTHING
// makes concurrent dispatch calls race safely; only one insert wins.
func (s *PostgresStore) BeginDispatch(ctx context.Context, campaignID, windowKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO campaign_dispatches (campaign_id, window_key, dispatched_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (campaign_id, window_key) DO NOTHING
	`, campaignID, windowKey)
	if err != nil {
		return false, fmt.Errorf("failed to claim dispatch window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CompleteDispatch records how many jobs the dispatch enqueued
func (s *PostgresStore) CompleteDispatch(ctx context.Context, campaignID, windowKey string, enqueued int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaign_dispatches SET enqueued_count = $1
		WHERE campaign_id = $2 AND window_key = $3
	`, enqueued, campaignID, windowKey)
	if err != nil {
		return fmt.Errorf("failed to record dispatch count: %w", err)
	}
	return nil
}

// MarkRecipientSent stamps the recipient's last send for a category
func (s *PostgresStore) MarkRecipientSent(ctx context.Context, recipientID, category string, at time.Time) error {
	entry, err := json.Marshal(map[string]time.Time{category: at})
	if err != nil {
		return fmt.Errorf("failed to marshal last send: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE recipients
		SET last_sends = COALESCE(last_sends, '{}'::jsonb) || $1::jsonb, updated_at = NOW()
		WHERE id = $2
	`, entry, recipientID)
	if err != nil {
		return fmt.Errorf("failed to stamp recipient last send: %w", err)
	}
	return nil
}

// RecordEngagement applies one externally-reported tracking event
func (s *PostgresStore) RecordEngagement(ctx context.Context, campaignID string, kind EngagementKind) error {
	var column string
	switch kind {
	case EngagementOpened:
		column = "opened_count"
	case EngagementClicked:
		column = "clicked_count"
	case EngagementBounced:
		column = "bounced_count"
	default:
		return ErrUnknownEngagementKind
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE campaigns SET %s = %s + 1, updated_at = NOW() WHERE id = $1
	`, column, column), campaignID)
	if err != nil {
		return fmt.Errorf("failed to record engagement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// GetEngagement returns accumulated engagement counters
func (s *PostgresStore) GetEngagement(ctx context.Context, campaignID string) (Engagement, error) {
	var engagement Engagement
	err := s.db.QueryRowContext(ctx, `
		SELECT opened_count, clicked_count, bounced_count FROM campaigns WHERE id = $1
	`, campaignID).Scan(&engagement.Opened, &engagement.Clicked, &engagement.Bounced)
	if err == sql.ErrNoRows {
		return Engagement{}, ErrCampaignNotFound
	}
	if err != nil {
		return Engagement{}, fmt.Errorf("failed to read engagement counters: %w", err)
	}
	return engagement, nil
}
