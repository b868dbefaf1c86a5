package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
)

// PostgresDB wraps sql.DB for PostgreSQL operations
type PostgresDB struct {
	*sql.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.DatabaseConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// InitSchema initializes the database schema
func (db *PostgresDB) InitSchema() error {
	schema := `
	-- Orders table
	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_number VARCHAR(50) UNIQUE NOT NULL,
		customer_email VARCHAR(255) NOT NULL,
		subtotal NUMERIC(10,2) NOT NULL DEFAULT 0,
		tax_gst NUMERIC(10,2) NOT NULL DEFAULT 0,
		tax_qst NUMERIC(10,2) NOT NULL DEFAULT 0,
		delivery_fee NUMERIC(10,2) NOT NULL DEFAULT 0,
		total NUMERIC(10,2) NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		delivery_status VARCHAR(30) NOT NULL DEFAULT 'pending',
		delay_reason TEXT,
		ready_at TIMESTAMP,
		out_for_delivery_at TIMESTAMP,
		delivered_at TIMESTAMP,
		picked_up_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);

	-- Append-only status history, one row per applied transition
	CREATE TABLE IF NOT EXISTS order_status_history (
		id BIGSERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		from_status VARCHAR(50) NOT NULL,
		to_status VARCHAR(50) NOT NULL,
		actor VARCHAR(255) NOT NULL,
		note TEXT,
		changed_at TIMESTAMP DEFAULT NOW()
	);

	-- Notification job queue
	CREATE TABLE IF NOT EXISTS notification_jobs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		template_name VARCHAR(255) NOT NULL,
		recipient VARCHAR(255) NOT NULL,
		variables JSONB,
		priority INTEGER NOT NULL DEFAULT 2, -- 1 = low, 2 = normal, 3 = high
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		error_message TEXT,
		worker_id VARCHAR(100),
		lease_expires_at TIMESTAMP,
		next_attempt_at TIMESTAMP DEFAULT NOW(),
		order_id UUID,
		campaign_id UUID,
		created_at TIMESTAMP DEFAULT NOW(),
		sent_at TIMESTAMP
	);

	-- Email templates (authored by the admin surface, read-only here)
	CREATE TABLE IF NOT EXISTS email_templates (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) UNIQUE NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		subject VARCHAR(500) NOT NULL,
		html_body TEXT NOT NULL,
		text_body TEXT NOT NULL,
		variables JSONB,
		category VARCHAR(100) NOT NULL DEFAULT 'transactional',
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);

	-- Campaigns and their recipients
	CREATE TABLE IF NOT EXISTS campaigns (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		template_name VARCHAR(255) NOT NULL,
		category VARCHAR(100) NOT NULL DEFAULT 'newsletter',
		segment VARCHAR(100) NOT NULL DEFAULT 'all',
		priority INTEGER NOT NULL DEFAULT 2,
		scheduled_at TIMESTAMP,
		min_days_between_sends INTEGER NOT NULL DEFAULT 7,
		opened_count INTEGER NOT NULL DEFAULT 0,
		clicked_count INTEGER NOT NULL DEFAULT 0,
		bounced_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS recipients (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		segments JSONB,
		unsubscribed BOOLEAN NOT NULL DEFAULT false,
		last_sends JSONB, -- category -> last campaign send timestamp
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);

	-- One row per dispatched (campaign, window) pair; enforces dispatch idempotency
	CREATE TABLE IF NOT EXISTS campaign_dispatches (
		campaign_id UUID NOT NULL REFERENCES campaigns(id),
		window_key VARCHAR(50) NOT NULL,
		enqueued_count INTEGER NOT NULL DEFAULT 0,
		dispatched_at TIMESTAMP DEFAULT NOW(),
		PRIMARY KEY (campaign_id, window_key)
	);

	-- Create indexes for better performance
	CREATE INDEX IF NOT EXISTS idx_orders_order_number ON orders(order_number);
	CREATE INDEX IF NOT EXISTS idx_order_status_history_order_id ON order_status_history(order_id);
	CREATE INDEX IF NOT EXISTS idx_notification_jobs_claim ON notification_jobs(status, priority DESC, created_at) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_notification_jobs_lease ON notification_jobs(lease_expires_at) WHERE status = 'sending';
	CREATE INDEX IF NOT EXISTS idx_notification_jobs_campaign ON notification_jobs(campaign_id);
	CREATE INDEX IF NOT EXISTS idx_recipients_unsubscribed ON recipients(unsubscribed);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *PostgresDB) Close() error {
	return db.DB.Close()
}
