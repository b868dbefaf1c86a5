package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
)

// PostgresStore implements Store on the orders and order_status_history tables
type PostgresStore struct {
	db *database.PostgresDB
}

// NewPostgresStore creates a Postgres-backed order store
func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new order with its initial history entry
func (s *PostgresStore) Create(ctx context.Context, ord *Order, entry HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, customer_email, subtotal, tax_gst, tax_qst, delivery_fee, total, status, delivery_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, ord.ID, ord.Number, ord.CustomerEmail, ord.Subtotal, ord.TaxGST, ord.TaxQST,
		ord.DeliveryFee, ord.Total, ord.Status, ord.DeliveryStatus, ord.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// Get fetches an order and its full history
func (s *PostgresStore) Get(ctx context.Context, orderID string) (*Order, error) {
	query := `
		SELECT id, order_number, customer_email, subtotal, tax_gst, tax_qst, delivery_fee, total,
		       status, delivery_status, delay_reason, ready_at, out_for_delivery_at, delivered_at, picked_up_at,
		       created_at, updated_at
		FROM orders WHERE id = $1
	`

	var ord Order
	var delayReason sql.NullString
	var readyAt, outForDeliveryAt, deliveredAt, pickedUpAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&ord.ID, &ord.Number, &ord.CustomerEmail, &ord.Subtotal, &ord.TaxGST, &ord.TaxQST,
		&ord.DeliveryFee, &ord.Total, &ord.Status, &ord.DeliveryStatus, &delayReason,
		&readyAt, &outForDeliveryAt, &deliveredAt, &pickedUpAt, &ord.CreatedAt, &ord.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if delayReason.Valid {
		ord.DelayReason = delayReason.String
	}
	if readyAt.Valid {
		ord.ReadyAt = &readyAt.Time
	}
	if outForDeliveryAt.Valid {
		ord.OutForDeliveryAt = &outForDeliveryAt.Time
	}
	if deliveredAt.Valid {
		ord.DeliveredAt = &deliveredAt.Time
	}
	if pickedUpAt.Valid {
		ord.PickedUpAt = &pickedUpAt.Time
	}

	history, err := s.loadHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ord.History = history
	return &ord, nil
}

// ApplyTransition swaps the order state conditionally on the expected pairing
// and appends the history entry in the same transaction. Zero rows updated on
// an existing order means a concurrent writer won the race.
func (s *PostgresStore) ApplyTransition(ctx context.Context, expectedStatus Status, expectedDelivery DeliveryStatus, updated *Order, entry HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, delivery_status = $2, delay_reason = $3,
		    ready_at = $4, out_for_delivery_at = $5, delivered_at = $6, picked_up_at = $7,
		    updated_at = $8
		WHERE id = $9 AND status = $10 AND delivery_status = $11
	`, updated.Status, updated.DeliveryStatus, nullIfEmpty(updated.DelayReason),
		updated.ReadyAt, updated.OutForDeliveryAt, updated.DeliveredAt, updated.PickedUpAt,
		updated.UpdatedAt, updated.ID, expectedStatus, expectedDelivery)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, updated.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return &ConcurrentModificationError{OrderID: updated.ID}
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) loadHistory(ctx context.Context, orderID string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, actor, note, changed_at
		FROM order_status_history WHERE order_id = $1 ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var note sql.NullString
		if err := rows.Scan(&entry.OrderID, &entry.From, &entry.To, &entry.Actor, &note, &entry.At); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if note.Valid {
			entry.Note = note.String
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry HistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor, note, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.OrderID, entry.From, entry.To, entry.Actor, nullIfEmpty(entry.Note), entry.At)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
