package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type statusStore struct {
	tx  *sql.Tx
	now func() time.Time
}

func (r *statusStore) Append(ctx context.Context, entry domain.StatusEntry) (domain.StatusEntry, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}

	err := r.tx.QueryRowContext(ctx, `
		INSERT INTO order_statuses (order_id, status, internal_notes, customer_notes, "timestamp", updated_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING status_id
	`,
		entry.OrderID, string(entry.Status), entry.InternalNotes, entry.CustomerNotes, entry.Timestamp, entry.UpdatedBy,
	).Scan(&entry.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.StatusEntry{}, domain.ErrOrderNotFound
		}
		return domain.StatusEntry{}, fmt.Errorf("insert order status: %w", err)
	}
	return entry, nil
}

func (r *statusStore) Latest(ctx context.Context, orderID string) (domain.StatusEntry, bool, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	row := r.tx.QueryRowContext(ctx, `
		SELECT status_id, order_id, status, internal_notes, customer_notes, "timestamp", updated_by
		FROM order_statuses
		WHERE order_id = $1
		ORDER BY "timestamp" DESC, status_id DESC
		LIMIT 1
	`, orderID)
	entry, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StatusEntry{}, false, nil
		}
		return domain.StatusEntry{}, false, fmt.Errorf("select latest status: %w", err)
	}
	return entry, true, nil
}

func (r *statusStore) History(ctx context.Context, orderID string) ([]domain.StatusEntry, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := r.tx.QueryContext(ctx, `
		SELECT status_id, order_id, status, internal_notes, customer_notes, "timestamp", updated_by
		FROM order_statuses
		WHERE order_id = $1
		ORDER BY "timestamp" ASC, status_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order statuses: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.StatusEntry, 0)
	for rows.Next() {
		entry, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order status: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order statuses: %w", err)
	}
	return entries, nil
}

func scanStatus(row rowScanner) (domain.StatusEntry, error) {
	var (
		entry  domain.StatusEntry
		status string
	)
	if err := row.Scan(
		&entry.ID, &entry.OrderID, &status, &entry.InternalNotes, &entry.CustomerNotes, &entry.Timestamp, &entry.UpdatedBy,
	); err != nil {
		return domain.StatusEntry{}, err
	}
	entry.Status = domain.OrderStatus(status)
	entry.Timestamp = entry.Timestamp.UTC()
	return entry, nil
}

var _ domain.StatusStore = (*statusStore)(nil)
