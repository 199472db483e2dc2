package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type noteStore struct {
	tx  *sql.Tx
	now func() time.Time
}

func (r *noteStore) Append(ctx context.Context, note domain.OrderNote) (domain.OrderNote, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if note.CreatedAt.IsZero() {
		note.CreatedAt = r.now()
	}

	err := r.tx.QueryRowContext(ctx, `
		INSERT INTO order_notes (order_id, note_type, note_text, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING note_id
	`,
		note.OrderID, string(note.Type), note.Text, note.CreatedBy, note.CreatedAt,
	).Scan(&note.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.OrderNote{}, domain.ErrOrderNotFound
		}
		return domain.OrderNote{}, fmt.Errorf("insert order note: %w", err)
	}
	return note, nil
}

func (r *noteStore) List(ctx context.Context, orderID string) ([]domain.OrderNote, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := r.tx.QueryContext(ctx, `
		SELECT note_id, order_id, note_type, note_text, created_by, created_at
		FROM order_notes
		WHERE order_id = $1
		ORDER BY created_at DESC, note_id DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order notes: %w", err)
	}
	defer rows.Close()

	notes := make([]domain.OrderNote, 0)
	for rows.Next() {
		var (
			note     domain.OrderNote
			noteType string
		)
		if err := rows.Scan(&note.ID, &note.OrderID, &noteType, &note.Text, &note.CreatedBy, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order note: %w", err)
		}
		note.Type = domain.NoteType(noteType)
		note.CreatedAt = note.CreatedAt.UTC()
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order notes: %w", err)
	}
	return notes, nil
}

var _ domain.NoteStore = (*noteStore)(nil)
