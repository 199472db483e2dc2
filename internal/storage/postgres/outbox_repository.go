package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type outboxStore struct {
	tx  *sql.Tx
	now func() time.Time
}

// Enqueue пишет событие в outbox той же транзакцией, что и изменение заказа.
func (r *outboxStore) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := r.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt, now,
	)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}

	return msg, nil
}

// DefaultClaimTTL срок, на который PullPending закрепляет сообщения за вызывающим.
const DefaultClaimTTL = time.Minute

type outboxRepository struct {
	db       *sql.DB
	claimTTL time.Duration
}

// OutboxOption настраивает репозиторий outbox.
type OutboxOption func(*outboxRepository)

// WithClaimTTL задаёт срок закрепления выбранных сообщений.
func WithClaimTTL(ttl time.Duration) OutboxOption {
	return func(r *outboxRepository) {
		if ttl > 0 {
			r.claimTTL = ttl
		}
	}
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository для воркера.
func NewOutboxRepository(store *Store, opts ...OutboxOption) domain.OutboxRepository {
	r := &outboxRepository{db: store.DB(), claimTTL: DefaultClaimTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PullPending закрепляет за вызывающим до limit pending-сообщений и возвращает их
// в порядке создания. Закреплённые строки не видны другим экземплярам, пока не
// истечёт claimTTL; неотмеченные после этого сообщения выбираются повторно.
func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		UPDATE outbox_messages
		SET claimed_until = NOW() + make_interval(secs => $2)
		WHERE id IN (
			SELECT id
			FROM outbox_messages
			WHERE status = 'pending'
			  AND (claimed_until IS NULL OR claimed_until <= NOW())
			ORDER BY created_at, seq
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, aggregate_type, aggregate_id, event_type, payload, created_at, seq
	`, limit, r.claimTTL.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim pending outbox messages: %w", err)
	}
	defer rows.Close()

	type claimed struct {
		msg domain.OutboxMessage
		seq int64
	}
	batch := make([]claimed, 0, limit)
	for rows.Next() {
		var c claimed
		if err := rows.Scan(
			&c.msg.ID,
			&c.msg.AggregateType,
			&c.msg.AggregateID,
			&c.msg.EventType,
			&c.msg.Payload,
			&c.msg.CreatedAt,
			&c.seq,
		); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		batch = append(batch, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}

	// RETURNING не сохраняет порядок подзапроса.
	sort.Slice(batch, func(i, j int) bool {
		if !batch[i].msg.CreatedAt.Equal(batch[j].msg.CreatedAt) {
			return batch[i].msg.CreatedAt.Before(batch[j].msg.CreatedAt)
		}
		return batch[i].seq < batch[j].seq
	})
	result := make([]domain.OutboxMessage, 0, len(batch))
	for _, c := range batch {
		result = append(result, c.msg)
	}
	return result, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at)
		FROM outbox_messages
		WHERE status = 'pending'
	`).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, "sent")
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, "failed")
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $2,
		    attempt_count = attempt_count + 1,
		    claimed_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("mark outbox message as %s: %w", status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for outbox %s: %w", status, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: outbox message %s not found", domain.ErrOutboxPublish, id)
	}
	return nil
}

var (
	_ domain.OutboxStore      = (*outboxStore)(nil)
	_ domain.OutboxRepository = (*outboxRepository)(nil)
)
