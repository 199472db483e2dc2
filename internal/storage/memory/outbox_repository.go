package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        uint64
	status     string
	attemptCnt int
	updatedAt  time.Time
}

type outboxStore struct {
	t *tx
}

// Enqueue сохраняет событие со статусом `pending`; оно станет видимым после Commit.
func (r outboxStore) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := r.t.check(); err != nil {
		return domain.OutboxMessage{}, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := r.t.store.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.Payload = append([]byte(nil), msg.Payload...)
	r.t.outbox = append(r.t.outbox, &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		updatedAt: now,
	})
	return msg, nil
}

// OutboxRepository возвращает представление outbox для воркера публикации.
func (s *Store) OutboxRepository() domain.OutboxRepository {
	return outboxRepository{s}
}

type outboxRepository struct {
	s *Store
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке создания.
func (r outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if err := r.s.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.s.release()

	if limit <= 0 {
		limit = 100
	}

	pending := r.pendingLocked()
	if len(pending) > limit {
		pending = pending[:limit]
	}
	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		msg := rec.msg
		msg.Payload = append([]byte(nil), rec.msg.Payload...)
		result = append(result, msg)
	}
	return result, nil
}

func (r outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	if err := r.s.acquire(ctx); err != nil {
		return domain.OutboxStats{}, err
	}
	defer r.s.release()

	pending := r.pendingLocked()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].msg.CreatedAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxStatusFailed)
}

func (r outboxRepository) mark(ctx context.Context, id, status string) error {
	if err := r.s.acquire(ctx); err != nil {
		return err
	}
	defer r.s.release()

	record, ok := r.s.outbox[id]
	if !ok {
		return fmt.Errorf("%w: outbox message %s not found", domain.ErrOutboxPublish, id)
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = r.s.now()
	return nil
}

func (r outboxRepository) pendingLocked() []*outboxRecord {
	pending := make([]*outboxRecord, 0)
	for _, rec := range r.s.outbox {
		if rec.status == outboxStatusPending {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].msg.CreatedAt.Equal(pending[j].msg.CreatedAt) {
			return pending[i].msg.CreatedAt.Before(pending[j].msg.CreatedAt)
		}
		return pending[i].seq < pending[j].seq
	})
	return pending
}

var (
	_ domain.OutboxStore      = outboxStore{}
	_ domain.OutboxRepository = outboxRepository{}
)
