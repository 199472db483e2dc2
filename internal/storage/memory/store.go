package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// ErrTxDone возвращается при работе с уже завершённой транзакцией.
var ErrTxDone = errors.New("memory: transaction has already been committed or rolled back")

// Store in-memory хранилище заказов, истории статусов, заметок и outbox.
// Транзакции выполняются строго по одной: Begin захватывает единственный слот
// и держит его до Commit/Rollback, поэтому выдача номеров и проверка версий сериализованы.
type Store struct {
	slot chan struct{}
	now  func() time.Time

	// committed состояние; читается и пишется только владельцем слота.
	orders       map[string]domain.Order
	statuses     map[string][]domain.StatusEntry
	notes        map[string][]domain.OrderNote
	outbox       map[string]*outboxRecord
	lastVersion  uint64
	lastStatusID int64
	lastNoteID   int64
	lastOutbox   uint64

	// mu защищает только счётчик открытых транзакций для тестов.
	mu     sync.Mutex
	opened int
}

// Option настраивает Store.
type Option func(*Store)

// WithClock задаёт источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore создаёт пустое хранилище.
func NewStore(opts ...Option) *Store {
	s := &Store{
		slot:     make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
		orders:   make(map[string]domain.Order),
		statuses: make(map[string][]domain.StatusEntry),
		notes:    make(map[string][]domain.OrderNote),
		outbox:   make(map[string]*outboxRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin открывает транзакцию, ожидая освобождения слота с учётом ctx.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()

	return &tx{
		store:        s,
		orders:       make(map[string]domain.Order),
		statuses:     make(map[string][]domain.StatusEntry),
		notes:        make(map[string][]domain.OrderNote),
		lastVersion:  s.lastVersion,
		lastStatusID: s.lastStatusID,
		lastNoteID:   s.lastNoteID,
	}, nil
}

// Ping всегда успешен; нужен для health-check.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// TransactionsOpened возвращает число открытых за всё время транзакций.
func (s *Store) TransactionsOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.slot
}

// tx накапливает изменения отдельно от committed-состояния.
type tx struct {
	store *Store
	done  bool

	orders       map[string]domain.Order
	statuses     map[string][]domain.StatusEntry
	notes        map[string][]domain.OrderNote
	outbox       []*outboxRecord
	lastVersion  uint64
	lastStatusID int64
	lastNoteID   int64
}

func (t *tx) Orders() domain.OrderStore { return orderStore{t} }
func (t *tx) Statuses() domain.StatusStore { return statusStore{t} }
func (t *tx) Outbox() domain.OutboxStore { return outboxStore{t} }
func (t *tx) Notes() domain.NoteStore { return noteStore{t} }

func (t *tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.store.release()

	s := t.store
	for id, order := range t.orders {
		s.orders[id] = order
	}
	for id, entries := range t.statuses {
		s.statuses[id] = append(s.statuses[id], entries...)
	}
	for id, notes := range t.notes {
		s.notes[id] = append(s.notes[id], notes...)
	}
	for _, rec := range t.outbox {
		s.lastOutbox++
		rec.seq = s.lastOutbox
		s.outbox[rec.msg.ID] = rec
	}
	s.lastVersion = t.lastVersion
	s.lastStatusID = t.lastStatusID
	s.lastNoteID = t.lastNoteID
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.release()
	return nil
}

func (t *tx) check() error {
	if t.done {
		return ErrTxDone
	}
	return nil
}

var (
	_ domain.Transactor = (*Store)(nil)
	_ domain.Tx         = (*tx)(nil)
)
