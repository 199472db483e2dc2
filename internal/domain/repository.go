package domain

import "context"

// Transactor открывает транзакции хранилища.
type Transactor interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx единица работы. Все хранилища, полученные из Tx, пишут в одну транзакцию.
// После Commit или Rollback транзакция непригодна.
type Tx interface {
	Orders() OrderStore
	Statuses() StatusStore
	Outbox() OutboxStore
	Notes() NoteStore
	Commit() error
	Rollback() error
}

// OrderStore описывает требования к хранилищу заказов внутри транзакции.
type OrderStore interface {
	// Insert сохраняет новый заказ и возвращает выданную версию.
	Insert(ctx context.Context, order Order) (VersionToken, error)
	// Get возвращает заказ или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// GetForUpdate возвращает заказ и блокирует его до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (Order, error)
	// Update сохраняет заказ, если текущая версия равна expected, и возвращает новую версию.
	// При несовпадении версии возвращается ErrConcurrencyConflict.
	Update(ctx context.Context, order Order, expected VersionToken) (VersionToken, error)
	// LastOrderID возвращает наибольший идентификатор с префиксом и сериализует выдачу номеров
	// для этого префикса до конца транзакции.
	LastOrderID(ctx context.Context, prefix string) (string, bool, error)
	// List возвращает страницу заказов и общее число подходящих под фильтр.
	List(ctx context.Context, filter OrderFilter) ([]Order, int, error)
}

// StatusStore журнал статусов, допускающий только добавление.
type StatusStore interface {
	Append(ctx context.Context, entry StatusEntry) (StatusEntry, error)
	// Latest возвращает последнюю запись по (timestamp DESC, id DESC).
	Latest(ctx context.Context, orderID string) (StatusEntry, bool, error)
	// History возвращает записи в хронологическом порядке.
	History(ctx context.Context, orderID string) ([]StatusEntry, error)
}

// OutboxStore добавляет события в transactional outbox в рамках транзакции.
type OutboxStore interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// NoteStore заметки к заказам, допускающие только добавление.
type NoteStore interface {
	// Append сохраняет заметку; для неизвестного заказа возвращает ErrOrderNotFound.
	Append(ctx context.Context, note OrderNote) (OrderNote, error)
	// List возвращает заметки заказа, новые первыми.
	List(ctx context.Context, orderID string) ([]OrderNote, error)
}
