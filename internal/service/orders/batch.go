package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	// DefaultMaxBatchItems предельный размер пакета.
	DefaultMaxBatchItems = 100
	// DefaultBatchTimeout ограничение на всю пакетную транзакцию.
	DefaultBatchTimeout = 30 * time.Second
)

// BatchOperation вид пакетной операции.
type BatchOperation string

const (
	BatchCreate BatchOperation = "create"
	BatchUpdate BatchOperation = "update"
	BatchCancel BatchOperation = "cancel"
)

// BatchUpdateItem обновление одного заказа в пакете.
type BatchUpdateItem struct {
	OrderID string
	UpdateOrderRequest
}

// BatchItemResult результат одного элемента зафиксированного пакета.
type BatchItemResult struct {
	Index   int
	OrderID string
	Order   *OrderView
	Status  *domain.StatusEntry
}

// BatchResult результат пакета. Заполняется только при успешной фиксации всех элементов.
type BatchResult struct {
	Operation BatchOperation
	Items     []BatchItemResult
}

// BatchCoordinator выполняет пакеты по принципу "всё или ничего": все элементы в одной транзакции,
// первая ошибка откатывает пакет целиком и возвращается как *domain.ItemError.
type BatchCoordinator struct {
	service  *Service
	maxItems int
	timeout  time.Duration
}

// BatchOption настраивает BatchCoordinator.
type BatchOption func(*BatchCoordinator)

// WithMaxBatchItems задаёт предельный размер пакета.
func WithMaxBatchItems(n int) BatchOption {
	return func(b *BatchCoordinator) {
		if n > 0 {
			b.maxItems = n
		}
	}
}

// WithBatchTimeout задаёт ограничение времени пакета.
func WithBatchTimeout(d time.Duration) BatchOption {
	return func(b *BatchCoordinator) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// NewBatchCoordinator создаёт координатор поверх сервиса заказов.
func NewBatchCoordinator(service *Service, opts ...BatchOption) *BatchCoordinator {
	b := &BatchCoordinator{
		service:  service,
		maxItems: DefaultMaxBatchItems,
		timeout:  DefaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxItems предельный размер пакета.
func (b *BatchCoordinator) MaxItems() int {
	return b.maxItems
}

// batchStep элемент пакета.
type batchStep interface {
	orderID() string
	validate() error
	// prepare выполняется до открытия транзакции.
	prepare(ctx context.Context)
	apply(ctx context.Context, tx domain.Tx) (BatchItemResult, error)
}

// CreateBatch создаёт все заказы или ни одного.
func (b *BatchCoordinator) CreateBatch(ctx context.Context, reqs []CreateOrderRequest, actor string) (BatchResult, error) {
	steps := make([]batchStep, len(reqs))
	for i := range reqs {
		steps[i] = &createStep{svc: b.service, req: reqs[i], actor: actor}
	}
	return b.run(ctx, BatchCreate, actor, steps)
}

// UpdateBatch обновляет все заказы или ни одного.
func (b *BatchCoordinator) UpdateBatch(ctx context.Context, items []BatchUpdateItem, actor string) (BatchResult, error) {
	steps := make([]batchStep, len(items))
	for i := range items {
		steps[i] = &updateStep{svc: b.service, item: items[i], actor: actor}
	}
	return b.run(ctx, BatchUpdate, actor, steps)
}

// CancelBatch отменяет все заказы или ни одного.
func (b *BatchCoordinator) CancelBatch(ctx context.Context, orderIDs []string, req CancelRequest, actor string) (BatchResult, error) {
	if err := req.Validate(); err != nil {
		return BatchResult{}, err
	}
	steps := make([]batchStep, len(orderIDs))
	for i := range orderIDs {
		steps[i] = &cancelStep{svc: b.service, id: orderIDs[i], req: req, actor: actor}
	}
	return b.run(ctx, BatchCancel, actor, steps)
}

func (b *BatchCoordinator) run(ctx context.Context, op BatchOperation, actor string, steps []batchStep) (BatchResult, error) {
	svc := b.service
	defer svc.metrics.ObserveOperation("batch_"+string(op), time.Now())
	logger := svc.logger.WithFields(log.Fields{
		"batch_operation": op,
		"batch_size":      len(steps),
	})

	if err := requireActor(actor); err != nil {
		return BatchResult{}, err
	}
	switch {
	case len(steps) == 0:
		return BatchResult{}, domain.NewValidationError("items", "batch must contain at least one item")
	case len(steps) > b.maxItems:
		return BatchResult{}, domain.NewValidationError("items", fmt.Sprintf("batch must contain at most %d items", b.maxItems))
	}

	for i, step := range steps {
		if err := step.validate(); err != nil {
			svc.metrics.RecordBatch(string(op), len(steps), false)
			return BatchResult{}, &domain.ItemError{Index: i, OrderID: step.orderID(), Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	for _, step := range steps {
		step.prepare(ctx)
	}

	tx, err := svc.transactor.Begin(ctx)
	if err != nil {
		svc.metrics.RecordBatch(string(op), len(steps), false)
		return BatchResult{}, fmt.Errorf("begin batch tx: %w", err)
	}

	results := make([]BatchItemResult, 0, len(steps))
	for i, step := range steps {
		res, err := func() (BatchItemResult, error) {
			if err := ctx.Err(); err != nil {
				return BatchItemResult{}, err
			}
			return step.apply(ctx, tx)
		}()
		if err != nil {
			_ = tx.Rollback()
			svc.metrics.RecordBatch(string(op), len(steps), false)
			if domain.IsConcurrencyConflict(err) {
				svc.metrics.RecordConcurrencyConflict()
			}
			orderID := step.orderID()
			if orderID == "" {
				orderID = res.OrderID
			}
			logger.WithError(err).WithFields(log.Fields{
				"item_index": i,
				"order_id":   orderID,
			}).Warn("batch rolled back")
			return BatchResult{}, &domain.ItemError{Index: i, OrderID: orderID, Err: err}
		}
		res.Index = i
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		svc.metrics.RecordBatch(string(op), len(steps), false)
		return BatchResult{}, fmt.Errorf("commit batch tx: %w", err)
	}

	svc.metrics.RecordBatch(string(op), len(steps), true)
	for _, res := range results {
		switch op {
		case BatchCreate:
			svc.metrics.RecordOrderCreated()
			svc.metrics.RecordStatusTransition(string(domain.OrderStatusNew))
		case BatchUpdate:
			svc.metrics.RecordOrderUpdated()
		case BatchCancel:
			if res.Status != nil {
				svc.metrics.RecordStatusTransition(string(res.Status.Status))
			}
		}
	}
	logger.WithField("actor", actor).Info("batch committed")
	return BatchResult{Operation: op, Items: results}, nil
}

type createStep struct {
	svc   *Service
	req   CreateOrderRequest
	actor string
	names resolvedNames
}

func (s *createStep) orderID() string { return "" }

func (s *createStep) validate() error { return s.req.validate(s.svc.now()) }

func (s *createStep) prepare(ctx context.Context) {
	s.names = s.svc.resolveNames(ctx, s.req.materialRefs())
}

func (s *createStep) apply(ctx context.Context, tx domain.Tx) (BatchItemResult, error) {
	view, err := s.svc.create(ctx, tx, s.req, s.names, s.actor)
	if err != nil {
		return BatchItemResult{}, err
	}
	return BatchItemResult{OrderID: view.Order.ID, Order: &view}, nil
}

type updateStep struct {
	svc   *Service
	item  BatchUpdateItem
	actor string
	patch domain.OrderPatch
}

func (s *updateStep) orderID() string { return s.item.OrderID }

func (s *updateStep) validate() error {
	if strings.TrimSpace(s.item.OrderID) == "" {
		return domain.NewValidationError("orderId", "is required")
	}
	if err := s.item.Validate(); err != nil {
		return err
	}
	_, err := domain.ParseVersionToken(s.item.Version)
	return err
}

func (s *updateStep) prepare(ctx context.Context) {
	s.patch = s.item.Patch
	s.svc.resolveNames(ctx, s.item.materialRefs()).applyToPatch(&s.patch)
}

func (s *updateStep) apply(ctx context.Context, tx domain.Tx) (BatchItemResult, error) {
	order, err := s.svc.mutator.Update(ctx, tx, s.item.OrderID, s.item.Version, s.patch, s.actor)
	if err != nil {
		return BatchItemResult{}, err
	}
	status, err := currentStatus(ctx, tx, s.item.OrderID)
	if err != nil {
		return BatchItemResult{}, err
	}
	return BatchItemResult{
		OrderID: s.item.OrderID,
		Order:   &OrderView{Order: order, CurrentStatus: status},
	}, nil
}

type cancelStep struct {
	svc   *Service
	id    string
	req   CancelRequest
	actor string
}

func (s *cancelStep) orderID() string { return s.id }

func (s *cancelStep) validate() error {
	if strings.TrimSpace(s.id) == "" {
		return domain.NewValidationError("orderId", "is required")
	}
	return nil
}

func (s *cancelStep) prepare(context.Context) {}

func (s *cancelStep) apply(ctx context.Context, tx domain.Tx) (BatchItemResult, error) {
	reason := s.req.Reason
	entry, err := s.svc.statuses.Append(ctx, tx, s.id, domain.OrderStatusCancelled, domain.StatusNotes{
		Internal: &reason,
		Customer: s.req.CustomerNotes,
	}, s.actor)
	if err != nil {
		return BatchItemResult{}, err
	}
	return BatchItemResult{OrderID: s.id, Status: &entry}, nil
}
