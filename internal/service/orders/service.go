package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

// DefaultNamesTTL срок, после которого названия материалов обновляются при чтении.
const DefaultNamesTTL = 24 * time.Hour

// OrderView заказ вместе с текущим статусом.
type OrderView struct {
	Order         domain.Order
	CurrentStatus domain.OrderStatus
}

// RemainingQuantity остаток к производству.
func (v OrderView) RemainingQuantity() *int {
	return v.Order.RemainingQuantity()
}

// OrderPage страница списка заказов.
type OrderPage struct {
	Items    []OrderView
	Page     int
	PageSize int
	Total    int
}

// TotalPages число страниц при текущем размере страницы.
func (p OrderPage) TotalPages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Service реализует жизненный цикл заказа.
// Методы, принимающие tx, выполняются во внешней транзакции, если она не nil.
type Service struct {
	transactor domain.Transactor
	names      NameResolver
	namesTTL   time.Duration
	now        func() time.Time
	logger     *log.Entry
	metrics    *metrics.OrderMetrics

	ids      IDGenerator
	mutator  *Mutator
	statuses *StatusEngine
}

// Option настраивает Service.
type Option func(*Service)

// WithNameResolver подключает справочник материалов.
func WithNameResolver(names NameResolver) Option {
	return func(s *Service) {
		s.names = names
	}
}

// WithNamesTTL задаёт срок актуальности сохранённых названий.
func WithNamesTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.namesTTL = ttl
		}
	}
}

// WithClock задаёт источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService создаёт сервис заказов поверх хранилища.
func NewService(transactor domain.Transactor, opts ...Option) *Service {
	s := &Service{
		transactor: transactor,
		namesTTL:   DefaultNamesTTL,
		now:        time.Now,
		logger:     log.WithField("component", "order-service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	clock := s.now
	// Хранилища держат время с точностью до микросекунды.
	s.now = func() time.Time { return clock().UTC().Truncate(time.Microsecond) }

	s.mutator = &Mutator{service: s}
	s.statuses = &StatusEngine{service: s}
	return s
}

// Mutator возвращает компонент обновления заказов.
func (s *Service) Mutator() *Mutator {
	return s.mutator
}

// Statuses возвращает компонент истории статусов.
func (s *Service) Statuses() *StatusEngine {
	return s.statuses
}

// Create создаёт заказ со статусом New и номером следующим по порядку в текущем году.
func (s *Service) Create(ctx context.Context, tx domain.Tx, req CreateOrderRequest, actor string) (OrderView, error) {
	defer s.metrics.ObserveOperation("create", time.Now())

	if err := requireActor(actor); err != nil {
		return OrderView{}, err
	}
	if err := req.validate(s.now()); err != nil {
		return OrderView{}, err
	}
	names := s.resolveNames(ctx, req.materialRefs())

	var view OrderView
	err := withinTx(ctx, s.transactor, tx, func(tx domain.Tx) error {
		var err error
		view, err = s.create(ctx, tx, req, names, actor)
		return err
	})
	if err != nil {
		return OrderView{}, err
	}

	if tx == nil {
		s.metrics.RecordOrderCreated()
		s.metrics.RecordStatusTransition(string(domain.OrderStatusNew))
	}
	s.logger.WithFields(log.Fields{
		"order_id":    view.Order.ID,
		"customer_id": view.Order.CustomerID,
		"actor":       actor,
	}).Info("order created")
	return view, nil
}

func (s *Service) create(ctx context.Context, tx domain.Tx, req CreateOrderRequest, names resolvedNames, actor string) (OrderView, error) {
	now := s.now()
	id, err := s.ids.Next(ctx, tx, now.Year())
	if err != nil {
		return OrderView{}, err
	}

	order := req.toOrder(id, now, actor)
	names.applyTo(&order)
	if err := order.ValidateInvariants(); err != nil {
		return OrderView{}, err
	}

	version, err := tx.Orders().Insert(ctx, order)
	if err != nil {
		return OrderView{}, fmt.Errorf("insert order %s: %w", id, err)
	}
	order.Version = version

	_, err = tx.Statuses().Append(ctx, domain.StatusEntry{
		OrderID:       id,
		Status:        domain.OrderStatusNew,
		CustomerNotes: req.CustomerNotes,
		Timestamp:     now,
		UpdatedBy:     actor,
	})
	if err != nil {
		return OrderView{}, fmt.Errorf("append initial status for %s: %w", id, err)
	}

	err = enqueueEvent(ctx, tx, EventOrderCreated, OrderEvent{
		OrderID:    id,
		CustomerID: order.CustomerID,
		Status:     string(domain.OrderStatusNew),
		Version:    version.String(),
		Actor:      actor,
		OccurredAt: now,
	})
	if err != nil {
		return OrderView{}, err
	}

	return OrderView{Order: order, CurrentStatus: domain.OrderStatusNew}, nil
}

// Get возвращает заказ с текущим статусом. Устаревшие названия материалов
// обновляются в ответе, но не сохраняются.
func (s *Service) Get(ctx context.Context, orderID string) (OrderView, error) {
	defer s.metrics.ObserveOperation("get", time.Now())

	var view OrderView
	err := withinTx(ctx, s.transactor, nil, func(tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		status, err := currentStatus(ctx, tx, orderID)
		if err != nil {
			return err
		}
		view = OrderView{Order: order, CurrentStatus: status}
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	s.refreshNames(ctx, &view.Order)
	return view, nil
}

// List возвращает страницу заказов, новые первыми.
func (s *Service) List(ctx context.Context, query ListQuery) (OrderPage, error) {
	defer s.metrics.ObserveOperation("list", time.Now())

	query, err := query.normalize()
	if err != nil {
		return OrderPage{}, err
	}

	page := OrderPage{Page: query.Page, PageSize: query.PageSize}
	err = withinTx(ctx, s.transactor, nil, func(tx domain.Tx) error {
		orders, total, err := tx.Orders().List(ctx, domain.OrderFilter{
			CustomerID: query.CustomerID,
			Status:     query.Status,
			Offset:     (query.Page - 1) * query.PageSize,
			Limit:      query.PageSize,
		})
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		page.Total = total
		page.Items = make([]OrderView, 0, len(orders))
		for _, order := range orders {
			status, err := currentStatus(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			page.Items = append(page.Items, OrderView{Order: order, CurrentStatus: status})
		}
		return nil
	})
	if err != nil {
		return OrderPage{}, err
	}
	return page, nil
}

// Update применяет частичное обновление при совпадении версии.
func (s *Service) Update(ctx context.Context, tx domain.Tx, orderID string, req UpdateOrderRequest, actor string) (OrderView, error) {
	defer s.metrics.ObserveOperation("update", time.Now())

	if err := requireActor(actor); err != nil {
		return OrderView{}, err
	}
	if err := req.Validate(); err != nil {
		return OrderView{}, err
	}
	patch := req.Patch
	s.resolveNames(ctx, req.materialRefs()).applyToPatch(&patch)

	var view OrderView
	err := withinTx(ctx, s.transactor, tx, func(tx domain.Tx) error {
		order, err := s.mutator.Update(ctx, tx, orderID, req.Version, patch, actor)
		if err != nil {
			return err
		}
		status, err := currentStatus(ctx, tx, orderID)
		if err != nil {
			return err
		}
		view = OrderView{Order: order, CurrentStatus: status}
		return nil
	})
	if err != nil {
		if tx == nil && errors.Is(err, domain.ErrConcurrencyConflict) {
			s.metrics.RecordConcurrencyConflict()
		}
		return OrderView{}, err
	}

	if tx == nil {
		s.metrics.RecordOrderUpdated()
	}
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"actor":    actor,
	}).Info("order updated")
	return view, nil
}

// AppendStatus добавляет запись в историю статусов.
func (s *Service) AppendStatus(ctx context.Context, tx domain.Tx, orderID string, status domain.OrderStatus, notes domain.StatusNotes, actor string) (domain.StatusEntry, error) {
	defer s.metrics.ObserveOperation("append_status", time.Now())

	entry, err := s.statuses.Append(ctx, tx, orderID, status, notes, actor)
	if err != nil {
		return domain.StatusEntry{}, err
	}
	if tx == nil {
		s.metrics.RecordStatusTransition(string(status))
	}
	return entry, nil
}

// Cancel переводит заказ в Cancelled. Причина сохраняется во внутренней заметке.
func (s *Service) Cancel(ctx context.Context, tx domain.Tx, orderID string, req CancelRequest, actor string) (domain.StatusEntry, error) {
	defer s.metrics.ObserveOperation("cancel", time.Now())

	if err := req.Validate(); err != nil {
		return domain.StatusEntry{}, err
	}
	reason := req.Reason
	entry, err := s.statuses.Append(ctx, tx, orderID, domain.OrderStatusCancelled, domain.StatusNotes{
		Internal: &reason,
		Customer: req.CustomerNotes,
	}, actor)
	if err != nil {
		return domain.StatusEntry{}, err
	}
	if tx == nil {
		s.metrics.RecordStatusTransition(string(domain.OrderStatusCancelled))
	}
	return entry, nil
}

// History возвращает историю статусов в хронологическом порядке.
func (s *Service) History(ctx context.Context, orderID string) ([]domain.StatusEntry, error) {
	defer s.metrics.ObserveOperation("history", time.Now())

	var history []domain.StatusEntry
	err := withinTx(ctx, s.transactor, nil, func(tx domain.Tx) error {
		if _, err := tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		entries, err := tx.Statuses().History(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load history for %s: %w", orderID, err)
		}
		history = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func currentStatus(ctx context.Context, tx domain.Tx, orderID string) (domain.OrderStatus, error) {
	latest, ok, err := tx.Statuses().Latest(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load current status for %s: %w", orderID, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: order %s has no status history", domain.ErrDataIntegrity, orderID)
	}
	return latest.Status, nil
}
