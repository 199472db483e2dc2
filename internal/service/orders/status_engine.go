package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// StatusEngine ведёт историю статусов. Текущий статус заказа это последняя запись истории.
type StatusEngine struct {
	service *Service
}

// Append добавляет запись со статусом status. Повтор текущего статуса отклоняется.
// Заказ блокируется на время транзакции, поэтому конкурирующие смены статуса выстраиваются в очередь.
func (e *StatusEngine) Append(ctx context.Context, tx domain.Tx, orderID string, status domain.OrderStatus, notes domain.StatusNotes, actor string) (domain.StatusEntry, error) {
	if err := requireActor(actor); err != nil {
		return domain.StatusEntry{}, err
	}
	if !status.Valid() {
		return domain.StatusEntry{}, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if err := validateNotes(notes); err != nil {
		return domain.StatusEntry{}, err
	}

	var entry domain.StatusEntry
	var previous domain.OrderStatus
	err := withinTx(ctx, e.service.transactor, tx, func(tx domain.Tx) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		timestamp := e.service.now()
		latest, ok, err := tx.Statuses().Latest(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load current status for %s: %w", orderID, err)
		}
		if ok {
			if latest.Status == status {
				return fmt.Errorf("%w: order %s is already %s", domain.ErrInvalidTransition, orderID, status)
			}
			previous = latest.Status
			// Новая запись не может оказаться раньше текущей при отстающих часах.
			if !timestamp.After(latest.Timestamp) {
				timestamp = latest.Timestamp.Add(time.Microsecond)
			}
		}

		entry, err = tx.Statuses().Append(ctx, domain.StatusEntry{
			OrderID:       orderID,
			Status:        status,
			InternalNotes: notes.Internal,
			CustomerNotes: notes.Customer,
			Timestamp:     timestamp,
			UpdatedBy:     actor,
		})
		if err != nil {
			return fmt.Errorf("append status for %s: %w", orderID, err)
		}

		eventType := EventOrderStatusChanged
		if status == domain.OrderStatusCancelled {
			eventType = EventOrderCancelled
		}
		return enqueueEvent(ctx, tx, eventType, OrderEvent{
			OrderID:        orderID,
			CustomerID:     order.CustomerID,
			Status:         string(status),
			PreviousStatus: string(previous),
			Actor:          actor,
			OccurredAt:     timestamp,
		})
	})
	if err != nil {
		return domain.StatusEntry{}, err
	}

	e.service.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   status,
		"previous": previous,
		"actor":    actor,
	}).Info("order status changed")
	return entry, nil
}
