package orders

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Mutator применяет частичные обновления с оптимистичной блокировкой.
type Mutator struct {
	service *Service
}

// Update обновляет заказ, если клиент прислал его текущую версию.
// Проверки идут в порядке: существование, формат версии, совпадение версии, инварианты.
func (m *Mutator) Update(ctx context.Context, tx domain.Tx, orderID, version string, patch domain.OrderPatch, actor string) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err := withinTx(ctx, m.service.transactor, tx, func(tx domain.Tx) error {
		current, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		expected, err := domain.ParseVersionToken(version)
		if err != nil {
			return err
		}
		if !current.Version.Equal(expected) {
			return fmt.Errorf("%w: order %s was modified by another writer", domain.ErrConcurrencyConflict, orderID)
		}

		next := current
		patch.Apply(&next)
		if err := next.ValidateInvariants(); err != nil {
			return err
		}
		next.UpdatedAt = m.service.now()
		next.UpdatedBy = actor

		newVersion, err := tx.Orders().Update(ctx, next, expected)
		if err != nil {
			return err
		}
		next.Version = newVersion

		err = enqueueEvent(ctx, tx, EventOrderUpdated, OrderEvent{
			OrderID:       orderID,
			CustomerID:    next.CustomerID,
			Version:       newVersion.String(),
			ChangedFields: changedFields(patch),
			Actor:         actor,
			OccurredAt:    next.UpdatedAt,
		})
		if err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}
