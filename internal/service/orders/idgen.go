package orders

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// IDGenerator выдаёт номера заказов ORD-YYYY-NNNNN, последовательные в пределах года.
// Номер вычисляется по последнему сохранённому, поэтому генерация и вставка
// должны идти в одной транзакции: хранилище сериализует LastOrderID по префиксу.
type IDGenerator struct{}

// Next возвращает следующий номер для года. Первый номер года 00001.
func (IDGenerator) Next(ctx context.Context, tx domain.Tx, year int) (string, error) {
	prefix := domain.OrderIDPrefix(year)
	last, ok, err := tx.Orders().LastOrderID(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("read last order id: %w", err)
	}
	if !ok {
		return domain.FormatOrderID(year, 1), nil
	}

	seq, err := domain.ParseOrderSequence(last, year)
	if err != nil {
		return "", err
	}
	if seq >= domain.MaxOrderSequence {
		return "", fmt.Errorf("%w: year %d", domain.ErrOrderIDExhausted, year)
	}
	return domain.FormatOrderID(year, seq+1), nil
}
