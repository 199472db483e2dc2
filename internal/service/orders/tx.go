package orders

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// withinTx выполняет fn во внешней транзакции, если она передана, иначе открывает собственную.
// Собственная транзакция откатывается при любой ошибке fn.
func withinTx(ctx context.Context, transactor domain.Transactor, tx domain.Tx, fn func(domain.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	owned, err := transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(owned); err != nil {
		_ = owned.Rollback()
		return err
	}
	if err := owned.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
