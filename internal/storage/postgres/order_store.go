package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const orderColumns = `
	order_id, customer_id, customer_type, service_category_id, process_type_id,
	material_id, color_id, surface_finishing_id, ordered_quantity, manufactured_quantity,
	requirements, material_name, color_name, surface_finishing_name, material_cache_updated_at,
	lead_time_days, promised_delivery_date, actual_delivery_date, quoted_amount, quote_currency,
	is_confidential, payment_id, payment_status, assigned_employee_id, department_id,
	version, created_at, updated_at, created_by, updated_by`

type orderStore struct {
	tx *sql.Tx
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *orderStore) Insert(ctx context.Context, order domain.Order) (domain.VersionToken, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var version int64
	err := r.tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_id, customer_id, customer_type, service_category_id, process_type_id,
			material_id, color_id, surface_finishing_id, ordered_quantity, manufactured_quantity,
			requirements, material_name, color_name, surface_finishing_name, material_cache_updated_at,
			lead_time_days, promised_delivery_date, actual_delivery_date, quoted_amount, quote_currency,
			is_confidential, payment_id, payment_status, assigned_employee_id, department_id,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,
			$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29
		)
		RETURNING version
	`,
		order.ID, order.CustomerID, string(order.CustomerType), order.ServiceCategoryID, order.ProcessTypeID,
		order.MaterialID, order.ColorID, order.SurfaceFinishID, order.OrderedQuantity, order.ManufacturedQuantity,
		order.Requirements, order.MaterialName, order.ColorName, order.SurfaceFinishName, order.MaterialCacheUpdatedAt,
		order.LeadTimeDays, order.PromisedDeliveryDate, order.ActualDeliveryDate, order.QuotedAmount, order.QuoteCurrency,
		order.IsConfidential, order.PaymentID, string(order.PaymentStatus), order.AssignedEmployeeID, order.DepartmentID,
		order.CreatedAt, order.UpdatedAt, order.CreatedBy, order.UpdatedBy,
	).Scan(&version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: order %s already exists", domain.ErrDataIntegrity, order.ID)
		}
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	return domain.VersionFromUint64(uint64(version)), nil
}

func (r *orderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, "")
}

func (r *orderStore) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *orderStore) get(ctx context.Context, id, lockClause string) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	row := r.tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`+lockClause, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderStore) Update(ctx context.Context, order domain.Order, expected domain.VersionToken) (domain.VersionToken, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	expectedN, ok := expected.Uint64()
	if !ok {
		return nil, r.conflictOrNotFound(ctx, order.ID)
	}

	var version int64
	err := r.tx.QueryRowContext(ctx, `
		UPDATE orders
		SET customer_type = $2,
		    service_category_id = $3,
		    process_type_id = $4,
		    material_id = $5,
		    color_id = $6,
		    surface_finishing_id = $7,
		    ordered_quantity = $8,
		    manufactured_quantity = $9,
		    requirements = $10,
		    material_name = $11,
		    color_name = $12,
		    surface_finishing_name = $13,
		    material_cache_updated_at = $14,
		    lead_time_days = $15,
		    promised_delivery_date = $16,
		    actual_delivery_date = $17,
		    quoted_amount = $18,
		    quote_currency = $19,
		    is_confidential = $20,
		    payment_id = $21,
		    payment_status = $22,
		    assigned_employee_id = $23,
		    department_id = $24,
		    updated_at = $25,
		    updated_by = $26,
		    version = nextval('order_version_seq')
		WHERE order_id = $1
		  AND version = $27
		RETURNING version
	`,
		order.ID, string(order.CustomerType), order.ServiceCategoryID, order.ProcessTypeID,
		order.MaterialID, order.ColorID, order.SurfaceFinishID,
		order.OrderedQuantity, order.ManufacturedQuantity, order.Requirements,
		order.MaterialName, order.ColorName, order.SurfaceFinishName, order.MaterialCacheUpdatedAt,
		order.LeadTimeDays, order.PromisedDeliveryDate, order.ActualDeliveryDate,
		order.QuotedAmount, order.QuoteCurrency, order.IsConfidential,
		order.PaymentID, string(order.PaymentStatus), order.AssignedEmployeeID, order.DepartmentID,
		order.UpdatedAt, order.UpdatedBy, int64(expectedN),
	).Scan(&version)
	switch {
	case err == nil:
		return domain.VersionFromUint64(uint64(version)), nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, r.conflictOrNotFound(ctx, order.ID)
	case isCheckViolation(err):
		return nil, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
	default:
		return nil, fmt.Errorf("update order: %w", err)
	}
}

// LastOrderID берёт транзакционную advisory-блокировку по префиксу года,
// поэтому параллельные вставки получают последовательные номера.
func (r *orderStore) LastOrderID(ctx context.Context, prefix string) (string, bool, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if _, err := r.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		return "", false, fmt.Errorf("acquire order id lock: %w", err)
	}

	var last string
	err := r.tx.QueryRowContext(ctx, `
		SELECT order_id
		FROM orders
		WHERE order_id LIKE $1 || '%'
		ORDER BY order_id DESC
		LIMIT 1
	`, prefix).Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select last order id: %w", err)
	}
	return last, true, nil
}

func (r *orderStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	const where = `
		WHERE ($1 = '' OR orders.customer_id = $1)
		  AND ($2 = '' OR (
			SELECT s.status
			FROM order_statuses s
			WHERE s.order_id = orders.order_id
			ORDER BY s."timestamp" DESC, s.status_id DESC
			LIMIT 1
		  ) = $2)`

	var total int
	if err := r.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where,
		filter.CustomerID, string(filter.Status),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = total
	}
	rows, err := r.tx.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+where+`
		ORDER BY orders.created_at DESC, orders.order_id DESC
		LIMIT $3 OFFSET $4`,
		filter.CustomerID, string(filter.Status), limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, total, nil
}

func (r *orderStore) conflictOrNotFound(ctx context.Context, orderID string) error {
	var id string
	err := r.tx.QueryRowContext(ctx, `SELECT order_id FROM orders WHERE order_id = $1`, orderID).Scan(&id)
	switch {
	case err == nil:
		return domain.ErrConcurrencyConflict
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrOrderNotFound
	default:
		return fmt.Errorf("check order exists: %w", err)
	}
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		customerType  string
		paymentStatus string
		version       int64
	)
	if err := row.Scan(
		&order.ID, &order.CustomerID, &customerType, &order.ServiceCategoryID, &order.ProcessTypeID,
		&order.MaterialID, &order.ColorID, &order.SurfaceFinishID, &order.OrderedQuantity, &order.ManufacturedQuantity,
		&order.Requirements, &order.MaterialName, &order.ColorName, &order.SurfaceFinishName, &order.MaterialCacheUpdatedAt,
		&order.LeadTimeDays, &order.PromisedDeliveryDate, &order.ActualDeliveryDate, &order.QuotedAmount, &order.QuoteCurrency,
		&order.IsConfidential, &order.PaymentID, &paymentStatus, &order.AssignedEmployeeID, &order.DepartmentID,
		&version, &order.CreatedAt, &order.UpdatedAt, &order.CreatedBy, &order.UpdatedBy,
	); err != nil {
		return domain.Order{}, err
	}
	order.CustomerType = domain.CustomerType(customerType)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.Version = domain.VersionFromUint64(uint64(version))
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

var _ domain.OrderStore = (*orderStore)(nil)
