package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// AggregateOrder тип агрегата для событий outbox.
const AggregateOrder = "order"

// Типы событий жизненного цикла заказа.
const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// OrderEvent полезная нагрузка событий заказа.
type OrderEvent struct {
	OrderID        string    `json:"orderId"`
	CustomerID     string    `json:"customerId,omitempty"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Version        string    `json:"version,omitempty"`
	ChangedFields  []string  `json:"changedFields,omitempty"`
	Actor          string    `json:"actor"`
	OccurredAt     time.Time `json:"occurredAt"`
}

func enqueueEvent(ctx context.Context, tx domain.Tx, eventType string, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	_, err = tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   event.OrderID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}
	return nil
}

func changedFields(p domain.OrderPatch) []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.CustomerType != nil, "customerType")
	add(p.ServiceCategoryID != nil, "serviceCategoryId")
	add(p.ProcessTypeID != nil, "processTypeId")
	add(p.MaterialID != nil, "materialId")
	add(p.ColorID != nil, "colorId")
	add(p.SurfaceFinishID != nil, "surfaceFinishingId")
	add(p.OrderedQuantity != nil, "orderedQuantity")
	add(p.ManufacturedQuantity != nil, "manufacturedQuantity")
	add(p.Requirements != nil, "requirements")
	add(p.LeadTimeDays != nil, "leadTimeDays")
	add(p.PromisedDeliveryDate != nil, "promisedDeliveryDate")
	add(p.ActualDeliveryDate != nil, "actualDeliveryDate")
	add(p.QuotedAmount != nil, "quotedAmount")
	add(p.QuoteCurrency != nil, "quoteCurrency")
	add(p.IsConfidential != nil, "isConfidential")
	add(p.PaymentID != nil, "paymentId")
	add(p.PaymentStatus != nil, "paymentStatus")
	add(p.AssignedEmployeeID != nil, "assignedEmployeeId")
	add(p.DepartmentID != nil, "departmentId")
	return fields
}
