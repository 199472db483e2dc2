package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus состояние заказа в истории статусов.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "New"
	OrderStatusReviewing  OrderStatus = "Reviewing"
	OrderStatusRejected   OrderStatus = "Rejected"
	OrderStatusReviewed   OrderStatus = "Reviewed"
	OrderStatusQuoted     OrderStatus = "Quoted"
	OrderStatusDeclined   OrderStatus = "Declined"
	OrderStatusAccepted   OrderStatus = "Accepted"
	OrderStatusExpired    OrderStatus = "Expired"
	OrderStatusPaid       OrderStatus = "Paid"
	OrderStatusPOIssued   OrderStatus = "POIssued"
	OrderStatusInProgress OrderStatus = "InProgress"
	OrderStatusOnHold     OrderStatus = "OnHold"
	OrderStatusFinished   OrderStatus = "Finished"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusReopen     OrderStatus = "Reopen"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var allStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusReviewing,
	OrderStatusRejected,
	OrderStatusReviewed,
	OrderStatusQuoted,
	OrderStatusDeclined,
	OrderStatusAccepted,
	OrderStatusExpired,
	OrderStatusPaid,
	OrderStatusPOIssued,
	OrderStatusInProgress,
	OrderStatusOnHold,
	OrderStatusFinished,
	OrderStatusShipped,
	OrderStatusReopen,
	OrderStatusCancelled,
}

// AllStatuses возвращает закрытый список статусов в порядке жизненного цикла.
func AllStatuses() []OrderStatus {
	out := make([]OrderStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid сообщает, входит ли статус в закрытый список.
func (s OrderStatus) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	raw = strings.TrimSpace(raw)
	for _, known := range allStatuses {
		if strings.EqualFold(raw, string(known)) {
			return known, nil
		}
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", raw))
}

// StatusNotes заметки, сопровождающие смену статуса.
type StatusNotes struct {
	Internal *string
	Customer *string
}

// StatusEntry неизменяемая запись истории статусов.
type StatusEntry struct {
	ID            int64
	OrderID       string
	Status        OrderStatus
	InternalNotes *string
	CustomerNotes *string
	Timestamp     time.Time
	UpdatedBy     string
}

// Later сообщает, что запись e новее other: по времени, затем по ID.
func (e StatusEntry) Later(other StatusEntry) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.After(other.Timestamp)
	}
	return e.ID > other.ID
}
