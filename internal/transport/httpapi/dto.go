package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
)

type createOrderBody struct {
	CustomerID           string           `json:"customerId"`
	CustomerType         string           `json:"customerType"`
	ServiceCategoryID    int              `json:"serviceCategoryId"`
	ProcessTypeID        *int             `json:"processTypeId"`
	MaterialID           *int             `json:"materialId"`
	ColorID              *int             `json:"colorId"`
	SurfaceFinishingID   *int             `json:"surfaceFinishingId"`
	OrderedQuantity      *int             `json:"orderedQuantity"`
	Requirements         *string          `json:"requirements"`
	LeadTimeDays         *int             `json:"leadTimeDays"`
	PromisedDeliveryDate *time.Time       `json:"promisedDeliveryDate"`
	QuotedAmount         *decimal.Decimal `json:"quotedAmount"`
	QuoteCurrency        string           `json:"quoteCurrency"`
	IsConfidential       bool             `json:"isConfidential"`
	AssignedEmployeeID   *string          `json:"assignedEmployeeId"`
	DepartmentID         *string          `json:"departmentId"`
	CustomerNotes        *string          `json:"customerNotes"`
}

func (b createOrderBody) toRequest() orders.CreateOrderRequest {
	return orders.CreateOrderRequest{
		CustomerID:           b.CustomerID,
		CustomerType:         domain.CustomerType(b.CustomerType),
		ServiceCategoryID:    b.ServiceCategoryID,
		ProcessTypeID:        b.ProcessTypeID,
		MaterialID:           b.MaterialID,
		ColorID:              b.ColorID,
		SurfaceFinishID:      b.SurfaceFinishingID,
		OrderedQuantity:      b.OrderedQuantity,
		Requirements:         b.Requirements,
		LeadTimeDays:         b.LeadTimeDays,
		PromisedDeliveryDate: b.PromisedDeliveryDate,
		QuotedAmount:         b.QuotedAmount,
		QuoteCurrency:        b.QuoteCurrency,
		IsConfidential:       b.IsConfidential,
		AssignedEmployeeID:   b.AssignedEmployeeID,
		DepartmentID:         b.DepartmentID,
		CustomerNotes:        b.CustomerNotes,
	}
}

type updateOrderBody struct {
	Version              string           `json:"version"`
	CustomerType         *string          `json:"customerType"`
	ServiceCategoryID    *int             `json:"serviceCategoryId"`
	ProcessTypeID        *int             `json:"processTypeId"`
	MaterialID           *int             `json:"materialId"`
	ColorID              *int             `json:"colorId"`
	SurfaceFinishingID   *int             `json:"surfaceFinishingId"`
	OrderedQuantity      *int             `json:"orderedQuantity"`
	ManufacturedQuantity *int             `json:"manufacturedQuantity"`
	Requirements         *string          `json:"requirements"`
	LeadTimeDays         *int             `json:"leadTimeDays"`
	PromisedDeliveryDate *time.Time       `json:"promisedDeliveryDate"`
	ActualDeliveryDate   *time.Time       `json:"actualDeliveryDate"`
	QuotedAmount         *decimal.Decimal `json:"quotedAmount"`
	QuoteCurrency        *string          `json:"quoteCurrency"`
	IsConfidential       *bool            `json:"isConfidential"`
	PaymentID            *string          `json:"paymentId"`
	PaymentStatus        *string          `json:"paymentStatus"`
	AssignedEmployeeID   *string          `json:"assignedEmployeeId"`
	DepartmentID         *string          `json:"departmentId"`
}

func (b updateOrderBody) toRequest() orders.UpdateOrderRequest {
	patch := domain.OrderPatch{
		ServiceCategoryID:    b.ServiceCategoryID,
		ProcessTypeID:        b.ProcessTypeID,
		MaterialID:           b.MaterialID,
		ColorID:              b.ColorID,
		SurfaceFinishID:      b.SurfaceFinishingID,
		OrderedQuantity:      b.OrderedQuantity,
		ManufacturedQuantity: b.ManufacturedQuantity,
		Requirements:         b.Requirements,
		LeadTimeDays:         b.LeadTimeDays,
		PromisedDeliveryDate: b.PromisedDeliveryDate,
		ActualDeliveryDate:   b.ActualDeliveryDate,
		QuotedAmount:         b.QuotedAmount,
		QuoteCurrency:        b.QuoteCurrency,
		IsConfidential:       b.IsConfidential,
		PaymentID:            b.PaymentID,
		AssignedEmployeeID:   b.AssignedEmployeeID,
		DepartmentID:         b.DepartmentID,
	}
	if b.CustomerType != nil {
		ct := domain.CustomerType(*b.CustomerType)
		patch.CustomerType = &ct
	}
	if b.PaymentStatus != nil {
		ps := domain.PaymentStatus(*b.PaymentStatus)
		patch.PaymentStatus = &ps
	}
	return orders.UpdateOrderRequest{Version: b.Version, Patch: patch}
}

type appendStatusBody struct {
	Status        string  `json:"status"`
	InternalNotes *string `json:"internalNotes"`
	CustomerNotes *string `json:"customerNotes"`
}

type cancelBody struct {
	Reason        string  `json:"reason"`
	CustomerNotes *string `json:"customerNotes"`
}

func (b cancelBody) toRequest() orders.CancelRequest {
	return orders.CancelRequest{Reason: b.Reason, CustomerNotes: b.CustomerNotes}
}

type batchCreateBody struct {
	Items []createOrderBody `json:"items"`
}

type batchUpdateItemBody struct {
	OrderID string `json:"orderId"`
	updateOrderBody
}

type batchUpdateBody struct {
	Items []batchUpdateItemBody `json:"items"`
}

type batchCancelBody struct {
	OrderIDs      []string `json:"orderIds"`
	Reason        string   `json:"reason"`
	CustomerNotes *string  `json:"customerNotes"`
}

type orderResponse struct {
	OrderID                string           `json:"orderId"`
	CustomerID             string           `json:"customerId"`
	CustomerType           string           `json:"customerType"`
	ServiceCategoryID      int              `json:"serviceCategoryId"`
	ProcessTypeID          *int             `json:"processTypeId,omitempty"`
	MaterialID             *int             `json:"materialId,omitempty"`
	MaterialName           *string          `json:"materialName,omitempty"`
	ColorID                *int             `json:"colorId,omitempty"`
	ColorName              *string          `json:"colorName,omitempty"`
	SurfaceFinishingID     *int             `json:"surfaceFinishingId,omitempty"`
	SurfaceFinishingName   *string          `json:"surfaceFinishingName,omitempty"`
	MaterialCacheUpdatedAt *time.Time       `json:"materialCacheUpdatedAt,omitempty"`
	OrderedQuantity        *int             `json:"orderedQuantity,omitempty"`
	ManufacturedQuantity   *int             `json:"manufacturedQuantity,omitempty"`
	RemainingQuantity      *int             `json:"remainingQuantity,omitempty"`
	Requirements           *string          `json:"requirements,omitempty"`
	LeadTimeDays           *int             `json:"leadTimeDays,omitempty"`
	PromisedDeliveryDate   *time.Time       `json:"promisedDeliveryDate,omitempty"`
	ActualDeliveryDate     *time.Time       `json:"actualDeliveryDate,omitempty"`
	QuotedAmount           *decimal.Decimal `json:"quotedAmount,omitempty"`
	QuoteCurrency          string           `json:"quoteCurrency"`
	IsConfidential         bool             `json:"isConfidential"`
	PaymentID              *string          `json:"paymentId,omitempty"`
	PaymentStatus          string           `json:"paymentStatus"`
	AssignedEmployeeID     *string          `json:"assignedEmployeeId,omitempty"`
	DepartmentID           *string          `json:"departmentId,omitempty"`
	CurrentStatus          string           `json:"currentStatus"`
	Version                string           `json:"version"`
	CreatedAt              time.Time        `json:"createdAt"`
	UpdatedAt              time.Time        `json:"updatedAt"`
	CreatedBy              string           `json:"createdBy"`
	UpdatedBy              string           `json:"updatedBy"`
}

func toOrderResponse(view orders.OrderView) orderResponse {
	o := view.Order
	return orderResponse{
		OrderID:                o.ID,
		CustomerID:             o.CustomerID,
		CustomerType:           string(o.CustomerType),
		ServiceCategoryID:      o.ServiceCategoryID,
		ProcessTypeID:          o.ProcessTypeID,
		MaterialID:             o.MaterialID,
		MaterialName:           o.MaterialName,
		ColorID:                o.ColorID,
		ColorName:              o.ColorName,
		SurfaceFinishingID:     o.SurfaceFinishID,
		SurfaceFinishingName:   o.SurfaceFinishName,
		MaterialCacheUpdatedAt: o.MaterialCacheUpdatedAt,
		OrderedQuantity:        o.OrderedQuantity,
		ManufacturedQuantity:   o.ManufacturedQuantity,
		RemainingQuantity:      view.RemainingQuantity(),
		Requirements:           o.Requirements,
		LeadTimeDays:           o.LeadTimeDays,
		PromisedDeliveryDate:   o.PromisedDeliveryDate,
		ActualDeliveryDate:     o.ActualDeliveryDate,
		QuotedAmount:           o.QuotedAmount,
		QuoteCurrency:          o.QuoteCurrency,
		IsConfidential:         o.IsConfidential,
		PaymentID:              o.PaymentID,
		PaymentStatus:          string(o.PaymentStatus),
		AssignedEmployeeID:     o.AssignedEmployeeID,
		DepartmentID:           o.DepartmentID,
		CurrentStatus:          string(view.CurrentStatus),
		Version:                o.Version.String(),
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
		CreatedBy:              o.CreatedBy,
		UpdatedBy:              o.UpdatedBy,
	}
}

type statusEntryResponse struct {
	StatusID      int64     `json:"statusId"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	InternalNotes *string   `json:"internalNotes,omitempty"`
	CustomerNotes *string   `json:"customerNotes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	UpdatedBy     string    `json:"updatedBy"`
}

func toStatusEntryResponse(e domain.StatusEntry) statusEntryResponse {
	return statusEntryResponse{
		StatusID:      e.ID,
		OrderID:       e.OrderID,
		Status:        string(e.Status),
		InternalNotes: e.InternalNotes,
		CustomerNotes: e.CustomerNotes,
		Timestamp:     e.Timestamp,
		UpdatedBy:     e.UpdatedBy,
	}
}

type addNoteBody struct {
	NoteType string `json:"noteType"`
	NoteText string `json:"noteText"`
}

func (b addNoteBody) toRequest() orders.AddNoteRequest {
	return orders.AddNoteRequest{Type: domain.NoteType(b.NoteType), Text: b.NoteText}
}

type noteResponse struct {
	NoteID    int64     `json:"noteId"`
	OrderID   string    `json:"orderId"`
	NoteType  string    `json:"noteType"`
	NoteText  string    `json:"noteText"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNoteResponse(n domain.OrderNote) noteResponse {
	return noteResponse{
		NoteID:    n.ID,
		OrderID:   n.OrderID,
		NoteType:  string(n.Type),
		NoteText:  n.Text,
		CreatedBy: n.CreatedBy,
		CreatedAt: n.CreatedAt,
	}
}

type orderListResponse struct {
	Items      []orderResponse `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalCount int             `json:"totalCount"`
	TotalPages int             `json:"totalPages"`
}

type batchItemResponse struct {
	Index       int                  `json:"index"`
	OrderID     string               `json:"orderId"`
	Order       *orderResponse       `json:"order,omitempty"`
	StatusEntry *statusEntryResponse `json:"statusEntry,omitempty"`
}

type batchResponse struct {
	Operation string              `json:"operation"`
	Items     []batchItemResponse `json:"items"`
}

func toBatchResponse(result orders.BatchResult) batchResponse {
	items := make([]batchItemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		resp := batchItemResponse{Index: item.Index, OrderID: item.OrderID}
		if item.Order != nil {
			order := toOrderResponse(*item.Order)
			resp.Order = &order
		}
		if item.Status != nil {
			entry := toStatusEntryResponse(*item.Status)
			resp.StatusEntry = &entry
		}
		items = append(items, resp)
	}
	return batchResponse{Operation: string(result.Operation), Items: items}
}
