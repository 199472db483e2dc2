package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	maxCustomerIDLength   = 50
	maxRequirementsLength = 5000
	maxNotesLength        = 2000
	maxAssignmentIDLength = 50

	// Сумма хранится как NUMERIC(18, 2).
	amountScale        = 2
	maxAmountIntDigits = 16
)

var maxAmount = decimal.New(1, maxAmountIntDigits)

// CreateOrderRequest данные нового заказа.
type CreateOrderRequest struct {
	CustomerID           string
	CustomerType         domain.CustomerType
	ServiceCategoryID    int
	ProcessTypeID        *int
	MaterialID           *int
	ColorID              *int
	SurfaceFinishID      *int
	OrderedQuantity      *int
	Requirements         *string
	LeadTimeDays         *int
	PromisedDeliveryDate *time.Time
	QuotedAmount         *decimal.Decimal
	QuoteCurrency        string
	IsConfidential       bool
	AssignedEmployeeID   *string
	DepartmentID         *string
	// CustomerNotes попадают в начальную запись истории New.
	CustomerNotes *string
}

// Validate проверяет форму запроса без обращения к хранилищу.
func (r CreateOrderRequest) Validate() error {
	return r.validate(time.Now())
}

func (r CreateOrderRequest) validate(now time.Time) error {
	v := &domain.ValidationError{}

	customerID := strings.TrimSpace(r.CustomerID)
	switch {
	case customerID == "":
		v.Add("customerId", "is required")
	case len(customerID) > maxCustomerIDLength:
		v.Add("customerId", fmt.Sprintf("must be at most %d characters", maxCustomerIDLength))
	}
	if !r.CustomerType.Valid() {
		v.Add("customerType", "must be Customer or Employee")
	}
	if r.ServiceCategoryID <= 0 {
		v.Add("serviceCategoryId", "must be greater than zero")
	}
	checkPositiveRef(v, "processTypeId", r.ProcessTypeID)
	checkPositiveRef(v, "materialId", r.MaterialID)
	checkPositiveRef(v, "colorId", r.ColorID)
	checkPositiveRef(v, "surfaceFinishingId", r.SurfaceFinishID)
	if r.OrderedQuantity != nil && *r.OrderedQuantity <= 0 {
		v.Add("orderedQuantity", "must be greater than zero")
	}
	checkLength(v, "requirements", r.Requirements, maxRequirementsLength)
	checkLength(v, "customerNotes", r.CustomerNotes, maxNotesLength)
	if r.LeadTimeDays != nil && *r.LeadTimeDays <= 0 {
		v.Add("leadTimeDays", "must be greater than zero")
	}
	if r.PromisedDeliveryDate != nil && !r.PromisedDeliveryDate.After(now) {
		v.Add("promisedDeliveryDate", "must be in the future")
	}
	checkLength(v, "assignedEmployeeId", r.AssignedEmployeeID, maxAssignmentIDLength)
	checkLength(v, "departmentId", r.DepartmentID, maxAssignmentIDLength)
	checkAmount(v, "quotedAmount", r.QuotedAmount)
	if r.QuoteCurrency != "" && len(r.QuoteCurrency) != 3 {
		v.Add("quoteCurrency", "must be a 3-letter code")
	}

	return v.OrNil()
}

func (r CreateOrderRequest) materialRefs() map[domain.MaterialKind]int {
	return refsOf(r.MaterialID, r.ColorID, r.SurfaceFinishID)
}

func (r CreateOrderRequest) toOrder(id string, now time.Time, actor string) domain.Order {
	currency := strings.ToUpper(r.QuoteCurrency)
	if currency == "" {
		currency = domain.DefaultQuoteCurrency
	}
	return domain.Order{
		ID:                   id,
		CustomerID:           strings.TrimSpace(r.CustomerID),
		CustomerType:         r.CustomerType,
		ServiceCategoryID:    r.ServiceCategoryID,
		ProcessTypeID:        r.ProcessTypeID,
		MaterialID:           r.MaterialID,
		ColorID:              r.ColorID,
		SurfaceFinishID:      r.SurfaceFinishID,
		OrderedQuantity:      r.OrderedQuantity,
		Requirements:         r.Requirements,
		LeadTimeDays:         r.LeadTimeDays,
		PromisedDeliveryDate: r.PromisedDeliveryDate,
		QuotedAmount:         r.QuotedAmount,
		QuoteCurrency:        currency,
		IsConfidential:       r.IsConfidential,
		PaymentStatus:        domain.PaymentStatusUnpaid,
		AssignedEmployeeID:   r.AssignedEmployeeID,
		DepartmentID:         r.DepartmentID,
		CreatedAt:            now,
		UpdatedAt:            now,
		CreatedBy:            actor,
		UpdatedBy:            actor,
	}
}

// UpdateOrderRequest частичное обновление с токеном версии, полученным клиентом при чтении.
type UpdateOrderRequest struct {
	Version string
	Patch   domain.OrderPatch
}

// Validate проверяет форму патча; формат версии проверяется отдельно.
func (r UpdateOrderRequest) Validate() error {
	v := &domain.ValidationError{}
	p := r.Patch

	if strings.TrimSpace(r.Version) == "" {
		v.Add("version", "is required")
	}
	if p.CustomerType != nil && !p.CustomerType.Valid() {
		v.Add("customerType", "must be Customer or Employee")
	}
	if p.ServiceCategoryID != nil && *p.ServiceCategoryID <= 0 {
		v.Add("serviceCategoryId", "must be greater than zero")
	}
	checkPositiveRef(v, "processTypeId", p.ProcessTypeID)
	checkPositiveRef(v, "materialId", p.MaterialID)
	checkPositiveRef(v, "colorId", p.ColorID)
	checkPositiveRef(v, "surfaceFinishingId", p.SurfaceFinishID)
	if p.OrderedQuantity != nil && *p.OrderedQuantity <= 0 {
		v.Add("orderedQuantity", "must be greater than zero")
	}
	if p.ManufacturedQuantity != nil && *p.ManufacturedQuantity < 0 {
		v.Add("manufacturedQuantity", "must not be negative")
	}
	checkLength(v, "requirements", p.Requirements, maxRequirementsLength)
	if p.LeadTimeDays != nil && *p.LeadTimeDays <= 0 {
		v.Add("leadTimeDays", "must be greater than zero")
	}
	checkLength(v, "assignedEmployeeId", p.AssignedEmployeeID, maxAssignmentIDLength)
	checkLength(v, "departmentId", p.DepartmentID, maxAssignmentIDLength)
	checkAmount(v, "quotedAmount", p.QuotedAmount)
	if p.QuoteCurrency != nil && len(*p.QuoteCurrency) != 3 {
		v.Add("quoteCurrency", "must be a 3-letter code")
	}
	if p.PaymentStatus != nil && !p.PaymentStatus.Valid() {
		v.Add("paymentStatus", "is not supported")
	}

	return v.OrNil()
}

func (r UpdateOrderRequest) materialRefs() map[domain.MaterialKind]int {
	return refsOf(r.Patch.MaterialID, r.Patch.ColorID, r.Patch.SurfaceFinishID)
}

// CancelRequest причина отмены и необязательная заметка для клиента.
type CancelRequest struct {
	Reason        string
	CustomerNotes *string
}

// Validate проверяет причину и заметки.
func (r CancelRequest) Validate() error {
	v := &domain.ValidationError{}
	reason := strings.TrimSpace(r.Reason)
	switch {
	case reason == "":
		v.Add("reason", "is required")
	case len(reason) > maxNotesLength:
		v.Add("reason", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}
	checkLength(v, "customerNotes", r.CustomerNotes, maxNotesLength)
	return v.OrNil()
}

// ListQuery параметры постраничной выборки.
type ListQuery struct {
	Page       int
	PageSize   int
	CustomerID string
	Status     domain.OrderStatus
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (q ListQuery) normalize() (ListQuery, error) {
	v := &domain.ValidationError{}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}
	if q.Page < 1 {
		v.Add("page", "must be at least 1")
	}
	if q.PageSize < 1 || q.PageSize > maxPageSize {
		v.Add("pageSize", fmt.Sprintf("must be between 1 and %d", maxPageSize))
	}
	if q.Status != "" && !q.Status.Valid() {
		v.Add("status", "is not a known status")
	}
	return q, v.OrNil()
}

func validateNotes(notes domain.StatusNotes) error {
	v := &domain.ValidationError{}
	checkLength(v, "internalNotes", notes.Internal, maxNotesLength)
	checkLength(v, "customerNotes", notes.Customer, maxNotesLength)
	return v.OrNil()
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.ErrActorRequired
	}
	return nil
}

func checkPositiveRef(v *domain.ValidationError, field string, value *int) {
	if value != nil && *value <= 0 {
		v.Add(field, "must be greater than zero")
	}
}

func checkLength(v *domain.ValidationError, field string, value *string, max int) {
	if value != nil && len(*value) > max {
		v.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// checkAmount не пропускает суммы, которые хранилище округлило бы молча.
func checkAmount(v *domain.ValidationError, field string, amount *decimal.Decimal) {
	switch {
	case amount == nil:
	case !amount.IsPositive():
		v.Add(field, "must be greater than zero")
	case !amount.Equal(amount.Round(amountScale)):
		v.Add(field, fmt.Sprintf("must have at most %d decimal places", amountScale))
	case amount.GreaterThanOrEqual(maxAmount):
		v.Add(field, fmt.Sprintf("must have at most %d integer digits", maxAmountIntDigits))
	}
}

func refsOf(material, color, finish *int) map[domain.MaterialKind]int {
	refs := make(map[domain.MaterialKind]int, 3)
	if material != nil {
		refs[domain.MaterialKindMaterial] = *material
	}
	if color != nil {
		refs[domain.MaterialKindColor] = *color
	}
	if finish != nil {
		refs[domain.MaterialKindSurfaceFinish] = *finish
	}
	return refs
}
