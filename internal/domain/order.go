package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerType тип заказчика.
type CustomerType string

const (
	CustomerTypeCustomer CustomerType = "Customer"
	CustomerTypeEmployee CustomerType = "Employee"
)

// Valid проверяет тип заказчика.
func (t CustomerType) Valid() bool {
	return t == CustomerTypeCustomer || t == CustomerTypeEmployee
}

// PaymentStatus состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "Unpaid"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusPOIssued PaymentStatus = "POIssued"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

// Valid проверяет статус оплаты.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusPOIssued, PaymentStatusRefunded:
		return true
	}
	return false
}

// DefaultQuoteCurrency валюта котировки по умолчанию.
const DefaultQuoteCurrency = "THB"

// Order производственный заказ. Необязательные поля представлены указателями.
type Order struct {
	ID                   string
	CustomerID           string
	CustomerType         CustomerType
	ServiceCategoryID    int
	ProcessTypeID        *int
	MaterialID           *int
	ColorID              *int
	SurfaceFinishID      *int
	OrderedQuantity      *int
	ManufacturedQuantity *int
	Requirements         *string

	// Денормализованные названия из справочника материалов.
	MaterialName           *string
	ColorName              *string
	SurfaceFinishName      *string
	MaterialCacheUpdatedAt *time.Time

	LeadTimeDays         *int
	PromisedDeliveryDate *time.Time
	ActualDeliveryDate   *time.Time
	QuotedAmount         *decimal.Decimal
	QuoteCurrency        string
	IsConfidential       bool
	PaymentID            *string
	PaymentStatus        PaymentStatus
	AssignedEmployeeID   *string
	DepartmentID         *string

	Version   VersionToken
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
}

// RemainingQuantity возвращает ordered - manufactured, если количество заказано.
func (o Order) RemainingQuantity() *int {
	if o.OrderedQuantity == nil {
		return nil
	}
	manufactured := 0
	if o.ManufacturedQuantity != nil {
		manufactured = *o.ManufacturedQuantity
	}
	remaining := *o.OrderedQuantity - manufactured
	return &remaining
}

// MaterialRef ссылка на позицию справочника материалов.
func (o Order) MaterialRef(kind MaterialKind) (*int, *string) {
	switch kind {
	case MaterialKindMaterial:
		return o.MaterialID, o.MaterialName
	case MaterialKindColor:
		return o.ColorID, o.ColorName
	case MaterialKindSurfaceFinish:
		return o.SurfaceFinishID, o.SurfaceFinishName
	}
	return nil, nil
}

// SetMaterialName записывает название позиции справочника.
func (o *Order) SetMaterialName(kind MaterialKind, name *string) {
	switch kind {
	case MaterialKindMaterial:
		o.MaterialName = name
	case MaterialKindColor:
		o.ColorName = name
	case MaterialKindSurfaceFinish:
		o.SurfaceFinishName = name
	}
}

// ValidateInvariants проверяет инварианты заказа, которые должны держаться после любой записи.
func (o *Order) ValidateInvariants() error {
	v := &ValidationError{}

	if o.CustomerID == "" {
		v.Add("customerId", "is required")
	}
	if !o.CustomerType.Valid() {
		v.Add("customerType", "must be Customer or Employee")
	}
	if o.ServiceCategoryID <= 0 {
		v.Add("serviceCategoryId", "must be greater than zero")
	}
	if o.OrderedQuantity != nil && *o.OrderedQuantity <= 0 {
		v.Add("orderedQuantity", "must be greater than zero")
	}
	if o.ManufacturedQuantity != nil {
		if *o.ManufacturedQuantity < 0 {
			v.Add("manufacturedQuantity", "must not be negative")
		}
		if o.OrderedQuantity != nil && *o.ManufacturedQuantity > *o.OrderedQuantity {
			v.Add("manufacturedQuantity", "must not exceed orderedQuantity")
		}
	}
	if o.QuotedAmount != nil && !o.QuotedAmount.IsPositive() {
		v.Add("quotedAmount", "must be greater than zero")
	}
	if len(o.QuoteCurrency) != 3 {
		v.Add("quoteCurrency", "must be a 3-letter code")
	}
	if !o.PaymentStatus.Valid() {
		v.Add("paymentStatus", "is not supported")
	}

	return v.OrNil()
}

// OrderPatch частичное обновление: применяются только заданные (не nil) поля.
type OrderPatch struct {
	CustomerType         *CustomerType
	ServiceCategoryID    *int
	ProcessTypeID        *int
	MaterialID           *int
	ColorID              *int
	SurfaceFinishID      *int
	OrderedQuantity      *int
	ManufacturedQuantity *int
	Requirements         *string
	LeadTimeDays         *int
	PromisedDeliveryDate *time.Time
	ActualDeliveryDate   *time.Time
	QuotedAmount         *decimal.Decimal
	QuoteCurrency        *string
	IsConfidential       *bool
	PaymentID            *string
	PaymentStatus        *PaymentStatus
	AssignedEmployeeID   *string
	DepartmentID         *string

	// Названия, разрешённые до применения патча; nil означает "не менять".
	MaterialName      *string
	ColorName         *string
	SurfaceFinishName *string
	NamesResolvedAt   *time.Time
}

// Apply переносит заданные поля патча в заказ.
func (p OrderPatch) Apply(o *Order) {
	if p.CustomerType != nil {
		o.CustomerType = *p.CustomerType
	}
	if p.ServiceCategoryID != nil {
		o.ServiceCategoryID = *p.ServiceCategoryID
	}
	setInt(&o.ProcessTypeID, p.ProcessTypeID)
	p.dropStaleNames(o)
	setInt(&o.MaterialID, p.MaterialID)
	setInt(&o.ColorID, p.ColorID)
	setInt(&o.SurfaceFinishID, p.SurfaceFinishID)
	setInt(&o.OrderedQuantity, p.OrderedQuantity)
	setInt(&o.ManufacturedQuantity, p.ManufacturedQuantity)
	setInt(&o.LeadTimeDays, p.LeadTimeDays)
	setString(&o.Requirements, p.Requirements)
	setString(&o.PaymentID, p.PaymentID)
	setString(&o.AssignedEmployeeID, p.AssignedEmployeeID)
	setString(&o.DepartmentID, p.DepartmentID)
	setString(&o.MaterialName, p.MaterialName)
	setString(&o.ColorName, p.ColorName)
	setString(&o.SurfaceFinishName, p.SurfaceFinishName)
	if p.PromisedDeliveryDate != nil {
		t := *p.PromisedDeliveryDate
		o.PromisedDeliveryDate = &t
	}
	if p.ActualDeliveryDate != nil {
		t := *p.ActualDeliveryDate
		o.ActualDeliveryDate = &t
	}
	if p.NamesResolvedAt != nil {
		t := *p.NamesResolvedAt
		o.MaterialCacheUpdatedAt = &t
	}
	if p.QuotedAmount != nil {
		amount := *p.QuotedAmount
		o.QuotedAmount = &amount
	}
	if p.QuoteCurrency != nil {
		o.QuoteCurrency = *p.QuoteCurrency
	}
	if p.IsConfidential != nil {
		o.IsConfidential = *p.IsConfidential
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
}

// dropStaleNames стирает название, если патч меняет ссылку, а новое название не получено.
func (p OrderPatch) dropStaleNames(o *Order) {
	refs := []struct {
		kind MaterialKind
		id   *int
		name *string
	}{
		{MaterialKindMaterial, p.MaterialID, p.MaterialName},
		{MaterialKindColor, p.ColorID, p.ColorName},
		{MaterialKindSurfaceFinish, p.SurfaceFinishID, p.SurfaceFinishName},
	}
	for _, ref := range refs {
		if ref.id == nil || ref.name != nil {
			continue
		}
		current, _ := o.MaterialRef(ref.kind)
		if current == nil || *current != *ref.id {
			o.SetMaterialName(ref.kind, nil)
		}
	}
}

// MissingMaterialNames сообщает, есть ли ссылка на справочник без названия.
func (o Order) MissingMaterialNames() bool {
	for _, kind := range MaterialKinds() {
		if id, name := o.MaterialRef(kind); id != nil && name == nil {
			return true
		}
	}
	return false
}

// ChangedMaterialKinds возвращает справочники, идентификаторы которых задаёт патч.
func (p OrderPatch) ChangedMaterialKinds() []MaterialKind {
	var kinds []MaterialKind
	if p.MaterialID != nil {
		kinds = append(kinds, MaterialKindMaterial)
	}
	if p.ColorID != nil {
		kinds = append(kinds, MaterialKindColor)
	}
	if p.SurfaceFinishID != nil {
		kinds = append(kinds, MaterialKindSurfaceFinish)
	}
	return kinds
}

func setInt(dst **int, src *int) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func setString(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// OrderFilter параметры выборки списка заказов.
type OrderFilter struct {
	CustomerID string
	Status     OrderStatus
	Offset     int
	Limit      int
}
