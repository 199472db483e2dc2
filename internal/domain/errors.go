package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidVersionFormat сигнализирует, что версия от клиента не декодируется из base64.
	ErrInvalidVersionFormat = errors.New("invalid version format")
	// ErrConcurrencyConflict сигнализирует о конфликте версий при сохранении.
	ErrConcurrencyConflict = errors.New("order was modified by another request")
	// ErrInvalidTransition возвращается при повторной установке текущего статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidationFailed объединяет ошибки валидации входных данных.
	ErrValidationFailed = errors.New("validation failed")
	// ErrDataIntegrity означает повреждённые данные в хранилище (например, неразборчивый номер заказа).
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrOrderIDExhausted возвращается, когда за год выдано максимальное число номеров.
	ErrOrderIDExhausted = errors.New("order id sequence exhausted")
	// ErrExternalServiceUnavailable временная ошибка внешнего сервиса, допускает повтор.
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	// ErrMaterialNotFound справочник материалов не знает запрошенный идентификатор.
	ErrMaterialNotFound = errors.New("material reference not found")
	// ErrActorRequired мутация без идентификатора инициатора.
	ErrActorRequired = errors.New("actor is required")
	// ErrOutboxPublish ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Kind классифицирует ошибку для транспортного слоя.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindInvalidVersion     Kind = "invalid_version_format"
	KindConflict           Kind = "concurrency_conflict"
	KindInvalidTransition  Kind = "invalid_transition"
	KindUnauthorized       Kind = "unauthorized"
	KindServiceUnavailable Kind = "service_unavailable"
	KindDataIntegrity      Kind = "data_integrity"
	KindInternal           Kind = "internal"
)

// KindOf возвращает категорию ошибки. Нераспознанные ошибки считаются внутренними.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidVersionFormat):
		return KindInvalidVersion
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrValidationFailed):
		return KindValidation
	case errors.Is(err, ErrActorRequired):
		return KindUnauthorized
	case errors.Is(err, ErrExternalServiceUnavailable):
		return KindServiceUnavailable
	case errors.Is(err, ErrDataIntegrity), errors.Is(err, ErrOrderIDExhausted):
		return KindDataIntegrity
	default:
		return KindInternal
	}
}

// IsNotFound проверяет, что заказ не найден.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// IsConcurrencyConflict проверяет, является ли ошибка конфликтом версий.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// ValidationError содержит список нарушений по полям.
type ValidationError struct {
	Violations []FieldViolation
}

// FieldViolation одно нарушение правила валидации.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidationFailed.Error()
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// Add добавляет нарушение.
func (e *ValidationError) Add(field, message string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message})
}

// OrNil возвращает nil, если нарушений нет.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}
	return e
}

// NewValidationError создаёт ошибку валидации с одним нарушением.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// ItemError привязывает ошибку к элементу пакетной операции.
type ItemError struct {
	Index   int
	OrderID string
	Err     error
}

func (e *ItemError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("batch item %d (order %s): %v", e.Index, e.OrderID, e.Err)
	}
	return fmt.Sprintf("batch item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
