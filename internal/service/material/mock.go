package material

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// MockLookup конфигурируемая заглушка справочника для тестов и локального запуска.
// Без заданного названия возвращает "<kind> #<id>".
type MockLookup struct {
	mu    sync.Mutex
	names map[domain.MaterialKey]string
	errs  map[domain.MaterialKey]error
	calls map[domain.MaterialKey]int

	// Err возвращается для любого ключа, если задан.
	Err error
}

// NewMockLookup возвращает mock с успешным сценарием по умолчанию.
func NewMockLookup() *MockLookup {
	return &MockLookup{
		names: make(map[domain.MaterialKey]string),
		errs:  make(map[domain.MaterialKey]error),
		calls: make(map[domain.MaterialKey]int),
	}
}

// SetName задаёт название для ключа.
func (m *MockLookup) SetName(kind domain.MaterialKind, id int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[domain.MaterialKey{Kind: kind, ID: id}] = name
}

// SetError задаёт ошибку для ключа; nil снимает её.
func (m *MockLookup) SetError(kind domain.MaterialKind, id int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.MaterialKey{Kind: kind, ID: id}
	if err == nil {
		delete(m.errs, key)
		return
	}
	m.errs[key] = err
}

// Calls возвращает число обращений по ключу.
func (m *MockLookup) Calls(kind domain.MaterialKind, id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[domain.MaterialKey{Kind: kind, ID: id}]
}

// LookupName возвращает заранее настроенное название или ошибку и считает вызовы.
func (m *MockLookup) LookupName(ctx context.Context, kind domain.MaterialKind, id int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.MaterialKey{Kind: kind, ID: id}
	m.calls[key]++
	if m.Err != nil {
		return "", m.Err
	}
	if err, ok := m.errs[key]; ok {
		return "", err
	}
	if name, ok := m.names[key]; ok {
		return name, nil
	}
	return fmt.Sprintf("%s #%d", kind, id), nil
}

var _ domain.MaterialLookup = (*MockLookup)(nil)
