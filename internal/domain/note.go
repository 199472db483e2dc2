package domain

import "time"

// NoteType адресат заметки.
type NoteType string

const (
	NoteTypeCustomer NoteType = "customer"
	NoteTypeInternal NoteType = "internal"
)

// Valid сообщает, поддерживается ли тип заметки.
func (t NoteType) Valid() bool {
	return t == NoteTypeCustomer || t == NoteTypeInternal
}

// OrderNote свободная заметка к заказу. Заметки только добавляются.
type OrderNote struct {
	ID        int64
	OrderID   string
	Type      NoteType
	Text      string
	CreatedBy string
	CreatedAt time.Time
}

// NewerThan сообщает, идёт ли n раньше other в выдаче новыми первыми.
func (n OrderNote) NewerThan(other OrderNote) bool {
	if !n.CreatedAt.Equal(other.CreatedAt) {
		return n.CreatedAt.After(other.CreatedAt)
	}
	return n.ID > other.ID
}
