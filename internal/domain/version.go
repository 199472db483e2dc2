package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// VersionSize размер токена версии в байтах.
const VersionSize = 8

// VersionToken непрозрачный токен оптимистической блокировки.
// Хранилище меняет его при каждой успешной записи заказа.
type VersionToken []byte

// VersionFromUint64 кодирует счётчик хранилища в токен (big-endian).
func VersionFromUint64(n uint64) VersionToken {
	token := make(VersionToken, VersionSize)
	binary.BigEndian.PutUint64(token, n)
	return token
}

// Uint64 возвращает числовое значение токена. Для токена чужого размера ok=false.
func (v VersionToken) Uint64() (uint64, bool) {
	if len(v) != VersionSize {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

// String кодирует токен в base64 для передачи клиенту.
func (v VersionToken) String() string {
	return base64.StdEncoding.EncodeToString(v)
}

// Equal сравнивает токены побайтно.
func (v VersionToken) Equal(other VersionToken) bool {
	return len(v) > 0 && bytes.Equal(v, other)
}

// ParseVersionToken декодирует base64-строку клиента.
// Пустая строка считается ошибкой валидации, не-base64 строка возвращает ErrInvalidVersionFormat.
func ParseVersionToken(s string) (VersionToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewValidationError("version", "is required")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVersionFormat, err)
	}
	return VersionToken(raw), nil
}
