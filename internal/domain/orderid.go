package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	orderIDPrefix = "ORD"
	// OrderSequenceWidth число цифр порядкового номера в идентификаторе.
	OrderSequenceWidth = 5
	// MaxOrderSequence максимальный порядковый номер за год.
	MaxOrderSequence = 99999
)

// OrderIDPrefix возвращает префикс идентификаторов года: "ORD-2025-".
func OrderIDPrefix(year int) string {
	return fmt.Sprintf("%s-%04d-", orderIDPrefix, year)
}

// FormatOrderID собирает идентификатор вида ORD-YYYY-NNNNN.
func FormatOrderID(year, seq int) string {
	return fmt.Sprintf("%s%0*d", OrderIDPrefix(year), OrderSequenceWidth, seq)
}

// ParseOrderSequence извлекает порядковый номер из идентификатора заданного года.
// Неразборчивый суффикс означает повреждённые данные и возвращает ErrDataIntegrity.
func ParseOrderSequence(orderID string, year int) (int, error) {
	prefix := OrderIDPrefix(year)
	if !strings.HasPrefix(orderID, prefix) {
		return 0, fmt.Errorf("%w: order id %q does not match prefix %q", ErrDataIntegrity, orderID, prefix)
	}
	suffix := strings.TrimPrefix(orderID, prefix)
	if len(suffix) != OrderSequenceWidth {
		return 0, fmt.Errorf("%w: order id %q has malformed sequence", ErrDataIntegrity, orderID)
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: order id %q has malformed sequence", ErrDataIntegrity, orderID)
		}
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 1 {
		return 0, fmt.Errorf("%w: order id %q has malformed sequence", ErrDataIntegrity, orderID)
	}
	return seq, nil
}
