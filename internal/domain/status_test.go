package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestParseOrderStatus(t *testing.T) {
	t.Parallel()

	status, err := domain.ParseOrderStatus("poissued")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPOIssued, status)

	_, err = domain.ParseOrderStatus("Teleported")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
}

func TestAllStatuses_ClosedSet(t *testing.T) {
	t.Parallel()

	statuses := domain.AllStatuses()
	require.Len(t, statuses, 16)
	for _, s := range statuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, domain.OrderStatus("Shipping").Valid())
}

func TestStatusEntryLater_TieBreaksByID(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := domain.StatusEntry{ID: 1, Timestamp: ts}
	second := domain.StatusEntry{ID: 2, Timestamp: ts}
	older := domain.StatusEntry{ID: 3, Timestamp: ts.Add(-time.Second)}

	assert.True(t, second.Later(first))
	assert.False(t, first.Later(second))
	assert.True(t, first.Later(older))
}
