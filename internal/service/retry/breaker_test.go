package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Minute, nil)
	cb.now = func() time.Time { return now }

	fail := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := cb.Execute("lookup", func() error { return fail }, nil)
		require.ErrorIs(t, err, fail)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	err := cb.Execute("lookup", func() error { calls++; return nil }, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)

	now = now.Add(2 * time.Minute)
	err = cb.Execute("lookup", func() error { calls++; return nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_IgnoresUncountableErrors(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, nil)
	notFound := errors.New("not found")

	err := cb.Execute("lookup", func() error { return notFound }, func(error) bool { return false })
	require.ErrorIs(t, err, notFound)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	var cb *CircuitBreaker
	calls := 0
	require.NoError(t, cb.Execute("x", func() error { calls++; return nil }, nil))
	assert.Equal(t, 1, calls)
}
