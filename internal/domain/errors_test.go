package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"not found", fmt.Errorf("load: %w", ErrOrderNotFound), KindNotFound},
		{"version format", ErrInvalidVersionFormat, KindInvalidVersion},
		{"conflict", ErrConcurrencyConflict, KindConflict},
		{"transition", ErrInvalidTransition, KindInvalidTransition},
		{"validation", NewValidationError("customerId", "is required"), KindValidation},
		{"actor", ErrActorRequired, KindUnauthorized},
		{"external", ErrExternalServiceUnavailable, KindServiceUnavailable},
		{"integrity", fmt.Errorf("next id: %w", ErrDataIntegrity), KindDataIntegrity},
		{"id exhausted", ErrOrderIDExhausted, KindDataIntegrity},
		{"unknown", errors.New("boom"), KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestItemError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	err := error(&ItemError{Index: 1, OrderID: "ORD-2025-00002", Err: ErrConcurrencyConflict})

	require.True(t, IsConcurrencyConflict(err))
	var itemErr *ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.Contains(t, err.Error(), "ORD-2025-00002")
}

func TestValidationError_OrNil(t *testing.T) {
	t.Parallel()

	v := &ValidationError{}
	require.NoError(t, v.OrNil())

	v.Add("quantity", "must be greater than zero")
	err := v.OrNil()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Contains(t, err.Error(), "quantity: must be greater than zero")
}
