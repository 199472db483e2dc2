package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
)

func TestCreateBatch_CommitsAllItems(t *testing.T) {
	f := newFixture(t)

	result, err := f.batch.CreateBatch(context.Background(), []orders.CreateOrderRequest{
		createRequest("cust-1"),
		createRequest("cust-2"),
		createRequest("cust-3"),
	}, testActor)
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	for i, item := range result.Items {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, domain.FormatOrderID(2025, i+1), item.OrderID)
		require.NotNil(t, item.Order)
		assert.Equal(t, domain.OrderStatusNew, item.Order.CurrentStatus)
	}
	assert.Len(t, f.pendingEvents(t), 3)
}

func TestCreateBatch_ShapeErrorRejectsWholeBatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.batch.CreateBatch(context.Background(), []orders.CreateOrderRequest{
		createRequest("cust-1"),
		createRequest("cust-2"),
		createRequest(""),
	}, testActor)
	require.Error(t, err)

	var itemErr *domain.ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 2, itemErr.Index)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	page, err := f.svc.List(context.Background(), orders.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, f.pendingEvents(t))
}

func TestUpdateBatch_StaleItemRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "cust-1")
	b := f.create(t, "cust-1")
	c := f.create(t, "cust-1")

	// Заказ b изменён другим клиентом после чтения.
	_, err := f.svc.Update(context.Background(), nil, b.Order.ID, orders.UpdateOrderRequest{
		Version: b.Order.Version.String(),
		Patch:   domain.OrderPatch{Requirements: strPtr("changed elsewhere")},
	}, "other-actor")
	require.NoError(t, err)
	eventsBefore := len(f.pendingEvents(t))

	patch := domain.OrderPatch{Requirements: strPtr("batch change")}
	_, err = f.batch.UpdateBatch(context.Background(), []orders.BatchUpdateItem{
		{OrderID: a.Order.ID, UpdateOrderRequest: orders.UpdateOrderRequest{Version: a.Order.Version.String(), Patch: patch}},
		{OrderID: b.Order.ID, UpdateOrderRequest: orders.UpdateOrderRequest{Version: b.Order.Version.String(), Patch: patch}},
		{OrderID: c.Order.ID, UpdateOrderRequest: orders.UpdateOrderRequest{Version: c.Order.Version.String(), Patch: patch}},
	}, testActor)
	require.Error(t, err)

	var itemErr *domain.ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.Equal(t, b.Order.ID, itemErr.OrderID)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	gotA, err := f.svc.Get(context.Background(), a.Order.ID)
	require.NoError(t, err)
	assert.True(t, a.Order.Version.Equal(gotA.Order.Version))
	assert.Nil(t, gotA.Order.Requirements)

	gotC, err := f.svc.Get(context.Background(), c.Order.ID)
	require.NoError(t, err)
	assert.True(t, c.Order.Version.Equal(gotC.Order.Version))
	assert.Len(t, f.pendingEvents(t), eventsBefore)
}

func TestUpdateBatch_InvalidVersionFormatReportedBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "cust-1")
	opened := f.store.TransactionsOpened()

	_, err := f.batch.UpdateBatch(context.Background(), []orders.BatchUpdateItem{
		{OrderID: a.Order.ID, UpdateOrderRequest: orders.UpdateOrderRequest{Version: a.Order.Version.String()}},
		{OrderID: a.Order.ID, UpdateOrderRequest: orders.UpdateOrderRequest{Version: "%%%"}},
	}, testActor)

	var itemErr *domain.ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.ErrorIs(t, err, domain.ErrInvalidVersionFormat)
	assert.Equal(t, opened, f.store.TransactionsOpened())
}

func TestUpdateBatch_Commits(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "cust-1")
	b := f.create(t, "cust-1")

	result, err := f.batch.UpdateBatch(context.Background(), []orders.BatchUpdateItem{
		{OrderID: a.Order.ID, UpdateOrderRequest: orders.UpdateOrderRequest{Version: a.Order.Version.String(), Patch: domain.OrderPatch{ManufacturedQuantity: intPtr(2)}}},
		{OrderID: b.Order.ID, UpdateOrderRequest: orders.UpdateOrderRequest{Version: b.Order.Version.String(), Patch: domain.OrderPatch{ManufacturedQuantity: intPtr(3)}}},
	}, testActor)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 8, *result.Items[0].Order.RemainingQuantity())
	assert.Equal(t, 7, *result.Items[1].Order.RemainingQuantity())
	assert.False(t, a.Order.Version.Equal(result.Items[0].Order.Order.Version))
}

func TestCancelBatch_AlreadyCancelledRollsBack(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "cust-1")
	b := f.create(t, "cust-1")
	_, err := f.svc.Cancel(context.Background(), nil, b.Order.ID, orders.CancelRequest{Reason: "customer request"}, testActor)
	require.NoError(t, err)

	_, err = f.batch.CancelBatch(context.Background(), []string{a.Order.ID, b.Order.ID}, orders.CancelRequest{Reason: "bulk close"}, testActor)
	var itemErr *domain.ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	view, err := f.svc.Get(context.Background(), a.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, view.CurrentStatus)
}

func TestCancelBatch_Commits(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "cust-1")
	b := f.create(t, "cust-1")

	result, err := f.batch.CancelBatch(context.Background(), []string{a.Order.ID, b.Order.ID}, orders.CancelRequest{Reason: "bulk close"}, testActor)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	for _, item := range result.Items {
		require.NotNil(t, item.Status)
		assert.Equal(t, domain.OrderStatusCancelled, item.Status.Status)
		assert.Equal(t, "bulk close", *item.Status.InternalNotes)
	}
}

func TestBatch_SizeLimits(t *testing.T) {
	f := newFixture(t)
	small := orders.NewBatchCoordinator(f.svc, orders.WithMaxBatchItems(2))

	_, err := small.CreateBatch(context.Background(), nil, testActor)
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = small.CreateBatch(context.Background(), []orders.CreateOrderRequest{
		createRequest("a"), createRequest("b"), createRequest("c"),
	}, testActor)
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	var itemErr *domain.ItemError
	assert.False(t, errors.As(err, &itemErr))

	_, err = small.CancelBatch(context.Background(), []string{"ORD-2025-00001"}, orders.CancelRequest{Reason: "x"}, "")
	require.ErrorIs(t, err, domain.ErrActorRequired)
}

func TestBatch_NotFoundItem(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "cust-1")

	_, err := f.batch.CancelBatch(context.Background(), []string{a.Order.ID, "ORD-2025-00777"}, orders.CancelRequest{Reason: "cleanup"}, testActor)
	var itemErr *domain.ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.Equal(t, "ORD-2025-00777", itemErr.OrderID)
	assert.True(t, domain.IsNotFound(err))
}
