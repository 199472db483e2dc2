package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

const testActor = "employee-42"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock *testClock
	store *memory.Store
	svc   *orders.Service
	batch *orders.BatchCoordinator
}

func newFixture(t *testing.T, opts ...orders.Option) *fixture {
	t.Helper()
	return newFixtureWithClock(t, newTestClock(), opts...)
}

func newFixtureWithClock(t *testing.T, clock *testClock, opts ...orders.Option) *fixture {
	t.Helper()
	store := memory.NewStore(memory.WithClock(clock.Now))
	opts = append([]orders.Option{orders.WithClock(clock.Now)}, opts...)
	svc := orders.NewService(store, opts...)
	return &fixture{
		clock: clock,
		store: store,
		svc:   svc,
		batch: orders.NewBatchCoordinator(svc),
	}
}

func (f *fixture) create(t *testing.T, customer string) orders.OrderView {
	t.Helper()
	view, err := f.svc.Create(context.Background(), nil, createRequest(customer), testActor)
	require.NoError(t, err)
	return view
}

func (f *fixture) pendingEvents(t *testing.T) []domain.OutboxMessage {
	t.Helper()
	msgs, err := f.store.OutboxRepository().PullPending(context.Background(), 100)
	require.NoError(t, err)
	return msgs
}

// seedOrder кладёт заказ в хранилище в обход сервиса.
func (f *fixture) seedOrder(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Orders().Insert(ctx, domain.Order{
		ID:                id,
		CustomerID:        "seeded",
		CustomerType:      domain.CustomerTypeCustomer,
		ServiceCategoryID: 1,
		QuoteCurrency:     domain.DefaultQuoteCurrency,
		PaymentStatus:     domain.PaymentStatusUnpaid,
		CreatedAt:         f.clock.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func createRequest(customer string) orders.CreateOrderRequest {
	return orders.CreateOrderRequest{
		CustomerID:        customer,
		CustomerType:      domain.CustomerTypeCustomer,
		ServiceCategoryID: 1,
		OrderedQuantity:   intPtr(10),
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
