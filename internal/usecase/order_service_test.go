package usecase_test

import (
	"testing"
	"time"

	"pharmacy-backend/internal/domain"
	"pharmacy-backend/internal/infrastructure/repo"
	"pharmacy-backend/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls []domain.OrderStatus
}

func (n *fakeNotifier) OrderStatusChanged(o *domain.Order, previous domain.OrderStatus) error {
	n.calls = append(n.calls, o.Status)
	return nil
}

func newOrderService(t *testing.T) (*usecase.OrderService, *repo.MemoryStore, *fakeNotifier) {
	t.Helper()
	store := repo.NewMemoryStore()
	ledger := &usecase.LedgerService{Movements: store, Logger: zerolog.Nop()}
	stock := &usecase.StockService{Products: store, Ledger: ledger, Logger: zerolog.Nop()}
	notifier := &fakeNotifier{}
	svc := &usecase.OrderService{Orders: store, Stock: stock, Notify: notifier, Logger: zerolog.Nop()}
	return svc, store, notifier
}

func TestNewOrderNumberFormat(t *testing.T) {
	n := usecase.NewOrderNumber(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^ORD-2026-\d{6}$`, n)
}

func TestNewOrderCodeFormat(t *testing.T) {
	c := usecase.NewOrderCode(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^ORD-20260830-[0-9a-z]{6}$`, c)
	assert.NotEqual(t, c, usecase.NewOrderCode(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
}

func TestCreateFillsDefaults(t *testing.T) {
	svc, store, _ := newOrderService(t)
	o := &domain.Order{
		CustomerID: "c1",
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 2, Price: 10},
			{ProductID: "p2", Quantity: 1, Price: 5},
		},
		Shipping: 3,
	}
	require.NoError(t, svc.Create(o))

	assert.NotEmpty(t, o.OrderID)
	assert.Regexp(t, `^ORD-\d{4}-\d{6}$`, o.OrderNumber)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Equal(t, domain.FulfillmentUnfulfilled, o.FulfillmentStatus)
	assert.InDelta(t, 20.0, o.Items[0].Total, 1e-9)
	assert.InDelta(t, 25.0, o.Subtotal, 1e-9)
	assert.InDelta(t, 28.0, o.Total, 1e-9)

	saved, ok := store.GetOrder(o.OrderID)
	require.True(t, ok)
	assert.Equal(t, o.OrderNumber, saved.OrderNumber)
}

func TestDeliveredReducesStock(t *testing.T) {
	svc, store, notifier := newOrderService(t)
	seedProduct(t, store, "p1", 5)
	o := &domain.Order{
		CustomerID: "c1",
		Status:     domain.OrderShipped,
		Items:      []domain.OrderItem{{ProductID: "p1", Quantity: 2, Price: 10}},
	}
	require.NoError(t, svc.Create(o))

	updated, outcomes, err := svc.ApplyStatusChange(o.OrderID, domain.OrderDelivered, "admin")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderDelivered, updated.Status)
	assert.Equal(t, domain.FulfillmentFulfilled, updated.FulfillmentStatus)
	require.NotNil(t, updated.DeliveredAt)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].OK)

	p, _ := store.GetProduct("p1")
	assert.Equal(t, 3, p.Stock)

	ms, _ := store.ListMovements("p1", o.OrderID, 10)
	require.Len(t, ms, 1)
	assert.Equal(t, domain.MovementSale, ms[0].Type)
	assert.Equal(t, -2, ms[0].Quantity)

	assert.Equal(t, []domain.OrderStatus{domain.OrderDelivered}, notifier.calls)
}

func TestCancelAfterDeliveryRestoresStock(t *testing.T) {
	svc, store, _ := newOrderService(t)
	seedProduct(t, store, "p1", 5)
	o := &domain.Order{
		CustomerID: "c1",
		Status:     domain.OrderShipped,
		Items:      []domain.OrderItem{{ProductID: "p1", Quantity: 2, Price: 10}},
	}
	require.NoError(t, svc.Create(o))

	_, _, err := svc.ApplyStatusChange(o.OrderID, domain.OrderDelivered, "admin")
	require.NoError(t, err)
	updated, outcomes, err := svc.ApplyStatusChange(o.OrderID, domain.OrderCancelled, "admin")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderCancelled, updated.Status)
	require.NotNil(t, updated.CancelledAt)
	require.Len(t, outcomes, 1)

	p, _ := store.GetProduct("p1")
	assert.Equal(t, 5, p.Stock)

	ms, _ := store.ListMovements("p1", o.OrderID, 10)
	require.Len(t, ms, 2)
	// newest first
	assert.Equal(t, domain.MovementReturn, ms[0].Type)
	assert.Equal(t, 2, ms[0].Quantity)
	assert.Equal(t, "Order cancelled by admin", ms[0].Reason)
}

func TestShippedStampsTimestamp(t *testing.T) {
	svc, _, _ := newOrderService(t)
	o := &domain.Order{CustomerID: "c1", Items: []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: 2}}}
	require.NoError(t, svc.Create(o))

	updated, outcomes, err := svc.ApplyStatusChange(o.OrderID, domain.OrderShipped, "admin")
	require.NoError(t, err)
	require.NotNil(t, updated.ShippedAt)
	assert.Equal(t, domain.FulfillmentPartial, updated.FulfillmentStatus)
	assert.Empty(t, outcomes)
}

func TestInvalidTransitionRejected(t *testing.T) {
	svc, _, _ := newOrderService(t)
	o := &domain.Order{CustomerID: "c1", Items: []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: 2}}}
	require.NoError(t, svc.Create(o))

	_, _, err := svc.ApplyStatusChange(o.OrderID, domain.OrderCancelled, "admin")
	require.NoError(t, err)
	_, _, err = svc.ApplyStatusChange(o.OrderID, domain.OrderPending, "admin")
	assert.ErrorAs(t, err, new(usecase.ErrConflict))
	_, _, err = svc.ApplyStatusChange(o.OrderID, domain.OrderDelivered, "admin")
	assert.ErrorAs(t, err, new(usecase.ErrConflict))
}

func TestSameStatusIsNoOp(t *testing.T) {
	svc, store, notifier := newOrderService(t)
	seedProduct(t, store, "p1", 5)
	o := &domain.Order{CustomerID: "c1", Items: []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: 2}}}
	require.NoError(t, svc.Create(o))

	updated, outcomes, err := svc.ApplyStatusChange(o.OrderID, domain.OrderPending, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, updated.Status)
	assert.Empty(t, outcomes)
	assert.Empty(t, notifier.calls)
}

func TestDeliverySurvivesInventoryFailure(t *testing.T) {
	svc, store, _ := newOrderService(t)
	// p2 is never seeded: its decrement fails, the delivery still lands
	seedProduct(t, store, "p1", 5)
	o := &domain.Order{
		CustomerID: "c1",
		Status:     domain.OrderProcessing,
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 1, Price: 2},
			{ProductID: "p2", Quantity: 1, Price: 3},
		},
	}
	require.NoError(t, svc.Create(o))

	updated, outcomes, err := svc.ApplyStatusChange(o.OrderID, domain.OrderDelivered, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDelivered, updated.Status)
	assert.Equal(t, 1, usecase.FailedCount(outcomes))

	saved, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.OrderDelivered, saved.Status)
}

func TestPatchUpdatesTracking(t *testing.T) {
	svc, _, _ := newOrderService(t)
	o := &domain.Order{CustomerID: "c1", Items: []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: 2}}}
	require.NoError(t, svc.Create(o))

	tn := "TRK123"
	carrier := "dhl"
	updated, err := svc.Patch(o.OrderID, usecase.OrderPatch{TrackingNumber: &tn, Carrier: &carrier})
	require.NoError(t, err)
	assert.Equal(t, "TRK123", updated.TrackingNumber)
	assert.Equal(t, "dhl", updated.Carrier)
}

func TestListWithStats(t *testing.T) {
	svc, _, _ := newOrderService(t)
	for _, total := range []float64{10, 30} {
		o := &domain.Order{
			CustomerID: "c1",
			Items:      []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: total}},
		}
		require.NoError(t, svc.Create(o))
	}

	orders, total, stats, err := svc.List(usecase.OrderQuery{})
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 2, stats.StatusCounts[domain.OrderPending])
	assert.InDelta(t, 40.0, stats.TotalRevenue, 1e-9)
	assert.InDelta(t, 20.0, stats.AverageValue, 1e-9)
}
