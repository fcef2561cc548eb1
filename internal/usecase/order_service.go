package usecase

import (
	"crypto/rand"
	"fmt"
	"time"

	"pharmacy-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type OrderQuery struct {
	Search            string
	Status            string
	PaymentStatus     string
	FulfillmentStatus string
	Limit             int
	Offset            int
}

type OrderRepo interface {
	PutOrder(*domain.Order) error
	GetOrder(id string) (*domain.Order, bool)
	DeleteOrder(id string) error
	ListOrders(q OrderQuery) ([]domain.Order, int, error)
	OrderStats() (*domain.OrderStats, error)
}

type Notifier interface {
	OrderStatusChanged(o *domain.Order, previous domain.OrderStatus) error
}

// transitions is the allowed-transition table for order status. The
// terminal states cancelled and returned accept nothing further;
// partially_returned can still become returned via a follow-up return,
// and a delivered order can still be cancelled (stock goes back).
var transitions = map[domain.OrderStatus]map[domain.OrderStatus]bool{
	domain.OrderPending: {
		domain.OrderProcessing: true,
		domain.OrderShipped:    true,
		domain.OrderCancelled:  true,
	},
	domain.OrderProcessing: {
		domain.OrderShipped:   true,
		domain.OrderDelivered: true,
		domain.OrderCancelled: true,
	},
	domain.OrderShipped: {
		domain.OrderDelivered: true,
		domain.OrderCancelled: true,
		domain.OrderReturned:  true,
	},
	domain.OrderDelivered: {
		domain.OrderCancelled:         true,
		domain.OrderReturned:          true,
		domain.OrderPartiallyReturned: true,
	},
	domain.OrderPartiallyReturned: {
		domain.OrderReturned: true,
	},
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to domain.OrderStatus) bool {
	return transitions[from][to]
}

// ValidStatus reports whether the value is a known order status.
func ValidStatus(s domain.OrderStatus) bool {
	switch s {
	case domain.OrderPending, domain.OrderProcessing, domain.OrderShipped,
		domain.OrderDelivered, domain.OrderCancelled, domain.OrderReturned,
		domain.OrderPartiallyReturned:
		return true
	}
	return false
}

// NewOrderNumber derives the admin-facing order number from the
// current time: ORD-{year}-{6 digits from the epoch-ms counter}.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%06d", now.Year(), now.UnixMilli()%1000000)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewOrderCode is the checkout-facing order code:
// ORD-{yyyymmdd}-{6 random base36 chars}.
func NewOrderCode(now time.Time) string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = base36[int(b[i])%len(base36)]
	}
	return "ORD-" + now.Format("20060102") + "-" + string(b)
}

// OrderService owns order creation and the status state machine.
// Status transitions stamp timestamps and trigger stock side effects;
// side-effect failures are logged and never fail the transition.
type OrderService struct {
	Orders OrderRepo
	Stock  *StockService
	Notify Notifier
	Logger zerolog.Logger
}

// Create fills in identifiers, defaults and line totals, then persists
// the order in its initial state.
func (s *OrderService) Create(o *domain.Order) error {
	now := time.Now().UTC()
	if o.OrderID == "" {
		o.OrderID = uuid.NewString()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber(now)
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = domain.PaymentPending
	}
	if o.FulfillmentStatus == "" {
		o.FulfillmentStatus = domain.FulfillmentUnfulfilled
	}
	subtotal := 0.0
	for i := range o.Items {
		it := &o.Items[i]
		if it.Total == 0 {
			it.Total = float64(it.Quantity) * it.Price
		}
		subtotal += it.Total
	}
	if o.Subtotal == 0 {
		o.Subtotal = subtotal
	}
	if o.Total == 0 {
		o.Total = o.Subtotal + o.Shipping + o.Tax - o.Discount
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return s.Orders.PutOrder(o)
}

// ApplyStatusChange moves an order to the target status. The order
// update is persisted first; inventory effects run afterwards so a
// partial inventory failure still leaves the order in its new status.
// The per-item outcomes are returned for logging and diagnostics.
func (s *OrderService) ApplyStatusChange(orderID string, next domain.OrderStatus, actor string) (*domain.Order, []ItemOutcome, error) {
	o, ok := s.Orders.GetOrder(orderID)
	if !ok {
		return nil, nil, ErrNotFound("order")
	}
	if o.Status == next {
		return o, nil, nil
	}
	if !CanTransition(o.Status, next) {
		return nil, nil, ErrConflict(fmt.Sprintf("cannot transition order from %s to %s", o.Status, next))
	}

	now := time.Now().UTC()
	prev := o.Status
	switch next {
	case domain.OrderShipped:
		o.ShippedAt = &now
		if o.FulfillmentStatus == domain.FulfillmentUnfulfilled {
			o.FulfillmentStatus = domain.FulfillmentPartial
		}
	case domain.OrderDelivered:
		o.DeliveredAt = &now
		o.FulfillmentStatus = domain.FulfillmentFulfilled
	case domain.OrderCancelled:
		o.CancelledAt = &now
	}
	o.Status = next
	o.UpdatedAt = now
	if err := s.Orders.PutOrder(o); err != nil {
		return nil, nil, err
	}

	var outcomes []ItemOutcome
	switch next {
	case domain.OrderDelivered:
		outcomes = s.Stock.ReduceForItems(o.Items, MovementRef{
			OrderID:   o.OrderID,
			Reason:    "Order " + o.OrderNumber + " delivered",
			CreatedBy: actor,
		})
	case domain.OrderCancelled:
		outcomes = s.Stock.RestoreForItems(o.Items, MovementRef{
			OrderID:   o.OrderID,
			Reason:    "Order cancelled by admin",
			CreatedBy: actor,
		})
	case domain.OrderReturned:
		outcomes = s.Stock.RestoreForItems(o.Items, MovementRef{
			OrderID:   o.OrderID,
			Reason:    "Order " + o.OrderNumber + " returned",
			CreatedBy: actor,
		})
	}
	if n := FailedCount(outcomes); n > 0 {
		s.Logger.Warn().
			Str("order_id", o.OrderID).
			Str("status", string(next)).
			Int("failed_items", n).
			Msg("inventory reconciliation incomplete")
	}

	if s.Notify != nil {
		if err := s.Notify.OrderStatusChanged(o, prev); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", o.OrderID).Msg("status notification failed")
		}
	}
	return o, outcomes, nil
}

// OrderPatch carries the plain field updates of a PATCH request. Nil
// fields are left untouched.
type OrderPatch struct {
	PaymentStatus     *string
	FulfillmentStatus *string
	TrackingNumber    *string
	Carrier           *string
	Notes             *string
}

// Patch applies plain field updates outside the state machine.
func (s *OrderService) Patch(orderID string, patch OrderPatch) (*domain.Order, error) {
	o, ok := s.Orders.GetOrder(orderID)
	if !ok {
		return nil, ErrNotFound("order")
	}
	changed := false
	if patch.PaymentStatus != nil {
		o.PaymentStatus = domain.PaymentStatus(*patch.PaymentStatus)
		changed = true
	}
	if patch.FulfillmentStatus != nil {
		o.FulfillmentStatus = domain.FulfillmentStatus(*patch.FulfillmentStatus)
		changed = true
	}
	if patch.TrackingNumber != nil {
		o.TrackingNumber = *patch.TrackingNumber
		changed = true
	}
	if patch.Carrier != nil {
		o.Carrier = *patch.Carrier
		changed = true
	}
	if patch.Notes != nil {
		o.AppendNote(time.Now().UTC(), *patch.Notes)
		changed = true
	}
	if !changed {
		return o, nil
	}
	o.UpdatedAt = time.Now().UTC()
	if err := s.Orders.PutOrder(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) Get(orderID string) (*domain.Order, error) {
	o, ok := s.Orders.GetOrder(orderID)
	if !ok {
		return nil, ErrNotFound("order")
	}
	return o, nil
}

func (s *OrderService) Delete(orderID string) error {
	if _, ok := s.Orders.GetOrder(orderID); !ok {
		return ErrNotFound("order")
	}
	return s.Orders.DeleteOrder(orderID)
}

func (s *OrderService) List(q OrderQuery) ([]domain.Order, int, *domain.OrderStats, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	orders, total, err := s.Orders.ListOrders(q)
	if err != nil {
		return nil, 0, nil, err
	}
	stats, err := s.Orders.OrderStats()
	if err != nil {
		return nil, 0, nil, err
	}
	return orders, total, stats, nil
}
