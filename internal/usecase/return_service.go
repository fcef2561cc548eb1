package usecase

import (
	"fmt"
	"strings"
	"time"

	"pharmacy-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ReturnRepo interface {
	PutReturn(*domain.OrderReturn) error
	ListReturnsByOrder(orderID string) ([]domain.OrderReturn, error)
}

type ReturnRequest struct {
	Reason         string
	Method         string
	Items          []domain.ReturnItem
	ShippingRefund float64
	ProcessingFee  float64
	Notes          string
	CreatedBy      string
}

type ReturnResult struct {
	Return    *domain.OrderReturn
	Order     *domain.Order
	Movements []domain.InventoryMovement
}

// ComputeRefund is the base refund for a set of returned line items:
// the sum of price*quantity. Shipping refund and processing fee are
// recorded on the return document but never folded into this value.
func ComputeRefund(items []domain.ReturnItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		sum = sum.Add(line)
	}
	f, _ := sum.Float64()
	return f
}

// ClassifyReturn decides whether the parent order counts as fully or
// partially returned. Returning at least the originally ordered
// quantity counts as full.
func ClassifyReturn(orderedQty, returnedQty int) (domain.OrderStatus, domain.PaymentStatus) {
	if returnedQty >= orderedQty {
		return domain.OrderReturned, domain.PaymentRefunded
	}
	return domain.OrderPartiallyReturned, domain.PaymentPartiallyRefunded
}

// NewReturnNumber derives a human-readable return number from the
// current time, e.g. RET-2026-483920.
func NewReturnNumber(now time.Time) string {
	return fmt.Sprintf("RET-%d-%06d", now.Year(), now.UnixMilli()%1000000)
}

// ReturnService creates return documents, restores sellable stock and
// reclassifies the parent order. The order status is written directly
// here, not through the state machine, so the restoration below is the
// only inventory credit for the return.
type ReturnService struct {
	Orders  OrderRepo
	Returns ReturnRepo
	Stock   *StockService
	Logger  zerolog.Logger
}

func (s *ReturnService) Process(orderID string, req ReturnRequest) (*ReturnResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrBadRequest("items required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, ErrBadRequest("return_reason required")
	}
	for _, it := range req.Items {
		if it.ProductID == "" {
			return nil, ErrBadRequest("items[].product_id required")
		}
		if it.Quantity <= 0 {
			return nil, ErrBadRequest("items[].quantity must be positive")
		}
	}
	o, ok := s.Orders.GetOrder(orderID)
	if !ok {
		return nil, ErrNotFound("order")
	}

	now := time.Now().UTC()
	ret := &domain.OrderReturn{
		ReturnID:       uuid.NewString(),
		ReturnNumber:   NewReturnNumber(now),
		OrderID:        o.OrderID,
		Reason:         req.Reason,
		Method:         req.Method,
		Status:         domain.ReturnProcessing,
		Items:          req.Items,
		RefundAmount:   ComputeRefund(req.Items),
		ShippingRefund: req.ShippingRefund,
		ProcessingFee:  req.ProcessingFee,
		Notes:          req.Notes,
		CreatedAt:      now,
	}
	if err := s.Returns.PutReturn(ret); err != nil {
		return nil, err
	}

	ref := MovementRef{
		OrderID:   o.OrderID,
		ReturnID:  ret.ReturnID,
		Reason:    "Return " + ret.ReturnNumber,
		CreatedBy: req.CreatedBy,
	}
	movements := make([]domain.InventoryMovement, 0, len(req.Items))
	for _, it := range req.Items {
		if !it.Condition.Restockable() {
			s.Logger.Info().
				Str("product_id", it.ProductID).
				Int("quantity", it.Quantity).
				Str("return_number", ret.ReturnNumber).
				Msg("damaged units written off, not restocked")
			continue
		}
		m, err := s.Stock.Restore(it.ProductID, it.SKU, it.Quantity, ref)
		if err != nil {
			s.Logger.Warn().
				Err(err).
				Str("product_id", it.ProductID).
				Str("return_number", ret.ReturnNumber).
				Msg("stock restoration failed")
			continue
		}
		movements = append(movements, *m)
	}

	status, payStatus := ClassifyReturn(o.TotalQuantity(), ret.TotalQuantity())
	o.Status = status
	o.PaymentStatus = payStatus
	o.TotalReturnedAmount += ret.RefundAmount
	o.AppendNote(now, fmt.Sprintf("return %s processed, refund %.2f", ret.ReturnNumber, ret.RefundAmount))
	o.UpdatedAt = now
	if err := s.Orders.PutOrder(o); err != nil {
		return nil, err
	}

	ret.Status = domain.ReturnCompleted
	if err := s.Returns.PutReturn(ret); err != nil {
		s.Logger.Warn().Err(err).Str("return_id", ret.ReturnID).Msg("return status not updated")
	}
	return &ReturnResult{Return: ret, Order: o, Movements: movements}, nil
}

func (s *ReturnService) ListByOrder(orderID string) ([]domain.OrderReturn, error) {
	return s.Returns.ListReturnsByOrder(orderID)
}
