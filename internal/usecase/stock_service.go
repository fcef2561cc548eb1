package usecase

import (
	"sync"
	"time"

	"pharmacy-backend/internal/domain"

	"github.com/rs/zerolog"
)

type ProductRepo interface {
	GetProduct(id string) (*domain.Product, bool)
	PutProduct(*domain.Product) error
}

// MovementRef attributes a stock mutation to its cause.
type MovementRef struct {
	OrderID   string
	ReturnID  string
	Reason    string
	CreatedBy string
}

// ItemOutcome is the per-item result of a batch stock operation.
// Failures are collected instead of aborting the batch.
type ItemOutcome struct {
	ProductID string                    `json:"product_id"`
	Quantity  int                       `json:"quantity"`
	OK        bool                      `json:"ok"`
	Error     string                    `json:"error,omitempty"`
	Movement  *domain.InventoryMovement `json:"-"`
}

// StockService performs the read-modify-write on product stock.
// Mutations on the same product are serialized through a per-product
// mutex so two concurrent requests cannot interleave their read and
// write steps.
type StockService struct {
	Products ProductRepo
	Ledger   *LedgerService
	Logger   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (s *StockService) productLock(productID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	lk, ok := s.locks[productID]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[productID] = lk
	}
	return lk
}

// Reduce decrements product stock for a sale, clamping at zero, and
// records a sale movement with the ordered quantity as negative delta.
func (s *StockService) Reduce(productID, sku string, qty int, ref MovementRef) (*domain.InventoryMovement, error) {
	if qty <= 0 {
		return nil, ErrBadRequest("quantity must be positive")
	}
	return s.mutate(productID, sku, -qty, domain.MovementSale, ref)
}

// Restore adds returned or cancelled units back to stock. No upper
// bound applies.
func (s *StockService) Restore(productID, sku string, qty int, ref MovementRef) (*domain.InventoryMovement, error) {
	if qty <= 0 {
		return nil, ErrBadRequest("quantity must be positive")
	}
	return s.mutate(productID, sku, qty, domain.MovementReturn, ref)
}

func (s *StockService) mutate(productID, sku string, delta int, mt domain.MovementType, ref MovementRef) (*domain.InventoryMovement, error) {
	lk := s.productLock(productID)
	lk.Lock()
	defer lk.Unlock()

	p, ok := s.Products.GetProduct(productID)
	if !ok {
		return nil, ErrNotFound("product " + productID)
	}
	before := p.Stock
	after := before + delta
	if after < 0 {
		after = 0
	}
	p.Stock = after
	p.UpdatedAt = time.Now().UTC()
	if err := s.Products.PutProduct(p); err != nil {
		return nil, err
	}
	if sku == "" {
		sku = p.SKU
	}
	m := s.Ledger.Record(&domain.InventoryMovement{
		ProductID:   productID,
		SKU:         sku,
		Type:        mt,
		Quantity:    delta,
		StockBefore: before,
		StockAfter:  after,
		Reason:      ref.Reason,
		OrderID:     ref.OrderID,
		ReturnID:    ref.ReturnID,
		CreatedBy:   ref.CreatedBy,
	})
	return m, nil
}

// ReduceForItems decrements stock for every line item of a delivered
// order. Per-item errors are logged and collected; the batch never
// aborts.
func (s *StockService) ReduceForItems(items []domain.OrderItem, ref MovementRef) []ItemOutcome {
	out := make([]ItemOutcome, 0, len(items))
	for _, it := range items {
		m, err := s.Reduce(it.ProductID, it.SKU, it.Quantity, ref)
		out = append(out, s.outcome(it.ProductID, it.Quantity, m, err))
	}
	return out
}

// RestoreForItems adds stock back for every line item of a cancelled
// or returned order, with the same non-blocking failure policy.
func (s *StockService) RestoreForItems(items []domain.OrderItem, ref MovementRef) []ItemOutcome {
	out := make([]ItemOutcome, 0, len(items))
	for _, it := range items {
		m, err := s.Restore(it.ProductID, it.SKU, it.Quantity, ref)
		out = append(out, s.outcome(it.ProductID, it.Quantity, m, err))
	}
	return out
}

func (s *StockService) outcome(productID string, qty int, m *domain.InventoryMovement, err error) ItemOutcome {
	if err != nil {
		s.Logger.Warn().
			Err(err).
			Str("product_id", productID).
			Int("quantity", qty).
			Msg("stock update failed")
		return ItemOutcome{ProductID: productID, Quantity: qty, Error: err.Error()}
	}
	return ItemOutcome{ProductID: productID, Quantity: qty, OK: true, Movement: m}
}

// FailedCount counts the failures in a batch outcome list.
func FailedCount(outcomes []ItemOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.OK {
			n++
		}
	}
	return n
}
