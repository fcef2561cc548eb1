package usecase

import (
	"time"

	"pharmacy-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type MovementRepo interface {
	AppendMovement(*domain.InventoryMovement) error
	ListMovements(productID, orderID string, limit int) ([]domain.InventoryMovement, error)
}

// LedgerService appends immutable inventory-movement records. The
// ledger is best-effort observability: a failed append is logged and
// never rolls back the stock mutation that triggered it. The stock
// value on the product record stays authoritative.
type LedgerService struct {
	Movements MovementRepo
	Logger    zerolog.Logger
}

func (s *LedgerService) Record(m *domain.InventoryMovement) *domain.InventoryMovement {
	if m.MovementID == "" {
		m.MovementID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := s.Movements.AppendMovement(m); err != nil {
		s.Logger.Warn().
			Err(err).
			Str("product_id", m.ProductID).
			Str("movement_type", string(m.Type)).
			Int("quantity", m.Quantity).
			Msg("inventory movement not recorded")
	}
	return m
}

func (s *LedgerService) List(productID, orderID string, limit int) ([]domain.InventoryMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Movements.ListMovements(productID, orderID, limit)
}
