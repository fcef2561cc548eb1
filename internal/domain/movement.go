package domain

import "time"

type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementReturn     MovementType = "return"
	MovementAdjustment MovementType = "adjustment"
	MovementReserved   MovementType = "reserved"
	MovementUnreserved MovementType = "unreserved"
)

// InventoryMovement is one append-only audit record per stock change.
// Quantity is the signed delta requested by the caller; StockBefore
// and StockAfter snapshot the actual product stock around the write
// (they differ from Quantity when the reduction clamped at zero).
type InventoryMovement struct {
	MovementID  string       `json:"movement_id"`
	ProductID   string       `json:"product_id"`
	SKU         string       `json:"sku"`
	Type        MovementType `json:"movement_type"`
	Quantity    int          `json:"quantity"`
	StockBefore int          `json:"stock_before"`
	StockAfter  int          `json:"stock_after"`
	Reason      string       `json:"reason"`
	OrderID     string       `json:"order_id,omitempty"`
	ReturnID    string       `json:"return_id,omitempty"`
	CreatedBy   string       `json:"created_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
