package domain

import "time"

// ReturnCondition classifies the quality of a returned unit and
// decides whether it re-enters sellable stock.
type ReturnCondition string

const (
	ConditionNew     ReturnCondition = "new"
	ConditionUsed    ReturnCondition = "used"
	ConditionDamaged ReturnCondition = "damaged"
)

// Restockable reports whether units in this condition go back to
// sellable stock. Damaged units are written off.
func (c ReturnCondition) Restockable() bool {
	return c == ConditionNew || c == ConditionUsed
}

type ReturnStatus string

const (
	ReturnProcessing ReturnStatus = "processing"
	ReturnCompleted  ReturnStatus = "completed"
)

type ReturnItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	Price       float64         `json:"price"`
	Condition   ReturnCondition `json:"condition"`
}

// OrderReturn is created once per return request and never mutated
// afterwards apart from its status.
type OrderReturn struct {
	ReturnID       string       `json:"return_id"`
	ReturnNumber   string       `json:"return_number"`
	OrderID        string       `json:"order_id"`
	Reason         string       `json:"reason"`
	Method         string       `json:"method,omitempty"`
	Status         ReturnStatus `json:"status"`
	Items          []ReturnItem `json:"items"`
	RefundAmount   float64      `json:"total_refund_amount"`
	ShippingRefund float64      `json:"shipping_refund"`
	ProcessingFee  float64      `json:"processing_fee"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TotalQuantity sums the returned units across all return items.
func (r *OrderReturn) TotalQuantity() int {
	n := 0
	for _, it := range r.Items {
		n += it.Quantity
	}
	return n
}
