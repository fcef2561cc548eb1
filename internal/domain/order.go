package domain

import "time"

type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderProcessing        OrderStatus = "processing"
	OrderShipped           OrderStatus = "shipped"
	OrderDelivered         OrderStatus = "delivered"
	OrderCancelled         OrderStatus = "cancelled"
	OrderReturned          OrderStatus = "returned"
	OrderPartiallyReturned OrderStatus = "partially_returned"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentPartial     FulfillmentStatus = "partial"
	FulfillmentFulfilled   FulfillmentStatus = "fulfilled"
)

// OrderItem is embedded in the order document. Total is fixed at
// creation time as Quantity*Price and never recomputed afterwards.
type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}

type Order struct {
	OrderID             string            `json:"order_id"`
	OrderNumber         string            `json:"order_number"`
	CustomerID          string            `json:"customer_id"`
	CustomerName        string            `json:"customer_name"`
	CustomerEmail       string            `json:"customer_email"`
	Items               []OrderItem       `json:"items"`
	Subtotal            float64           `json:"subtotal"`
	Shipping            float64           `json:"shipping"`
	Tax                 float64           `json:"tax"`
	Discount            float64           `json:"discount"`
	Total               float64           `json:"total"`
	Status              OrderStatus       `json:"status"`
	PaymentStatus       PaymentStatus     `json:"payment_status"`
	FulfillmentStatus   FulfillmentStatus `json:"fulfillment_status"`
	PaymentMethod       string            `json:"payment_method"`
	TrackingNumber      string            `json:"tracking_number,omitempty"`
	Carrier             string            `json:"carrier,omitempty"`
	ShippingAddress     string            `json:"shipping_address,omitempty"`
	BillingAddress      string            `json:"billing_address,omitempty"`
	Notes               string            `json:"notes,omitempty"`
	TotalReturnedAmount float64           `json:"total_returned_amount"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	ShippedAt           *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt         *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt         *time.Time        `json:"cancelled_at,omitempty"`
}

// TotalQuantity sums the ordered units across all line items.
func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// AppendNote adds one line to the free-text notes log.
func (o *Order) AppendNote(at time.Time, note string) {
	line := at.UTC().Format(time.RFC3339) + " " + note
	if o.Notes == "" {
		o.Notes = line
		return
	}
	o.Notes += "\n" + line
}

// OrderStats is the aggregate block returned alongside order lists.
type OrderStats struct {
	TotalOrders  int                 `json:"total_orders"`
	StatusCounts map[OrderStatus]int `json:"status_counts"`
	TotalRevenue float64             `json:"total_revenue"`
	AverageValue float64             `json:"average_order_value"`
}
