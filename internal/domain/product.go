package domain

import (
	"encoding/json"
	"time"
)

// Product carries the stock level this core is allowed to mutate.
// Pricing and descriptive fields belong to the catalog and are only
// read here.
type Product struct {
	ProductID string
	Name      string
	SKU       string
	CostPrice float64
	SalePrice float64
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// productDoc is the external shape of a product. The stock level is
// serialized under two field names: "units" is the current one,
// "stockQuantity" survives from the older schema. Both are written on
// save; reads prefer "units" and fall back to "stockQuantity".
type productDoc struct {
	ProductID     string    `json:"product_id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	CostPrice     float64   `json:"cost_price"`
	SalePrice     float64   `json:"sale_price"`
	Units         *int      `json:"units"`
	StockQuantity *int      `json:"stockQuantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	stock := p.Stock
	return json.Marshal(productDoc{
		ProductID:     p.ProductID,
		Name:          p.Name,
		SKU:           p.SKU,
		CostPrice:     p.CostPrice,
		SalePrice:     p.SalePrice,
		Units:         &stock,
		StockQuantity: &stock,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var doc productDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	p.ProductID = doc.ProductID
	p.Name = doc.Name
	p.SKU = doc.SKU
	p.CostPrice = doc.CostPrice
	p.SalePrice = doc.SalePrice
	p.Stock = ResolveStock(doc.Units, doc.StockQuantity)
	p.CreatedAt = doc.CreatedAt
	p.UpdatedAt = doc.UpdatedAt
	return nil
}

// ResolveStock picks the stock level out of the two legacy fields,
// preferring the newer one.
func ResolveStock(units, stockQuantity *int) int {
	if units != nil {
		return *units
	}
	if stockQuantity != nil {
		return *stockQuantity
	}
	return 0
}
