package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pharmacy-backend/internal/domain"
)

// FSWriter writes report CSVs under the exports directory and returns
// the public URL they are served from.
type FSWriter struct {
	ExportsDir    string
	PublicBaseURL string
}

func NewFSWriter(exportsDir string, publicBaseURL string) *FSWriter {
	return &FSWriter{ExportsDir: exportsDir, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (w *FSWriter) WriteOrdersCSV(orders []domain.Order) (string, error) {
	rows := make([][]string, 0, len(orders)+1)
	rows = append(rows, []string{
		"order_number", "customer_name", "customer_email", "status", "payment_status",
		"fulfillment_status", "total", "total_returned_amount", "created_at",
	})
	for _, o := range orders {
		rows = append(rows, []string{
			o.OrderNumber, o.CustomerName, o.CustomerEmail, string(o.Status), string(o.PaymentStatus),
			string(o.FulfillmentStatus), money(o.Total), money(o.TotalReturnedAmount),
			o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return w.write("orders", rows)
}

func (w *FSWriter) WriteMovementsCSV(movements []domain.InventoryMovement) (string, error) {
	rows := make([][]string, 0, len(movements)+1)
	rows = append(rows, []string{
		"product_id", "sku", "movement_type", "quantity", "stock_before", "stock_after",
		"reason", "order_id", "return_id", "created_by", "created_at",
	})
	for _, m := range movements {
		rows = append(rows, []string{
			m.ProductID, m.SKU, string(m.Type), strconv.Itoa(m.Quantity),
			strconv.Itoa(m.StockBefore), strconv.Itoa(m.StockAfter),
			m.Reason, m.OrderID, m.ReturnID, m.CreatedBy,
			m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return w.write("movements", rows)
}

func (w *FSWriter) write(report string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.ExportsDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.csv", report, time.Now().UTC().Format("20060102_150405"))
	f, err := os.Create(filepath.Join(w.ExportsDir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return "", err
	}
	return w.buildURL("/exports/" + name), nil
}

func (w *FSWriter) buildURL(path string) string {
	if w.PublicBaseURL == "" {
		return path
	}
	return w.PublicBaseURL + path
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
