package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"pharmacy-backend/internal/domain"
	"pharmacy-backend/internal/usecase"

	_ "github.com/lib/pq"
)

const (
	listRetries  = 3
	retryBackoff = time.Second
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) init() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		order_number TEXT,
		customer_id TEXT,
		customer_name TEXT,
		customer_email TEXT,
		items TEXT,
		subtotal DOUBLE PRECISION,
		shipping DOUBLE PRECISION,
		tax DOUBLE PRECISION,
		discount DOUBLE PRECISION,
		total DOUBLE PRECISION,
		status TEXT,
		payment_status TEXT,
		fulfillment_status TEXT,
		payment_method TEXT,
		tracking_number TEXT,
		carrier TEXT,
		shipping_address TEXT,
		billing_address TEXT,
		notes TEXT,
		total_returned_amount DOUBLE PRECISION,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ,
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ
	);`)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE TABLE IF NOT EXISTS products (
		product_id TEXT PRIMARY KEY,
		name TEXT,
		sku TEXT,
		cost_price DOUBLE PRECISION,
		sale_price DOUBLE PRECISION,
		units INT,
		stock_quantity INT,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);`)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE TABLE IF NOT EXISTS order_returns (
		return_id TEXT PRIMARY KEY,
		return_number TEXT,
		order_id TEXT,
		reason TEXT,
		method TEXT,
		status TEXT,
		items TEXT,
		refund_amount DOUBLE PRECISION,
		shipping_refund DOUBLE PRECISION,
		processing_fee DOUBLE PRECISION,
		notes TEXT,
		created_at TIMESTAMPTZ
	);`)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE TABLE IF NOT EXISTS inventory_movements (
		movement_id TEXT PRIMARY KEY,
		product_id TEXT,
		sku TEXT,
		movement_type TEXT,
		quantity INT,
		stock_before INT,
		stock_after INT,
		reason TEXT,
		order_id TEXT,
		return_id TEXT,
		created_by TEXT,
		created_at TIMESTAMPTZ
	);`)
	return err
}

// isTimeout recognizes connection-timeout-class errors, the only kind
// list queries are retried on.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

func (r *PostgresRepo) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < listRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}
		if err = op(); err == nil {
			return nil
		}
		if !isTimeout(err) {
			return err
		}
	}
	return err
}

func (r *PostgresRepo) PutOrder(o *domain.Order) error {
	items, _ := json.Marshal(o.Items)
	_, err := r.db.Exec(`INSERT INTO orders (order_id,order_number,customer_id,customer_name,customer_email,items,
			subtotal,shipping,tax,discount,total,status,payment_status,fulfillment_status,payment_method,
			tracking_number,carrier,shipping_address,billing_address,notes,total_returned_amount,
			created_at,updated_at,shipped_at,delivered_at,cancelled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		ON CONFLICT (order_id) DO UPDATE SET order_number=$2,customer_id=$3,customer_name=$4,customer_email=$5,items=$6,
			subtotal=$7,shipping=$8,tax=$9,discount=$10,total=$11,status=$12,payment_status=$13,fulfillment_status=$14,
			payment_method=$15,tracking_number=$16,carrier=$17,shipping_address=$18,billing_address=$19,notes=$20,
			total_returned_amount=$21,updated_at=$23,shipped_at=$24,delivered_at=$25,cancelled_at=$26`,
		o.OrderID, o.OrderNumber, o.CustomerID, o.CustomerName, o.CustomerEmail, string(items),
		o.Subtotal, o.Shipping, o.Tax, o.Discount, o.Total, string(o.Status), string(o.PaymentStatus), string(o.FulfillmentStatus), o.PaymentMethod,
		o.TrackingNumber, o.Carrier, o.ShippingAddress, o.BillingAddress, o.Notes, o.TotalReturnedAmount,
		o.CreatedAt, o.UpdatedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt)
	return err
}

const orderColumns = `order_id,order_number,customer_id,customer_name,customer_email,items,
	subtotal,shipping,tax,discount,total,status,payment_status,fulfillment_status,payment_method,
	tracking_number,carrier,shipping_address,billing_address,notes,total_returned_amount,
	created_at,updated_at,shipped_at,delivered_at,cancelled_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	var items string
	err := row.Scan(&o.OrderID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &items,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Discount, &o.Total,
		(*string)(&o.Status), (*string)(&o.PaymentStatus), (*string)(&o.FulfillmentStatus), &o.PaymentMethod,
		&o.TrackingNumber, &o.Carrier, &o.ShippingAddress, &o.BillingAddress, &o.Notes, &o.TotalReturnedAmount,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(items), &o.Items)
	return &o, nil
}

func (r *PostgresRepo) GetOrder(id string) (*domain.Order, bool) {
	o, err := scanOrder(r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, id))
	if err != nil {
		return nil, false
	}
	return o, true
}

func (r *PostgresRepo) DeleteOrder(id string) error {
	_, err := r.db.Exec(`DELETE FROM orders WHERE order_id=$1`, id)
	return err
}

func (r *PostgresRepo) ListOrders(q usecase.OrderQuery) ([]domain.Order, int, error) {
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Search != "" {
		p := arg("%" + q.Search + "%")
		where = append(where, fmt.Sprintf("(order_number ILIKE %s OR customer_name ILIKE %s OR customer_email ILIKE %s)", p, p, p))
	}
	if q.Status != "" {
		where = append(where, "status="+arg(q.Status))
	}
	if q.PaymentStatus != "" {
		where = append(where, "payment_status="+arg(q.PaymentStatus))
	}
	if q.FulfillmentStatus != "" {
		where = append(where, "fulfillment_status="+arg(q.FulfillmentStatus))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}
	countArgs := make([]any, len(args))
	copy(countArgs, args)
	countCond := cond
	query := `SELECT ` + orderColumns + ` FROM orders` + cond +
		` ORDER BY created_at DESC LIMIT ` + arg(q.Limit) + ` OFFSET ` + arg(q.Offset)

	var out []domain.Order
	var total int
	err := r.withRetry(func() error {
		out = out[:0]
		rows, err := r.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			out = append(out, *o)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return r.db.QueryRow(`SELECT COUNT(1) FROM orders`+countCond, countArgs...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) OrderStats() (*domain.OrderStats, error) {
	stats := &domain.OrderStats{StatusCounts: map[domain.OrderStatus]int{}}
	err := r.withRetry(func() error {
		stats.TotalOrders = 0
		stats.StatusCounts = map[domain.OrderStatus]int{}
		rows, err := r.db.Query(`SELECT status, COUNT(1) FROM orders GROUP BY status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var st string
			var n int
			if err := rows.Scan(&st, &n); err != nil {
				return err
			}
			stats.StatusCounts[domain.OrderStatus(st)] = n
			stats.TotalOrders += n
		}
		if err := rows.Err(); err != nil {
			return err
		}
		var revenue, avg sql.NullFloat64
		if err := r.db.QueryRow(`SELECT COALESCE(SUM(total),0), COALESCE(AVG(total),0) FROM orders`).Scan(&revenue, &avg); err != nil {
			return err
		}
		stats.TotalRevenue = revenue.Float64
		stats.AverageValue = avg.Float64
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *PostgresRepo) GetProduct(id string) (*domain.Product, bool) {
	var p domain.Product
	var units, stockQty sql.NullInt64
	err := r.db.QueryRow(`SELECT product_id,name,sku,cost_price,sale_price,units,stock_quantity,created_at,updated_at
		FROM products WHERE product_id=$1`, id).
		Scan(&p.ProductID, &p.Name, &p.SKU, &p.CostPrice, &p.SalePrice, &units, &stockQty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, false
	}
	var u, sq *int
	if units.Valid {
		v := int(units.Int64)
		u = &v
	}
	if stockQty.Valid {
		v := int(stockQty.Int64)
		sq = &v
	}
	p.Stock = domain.ResolveStock(u, sq)
	return &p, true
}

// PutProduct writes the stock level under both legacy column names to
// keep them consistent.
func (r *PostgresRepo) PutProduct(p *domain.Product) error {
	_, err := r.db.Exec(`INSERT INTO products (product_id,name,sku,cost_price,sale_price,units,stock_quantity,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6,$7,$8)
		ON CONFLICT (product_id) DO UPDATE SET name=$2,sku=$3,cost_price=$4,sale_price=$5,units=$6,stock_quantity=$6,updated_at=$8`,
		p.ProductID, p.Name, p.SKU, p.CostPrice, p.SalePrice, p.Stock, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PostgresRepo) PutReturn(ret *domain.OrderReturn) error {
	items, _ := json.Marshal(ret.Items)
	_, err := r.db.Exec(`INSERT INTO order_returns (return_id,return_number,order_id,reason,method,status,items,
			refund_amount,shipping_refund,processing_fee,notes,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (return_id) DO UPDATE SET status=$6`,
		ret.ReturnID, ret.ReturnNumber, ret.OrderID, ret.Reason, ret.Method, string(ret.Status), string(items),
		ret.RefundAmount, ret.ShippingRefund, ret.ProcessingFee, ret.Notes, ret.CreatedAt)
	return err
}

func (r *PostgresRepo) ListReturnsByOrder(orderID string) ([]domain.OrderReturn, error) {
	rows, err := r.db.Query(`SELECT return_id,return_number,order_id,reason,method,status,items,
			refund_amount,shipping_refund,processing_fee,notes,created_at
		FROM order_returns WHERE order_id=$1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.OrderReturn
	for rows.Next() {
		var ret domain.OrderReturn
		var items string
		if err := rows.Scan(&ret.ReturnID, &ret.ReturnNumber, &ret.OrderID, &ret.Reason, &ret.Method, (*string)(&ret.Status), &items,
			&ret.RefundAmount, &ret.ShippingRefund, &ret.ProcessingFee, &ret.Notes, &ret.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(items), &ret.Items)
		out = append(out, ret)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AppendMovement(m *domain.InventoryMovement) error {
	_, err := r.db.Exec(`INSERT INTO inventory_movements (movement_id,product_id,sku,movement_type,quantity,
			stock_before,stock_after,reason,order_id,return_id,created_by,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.MovementID, m.ProductID, m.SKU, string(m.Type), m.Quantity,
		m.StockBefore, m.StockAfter, m.Reason, m.OrderID, m.ReturnID, m.CreatedBy, m.CreatedAt)
	return err
}

func (r *PostgresRepo) ListMovements(productID, orderID string, limit int) ([]domain.InventoryMovement, error) {
	where := []string{}
	args := []any{}
	if productID != "" {
		args = append(args, productID)
		where = append(where, fmt.Sprintf("product_id=$%d", len(args)))
	}
	if orderID != "" {
		args = append(args, orderID)
		where = append(where, fmt.Sprintf("order_id=$%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	rows, err := r.db.Query(`SELECT movement_id,product_id,sku,movement_type,quantity,stock_before,stock_after,
			reason,order_id,return_id,created_by,created_at
		FROM inventory_movements`+cond+fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.InventoryMovement
	for rows.Next() {
		var m domain.InventoryMovement
		if err := rows.Scan(&m.MovementID, &m.ProductID, &m.SKU, (*string)(&m.Type), &m.Quantity, &m.StockBefore, &m.StockAfter,
			&m.Reason, &m.OrderID, &m.ReturnID, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
