package repo

import (
	"sort"
	"strings"
	"sync"

	"pharmacy-backend/internal/domain"
	"pharmacy-backend/internal/usecase"
)

// MemoryStore backs all repos with in-process maps. It is the store
// used when no DATABASE_URL is configured, and by tests.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	products  map[string]*domain.Product
	returns   map[string]*domain.OrderReturn
	movements []domain.InventoryMovement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*domain.Order),
		products: make(map[string]*domain.Product),
		returns:  make(map[string]*domain.OrderReturn),
	}
}

func (r *MemoryStore) PutOrder(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.OrderID] = &cp
	return nil
}

func (r *MemoryStore) GetOrder(id string) (*domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

func (r *MemoryStore) DeleteOrder(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
	return nil
}

func matchesQuery(o *domain.Order, q usecase.OrderQuery) bool {
	if q.Status != "" && string(o.Status) != q.Status {
		return false
	}
	if q.PaymentStatus != "" && string(o.PaymentStatus) != q.PaymentStatus {
		return false
	}
	if q.FulfillmentStatus != "" && string(o.FulfillmentStatus) != q.FulfillmentStatus {
		return false
	}
	if q.Search != "" {
		s := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(o.OrderNumber), s) &&
			!strings.Contains(strings.ToLower(o.CustomerName), s) &&
			!strings.Contains(strings.ToLower(o.CustomerEmail), s) {
			return false
		}
	}
	return true
}

func (r *MemoryStore) ListOrders(q usecase.OrderQuery) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if matchesQuery(o, q) {
			all = append(all, *o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryStore) OrderStats() (*domain.OrderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &domain.OrderStats{StatusCounts: map[domain.OrderStatus]int{}}
	for _, o := range r.orders {
		stats.TotalOrders++
		stats.StatusCounts[o.Status]++
		stats.TotalRevenue += o.Total
	}
	if stats.TotalOrders > 0 {
		stats.AverageValue = stats.TotalRevenue / float64(stats.TotalOrders)
	}
	return stats, nil
}

func (r *MemoryStore) PutProduct(p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ProductID] = &cp
	return nil
}

func (r *MemoryStore) GetProduct(id string) (*domain.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (r *MemoryStore) PutReturn(ret *domain.OrderReturn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ret
	r.returns[ret.ReturnID] = &cp
	return nil
}

func (r *MemoryStore) ListReturnsByOrder(orderID string) ([]domain.OrderReturn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.OrderReturn
	for _, ret := range r.returns {
		if ret.OrderID == orderID {
			out = append(out, *ret)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryStore) AppendMovement(m *domain.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *MemoryStore) ListMovements(productID, orderID string, limit int) ([]domain.InventoryMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.InventoryMovement
	for i := len(r.movements) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.movements[i]
		if productID != "" && m.ProductID != productID {
			continue
		}
		if orderID != "" && m.OrderID != orderID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
