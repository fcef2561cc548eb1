package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharmacy-backend/internal/config"
	"pharmacy-backend/internal/domain"
	"pharmacy-backend/internal/infrastructure/export"
	"pharmacy-backend/internal/infrastructure/repo"
	"pharmacy-backend/internal/server"
	"pharmacy-backend/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (http.Handler, *repo.MemoryStore) {
	t.Helper()
	store := repo.NewMemoryStore()
	log := zerolog.Nop()
	ledger := &usecase.LedgerService{Movements: store, Logger: log}
	stock := &usecase.StockService{Products: store, Ledger: ledger, Logger: log}
	orders := &usecase.OrderService{Orders: store, Stock: stock, Logger: log}
	returns := &usecase.ReturnService{Orders: store, Returns: store, Stock: stock, Logger: log}
	cfg := config.Config{Env: "dev", ExportsDir: t.TempDir()}
	srv := server.New(cfg, log, orders, returns, ledger, export.NewFSWriter(cfg.ExportsDir, ""))
	return srv.Handler(), store
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateOrderValidation(t *testing.T) {
	h, _ := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/admin/orders", map[string]any{
		"items": []map[string]any{{"product_id": "p1", "quantity": 1, "price": 2.0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "customer_id required")

	w = doJSON(t, h, http.MethodPost, "/api/admin/orders", map[string]any{"customer_id": "c1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "items required")
}

func TestCreateAndFetchOrder(t *testing.T) {
	h, _ := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/admin/orders", map[string]any{
		"customer_id":   "c1",
		"customer_name": "Jane Roe",
		"items": []map[string]any{
			{"product_id": "p1", "product_name": "Aspirin", "quantity": 2, "price": 4.5},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)["order"].(map[string]any)
	assert.Regexp(t, `^ORD-\d{4}-\d{6}$`, created["order_number"])
	assert.Equal(t, "pending", created["status"])

	id := created["order_id"].(string)
	w = doJSON(t, h, http.MethodGet, "/api/admin/orders?orderId="+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decode(t, w)["order"].(map[string]any)
	assert.Equal(t, id, fetched["order_id"])

	w = doJSON(t, h, http.MethodGet, "/api/admin/orders?orderId=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrdersWithStats(t *testing.T) {
	h, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		w := doJSON(t, h, http.MethodPost, "/api/admin/orders", map[string]any{
			"customer_id": "c1",
			"items":       []map[string]any{{"product_id": "p1", "quantity": 1, "price": 10.0}},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, h, http.MethodGet, "/api/admin/orders?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Len(t, out["orders"], 2)
	assert.EqualValues(t, 3, out["total"])
	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["total_orders"])
}

func TestStatusUpdateAndInvalidTransition(t *testing.T) {
	h, store := newTestServer(t)
	require.NoError(t, store.PutProduct(&domain.Product{ProductID: "p1", SKU: "SKU-1", Stock: 5}))

	w := doJSON(t, h, http.MethodPost, "/api/admin/orders", map[string]any{
		"customer_id": "c1",
		"items":       []map[string]any{{"product_id": "p1", "quantity": 2, "price": 4.0}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["order"].(map[string]any)["order_id"].(string)

	w = doJSON(t, h, http.MethodPatch, "/api/admin/orders?orderId="+id, map[string]any{"status": "processing"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPatch, "/api/admin/orders?orderId="+id, map[string]any{"status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code)
	order := decode(t, w)["order"].(map[string]any)
	assert.Equal(t, "delivered", order["status"])
	assert.NotNil(t, order["delivered_at"])

	p, _ := store.GetProduct("p1")
	assert.Equal(t, 3, p.Stock)

	w = doJSON(t, h, http.MethodPatch, "/api/admin/orders?orderId="+id, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, h, http.MethodPatch, "/api/admin/orders?orderId="+id, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessReturn(t *testing.T) {
	h, store := newTestServer(t)
	require.NoError(t, store.PutProduct(&domain.Product{ProductID: "p1", SKU: "SKU-1", Stock: 5}))
	now := time.Now().UTC()
	require.NoError(t, store.PutOrder(&domain.Order{
		OrderID:       "o1",
		OrderNumber:   "ORD-2026-000001",
		CustomerID:    "c1",
		Items:         []domain.OrderItem{{ProductID: "p1", Quantity: 2, Price: 10, Total: 20}},
		Status:        domain.OrderDelivered,
		PaymentStatus: domain.PaymentPaid,
		Total:         20,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	w := doJSON(t, h, http.MethodPatch, "/api/admin/orders?orderId=o1&action=process_return", map[string]any{
		"return_reason": "expired on arrival",
		"return_method": "pickup",
		"items": []map[string]any{
			{"product_id": "p1", "quantity": 1, "price": 10.0, "condition": "new"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)

	ret := out["return"].(map[string]any)
	assert.Regexp(t, `^RET-\d{4}-\d{6}$`, ret["return_number"])
	assert.EqualValues(t, 10, ret["total_refund_amount"])

	order := out["order"].(map[string]any)
	assert.Equal(t, "partially_returned", order["status"])
	assert.Equal(t, "partially_refunded", order["payment_status"])

	movements := out["inventory_movements"].([]any)
	require.Len(t, movements, 1)

	p, _ := store.GetProduct("p1")
	assert.Equal(t, 6, p.Stock)

	// the return shows up on subsequent order fetches
	w = doJSON(t, h, http.MethodGet, "/api/admin/orders?orderId=o1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	returns := decode(t, w)["returns"].([]any)
	require.Len(t, returns, 1)
}

func TestDeleteOrder(t *testing.T) {
	h, store := newTestServer(t)
	now := time.Now().UTC()
	require.NoError(t, store.PutOrder(&domain.Order{OrderID: "o1", CustomerID: "c1", CreatedAt: now, UpdatedAt: now}))

	w := doJSON(t, h, http.MethodDelete, "/api/admin/orders?orderId=o1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	_, ok := store.GetOrder("o1")
	assert.False(t, ok)

	w = doJSON(t, h, http.MethodDelete, "/api/admin/orders?orderId=o1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicCheckout(t *testing.T) {
	h, _ := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/orders", map[string]any{
		"customer_name":  "Guest Buyer",
		"payment_method": "cash_on_delivery",
		"items": []map[string]any{
			{"product_id": "p1", "product_name": "Vitamin C", "quantity": 1, "price": 7.5},
		},
		"shipping_address": map[string]any{"city": "Cairo", "street": "12 Nile St"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode(t, w)["order"].(map[string]any)
	assert.Regexp(t, `^ORD-\d{8}-[0-9a-z]{6}$`, order["order_number"])
	assert.Equal(t, "guest", order["customer_id"])
	assert.Equal(t, "cod", order["payment_method"])

	// nested address stored as a JSON-encoded string
	addr, ok := order["shipping_address"].(string)
	require.True(t, ok)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(addr), &parsed))
	assert.Equal(t, "Cairo", parsed["city"])

	w = doJSON(t, h, http.MethodPost, "/api/orders", map[string]any{"customer_name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMovementListing(t *testing.T) {
	h, store := newTestServer(t)
	require.NoError(t, store.PutProduct(&domain.Product{ProductID: "p1", SKU: "SKU-1", Stock: 5}))
	now := time.Now().UTC()
	require.NoError(t, store.PutOrder(&domain.Order{
		OrderID:    "o1",
		CustomerID: "c1",
		Status:     domain.OrderProcessing,
		Items:      []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: 2}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	w := doJSON(t, h, http.MethodPatch, "/api/admin/orders?orderId=o1", map[string]any{"status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/admin/inventory/movements?productId=p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	movements := decode(t, w)["movements"].([]any)
	require.Len(t, movements, 1)
	m := movements[0].(map[string]any)
	assert.Equal(t, "sale", m["movement_type"])
	assert.EqualValues(t, -1, m["quantity"])
}

func TestExportOrdersCSV(t *testing.T) {
	h, store := newTestServer(t)
	now := time.Now().UTC()
	require.NoError(t, store.PutOrder(&domain.Order{
		OrderID:     "o1",
		OrderNumber: "ORD-2026-000001",
		CustomerID:  "c1",
		Total:       20,
		Status:      domain.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	w := doJSON(t, h, http.MethodGet, "/api/admin/orders/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	url := decode(t, w)["url"].(string)
	assert.Contains(t, url, "/exports/orders_")
}
