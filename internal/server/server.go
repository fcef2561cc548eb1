package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pharmacy-backend/internal/config"
	"pharmacy-backend/internal/domain"
	"pharmacy-backend/internal/infrastructure/export"
	"pharmacy-backend/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg     config.Config
	log     zerolog.Logger
	orders  *usecase.OrderService
	returns *usecase.ReturnService
	ledger  *usecase.LedgerService
	exports *export.FSWriter
	engine  *gin.Engine
}

func New(cfg config.Config, log zerolog.Logger, orders *usecase.OrderService, returns *usecase.ReturnService, ledger *usecase.LedgerService, exports *export.FSWriter) *Server {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:     cfg,
		log:     log,
		orders:  orders,
		returns: returns,
		ledger:  ledger,
		exports: exports,
		engine:  gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(s.requestID(), s.requestLogger(), gin.Recovery(), s.cors())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.Static("/exports", s.cfg.ExportsDir)

	s.engine.POST("/api/orders", s.handlePublicCreateOrder)

	adm := s.engine.Group("/api/admin", s.adminAuth())
	adm.GET("/orders", s.handleGetOrders)
	adm.POST("/orders", s.handleCreateOrder)
	adm.PATCH("/orders", s.handleUpdateOrder)
	adm.DELETE("/orders", s.handleDeleteOrder)
	adm.GET("/orders/export", s.handleExport)
	adm.GET("/inventory/movements", s.handleListMovements)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// adminAuth guards the back-office routes with a bearer JWT when a
// secret is configured. An empty secret disables the check (dev mode).
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.JWTSecret == "" {
			c.Next()
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer"))
		if raw == "" {
			s.err(c, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}
		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tok.Valid {
			s.err(c, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get("request_id"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   msg,
			"requestId": requestID(c),
		},
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch e := err.(type) {
	case usecase.ErrNotFound:
		s.err(c, http.StatusNotFound, "NotFound", e.Error())
	case usecase.ErrConflict:
		s.err(c, http.StatusConflict, "Conflict", e.Error())
	case usecase.ErrBadRequest:
		s.err(c, http.StatusBadRequest, "BadRequest", e.Error())
	default:
		s.err(c, http.StatusInternalServerError, "ServerError", err.Error())
	}
}

func (s *Server) handleGetOrders(c *gin.Context) {
	if id := c.Query("orderId"); id != "" {
		o, err := s.orders.Get(id)
		if err != nil {
			s.fail(c, err)
			return
		}
		returns, err := s.returns.ListByOrder(id)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "returns": returns})
		return
	}
	q := usecase.OrderQuery{
		Search:            c.Query("search"),
		Status:            c.Query("status"),
		PaymentStatus:     c.Query("paymentStatus"),
		FulfillmentStatus: c.Query("fulfillmentStatus"),
		Limit:             atoi(c.Query("limit")),
		Offset:            atoi(c.Query("offset")),
	}
	orders, total, stats, err := s.orders.List(q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total, "stats": stats})
}

type createOrderReq struct {
	CustomerID      string             `json:"customer_id"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	Items           []domain.OrderItem `json:"items"`
	Subtotal        float64            `json:"subtotal"`
	Shipping        float64            `json:"shipping"`
	Tax             float64            `json:"tax"`
	Discount        float64            `json:"discount"`
	Total           float64            `json:"total"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress json.RawMessage    `json:"shipping_address"`
	BillingAddress  json.RawMessage    `json:"billing_address"`
	Notes           string             `json:"notes"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	if req.CustomerID == "" {
		s.err(c, http.StatusBadRequest, "BadRequest", "customer_id required")
		return
	}
	if len(req.Items) == 0 {
		s.err(c, http.StatusBadRequest, "BadRequest", "items required")
		return
	}
	o := &domain.Order{
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Items:           req.Items,
		Subtotal:        req.Subtotal,
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		Discount:        req.Discount,
		Total:           req.Total,
		PaymentMethod:   mapPaymentMethod(req.PaymentMethod),
		ShippingAddress: rawString(req.ShippingAddress),
		BillingAddress:  rawString(req.BillingAddress),
		Notes:           req.Notes,
	}
	if err := s.orders.Create(o); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o})
}

type updateOrderReq struct {
	Status            *string `json:"status"`
	PaymentStatus     *string `json:"payment_status"`
	FulfillmentStatus *string `json:"fulfillment_status"`
	TrackingNumber    *string `json:"tracking_number"`
	Carrier           *string `json:"carrier"`
	Notes             *string `json:"notes"`
}

type processReturnReq struct {
	ReturnReason   string              `json:"return_reason"`
	ReturnMethod   string              `json:"return_method"`
	Items          []domain.ReturnItem `json:"items"`
	ShippingRefund float64             `json:"shipping_refund"`
	ProcessingFee  float64             `json:"processing_fee"`
	Notes          string              `json:"notes"`
}

func (s *Server) handleUpdateOrder(c *gin.Context) {
	id := c.Query("orderId")
	if id == "" {
		s.err(c, http.StatusBadRequest, "BadRequest", "orderId required")
		return
	}
	if c.Query("action") == "process_return" {
		var req processReturnReq
		if err := c.ShouldBindJSON(&req); err != nil {
			s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
			return
		}
		res, err := s.returns.Process(id, usecase.ReturnRequest{
			Reason:         req.ReturnReason,
			Method:         req.ReturnMethod,
			Items:          req.Items,
			ShippingRefund: req.ShippingRefund,
			ProcessingFee:  req.ProcessingFee,
			Notes:          req.Notes,
			CreatedBy:      "admin",
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"return":              res.Return,
			"order":               res.Order,
			"inventory_movements": res.Movements,
		})
		return
	}

	var req updateOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	if req.Status != nil {
		next := domain.OrderStatus(*req.Status)
		if !usecase.ValidStatus(next) {
			s.err(c, http.StatusBadRequest, "BadRequest", "invalid status")
			return
		}
		if _, _, err := s.orders.ApplyStatusChange(id, next, "admin"); err != nil {
			s.fail(c, err)
			return
		}
	}
	o, err := s.orders.Patch(id, usecase.OrderPatch{
		PaymentStatus:     req.PaymentStatus,
		FulfillmentStatus: req.FulfillmentStatus,
		TrackingNumber:    req.TrackingNumber,
		Carrier:           req.Carrier,
		Notes:             req.Notes,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (s *Server) handleDeleteOrder(c *gin.Context) {
	id := c.Query("orderId")
	if id == "" {
		s.err(c, http.StatusBadRequest, "BadRequest", "orderId required")
		return
	}
	if err := s.orders.Delete(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleExport(c *gin.Context) {
	var url string
	var err error
	switch c.DefaultQuery("report", "orders") {
	case "movements":
		var movements []domain.InventoryMovement
		movements, err = s.ledger.List(c.Query("productId"), c.Query("orderId"), 500)
		if err == nil {
			url, err = s.exports.WriteMovementsCSV(movements)
		}
	default:
		var orders []domain.Order
		orders, _, err = s.orders.Orders.ListOrders(usecase.OrderQuery{
			Status: c.Query("status"),
			Limit:  1000,
		})
		if err == nil {
			url, err = s.exports.WriteOrdersCSV(orders)
		}
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleListMovements(c *gin.Context) {
	movements, err := s.ledger.List(c.Query("productId"), c.Query("orderId"), atoi(c.Query("limit")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

type publicOrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type publicOrderReq struct {
	CustomerID      string            `json:"customer_id"`
	CustomerName    string            `json:"customer_name"`
	CustomerEmail   string            `json:"customer_email"`
	Items           []publicOrderItem `json:"items"`
	PaymentMethod   string            `json:"payment_method"`
	ShippingAddress json.RawMessage   `json:"shipping_address"`
	BillingAddress  json.RawMessage   `json:"billing_address"`
	Shipping        float64           `json:"shipping"`
	Tax             float64           `json:"tax"`
	Discount        float64           `json:"discount"`
	Total           float64           `json:"total"`
	Notes           string            `json:"notes"`
}

// handlePublicCreateOrder accepts guest or authenticated checkout
// payloads from the storefront.
func (s *Server) handlePublicCreateOrder(c *gin.Context) {
	var req publicOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	if len(req.Items) == 0 {
		s.err(c, http.StatusBadRequest, "BadRequest", "items required")
		return
	}
	customerID := req.CustomerID
	if customerID == "" {
		customerID = "guest"
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" {
			s.err(c, http.StatusBadRequest, "BadRequest", "items[].product_id required")
			return
		}
		if it.Quantity <= 0 {
			s.err(c, http.StatusBadRequest, "BadRequest", "items[].quantity must be positive")
			return
		}
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	o := &domain.Order{
		OrderNumber:     usecase.NewOrderCode(time.Now().UTC()),
		CustomerID:      customerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Items:           items,
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		Discount:        req.Discount,
		Total:           req.Total,
		PaymentMethod:   mapPaymentMethod(req.PaymentMethod),
		ShippingAddress: rawString(req.ShippingAddress),
		BillingAddress:  rawString(req.BillingAddress),
		Notes:           req.Notes,
	}
	if err := s.orders.Create(o); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o})
}

// mapPaymentMethod folds the loose checkout vocabulary onto the fixed
// enum used by the back office.
func mapPaymentMethod(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "cash_on_delivery", "cod", "cash":
		return "cod"
	case "credit_card", "debit_card", "card":
		return "card"
	case "bank_transfer", "transfer":
		return "bank_transfer"
	case "wallet", "mobile_wallet":
		return "wallet"
	default:
		return "cod"
	}
}

// rawString keeps nested structures as JSON-encoded strings, the
// flattening convention of the underlying document schema.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func atoi(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}
