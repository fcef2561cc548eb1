package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pharmacy-backend/internal/domain"
)

// Client posts order status notifications to the mail/notification
// gateway. Notification delivery is best-effort: the caller logs
// failures and moves on.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

type statusChangedReq struct {
	OrderNumber    string `json:"order_number"`
	CustomerEmail  string `json:"customer_email"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

func (c *Client) OrderStatusChanged(o *domain.Order, previous domain.OrderStatus) error {
	if strings.HasPrefix(strings.ToLower(c.BaseURL), "mock") {
		return nil
	}
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 8 * time.Second}
	}
	body, err := json.Marshal(statusChangedReq{
		OrderNumber:    o.OrderNumber,
		CustomerEmail:  o.CustomerEmail,
		Status:         string(o.Status),
		PreviousStatus: string(previous),
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
	})
	if err != nil {
		return err
	}
	resp, err := hc.Post(c.BaseURL+"/notifications/order-status", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify error: status %d", resp.StatusCode)
	}
	return nil
}
