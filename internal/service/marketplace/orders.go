package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ecomxpert/storefront/backend/internal/model/order"
)

// OrderFilter selects whose orders to list. Exactly one field is used;
// StoreID wins when both are set.
type OrderFilter struct {
	UserID  string
	StoreID string
}

func (f OrderFilter) query() url.Values {
	q := url.Values{}
	if f.StoreID != "" {
		q.Set("store_id", f.StoreID)
	} else if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	return q
}

// Orders lists orders for a customer or a store.
func (c *Client) Orders(ctx context.Context, filter OrderFilter) ([]order.Order, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/orders", "orders.list", filter.query(), &raw); err != nil {
		return nil, err
	}
	if err := checkSuccess(raw); err != nil {
		return nil, err
	}
	var rows []wireOrder
	if err := json.Unmarshal(unwrapList(raw, "orders", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	out := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toOrder())
	}
	return out, nil
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, id string) (order.Order, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/orders/"+url.PathEscape(id), "orders.get", nil, &raw); err != nil {
		return order.Order{}, err
	}
	var row wireOrder
	if err := json.Unmarshal(unwrapObject(raw, "order", "data"), &row); err != nil {
		return order.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return row.toOrder(), nil
}

// PlaceOrder submits a checkout and returns the created order ids.
func (c *Client) PlaceOrder(ctx context.Context, checkout order.Checkout) ([]string, error) {
	var raw json.RawMessage
	if err := c.sendJSON(ctx, http.MethodPost, "/api/orders", "orders.create", checkout, &raw); err != nil {
		return nil, err
	}
	if err := checkSuccess(raw); err != nil {
		return nil, err
	}

	var body struct {
		OrderID  flexID   `json:"order_id"`
		OrderIDs []flexID `json:"order_ids"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode order response: %w", err)
		}
	}
	ids := make([]string, 0, len(body.OrderIDs)+1)
	for _, id := range body.OrderIDs {
		ids = append(ids, string(id))
	}
	if len(ids) == 0 && body.OrderID != "" {
		ids = append(ids, string(body.OrderID))
	}
	return ids, nil
}

// CancelOrder asks the backend to cancel order id.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	var raw json.RawMessage
	if err := c.sendJSON(ctx, http.MethodPut, "/api/orders/cancel/"+url.PathEscape(id), "orders.cancel", nil, &raw); err != nil {
		return err
	}
	return checkSuccess(raw)
}

// checkSuccess turns a 2xx body carrying {"success": false} into a 422
// APIError carrying the backend message.
func checkSuccess(raw json.RawMessage) error {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var body struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	if body.Success != nil && !*body.Success {
		msg := body.Message
		if msg == "" {
			msg = "request rejected"
		}
		return &APIError{Status: http.StatusUnprocessableEntity, Message: msg}
	}
	return nil
}
