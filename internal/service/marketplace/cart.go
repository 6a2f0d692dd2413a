package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ecomxpert/storefront/backend/internal/model/catalog"
	"github.com/ecomxpert/storefront/backend/internal/model/money"
)

// CartAddOnLine is one add-on row sent with a cart item update.
// Price is the line amount for Quantity units.
type CartAddOnLine struct {
	AddOnID   string      `json:"addon_id"`
	VariantID *string     `json:"variant_id"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
}

// CartItemUpdate is the body of PUT /api/cart/items/{id}.
type CartItemUpdate struct {
	Quantity int             `json:"quantity"`
	AddOns   []CartAddOnLine `json:"addOns"`
}

// Cart returns the viewer's cart lines.
func (c *Client) Cart(ctx context.Context) ([]catalog.CartItem, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/cart", "cart.get", nil, &raw); err != nil {
		return nil, err
	}
	var rows []wireCartItem
	if err := json.Unmarshal(unwrapList(raw, "cart_items", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	out := make([]catalog.CartItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, c.toCartItem(row))
	}
	return out, nil
}

// UpdateCartItem replaces quantity and add-ons of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, itemID string, update CartItemUpdate) error {
	if update.AddOns == nil {
		update.AddOns = []CartAddOnLine{}
	}
	var raw json.RawMessage
	path := "/api/cart/items/" + url.PathEscape(itemID)
	if err := c.sendJSON(ctx, http.MethodPut, path, "cart.update_item", update, &raw); err != nil {
		return err
	}
	return checkSuccess(raw)
}
