package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ecomxpert/storefront/backend/internal/model/address"
)

// Addresses lists the viewer's saved delivery addresses.
func (c *Client) Addresses(ctx context.Context) ([]address.Address, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/addresses", "addresses.list", nil, &raw); err != nil {
		return nil, err
	}
	var rows []wireAddress
	if err := json.Unmarshal(unwrapList(raw, "addresses", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	out := make([]address.Address, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAddress())
	}
	return out, nil
}

// AddAddress saves a new address and returns the stored record.
func (c *Client) AddAddress(ctx context.Context, a address.Address) (address.Address, error) {
	var raw json.RawMessage
	if err := c.sendJSON(ctx, http.MethodPost, "/api/addresses", "addresses.add", addressPayload(a), &raw); err != nil {
		return address.Address{}, err
	}
	return decodeAddress(raw, a)
}

// UpdateAddress replaces the address with id.
func (c *Client) UpdateAddress(ctx context.Context, id string, a address.Address) (address.Address, error) {
	var raw json.RawMessage
	path := "/api/addresses/" + url.PathEscape(id)
	if err := c.sendJSON(ctx, http.MethodPut, path, "addresses.update", addressPayload(a), &raw); err != nil {
		return address.Address{}, err
	}
	a.ID = id
	return decodeAddress(raw, a)
}

// DeleteAddress removes the address with id.
func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/addresses/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	return c.do(req, "addresses.delete", nil)
}

// decodeAddress reads the stored record from a write response, keeping
// fallback when the backend only acknowledges the write.
func decodeAddress(raw json.RawMessage, fallback address.Address) (address.Address, error) {
	if len(raw) == 0 {
		return fallback, nil
	}
	var row wireAddress
	if err := json.Unmarshal(unwrapObject(raw, "address", "data"), &row); err != nil {
		return address.Address{}, fmt.Errorf("decode address: %w", err)
	}
	if row.ID == "" {
		return fallback, nil
	}
	return row.toAddress(), nil
}
