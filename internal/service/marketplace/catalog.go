package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ecomxpert/storefront/backend/internal/model/catalog"
)

// productImageURL resolves bare product image file names under the
// backend's product upload folder.
func (c *Client) productImageURL(name string) string {
	if name != "" && !strings.Contains(name, "/") {
		name = "uploads/products/" + name
	}
	return c.AssetURL(name)
}

// Categories lists product categories.
func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/categories", "categories.list", nil, &raw); err != nil {
		return nil, err
	}
	var rows []wireCategory
	if err := json.Unmarshal(unwrapList(raw, "categories", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	out := make([]catalog.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, catalog.Category{
			ID:          string(row.ID),
			Name:        row.Name,
			Description: row.Description,
			Image:       c.AssetURL(row.Image),
		})
	}
	return out, nil
}

// Products lists products. Filters such as store_id and store_type are
// passed through unchanged.
func (c *Client) Products(ctx context.Context, filter url.Values) ([]catalog.Product, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/products", "products.list", filter, &raw); err != nil {
		return nil, err
	}
	var rows []wireProduct
	if err := json.Unmarshal(unwrapList(raw, "products", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, c.toProduct(row))
	}
	return out, nil
}

// Product fetches a single product.
func (c *Client) Product(ctx context.Context, id string) (catalog.Product, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/products/"+url.PathEscape(id), "products.get", nil, &raw); err != nil {
		return catalog.Product{}, err
	}
	var row wireProduct
	if err := json.Unmarshal(unwrapObject(raw, "product", "data"), &row); err != nil {
		return catalog.Product{}, fmt.Errorf("decode product: %w", err)
	}
	return c.toProduct(row), nil
}

// Stores lists seller stores.
func (c *Client) Stores(ctx context.Context) ([]catalog.Store, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/stores", "stores.list", nil, &raw); err != nil {
		return nil, err
	}
	var rows []wireStore
	if err := json.Unmarshal(unwrapList(raw, "stores", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode stores: %w", err)
	}
	out := make([]catalog.Store, 0, len(rows))
	for _, row := range rows {
		out = append(out, c.toStore(row))
	}
	return out, nil
}

// Store fetches a single store.
func (c *Client) Store(ctx context.Context, id string) (catalog.Store, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/stores/"+url.PathEscape(id), "stores.get", nil, &raw); err != nil {
		return catalog.Store{}, err
	}
	var row wireStore
	if err := json.Unmarshal(unwrapObject(raw, "store", "data"), &row); err != nil {
		return catalog.Store{}, fmt.Errorf("decode store: %w", err)
	}
	return c.toStore(row), nil
}

// StoreAddOns returns the add-on catalog of a store.
func (c *Client) StoreAddOns(ctx context.Context, storeID string) (catalog.Menu, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/addons/store/"+url.PathEscape(storeID), "addons.store", nil, &raw); err != nil {
		return nil, err
	}
	var rows []wireAddOnCategory
	if err := json.Unmarshal(unwrapList(raw, "data", "categories"), &rows); err != nil {
		return nil, fmt.Errorf("decode add-ons: %w", err)
	}
	return toMenu(rows), nil
}

// PublicSettings returns the site-wide public key/value settings.
func (c *Client) PublicSettings(ctx context.Context) (catalog.Settings, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/settings/public", "settings.public", nil, &raw); err != nil {
		return nil, err
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(unwrapObject(raw, "settings", "data"), &values); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	out := make(catalog.Settings, len(values))
	for k, v := range values {
		var s string
		switch {
		case json.Unmarshal(v, &s) == nil:
			out[k] = s
		case string(bytes.TrimSpace(v)) == "null":
			out[k] = ""
		default:
			out[k] = string(bytes.TrimSpace(v))
		}
	}
	return out, nil
}

// unwrapObject returns the object nested under the first present key
// when that value is itself an object.
func unwrapObject(data json.RawMessage, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}
	for _, key := range keys {
		v, ok := envelope[key]
		if !ok {
			continue
		}
		if inner := bytes.TrimSpace(v); len(inner) > 0 && inner[0] == '{' {
			return inner
		}
	}
	return trimmed
}
