package marketplace

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ecomxpert/storefront/backend/internal/model/address"
	"github.com/ecomxpert/storefront/backend/internal/model/catalog"
	"github.com/ecomxpert/storefront/backend/internal/model/chat"
	"github.com/ecomxpert/storefront/backend/internal/model/money"
	"github.com/ecomxpert/storefront/backend/internal/model/order"
)

// The backend serialises ids, counts and flags inconsistently (numbers,
// numeric strings, "1"/"0"). These types absorb the variation.

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
	default:
		*f = flexID(raw)
	}
	return nil
}

type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`)) {
	case "1", "true", "t", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		f.v = nil
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	f.v = &v
	return nil
}

// parseTimestamp accepts DATE_ATOM and the raw MySQL datetime fallback,
// which the backend emits in UTC.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return t
	}
	return time.Time{}
}

type wireMedia struct {
	ID   flexID `json:"id"`
	Type string `json:"media_type"`
	URL  string `json:"media_url"`
}

type wireMessage struct {
	ID        flexID      `json:"id"`
	ChatID    flexID      `json:"chat_id"`
	SenderID  flexID      `json:"sender_id"`
	Message   string      `json:"message"`
	CreatedAt string      `json:"created_at"`
	MediaType string      `json:"media_type"`
	Media     []wireMedia `json:"media"`
}

func (c *Client) toMessage(w wireMessage) chat.Message {
	media := make([]chat.Media, 0, len(w.Media))
	for _, m := range w.Media {
		media = append(media, chat.Media{
			ID:   string(m.ID),
			Type: m.Type,
			URL:  c.AssetURL(m.URL),
		})
	}
	return chat.Message{
		ID:        string(w.ID),
		ChatID:    string(w.ChatID),
		SenderID:  string(w.SenderID),
		Text:      w.Message,
		Media:     media,
		Timestamp: parseTimestamp(w.CreatedAt),
	}
}

type wireThread struct {
	ID         flexID `json:"id"`
	CustomerID flexID `json:"customer_id"`
	StoreID    flexID `json:"store_id"`
}

type wireUser struct {
	ID        flexID `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
}

func (c *Client) toParticipant(w *wireUser) chat.Participant {
	if w == nil {
		return chat.Participant{}
	}
	name := w.Name
	if name == "" {
		name = strings.TrimSpace(w.FirstName + " " + w.LastName)
	}
	return chat.Participant{ID: string(w.ID), Name: name, Avatar: c.AssetURL(w.Avatar)}
}

type wireSummary struct {
	ID          flexID       `json:"id"`
	OtherUser   *wireUser    `json:"other_user"`
	LastMessage *wireMessage `json:"last_message"`
	UnreadCount flexInt      `json:"unread_count"`
}

type wireCategory struct {
	ID          flexID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type wireProduct struct {
	ID          flexID      `json:"id"`
	StoreID     flexID      `json:"store_id"`
	CategoryID  flexID      `json:"category_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       money.Money `json:"price"`
	Stock       flexInt     `json:"stock"`
	Image       string      `json:"image"`
	ProductType string      `json:"product_type"`
	SalesCount  flexInt     `json:"sales_count"`
}

func (c *Client) toProduct(w wireProduct) catalog.Product {
	return catalog.Product{
		ID:          string(w.ID),
		StoreID:     string(w.StoreID),
		CategoryID:  string(w.CategoryID),
		Name:        w.Name,
		Description: w.Description,
		Price:       w.Price,
		Stock:       int(w.Stock),
		Image:       c.productImageURL(w.Image),
		ProductType: w.ProductType,
		SalesCount:  int(w.SalesCount),
	}
}

type wireStore struct {
	ID            flexID    `json:"id"`
	ClientID      flexID    `json:"client_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Address       string    `json:"address"`
	Logo          string    `json:"logo"`
	Latitude      flexFloat `json:"latitude"`
	Longitude     flexFloat `json:"longitude"`
	ContactNumber string    `json:"contact_number"`
	OpeningTime   string    `json:"opening_time"`
	ClosingTime   string    `json:"closing_time"`
}

func (c *Client) toStore(w wireStore) catalog.Store {
	return catalog.Store{
		ID:            string(w.ID),
		ClientID:      string(w.ClientID),
		Name:          w.Name,
		Description:   w.Description,
		Address:       w.Address,
		Logo:          c.AssetURL(w.Logo),
		Latitude:      w.Latitude.v,
		Longitude:     w.Longitude.v,
		ContactNumber: w.ContactNumber,
		OpeningTime:   w.OpeningTime,
		ClosingTime:   w.ClosingTime,
	}
}

type wireVariant struct {
	ID            flexID      `json:"id"`
	Value         string      `json:"variant_value"`
	Name          string      `json:"variant_name"`
	PriceModifier money.Money `json:"price_modifier"`
}

type wireAddOn struct {
	ID        flexID        `json:"id"`
	Name      string        `json:"name"`
	BasePrice money.Money   `json:"base_price"`
	Variants  []wireVariant `json:"variants"`
}

type wireAddOnCategory struct {
	ID     flexID      `json:"id"`
	Name   string      `json:"name"`
	AddOns []wireAddOn `json:"addons"`
}

func toMenu(in []wireAddOnCategory) catalog.Menu {
	menu := make(catalog.Menu, 0, len(in))
	for _, cat := range in {
		out := catalog.AddOnCategory{ID: string(cat.ID), Name: cat.Name, AddOns: make([]catalog.AddOn, 0, len(cat.AddOns))}
		for _, a := range cat.AddOns {
			addOn := catalog.AddOn{ID: string(a.ID), Name: a.Name, BasePrice: a.BasePrice, Variants: make([]catalog.Variant, 0, len(a.Variants))}
			for _, v := range a.Variants {
				value := v.Value
				if value == "" {
					value = v.Name
				}
				addOn.Variants = append(addOn.Variants, catalog.Variant{ID: string(v.ID), Value: value, PriceModifier: v.PriceModifier})
			}
			out.AddOns = append(out.AddOns, addOn)
		}
		menu = append(menu, out)
	}
	return menu
}

type wireCartAddOn struct {
	CategoryID   flexID      `json:"category_id"`
	AddOnID      flexID      `json:"addon_id"`
	VariantID    flexID      `json:"variant_id"`
	AddonVariant flexID      `json:"addon_variant_id"`
	AddOnName    string      `json:"addon_name"`
	VariantValue string      `json:"variant_value"`
	VariantName  string      `json:"variant_name"`
	Quantity     flexInt     `json:"quantity"`
	Price        money.Money `json:"price"`
}

type wireCartItem struct {
	ID        flexID          `json:"cartItemId"`
	ProductID flexID          `json:"productId"`
	StoreID   flexID          `json:"store_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     money.Money     `json:"price"`
	Quantity  flexInt         `json:"quantity"`
	Stock     flexInt         `json:"stock"`
	AddOns    []wireCartAddOn `json:"addOns"`
}

func (c *Client) toCartItem(w wireCartItem) catalog.CartItem {
	item := catalog.CartItem{
		ID:        string(w.ID),
		ProductID: string(w.ProductID),
		StoreID:   string(w.StoreID),
		Name:      w.Name,
		Image:     c.productImageURL(w.Image),
		BasePrice: w.Price,
		Quantity:  int(w.Quantity),
		Stock:     int(w.Stock),
		AddOns:    make([]catalog.CartItemAddOn, 0, len(w.AddOns)),
	}
	for _, a := range w.AddOns {
		categoryID := string(a.CategoryID)
		if categoryID == "" {
			categoryID = "1"
		}
		quantity := int(a.Quantity)
		if quantity <= 0 {
			quantity = 1
		}
		variant := a.VariantValue
		if variant == "" {
			variant = a.VariantName
		}
		variantID := string(a.VariantID)
		if variantID == "" {
			variantID = string(a.AddonVariant)
		}
		item.AddOns = append(item.AddOns, catalog.CartItemAddOn{
			CategoryID: categoryID,
			AddOnID:    string(a.AddOnID),
			VariantID:  variantID,
			Name:       a.AddOnName,
			Variant:    variant,
			Quantity:   quantity,
			Price:      a.Price,
		})
	}
	return item
}

type wireAddress struct {
	ID        flexID    `json:"id"`
	Label     string    `json:"label"`
	IsDefault flexBool  `json:"is_default"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2"`
	Region    string    `json:"region"`
	Province  string    `json:"province"`
	City      string    `json:"city"`
	Barangay  string    `json:"barangay"`
	ZipCode   string    `json:"zip_code"`
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
}

func (w wireAddress) toAddress() address.Address {
	return address.Address{
		ID:        string(w.ID),
		Label:     w.Label,
		IsDefault: bool(w.IsDefault),
		FullName:  w.FullName,
		Phone:     w.Phone,
		Line1:     w.Line1,
		Line2:     w.Line2,
		Region:    w.Region,
		Province:  w.Province,
		City:      w.City,
		Barangay:  w.Barangay,
		ZipCode:   w.ZipCode,
		Latitude:  w.Latitude.v,
		Longitude: w.Longitude.v,
	}
}

// addressPayload is the snake_case body the backend accepts.
func addressPayload(a address.Address) map[string]any {
	payload := map[string]any{
		"label":     a.Label,
		"full_name": a.FullName,
		"phone":     a.Phone,
		"line1":     a.Line1,
		"line2":     a.Line2,
		"region":    a.Region,
		"province":  a.Province,
		"city":      a.City,
		"barangay":  a.Barangay,
		"zip_code":  a.ZipCode,
	}
	if a.IsDefault {
		payload["is_default"] = true
	}
	if a.Latitude != nil && a.Longitude != nil {
		payload["latitude"] = *a.Latitude
		payload["longitude"] = *a.Longitude
	}
	return payload
}

type wireOrderItem struct {
	ProductID flexID      `json:"product_id"`
	Name      string      `json:"name"`
	Quantity  flexInt     `json:"quantity"`
	Price     money.Money `json:"price"`
}

type wireOrder struct {
	ID              flexID          `json:"id"`
	CustomerID      flexID          `json:"customer_id"`
	StoreID         flexID          `json:"store_id"`
	Status          string          `json:"status"`
	Total           *money.Money    `json:"total"`
	TotalAmount     *money.Money    `json:"total_amount"`
	TotalPrice      *money.Money    `json:"total_price"`
	DeliveryFee     money.Money     `json:"delivery_fee"`
	PaymentMethod   string          `json:"payment_method"`
	DeliveryAddress json.RawMessage `json:"delivery_address"`
	Notes           string          `json:"notes"`
	Items           []wireOrderItem `json:"items"`
	CreatedAt       string          `json:"created_at"`
}

func (w wireOrder) toOrder() order.Order {
	var total money.Money
	switch {
	case w.Total != nil:
		total = *w.Total
	case w.TotalAmount != nil:
		total = *w.TotalAmount
	case w.TotalPrice != nil:
		total = *w.TotalPrice
	}

	deliveryAddress := string(w.DeliveryAddress)
	var s string
	if json.Unmarshal(w.DeliveryAddress, &s) == nil {
		deliveryAddress = s
	}
	if deliveryAddress == "null" {
		deliveryAddress = ""
	}

	o := order.Order{
		ID:              string(w.ID),
		CustomerID:      string(w.CustomerID),
		StoreID:         string(w.StoreID),
		Status:          w.Status,
		Total:           total,
		DeliveryFee:     w.DeliveryFee,
		PaymentMethod:   w.PaymentMethod,
		DeliveryAddress: deliveryAddress,
		Notes:           w.Notes,
		CreatedAt:       parseTimestamp(w.CreatedAt),
	}
	for _, it := range w.Items {
		o.Items = append(o.Items, order.Item{
			ProductID: string(it.ProductID),
			Name:      it.Name,
			Quantity:  int(it.Quantity),
			Price:     it.Price,
		})
	}
	return o
}
