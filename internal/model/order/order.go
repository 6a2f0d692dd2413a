package order

import (
	"time"

	"github.com/ecomxpert/storefront/backend/internal/model/money"
)

// Order statuses used by the marketplace backend.
const (
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusDelivered = "delivered"
)

// Item is one product line of an order.
type Item struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name,omitempty"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
}

// Order is a placed checkout.
type Order struct {
	ID              string      `json:"id"`
	CustomerID      string      `json:"customerId"`
	StoreID         string      `json:"storeId"`
	Status          string      `json:"status"`
	Total           money.Money `json:"total"`
	DeliveryFee     money.Money `json:"deliveryFee"`
	PaymentMethod   string      `json:"paymentMethod,omitempty"`
	DeliveryAddress string      `json:"deliveryAddress,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	Items           []Item      `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// CartLine is the checkout payload for one product.
type CartLine struct {
	ProductID string      `json:"id"`
	StoreID   string      `json:"store_id"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
}

// Checkout is the order creation request.
type Checkout struct {
	UserID       string         `json:"userId"`
	CartItems    []CartLine     `json:"cartItems"`
	ShippingInfo map[string]any `json:"shippingInfo"`
	Total        money.Money    `json:"total"`
}
