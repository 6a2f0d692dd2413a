package catalog

import "github.com/ecomxpert/storefront/backend/internal/model/money"

// Category groups products on the storefront.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Product is a sellable item. Stock of zero means untracked.
type Product struct {
	ID          string      `json:"id"`
	StoreID     string      `json:"storeId"`
	CategoryID  string      `json:"categoryId"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Price       money.Money `json:"price"`
	Stock       int         `json:"stock"`
	Image       string      `json:"image,omitempty"`
	ProductType string      `json:"productType,omitempty"`
	SalesCount  int         `json:"salesCount"`
}

// Store is a seller storefront or restaurant.
type Store struct {
	ID            string   `json:"id"`
	ClientID      string   `json:"clientId"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Address       string   `json:"address,omitempty"`
	Logo          string   `json:"logo,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	ContactNumber string   `json:"contactNumber,omitempty"`
	OpeningTime   string   `json:"openingTime,omitempty"`
	ClosingTime   string   `json:"closingTime,omitempty"`
}

// AddOnCategory groups add-ons of one store (drinks, sides, desserts).
type AddOnCategory struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	AddOns []AddOn `json:"addons"`
}

// AddOn is a selectable modifier with optional variants.
type AddOn struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	BasePrice money.Money `json:"basePrice"`
	Variants  []Variant   `json:"variants"`
}

// Variant adjusts the add-on price by PriceModifier.
type Variant struct {
	ID            string      `json:"id"`
	Value         string      `json:"value"`
	PriceModifier money.Money `json:"priceModifier"`
}

// Menu is a store's add-on catalog.
type Menu []AddOnCategory

// Find resolves a category / add-on / optional variant triple.
func (m Menu) Find(categoryID, addOnID, variantID string) (AddOn, *Variant, bool) {
	for _, cat := range m {
		if cat.ID != categoryID {
			continue
		}
		for _, addOn := range cat.AddOns {
			if addOn.ID != addOnID {
				continue
			}
			if variantID == "" {
				return addOn, nil, true
			}
			for i := range addOn.Variants {
				if addOn.Variants[i].ID == variantID {
					v := addOn.Variants[i]
					return addOn, &v, true
				}
			}
			return AddOn{}, nil, false
		}
	}
	return AddOn{}, nil, false
}

// Settings is the public key/value site configuration.
type Settings map[string]string

// CartItemAddOn is an add-on already attached to a cart line.
// Price is the line amount (unit price × quantity).
type CartItemAddOn struct {
	CategoryID string      `json:"categoryId"`
	AddOnID    string      `json:"addonId"`
	VariantID  string      `json:"variantId,omitempty"`
	Name       string      `json:"name"`
	Variant    string      `json:"variant,omitempty"`
	Quantity   int         `json:"quantity"`
	Price      money.Money `json:"price"`
}

// CartItem is a line in the viewer's cart.
type CartItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	StoreID   string          `json:"storeId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	BasePrice money.Money     `json:"basePrice"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock"`
	AddOns    []CartItemAddOn `json:"addOns"`
}
