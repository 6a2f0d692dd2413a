package cart

import (
	"time"

	"github.com/ecomxpert/storefront/backend/internal/model/catalog"
	"github.com/ecomxpert/storefront/backend/internal/model/money"
)

// DefaultDedupeWindow swallows repeated identical taps on the same add-on.
const DefaultDedupeWindow = 500 * time.Millisecond

// Key identifies a selected add-on: "<category>-<addon>" or
// "<category>-<addon>-<variant>".
func Key(categoryID, addOnID, variantID string) string {
	key := categoryID + "-" + addOnID
	if variantID != "" {
		key += "-" + variantID
	}
	return key
}

// Line is one selected add-on with its unit price and count.
type Line struct {
	Key        string      `json:"key"`
	CategoryID string      `json:"categoryId"`
	AddOnID    string      `json:"addonId"`
	VariantID  string      `json:"variantId,omitempty"`
	Name       string      `json:"name"`
	Variant    string      `json:"variant,omitempty"`
	UnitPrice  money.Money `json:"unitPrice"`
	Quantity   int         `json:"quantity"`
}

// Amount is UnitPrice × Quantity.
func (l Line) Amount() money.Money {
	return l.UnitPrice.Mul(l.Quantity)
}

type operation struct {
	kind string
	key  string
	at   time.Time
}

// Selection is the set of add-ons chosen for one product. It is not safe
// for concurrent use.
type Selection struct {
	lines  map[string]Line
	order  []string
	window time.Duration
	now    func() time.Time
	last   *operation
}

// NewSelection returns an empty selection. A non-positive window turns
// duplicate suppression off.
func NewSelection(window time.Duration, now func() time.Time) *Selection {
	if now == nil {
		now = time.Now
	}
	return &Selection{lines: make(map[string]Line), window: window, now: now}
}

// duplicate reports whether the operation repeats the previous one inside
// the window, and records it otherwise.
func (s *Selection) duplicate(kind, key string) bool {
	at := s.now()
	if s.window > 0 && s.last != nil && s.last.kind == kind && s.last.key == key && at.Sub(s.last.at) < s.window {
		return true
	}
	s.last = &operation{kind: kind, key: key, at: at}
	return false
}

// Increment adds one unit of the add-on. The unit price of a new line is
// BasePrice plus the variant's PriceModifier. It returns false when the
// call was swallowed as a duplicate.
func (s *Selection) Increment(categoryID string, addOn catalog.AddOn, variant *catalog.Variant) (Line, bool) {
	variantID := ""
	if variant != nil {
		variantID = variant.ID
	}
	key := Key(categoryID, addOn.ID, variantID)
	if s.duplicate("add", key) {
		return s.lines[key], false
	}

	if line, ok := s.lines[key]; ok {
		line.Quantity++
		s.lines[key] = line
		return line, true
	}

	line := Line{
		Key:        key,
		CategoryID: categoryID,
		AddOnID:    addOn.ID,
		VariantID:  variantID,
		Name:       addOn.Name,
		UnitPrice:  addOn.BasePrice,
		Quantity:   1,
	}
	if variant != nil {
		line.Variant = variant.Value
		line.UnitPrice += variant.PriceModifier
	}
	s.put(line)
	return line, true
}

// Decrement removes one unit under key, dropping the line at zero.
func (s *Selection) Decrement(key string) bool {
	if s.duplicate("remove", key) {
		return false
	}
	line, ok := s.lines[key]
	if !ok {
		return false
	}
	if line.Quantity > 1 {
		line.Quantity--
		s.lines[key] = line
		return true
	}
	delete(s.lines, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Restore seeds the selection from add-ons already attached to a cart
// line. The stored price is the line amount, so the unit price is derived
// by dividing it by the quantity.
func (s *Selection) Restore(existing []catalog.CartItemAddOn) {
	for _, a := range existing {
		categoryID := a.CategoryID
		if categoryID == "" {
			categoryID = "1"
		}
		quantity := a.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		name := a.Name
		if name == "" {
			name = "Unknown Add-on"
		}
		s.put(Line{
			Key:        Key(categoryID, a.AddOnID, a.VariantID),
			CategoryID: categoryID,
			AddOnID:    a.AddOnID,
			VariantID:  a.VariantID,
			Name:       name,
			Variant:    a.Variant,
			UnitPrice:  a.Price.Div(quantity),
			Quantity:   quantity,
		})
	}
}

func (s *Selection) put(line Line) {
	if _, ok := s.lines[line.Key]; !ok {
		s.order = append(s.order, line.Key)
	}
	s.lines[line.Key] = line
}

// Lines returns the selected lines in insertion order.
func (s *Selection) Lines() []Line {
	out := make([]Line, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.lines[key])
	}
	return out
}

// Get returns the line under key.
func (s *Selection) Get(key string) (Line, bool) {
	line, ok := s.lines[key]
	return line, ok
}

// Len returns the number of distinct lines.
func (s *Selection) Len() int {
	return len(s.lines)
}

// Total is base × quantity plus the sum of every add-on line amount.
// Add-on amounts are not multiplied by the product quantity.
func Total(base money.Money, quantity int, lines []Line) money.Money {
	total := base.Mul(quantity)
	for _, l := range lines {
		total += l.Amount()
	}
	return total
}

// ClampQuantity keeps q at least 1 and, when stock is tracked, at most stock.
func ClampQuantity(q, stock int) int {
	if q < 1 {
		q = 1
	}
	if stock > 0 && q > stock {
		q = stock
	}
	return q
}

