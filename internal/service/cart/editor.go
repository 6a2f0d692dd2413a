package cart

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecomxpert/storefront/backend/internal/model/catalog"
	"github.com/ecomxpert/storefront/backend/internal/model/money"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

var (
	ErrItemNotFound   = errors.New("cart item not found")
	ErrNoEdit         = errors.New("no add-on edit in progress")
	ErrUnknownAddOn   = errors.New("add-on not offered by this store")
	ErrLineNotPresent = errors.New("add-on is not selected")
)

// API is the marketplace surface the editor needs.
type API interface {
	Cart(ctx context.Context) ([]catalog.CartItem, error)
	StoreAddOns(ctx context.Context, storeID string) (catalog.Menu, error)
	UpdateCartItem(ctx context.Context, itemID string, update marketplace.CartItemUpdate) error
}

// Quote is the priced state of an add-on edit.
type Quote struct {
	ItemID     string       `json:"itemId,omitempty"`
	Product    string       `json:"product,omitempty"`
	BasePrice  money.Money  `json:"basePrice"`
	Quantity   int          `json:"quantity"`
	AddOns     []Line       `json:"addOns"`
	AddOnTotal money.Money  `json:"addOnTotal"`
	Total      money.Money  `json:"total"`
	Display    string       `json:"display"`
	Menu       catalog.Menu `json:"menu,omitempty"`
}

// Calculate prices a product with the given add-on lines.
func Calculate(base money.Money, quantity int, lines []Line) Quote {
	if lines == nil {
		lines = []Line{}
	}
	total := Total(base, quantity, lines)
	return Quote{
		BasePrice:  base,
		Quantity:   quantity,
		AddOns:     lines,
		AddOnTotal: total - base.Mul(quantity),
		Total:      total,
		Display:    total.String(),
	}
}

type draft struct {
	token     string
	item      catalog.CartItem
	menu      catalog.Menu
	quantity  int
	selection *Selection
	touched   time.Time
}

func (d *draft) quote() Quote {
	q := Calculate(d.item.BasePrice, d.quantity, d.selection.Lines())
	q.ItemID = d.item.ID
	q.Product = d.item.Name
	q.Menu = d.menu
	return q
}

type draftKey struct {
	viewer string
	item   string
}

// Editor holds in-progress add-on edits per viewer and cart item.
type Editor struct {
	api    API
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	drafts map[draftKey]*draft
}

// NewEditor creates an editor. A zero window uses DefaultDedupeWindow.
func NewEditor(api API, window time.Duration) *Editor {
	if window == 0 {
		window = DefaultDedupeWindow
	}
	return &Editor{api: api, window: window, now: time.Now, drafts: make(map[draftKey]*draft)}
}

// Begin loads the cart item and its store's add-on menu, seeding the
// selection from the add-ons already on the item. Beginning again
// replaces any previous draft.
func (e *Editor) Begin(ctx context.Context, viewerID, itemID string) (Quote, error) {
	items, err := e.api.Cart(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("load cart: %w", err)
	}

	var item *catalog.CartItem
	for i := range items {
		if items[i].ID == itemID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return Quote{}, ErrItemNotFound
	}

	menu, err := e.api.StoreAddOns(ctx, item.StoreID)
	if err != nil {
		return Quote{}, fmt.Errorf("load add-ons for store %s: %w", item.StoreID, err)
	}

	sel := NewSelection(e.window, e.now)
	sel.Restore(item.AddOns)

	d := &draft{
		token:     marketplace.TokenFrom(ctx),
		item:      *item,
		menu:      menu,
		quantity:  ClampQuantity(item.Quantity, item.Stock),
		selection: sel,
		touched:   e.now(),
	}

	e.mu.Lock()
	e.drafts[draftKey{viewerID, itemID}] = d
	q := d.quote()
	e.mu.Unlock()

	log.Ctx(ctx).Debug().Str("viewer", viewerID).Str("item", itemID).Int("addons", sel.Len()).Msg("add-on edit started")
	return q, nil
}

// draftLocked returns the draft started with the same upstream token as ctx.
func (e *Editor) draftLocked(ctx context.Context, viewerID, itemID string) (*draft, bool) {
	d, ok := e.drafts[draftKey{viewerID, itemID}]
	if !ok || subtle.ConstantTimeCompare([]byte(d.token), []byte(marketplace.TokenFrom(ctx))) != 1 {
		return nil, false
	}
	d.touched = e.now()
	return d, true
}

// Select adds one unit of an add-on from the store menu.
func (e *Editor) Select(ctx context.Context, viewerID, itemID, categoryID, addOnID, variantID string) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.draftLocked(ctx, viewerID, itemID)
	if !ok {
		return Quote{}, ErrNoEdit
	}

	key := Key(categoryID, addOnID, variantID)
	if line, ok := d.selection.Get(key); ok {
		addOn := catalog.AddOn{ID: line.AddOnID, Name: line.Name, BasePrice: line.UnitPrice}
		var variant *catalog.Variant
		if line.VariantID != "" {
			variant = &catalog.Variant{ID: line.VariantID, Value: line.Variant}
		}
		d.selection.Increment(categoryID, addOn, variant)
		return d.quote(), nil
	}

	addOn, variant, ok := d.menu.Find(categoryID, addOnID, variantID)
	if !ok {
		return Quote{}, ErrUnknownAddOn
	}
	d.selection.Increment(categoryID, addOn, variant)
	return d.quote(), nil
}

// Deselect removes one unit of the line under key.
func (e *Editor) Deselect(ctx context.Context, viewerID, itemID, key string) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.draftLocked(ctx, viewerID, itemID)
	if !ok {
		return Quote{}, ErrNoEdit
	}
	if _, ok := d.selection.Get(key); !ok {
		return Quote{}, ErrLineNotPresent
	}
	d.selection.Decrement(key)
	return d.quote(), nil
}

// SetQuantity sets the product quantity, clamped to [1, stock].
func (e *Editor) SetQuantity(ctx context.Context, viewerID, itemID string, quantity int) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.draftLocked(ctx, viewerID, itemID)
	if !ok {
		return Quote{}, ErrNoEdit
	}
	d.quantity = ClampQuantity(quantity, d.item.Stock)
	return d.quote(), nil
}

// Quote returns the current priced state of the draft.
func (e *Editor) Quote(ctx context.Context, viewerID, itemID string) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.draftLocked(ctx, viewerID, itemID)
	if !ok {
		return Quote{}, ErrNoEdit
	}
	return d.quote(), nil
}

// Commit writes quantity and add-ons back to the cart item and ends the
// edit. A failed write keeps the draft so the viewer can retry.
func (e *Editor) Commit(ctx context.Context, viewerID, itemID string) (Quote, error) {
	key := draftKey{viewerID, itemID}

	e.mu.Lock()
	d, ok := e.draftLocked(ctx, viewerID, itemID)
	if !ok {
		e.mu.Unlock()
		return Quote{}, ErrNoEdit
	}
	q := d.quote()
	e.mu.Unlock()

	update := marketplace.CartItemUpdate{Quantity: q.Quantity, AddOns: make([]marketplace.CartAddOnLine, 0, len(q.AddOns))}
	for _, l := range q.AddOns {
		line := marketplace.CartAddOnLine{AddOnID: l.AddOnID, Quantity: l.Quantity, Price: l.Amount()}
		if l.VariantID != "" {
			variantID := l.VariantID
			line.VariantID = &variantID
		}
		update.AddOns = append(update.AddOns, line)
	}

	if err := e.api.UpdateCartItem(ctx, itemID, update); err != nil {
		return Quote{}, fmt.Errorf("update cart item %s: %w", itemID, err)
	}

	e.mu.Lock()
	if cur, ok := e.drafts[key]; ok && cur == d {
		delete(e.drafts, key)
	}
	e.mu.Unlock()

	log.Ctx(ctx).Info().Str("viewer", viewerID).Str("item", itemID).Str("total", q.Display).Msg("add-ons committed")
	return q, nil
}

// Discard drops the draft without writing anything.
func (e *Editor) Discard(ctx context.Context, viewerID, itemID string) {
	e.mu.Lock()
	if _, ok := e.draftLocked(ctx, viewerID, itemID); ok {
		delete(e.drafts, draftKey{viewerID, itemID})
	}
	e.mu.Unlock()
}

// Sweep drops drafts untouched for longer than ttl and returns how many
// were removed.
func (e *Editor) Sweep(ttl time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := e.now().Add(-ttl)
	removed := 0
	for k, d := range e.drafts {
		if d.touched.Before(cutoff) {
			delete(e.drafts, k)
			removed++
		}
	}
	return removed
}

// Run sweeps abandoned drafts every ttl until ctx is done.
func (e *Editor) Run(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.Sweep(ttl); n > 0 {
				log.Ctx(ctx).Debug().Int("drafts", n).Msg("dropped idle add-on drafts")
			}
		}
	}
}
