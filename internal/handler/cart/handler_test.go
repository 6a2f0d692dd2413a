package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/middleware"
	"github.com/ecomxpert/storefront/backend/internal/model/catalog"
	"github.com/ecomxpert/storefront/backend/internal/model/money"
	cartService "github.com/ecomxpert/storefront/backend/internal/service/cart"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
)

type stubAPI struct {
	updated *marketplace.CartItemUpdate
}

func (s *stubAPI) Cart(context.Context) ([]catalog.CartItem, error) {
	return []catalog.CartItem{{ID: "ci1", StoreID: "s1", Name: "Adobo", BasePrice: money.FromPesos(50), Quantity: 1, Stock: 4}}, nil
}

func (s *stubAPI) StoreAddOns(context.Context, string) (catalog.Menu, error) {
	return catalog.Menu{{ID: "1", Name: "Extras", AddOns: []catalog.AddOn{
		{ID: "a", Name: "Rice", BasePrice: money.FromPesos(10)},
		{ID: "b", Name: "Egg", BasePrice: money.FromPesos(5)},
	}}}, nil
}

func (s *stubAPI) UpdateCartItem(_ context.Context, _ string, update marketplace.CartItemUpdate) error {
	s.updated = &update
	return nil
}

func setupRouter(api *stubAPI) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Viewer)
	New(cartService.NewEditor(api, -1)).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, cartService.Quote) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ViewerHeader, "u1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	var q cartService.Quote
	json.Unmarshal(resp.Body.Bytes(), &q)
	return resp, q
}

func TestQuoteWorkedExample(t *testing.T) {
	r := setupRouter(&stubAPI{})
	body := `{"basePrice":"50.00","quantity":1,"addOns":[
		{"categoryId":"1","addonId":"a","name":"Rice","unitPrice":10,"quantity":2},
		{"categoryId":"1","addonId":"b","name":"Egg","unitPrice":5,"quantity":1}]}`

	resp, q := do(r, http.MethodPost, "/cart/quote", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if q.Total != money.FromPesos(75) || q.Display != "₱75.00" || q.AddOnTotal != money.FromPesos(25) {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if q.AddOns[0].Key != "1-a" {
		t.Fatalf("unexpected key %q", q.AddOns[0].Key)
	}
}

func TestQuoteClampsQuantity(t *testing.T) {
	r := setupRouter(&stubAPI{})
	_, q := do(r, http.MethodPost, "/cart/quote", `{"basePrice":20,"quantity":9,"stock":3}`)
	if q.Quantity != 3 || q.Total != money.FromPesos(60) {
		t.Fatalf("unexpected clamped quote: %+v", q)
	}
	_, q = do(r, http.MethodPost, "/cart/quote", `{"basePrice":20,"quantity":0}`)
	if q.Quantity != 1 {
		t.Fatalf("expected quantity floor of 1, got %d", q.Quantity)
	}
}

func TestEditorRoutes(t *testing.T) {
	api := &stubAPI{}
	r := setupRouter(api)
	base := "/cart/items/ci1/addons"

	if resp, _ := do(r, http.MethodPost, base+"/select", `{"categoryId":"1","addonId":"a"}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before begin, got %d", resp.Code)
	}

	resp, q := do(r, http.MethodPost, base, "")
	if resp.Code != http.StatusOK || q.Total != money.FromPesos(50) || len(q.Menu) != 1 {
		t.Fatalf("unexpected begin: %d %+v", resp.Code, q)
	}

	do(r, http.MethodPost, base+"/select", `{"categoryId":"1","addonId":"a"}`)
	do(r, http.MethodPost, base+"/select", `{"categoryId":"1","addonId":"a"}`)
	_, q = do(r, http.MethodPost, base+"/select", `{"categoryId":"1","addonId":"b"}`)
	if q.Total != money.FromPesos(75) {
		t.Fatalf("expected ₱75 after selections, got %s", q.Total)
	}

	if resp, _ := do(r, http.MethodPost, base+"/select", `{"categoryId":"1","addonId":"zzz"}`); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown add-on, got %d", resp.Code)
	}

	_, q = do(r, http.MethodPost, base+"/deselect", `{"key":"1-b"}`)
	if q.Total != money.FromPesos(70) {
		t.Fatalf("expected ₱70 after deselect, got %s", q.Total)
	}

	_, q = do(r, http.MethodPut, base+"/quantity", `{"quantity":2}`)
	if q.Total != money.FromPesos(120) {
		t.Fatalf("expected ₱120 for two units, got %s", q.Total)
	}

	resp, _ = do(r, http.MethodPost, base+"/commit", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("commit failed: %d %s", resp.Code, resp.Body.String())
	}
	if api.updated == nil || api.updated.Quantity != 2 || len(api.updated.AddOns) != 1 {
		t.Fatalf("unexpected update payload: %+v", api.updated)
	}
	if api.updated.AddOns[0].Price != money.FromPesos(20) {
		t.Fatalf("expected line amount ₱20, got %s", api.updated.AddOns[0].Price)
	}

	if resp, _ := do(r, http.MethodGet, base, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("draft should end after commit, got %d", resp.Code)
	}
}
