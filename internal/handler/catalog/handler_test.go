package catalog

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/middleware"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
)

type upstreamLog struct {
	paths   []string
	queries []string
	bodies  []string
	auth    []string
}

func setupRouter(t *testing.T) (*chi.Mux, *upstreamLog) {
	t.Helper()
	seen := &upstreamLog{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen.paths = append(seen.paths, r.Method+" "+r.URL.Path)
		seen.queries = append(seen.queries, r.URL.RawQuery)
		seen.bodies = append(seen.bodies, string(body))
		seen.auth = append(seen.auth, r.Header.Get("Authorization"))

		switch {
		case r.URL.Path == "/api/products":
			io.WriteString(w, `{"products":[{"id":7,"store_id":2,"name":"Adobo","price":"120.00","stock":"5","image":"adobo.jpg"}]}`)
		case r.URL.Path == "/api/orders" && r.Method == http.MethodGet:
			io.WriteString(w, `{"success":true,"orders":[{"id":1,"status":"pending","total_amount":"75.00"}]}`)
		case r.URL.Path == "/api/orders" && r.Method == http.MethodPost:
			io.WriteString(w, `{"success":true,"order_ids":[11,12]}`)
		case r.URL.Path == "/api/orders/cancel/11":
			io.WriteString(w, `{"success":false,"message":"Order already shipped"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"Not found"}`)
		}
	}))
	t.Cleanup(upstream.Close)

	r := chi.NewRouter()
	r.Use(middleware.Viewer)
	New(marketplace.New(upstream.URL, "", 0)).RegisterRoutes(r)
	return r, seen
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ViewerHeader, "u5")
	req.Header.Set("Authorization", "Bearer tok")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestProductsPassesFiltersAndToken(t *testing.T) {
	r, seen := setupRouter(t)
	resp := do(r, http.MethodGet, "/products?store_id=2&store_type=food", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var products []struct {
		ID    string `json:"id"`
		Image string `json:"image"`
	}
	json.Unmarshal(resp.Body.Bytes(), &products)
	if len(products) != 1 || products[0].ID != "7" || !strings.HasSuffix(products[0].Image, "/uploads/products/adobo.jpg") {
		t.Fatalf("unexpected products: %+v", products)
	}
	if !strings.Contains(seen.queries[0], "store_id=2") || seen.auth[0] != "Bearer tok" {
		t.Fatalf("filters or token not forwarded: %q %q", seen.queries[0], seen.auth[0])
	}
}

func TestOrdersDefaultsToViewer(t *testing.T) {
	r, seen := setupRouter(t)
	resp := do(r, http.MethodGet, "/orders", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"total":75.00`) {
		t.Fatalf("unexpected orders: %d %s", resp.Code, resp.Body.String())
	}
	if seen.queries[0] != "userId=u5" {
		t.Fatalf("expected viewer filter, got %q", seen.queries[0])
	}
}

func TestPlaceAndCancelOrder(t *testing.T) {
	r, seen := setupRouter(t)

	if resp := do(r, http.MethodPost, "/orders", `{"cartItems":[]}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d", resp.Code)
	}

	resp := do(r, http.MethodPost, "/orders", `{"cartItems":[{"id":"7","store_id":"2","quantity":1,"price":120}],"total":120}`)
	if resp.Code != http.StatusCreated || !strings.Contains(resp.Body.String(), `"orderIds":["11","12"]`) {
		t.Fatalf("unexpected place order: %d %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(seen.bodies[len(seen.bodies)-1], `"userId":"u5"`) {
		t.Fatalf("viewer not used as order user: %s", seen.bodies[len(seen.bodies)-1])
	}

	resp = do(r, http.MethodPut, "/orders/11/cancel", "")
	if resp.Code != http.StatusUnprocessableEntity || !strings.Contains(resp.Body.String(), "Order already shipped") {
		t.Fatalf("expected rejected cancel to fail, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestUnknownStoreIsNotFound(t *testing.T) {
	r, _ := setupRouter(t)
	if resp := do(r, http.MethodGet, "/stores/99", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
