package geo

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	geoService "github.com/ecomxpert/storefront/backend/internal/service/geo"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/regions/13/provinces/":
			io.WriteString(w, `[{"code":"1339","name":"Manila","regionCode":"13"}]`)
		case r.URL.Path == "/reverse" && r.URL.Query().Get("lat") == "0":
			io.WriteString(w, `{"error":"Unable to geocode"}`)
		case r.URL.Path == "/reverse":
			io.WriteString(w, `{"display_name":"Cebu City","lat":"10.3","lon":"123.9","address":{"state":"Central Visayas","city":"Cebu City"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	svc := geoService.NewService(
		geoService.NewPSGC(upstream.URL, nil),
		geoService.NewNominatim(upstream.URL, "test", nil),
		nil, time.Minute,
	)
	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestProvinces(t *testing.T) {
	r := setupRouter(t)
	resp := get(r, "/geo/regions/13/provinces")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"name":"Manila"`) {
		t.Fatalf("unexpected response: %d %s", resp.Code, resp.Body.String())
	}
}

func TestReverse(t *testing.T) {
	r := setupRouter(t)

	resp := get(r, "/geo/reverse?lat=10.3&lon=123.9")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `"province":"Central Visayas"`) || !strings.Contains(body, `"city":"Cebu City"`) {
		t.Fatalf("unexpected reverse body: %s", body)
	}

	if resp := get(r, "/geo/reverse?lat=0&lon=0"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for no result, got %d", resp.Code)
	}
	if resp := get(r, "/geo/reverse?lat=abc"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad coordinates, got %d", resp.Code)
	}
}

func TestSearchValidation(t *testing.T) {
	r := setupRouter(t)
	if resp := get(r, "/geo/search?q="); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank query, got %d", resp.Code)
	}
	if resp := get(r, "/geo/search?q=manila&limit=0"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.Code)
	}
	if resp := get(r, "/geo/regions"); resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream failure, got %d", resp.Code)
	}
}
