package seller

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/internal/service/sales"
)

func TestSalesExport(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("store_id") != "3" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"success":true,"orders":[
			{"id":1,"status":"delivered","payment_method":"cod","total_amount":"75.00","created_at":"2024-05-01 08:00:00"}]}`)
	}))
	defer upstream.Close()

	r := chi.NewRouter()
	New(sales.NewExporter(marketplace.New(upstream.URL, "", 0))).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/seller/sales.xlsx?store_id=3", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Disposition"), `attachment; filename="sales_3_`) {
		t.Fatalf("unexpected disposition %q", resp.Header().Get("Content-Disposition"))
	}

	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("OpenReader err: %v", err)
	}
	defer f.Close()
	v, _ := f.GetCellValue(sales.SheetName, "A2")
	if v != "1" {
		t.Fatalf("expected order id in A2, got %q", v)
	}
}

func TestSalesExportRequiresStore(t *testing.T) {
	r := chi.NewRouter()
	New(sales.NewExporter(marketplace.New("http://127.0.0.1:1", "", 0))).RegisterRoutes(r)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/seller/sales.xlsx", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
