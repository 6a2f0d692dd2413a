package address

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ecomxpert/storefront/backend/internal/model/address"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
)

type memoryBook struct {
	saved   []address.Address
	deleted []string
}

func (b *memoryBook) Addresses(context.Context) ([]address.Address, error) {
	return b.saved, nil
}

func (b *memoryBook) AddAddress(_ context.Context, a address.Address) (address.Address, error) {
	a.ID = "a1"
	b.saved = append(b.saved, a)
	return a, nil
}

func (b *memoryBook) UpdateAddress(_ context.Context, id string, a address.Address) (address.Address, error) {
	if id != "a1" {
		return address.Address{}, &marketplace.APIError{Status: http.StatusNotFound, Message: "Address not found"}
	}
	return a, nil
}

func (b *memoryBook) DeleteAddress(_ context.Context, id string) error {
	b.deleted = append(b.deleted, id)
	return nil
}

func setupRouter(book *memoryBook) *chi.Mux {
	r := chi.NewRouter()
	New(book).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

const mapDraft = `{"method":"map","fullName":"Juan","phone":"0917","latitude":14.6,"longitude":120.98,
	"province":{"name":"Metro Manila"},"city":{"name":"Manila"}}`

func TestValidate(t *testing.T) {
	r := setupRouter(&memoryBook{})

	resp := do(r, http.MethodPost, "/addresses/validate", `{"method":"select","fullName":"Juan","phone":"0917"}`)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"valid":false`) {
		t.Fatalf("unexpected validate response: %d %s", resp.Code, resp.Body.String())
	}

	resp = do(r, http.MethodPost, "/addresses/validate", mapDraft)
	if !strings.Contains(resp.Body.String(), `"valid":true`) || !strings.Contains(resp.Body.String(), `"latitude":14.6`) {
		t.Fatalf("unexpected validate response: %s", resp.Body.String())
	}
}

func TestCreateRejectsIncompleteDraft(t *testing.T) {
	book := &memoryBook{}
	r := setupRouter(book)
	if resp := do(r, http.MethodPost, "/addresses", `{"fullName":"Juan"}`); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	if len(book.saved) != 0 {
		t.Fatalf("nothing should be saved")
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	book := &memoryBook{}
	r := setupRouter(book)

	resp := do(r, http.MethodPost, "/addresses", mapDraft)
	if resp.Code != http.StatusCreated || !strings.Contains(resp.Body.String(), `"id":"a1"`) {
		t.Fatalf("unexpected create: %d %s", resp.Code, resp.Body.String())
	}
	if book.saved[0].City != "Manila" || book.saved[0].Label != "home" {
		t.Fatalf("unexpected saved address: %+v", book.saved[0])
	}

	if resp := do(r, http.MethodPut, "/addresses/zz", mapDraft); resp.Code != http.StatusNotFound {
		t.Fatalf("expected upstream 404 to pass through, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPut, "/addresses/a1", mapDraft); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	if resp := do(r, http.MethodDelete, "/addresses/a1", ""); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if len(book.deleted) != 1 || book.deleted[0] != "a1" {
		t.Fatalf("unexpected deletes: %v", book.deleted)
	}
}
