package sales_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ecomxpert/storefront/backend/internal/model/order"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/internal/service/sales"
)

type fakeOrders struct {
	filter marketplace.OrderFilter
	orders []order.Order
	err    error
}

func (f *fakeOrders) Orders(_ context.Context, filter marketplace.OrderFilter) ([]order.Order, error) {
	f.filter = filter
	return f.orders, f.err
}

func TestExportWorkbook(t *testing.T) {
	day := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	src := &fakeOrders{orders: []order.Order{
		{ID: "1", Status: order.StatusDelivered, PaymentMethod: "cod", Total: 7500, CreatedAt: day},
		{ID: "2", Status: order.StatusCancelled, PaymentMethod: "gcash", Total: 2000, CreatedAt: day.Add(time.Hour)},
		{ID: "3", Status: order.StatusPending, PaymentMethod: "cod", Total: 12550, CreatedAt: day.Add(2 * time.Hour)},
	}}

	var buf bytes.Buffer
	sum, err := sales.NewExporter(src).Export(context.Background(), "s9", &buf)
	if err != nil {
		t.Fatalf("Export err: %v", err)
	}
	if src.filter.StoreID != "s9" {
		t.Fatalf("expected store filter, got %+v", src.filter)
	}
	if sum.Orders != 3 || sum.Cancelled != 1 || sum.Revenue != 20050 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader err: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sales.SheetName)
	if err != nil {
		t.Fatalf("GetRows err: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header, 3 orders, blank and summary rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Order ID" || rows[0][4] != "Total" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "3" {
		t.Fatalf("expected newest order first, got %v", rows[1])
	}
	if rows[5][0] != "Total" || rows[5][4] != "200.5" {
		t.Fatalf("unexpected summary row: %v", rows[5])
	}
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		t.Fatalf("default sheet should be removed")
	}
}

func TestExportErrors(t *testing.T) {
	exp := sales.NewExporter(&fakeOrders{err: errors.New("boom")})
	if _, err := exp.Export(context.Background(), "", &bytes.Buffer{}); !errors.Is(err, sales.ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
	if _, err := exp.Export(context.Background(), "s1", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected upstream error")
	}
}
