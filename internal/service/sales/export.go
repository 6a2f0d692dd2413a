// Package sales renders a seller's orders as a spreadsheet.
package sales

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/ecomxpert/storefront/backend/internal/model/money"
	"github.com/ecomxpert/storefront/backend/internal/model/order"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

const SheetName = "Sales"

var ErrStoreRequired = errors.New("store id is required")

var headers = []string{"Order ID", "Date", "Status", "Payment Method", "Total"}

// OrderLister is the part of the marketplace client the export needs.
type OrderLister interface {
	Orders(ctx context.Context, filter marketplace.OrderFilter) ([]order.Order, error)
}

// Summary totals an export. Cancelled orders are listed but not counted
// as revenue.
type Summary struct {
	Orders    int
	Cancelled int
	Revenue   money.Money
}

type Exporter struct {
	orders OrderLister
}

func NewExporter(orders OrderLister) *Exporter {
	return &Exporter{orders: orders}
}

// Export writes the store's orders, newest first, as an XLSX workbook to w.
func (e *Exporter) Export(ctx context.Context, storeID string, w io.Writer) (Summary, error) {
	if storeID == "" {
		return Summary{}, ErrStoreRequired
	}
	orders, err := e.orders.Orders(ctx, marketplace.OrderFilter{StoreID: storeID})
	if err != nil {
		return Summary{}, fmt.Errorf("list store orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	f, sum, err := build(orders)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("close workbook")
		}
	}()

	if _, err := f.WriteTo(w); err != nil {
		return Summary{}, fmt.Errorf("write workbook: %w", err)
	}
	log.Ctx(ctx).Info().
		Str("store_id", storeID).
		Int("orders", sum.Orders).
		Str("revenue", sum.Revenue.Decimal()).
		Msg("sales export written")
	return sum, nil
}

func build(orders []order.Order) (*excelize.File, Summary, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, Summary{}, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, Summary{}, err
		}
	}

	var sum Summary
	row := 2
	for _, o := range orders {
		values := []interface{}{
			o.ID,
			o.CreatedAt.Format("2006-01-02 15:04"),
			o.Status,
			o.PaymentMethod,
			o.Total.Pesos(),
		}
		if o.CreatedAt.IsZero() {
			values[1] = ""
		}
		if err := setRow(f, row, values); err != nil {
			return nil, Summary{}, err
		}
		row++

		sum.Orders++
		if o.Status == order.StatusCancelled {
			sum.Cancelled++
			continue
		}
		sum.Revenue += o.Total
	}

	if err := setRow(f, row+1, []interface{}{"Total", fmt.Sprintf("%d orders", sum.Orders), fmt.Sprintf("%d cancelled", sum.Cancelled), "", sum.Revenue.Pesos()}); err != nil {
		return nil, Summary{}, err
	}
	return f, sum, nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(SheetName, cell, &values)
}
