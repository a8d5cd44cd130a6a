// Package orderform renders a production order as a printable xlsx order
// form for the supplier.
package orderform

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"glazing-backend/internal/storage"
)

type OrderFormStorage interface {
	GetOrder(ctx context.Context, id string) (*storage.ProductionOrder, error)
}

type Service struct {
	storage OrderFormStorage
}

func NewService(st OrderFormStorage) *Service {
	return &Service{storage: st}
}

var headers = []string{"#", "Glass Type", "Description", "Combination", "Qty", "Unit", "Received", "Notes"}

// Generate builds the xlsx form for one order.
func (g *Service) Generate(ctx context.Context, orderID string) ([]byte, error) {
	order, err := g.storage.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Order Form"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})

	f.SetCellValue(sheet, "A1", fmt.Sprintf("Order %s - %s", order.ID, order.JobTitle))
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	f.SetCellValue(sheet, "A2", "Customer: "+order.CustomerName)
	f.SetCellValue(sheet, "A3", "Supplier: "+order.SupplierName)
	f.SetCellValue(sheet, "A4", "Ordered: "+order.CreatedAt)
	if order.EstimatedDelivery != "" {
		f.SetCellValue(sheet, "B4", "Delivery due: "+order.EstimatedDelivery)
	}

	const headerRow = 6
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, headerRow), name)
	}
	f.SetCellStyle(sheet, cellName(1, headerRow), cellName(len(headers), headerRow), headerStyle)

	for i, line := range order.Items {
		row := headerRow + 1 + i
		f.SetCellValue(sheet, cellName(1, row), i+1)
		f.SetCellValue(sheet, cellName(2, row), line.GlassType)
		f.SetCellValue(sheet, cellName(3, row), line.GlassName)
		f.SetCellValue(sheet, cellName(4, row), line.Combination)
		f.SetCellValue(sheet, cellName(5, row), line.Quantity)
		f.SetCellValue(sheet, cellName(6, row), line.Unit)
		f.SetCellValue(sheet, cellName(7, row), line.ReceivedQty)
		f.SetCellValue(sheet, cellName(8, row), line.Notes)
	}

	totalRow := headerRow + 1 + len(order.Items)
	f.SetCellValue(sheet, cellName(4, totalRow), "Total")
	f.SetCellValue(sheet, cellName(5, totalRow), totalQty(order))
	f.SetCellStyle(sheet, cellName(4, totalRow), cellName(5, totalRow), headerStyle)

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      headerRow,
		TopLeftCell: fmt.Sprintf("A%d", headerRow+1),
	})
	f.SetColWidth(sheet, "B", "D", 22)
	f.SetColWidth(sheet, "H", "H", 30)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func totalQty(order *storage.ProductionOrder) int {
	total := 0
	for _, line := range order.Items {
		total += line.Quantity
	}
	return total
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
