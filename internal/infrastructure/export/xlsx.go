package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
)

const (
	overviewSheet = "Overview"
	vendorsSheet  = "Vendors"
)

// XLSXRenderer lays the admin report out as a two-sheet workbook.
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer {
	return &XLSXRenderer{}
}

func (r *XLSXRenderer) RenderXLSX(report *domain.AdminReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return nil, fmt.Errorf("rename overview sheet: %w", err)
	}
	_ = f.SetCellValue(overviewSheet, "A1", "Total Invoices Parsed")
	_ = f.SetCellValue(overviewSheet, "B1", report.TotalCount)
	_ = f.SetColWidth(overviewSheet, "A", "A", 24)

	if _, err := f.NewSheet(vendorsSheet); err != nil {
		return nil, fmt.Errorf("create vendors sheet: %w", err)
	}
	for i, h := range []string{"Vendor", "Invoices", "Total Amount"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(vendorsSheet, cell, h)
	}
	for i, v := range report.Vendors {
		row := i + 2
		write := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(vendorsSheet, cell, value)
		}
		write(1, v.Vendor)
		write(2, v.Count)
		write(3, v.Amount)
	}
	_ = f.SetColWidth(vendorsSheet, "A", "A", 32)
	_ = f.SetColWidth(vendorsSheet, "B", "C", 14)

	if index, err := f.GetSheetIndex(overviewSheet); err == nil {
		f.SetActiveSheet(index)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
