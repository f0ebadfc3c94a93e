package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
)

const sheetName = "Transactions"

// WriteXLSX writes one sheet with a header row and one row per record. Amounts
// are numeric cells so the spreadsheet can sum them.
func WriteXLSX(w io.Writer, records []core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, header := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		values := []any{
			r.OccurredAt.Format(dateLayout),
			r.Description,
			r.Amount.Decimal().InexactFloat64(),
			r.Category,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
		amountCell := fmt.Sprintf("C%d", row)
		if err := f.SetCellStyle(sheetName, amountCell, amountCell, money); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "B", "B", 40)
	_ = f.SetColWidth(sheetName, "C", "D", 16)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
