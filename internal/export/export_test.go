package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
)

func sampleRecords(n int) []core.Record {
	base := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	out := make([]core.Record, n)
	for i := range out {
		out[i] = core.Record{
			ID:          fmt.Sprintf("r%d", i),
			Kind:        core.KindExpense,
			Amount:      core.Money{Cents: int64(1000 + i)},
			Category:    "Groceries",
			Description: fmt.Sprintf("item %d", i),
			OccurredAt:  base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("pdf"); err != nil || f != FormatPDF {
		t.Fatalf("expected pdf, got %q %v", f, err)
	}
	if _, err := ParseFormat("csv"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected unknown format, got %v", err)
	}
	name := FileName("transactions", FormatXLSX, time.Date(2025, 3, 4, 15, 4, 5, 0, time.UTC))
	if name != "transactions_20250304_150405.xlsx" {
		t.Fatalf("unexpected file name %q", name)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleRecords(3)); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "Date,Description,Amount,Category" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "2025-03-01 09:30" || rows[1][1] != "item 0" || rows[1][3] != "Groceries" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	raw, err := f.GetCellValue(sheetName, "C2", excelize.Options{RawCellValue: true})
	if err != nil || raw != "10" {
		t.Fatalf("expected numeric amount 10, got %q (%v)", raw, err)
	}
}

func TestWritePDFPaginates(t *testing.T) {
	pdf := renderPDF("Transactions", sampleRecords(120))
	if err := pdf.Error(); err != nil {
		t.Fatalf("render: %v", err)
	}
	if pdf.PageNo() < 3 {
		t.Fatalf("expected at least 3 pages for 120 rows, got %d", pdf.PageNo())
	}

	var buf bytes.Buffer
	if err := WritePDF(&buf, "Transactions", sampleRecords(2)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}
