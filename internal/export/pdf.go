package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"fintrack/internal/core"
)

const (
	rowHeight = 7.0
	margin    = 12.0
)

// column widths in mm, matching Columns
var widths = []float64{36, 86, 30, 34}

// WritePDF renders records as an A4 table. The header row repeats on every page.
func WritePDF(w io.Writer, title string, records []core.Record) error {
	pdf := renderPDF(title, records)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func renderPDF(title string, records []core.Record) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, c := range Columns {
			align := "L"
			if i == 2 {
				align = "R"
			}
			pdf.CellFormat(widths[i], rowHeight, c, "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	header()

	_, pageH := pdf.GetPageSize()
	for _, r := range records {
		if pdf.GetY()+rowHeight > pageH-2*margin {
			pdf.AddPage()
			header()
		}
		cells := []string{
			r.OccurredAt.Format(dateLayout),
			fit(pdf, tr(r.Description), widths[1]-2),
			r.Amount.Plain(),
			fit(pdf, tr(r.Category), widths[3]-2),
		}
		for i, c := range cells {
			align := "L"
			if i == 2 {
				align = "R"
			}
			pdf.CellFormat(widths[i], rowHeight, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf
}

// fit shortens s with an ellipsis until it fits in width.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
