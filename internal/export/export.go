// Package export writes the currently displayed record list as a spreadsheet
// or a paginated PDF table with the columns date, description, amount, category.
package export

import (
	"errors"
	"fmt"
	"time"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Columns is the fixed column order of every export.
var Columns = []string{"Date", "Description", "Amount", "Category"}

const dateLayout = "2006-01-02 15:04"

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatXLSX, FormatPDF:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileName builds e.g. "transactions_20250304_150405.xlsx".
func FileName(prefix string, f Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), f)
}
