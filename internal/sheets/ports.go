// Package sheets defines the outbound port for copying records into a spreadsheet.
package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Columns is the header row written to an empty mirror sheet.
var Columns = []string{"ID", "Date", "Kind", "Category", "Source", "Description", "Amount", "Owner"}

type (
	// Mirror keeps a spreadsheet copy of the record store. Rows are keyed by record id.
	Mirror interface {
		AppendRecord(ctx context.Context, r core.Record) (rowRef string, err error)
		// DeleteRecord removes every row carrying id. A missing row is not an error.
		DeleteRecord(ctx context.Context, id string) error
	}
)
