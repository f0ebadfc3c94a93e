package google

import (
	"fmt"
	"sort"
	"strings"

	"fintrack/internal/core"
)

const dateLayout = "2006-01-02 15:04"

// recordRow lays a record out in sheets.Columns order. Amounts are written as
// plain decimals so USER_ENTERED input turns them into numbers.
func recordRow(r core.Record) []any {
	return []any{
		r.ID,
		r.OccurredAt.Format(dateLayout),
		string(r.Kind),
		r.Category,
		r.Source,
		r.Description,
		r.Amount.Plain(),
		r.OwnerID,
	}
}

// matchingRows returns the zero-based row indexes whose first cell equals id,
// highest first so rows can be deleted without shifting the rest.
func matchingRows(values [][]any, id string) []int64 {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	var rows []int64
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			rows = append(rows, int64(i))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] > rows[j] })
	return rows
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
