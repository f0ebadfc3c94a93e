package core

import (
	"sort"
	"time"
)

// UncategorizedLabel groups income rows that were saved without a category.
const UncategorizedLabel = "Uncategorized"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthTotal is one bucket of a monthly trend, labelled by short month name.
type MonthTotal struct {
	Year  int
	Month time.Month
	Label string
	Total Money
}

// RealExpenses drops budget sentinels, keeping only rows that represent spending.
func RealExpenses(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.IsSentinel() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Total sums the amounts of the real records.
func Total(records []Record) Money {
	var total Money
	for _, r := range records {
		if r.IsSentinel() {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total
}

// SumByCategory groups real records by category label. Categories with no
// records are absent from the result.
func SumByCategory(records []Record) map[string]Money {
	sums := make(map[string]Money)
	for _, r := range records {
		if r.IsSentinel() {
			continue
		}
		sums[r.Category] = sums[r.Category].Add(r.Amount)
	}
	return sums
}

// SortedByAmount turns a category map into a slice ordered by amount descending,
// ties broken by name so output is stable.
func SortedByAmount(sums map[string]Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(sums))
	for name, amt := range sums {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopCategory returns the category with the highest total, or false when there is none.
func TopCategory(records []Record) (CategoryAmount, bool) {
	sorted := SortedByAmount(SumByCategory(records))
	if len(sorted) == 0 {
		return CategoryAmount{}, false
	}
	return sorted[0], true
}

// IncomeByCategory groups income rows by category, empty categories under UncategorizedLabel.
func IncomeByCategory(records []Record) map[string]Money {
	sums := make(map[string]Money)
	for _, r := range records {
		name := r.Category
		if name == "" {
			name = UncategorizedLabel
		}
		sums[name] = sums[name].Add(r.Amount)
	}
	return sums
}

// MonthlyTotals buckets real records into the monthCount calendar months ending
// at now's month, oldest first. Records outside the window are ignored.
func MonthlyTotals(records []Record, monthCount int, now time.Time) []MonthTotal {
	if monthCount <= 0 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	buckets := make([]MonthTotal, monthCount)
	index := make(map[int]int, monthCount)
	for i := 0; i < monthCount; i++ {
		m := first.AddDate(0, -(monthCount - 1 - i), 0)
		buckets[i] = MonthTotal{Year: m.Year(), Month: m.Month(), Label: m.Format("Jan")}
		index[monthKey(m.Year(), m.Month())] = i
	}
	for _, r := range records {
		if r.IsSentinel() {
			continue
		}
		at := r.OccurredAt.In(now.Location())
		i, ok := index[monthKey(at.Year(), at.Month())]
		if !ok {
			continue
		}
		buckets[i].Total = buckets[i].Total.Add(r.Amount)
	}
	return buckets
}

func monthKey(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

// DailyAverage is the mean amount per real record, rounded half-up to the cent.
// An empty sequence averages to zero.
func DailyAverage(records []Record) Money {
	var total int64
	var count int64
	for _, r := range records {
		if r.IsSentinel() {
			continue
		}
		total += r.Amount.Cents
		count++
	}
	if count == 0 {
		return Money{}
	}
	return Money{Cents: (total + count/2) / count}
}

// Count returns the number of real records.
func Count(records []Record) int {
	n := 0
	for _, r := range records {
		if !r.IsSentinel() {
			n++
		}
	}
	return n
}

// DistinctCategories lists the categories present in real records, sorted.
func DistinctCategories(records []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.IsSentinel() || r.Category == "" {
			continue
		}
		seen[r.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
