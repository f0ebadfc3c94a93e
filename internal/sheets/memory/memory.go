// Package memory is an in-process sheets.Mirror used when no spreadsheet is
// configured and as a fake in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows []core.Record
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

// AppendRecord stores the row and returns a synthetic row reference.
func (m *Mirror) AppendRecord(_ context.Context, r core.Record) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("record has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, r)
	// row 1 holds the header in a real sheet
	return fmt.Sprintf("mem:%d", len(m.rows)+1), nil
}

func (m *Mirror) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

// Rows returns a copy of the mirrored rows in insertion order.
func (m *Mirror) Rows() []core.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Record(nil), m.rows...)
}
