// Package taxonomy holds the allow-lists used to validate category and source
// labels, loaded from plain text files (one label per line, # comments).
package taxonomy

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync/atomic"

	"fintrack/internal/core"
)

// Lists is one consistent snapshot of every allow-list.
type Lists struct {
	Expense          *core.AllowList
	IncomeSources    *core.AllowList
	IncomeCategories *core.AllowList
}

func DefaultLists() *Lists {
	return &Lists{
		Expense:          core.NewAllowList(core.DefaultExpenseCategories),
		IncomeSources:    core.NewAllowList(core.DefaultIncomeSources),
		IncomeCategories: core.NewAllowList(core.DefaultIncomeCategories),
	}
}

// Taxonomy serves the current Lists and swaps them atomically on reload.
type Taxonomy struct {
	categoriesFile string
	sourcesFile    string
	current        atomic.Pointer[Lists]
}

// New loads the files once. Empty paths and missing files fall back to the
// built-in defaults; unreadable files are an error.
func New(categoriesFile, sourcesFile string) (*Taxonomy, error) {
	t := &Taxonomy{categoriesFile: categoriesFile, sourcesFile: sourcesFile}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Static returns a taxonomy that never reloads, for tests and the memory backend.
func Static(l *Lists) *Taxonomy {
	t := &Taxonomy{}
	t.current.Store(l)
	return t
}

func (t *Taxonomy) Lists() *Lists { return t.current.Load() }

func (t *Taxonomy) Expense() *core.AllowList { return t.Lists().Expense }

func (t *Taxonomy) IncomeSources() *core.AllowList { return t.Lists().IncomeSources }

func (t *Taxonomy) IncomeCategories() *core.AllowList { return t.Lists().IncomeCategories }

// Reload re-reads both files. On error the previous lists stay in place.
func (t *Taxonomy) Reload() error {
	cats, err := readLabels(t.categoriesFile, core.DefaultExpenseCategories)
	if err != nil {
		return err
	}
	sources, err := readLabels(t.sourcesFile, core.DefaultIncomeSources)
	if err != nil {
		return err
	}
	t.current.Store(&Lists{
		Expense:          core.NewAllowList(cats),
		IncomeSources:    core.NewAllowList(sources),
		IncomeCategories: core.NewAllowList(core.DefaultIncomeCategories),
	})
	return nil
}

func (t *Taxonomy) Files() []string {
	var out []string
	for _, f := range []string{t.categoriesFile, t.sourcesFile} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func readLabels(path string, defaults []string) ([]string, error) {
	if path == "" {
		return defaults, nil
	}
	lines, err := readLines(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(lines) == 0 {
		return defaults, nil
	}
	return lines, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
