package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 300 * time.Millisecond

// Watch reloads t whenever one of its files changes, until ctx is done.
// The parent directories are watched so that editors replacing the file
// by rename are picked up too.
func Watch(ctx context.Context, t *Taxonomy, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	files := t.Files()
	if len(files) == 0 {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	targets := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	logger.Info("Watching taxonomy files", "files", files)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if _, ok := targets[abs]; !ok {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.After(debounce)
		case <-pending:
			pending = nil
			if err := t.Reload(); err != nil {
				logger.Warn("Taxonomy reload failed, keeping previous lists", "error", err)
				continue
			}
			l := t.Lists()
			logger.Info("Taxonomy reloaded",
				"expense_categories", l.Expense.Len(),
				"income_sources", l.IncomeSources.Len())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Taxonomy watch error", "error", err)
		}
	}
}
