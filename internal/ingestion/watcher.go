package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Benny93/sentinel-go/internal/logging"
)

// DefaultDebounce is the quiet period after the last change before the
// change handler runs.
const DefaultDebounce = 2 * time.Second

// ChangeHandler receives the input files that changed during one debounce
// window, sorted.
type ChangeHandler func(ctx context.Context, changed []string)

// Watch monitors files and calls onChange once per burst of writes, creates,
// renames or removals. The parent directories are watched so editors that
// replace files atomically are followed. Watch blocks until ctx is done and
// then returns nil.
func Watch(ctx context.Context, files []string, debounce time.Duration, onChange ChangeHandler, log *slog.Logger) error {
	log = logging.OrDefault(log)
	if len(files) == 0 {
		return fmt.Errorf("no files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()

	log.Info("watching inputs", "files", len(watched), "debounce", debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			log.Debug("input changed", "file", abs, "op", event.Op.String())
			changed[abs] = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "error", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			paths := make([]string, 0, len(changed))
			for p := range changed {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			changed = make(map[string]bool)

			log.Info("inputs changed", "files", paths)
			onChange(ctx, paths)
		}
	}
}
