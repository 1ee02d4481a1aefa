package remoteconfig

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/verdantlabs/arbor/internal/selector"
)

// WatchLocal watches a local selector override file and calls apply with the
// parsed chains whenever it changes, until ctx is cancelled. A missing file
// is fine; creating it later still triggers apply. Writes are debounced
// because editors fire several events per save.
func WatchLocal(ctx context.Context, path string, logger *slog.Logger, apply func(selector.Chains)) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors replace files by rename
	// and a watch on the old inode would go dead.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("selector override watcher started", slog.String("path", path))

	if chains := loadLocal(path, logger); chains != nil {
		apply(chains)
	}

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(200 * time.Millisecond)
			debounceCh = debounce.C
		} else {
			debounce.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("selector override watcher stopped")
			return nil

		case <-debounceCh:
			chains := loadLocal(path, logger)
			apply(chains)
			if chains == nil {
				logger.Info("selector overrides cleared", slog.String("path", path))
			} else {
				logger.Info("selector overrides applied",
					slog.String("path", path),
					slog.Int("roles", len(chains)))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("selector override watcher error",
				slog.String("error", watchErr.Error()))
		}
	}
}

// loadLocal parses the override file, returning nil when it is absent or
// malformed so the caller restores defaults.
func loadLocal(path string, logger *slog.Logger) selector.Chains {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("selector override file malformed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}
	return toChains(doc)
}
