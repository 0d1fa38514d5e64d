package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-indexes whenever the repository's refs change (new commits,
// branch switches). Blocks until ctx is canceled. Events are debounced so a
// rebase producing many ref updates triggers one re-index.
func (ix *Indexer) Watch(ctx context.Context, repoRoot string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	gitDir := filepath.Join(repoRoot, ".git")
	for _, dir := range []string{
		gitDir,
		filepath.Join(gitDir, "refs", "heads"),
	} {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ix.logger.Info("watching repository for new commits", zap.String("root", repoRoot))

	const debounce = 500 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// HEAD moves and ref updates are the signals that history changed.
			name := filepath.Base(event.Name)
			if name != "HEAD" && filepath.Base(filepath.Dir(event.Name)) != "heads" {
				continue
			}
			// A fresh timer per event avoids the stale-tick pitfall of
			// resetting one that may already have fired.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			timerC = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.logger.Warn("watcher error", zap.Error(err))

		case <-timerC:
			timer = nil
			timerC = nil
			if n, err := ix.Index(ctx); err != nil {
				ix.logger.Warn("re-index failed", zap.Error(err))
			} else if n > 0 {
				ix.logger.Info("re-indexed after repository change", zap.Int("indexed", n))
			}
		}
	}
}
