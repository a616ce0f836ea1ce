package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/haivivi/koe/pkg/userdict"
)

// WatchUserDict loads the user dictionary at path, applies it, and reapplies
// it every time the file is written or replaced. A file that fails to load
// is logged and the previous overlay stays active. WatchUserDict blocks until
// ctx is done.
//
// The parent directory is watched rather than the file so that atomic saves
// (write to a temp file, then rename) are seen.
func (c *Context) WatchUserDict(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("analyzer: watch: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("analyzer: watch %s: %w", dir, err)
	}
	c.logger.Info("watching user dictionary", "path", path)

	if err := c.reloadUserDict(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("user dictionary not applied", "path", path, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			c.logger.Debug("user dictionary changed", "path", path, "op", event.Op.String())
			if err := c.reloadUserDict(path); err != nil {
				c.logger.Warn("user dictionary not applied", "path", path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("user dictionary watcher error", "path", path, "error", err)
		}
	}
}

func (c *Context) reloadUserDict(path string) error {
	dict := userdict.New()
	if err := dict.Load(path); err != nil {
		return err
	}
	return c.UseUserDict(dict)
}
