package config

import (
	"context"
	"time"

	"github.com/conneroisu/paramtrail/internal/logging"
	"github.com/conneroisu/paramtrail/internal/watcher"
)

// ReloadDebounce is how long Watch waits for writes to settle.
const ReloadDebounce = 250 * time.Millisecond

// Watch reloads path whenever it changes and passes each configuration that
// loads and validates to onReload. Invalid edits are logged and ignored so
// the running configuration stays in place. The watcher stops when ctx is
// cancelled; callers should also Stop it.
func Watch(ctx context.Context, path string, logger logging.Logger, onReload func(*Config)) (*watcher.FileWatcher, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("config")

	fw, err := watcher.NewFileWatcher(ReloadDebounce, logger)
	if err != nil {
		return nil, err
	}

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, e := range events {
			if e.Type == watcher.EventTypeDeleted {
				logger.Info(ctx, "Config file removed; keeping current configuration", "path", path)
				return nil
			}
		}

		cfg, err := LoadFile(path)
		if err != nil {
			logger.Warn(ctx, err, "Config reload rejected", "path", path)
			return nil
		}

		logger.Info(ctx, "Config reloaded", "path", path, "parameters", len(cfg.Parameters))
		onReload(cfg)
		return nil
	})

	if err := fw.WatchFile(path); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	fw.Start(ctx)
	return fw, nil
}
