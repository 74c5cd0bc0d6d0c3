package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mcpbridge/gateway/internal/config"
	"github.com/mcpbridge/gateway/internal/service"
)

// configWatcher drives automatic hot-reload by watching the upstream
// config file for writes, replacing the original Python implementation's
// `watchdog`-based file observer with fsnotify. A write is debounced
// briefly since editors commonly emit several events per save.
type configWatcher struct {
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

const configWatchDebounce = 300 * time.Millisecond

// watchConfigFile starts watching path and calls supervisor.Reload with
// the freshly-parsed upstream list after each settled write. Logs and
// keeps watching on parse/reload errors rather than giving up, mirroring
// the tolerant retry posture the rest of the boot sequence takes.
func watchConfigFile(path string, supervisor *service.Supervisor, logger *slog.Logger) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go runConfigWatchLoop(ctx, w, path, supervisor, logger)

	return &configWatcher{watcher: w, cancel: cancel}, nil
}

func runConfigWatchLoop(ctx context.Context, w *fsnotify.Watcher, path string, supervisor *service.Supervisor, logger *slog.Logger) {
	var debounce *time.Timer
	reload := func() {
		configs, err := config.LoadUpstreams(path)
		if err != nil {
			logger.Warn("config watcher: failed to parse upstream config", "error", err)
			return
		}
		if err := supervisor.Reload(ctx, derefConfigs(configs)); err != nil {
			logger.Warn("config watcher: reload reported errors", "error", err)
			return
		}
		logger.Info("config watcher: reloaded upstreams after external edit", "path", path)
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(configWatchDebounce, reload)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the watch loop and releases the underlying fsnotify handle.
func (c *configWatcher) Close() error {
	c.cancel()
	return c.watcher.Close()
}
