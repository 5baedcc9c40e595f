package config

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// ReloadFunc applies a freshly loaded configuration
type ReloadFunc func(*Config) error

// Watcher reloads the configuration when the file changes or on SIGHUP
type Watcher struct {
	path     string
	logger   zerolog.Logger
	fs       *fsnotify.Watcher
	onReload ReloadFunc
	done     chan struct{}
}

// NewWatcher creates a watcher for the config file at path.
// The parent directory is watched so editors that replace the file are seen.
func NewWatcher(path string, onReload ReloadFunc, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		logger:   logger.With().Str("component", "config").Logger(),
		fs:       fsWatcher,
		onReload: onReload,
		done:     make(chan struct{}),
	}, nil
}

// Run blocks until ctx is cancelled, reloading on changes
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	defer w.fs.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	w.logger.Info().Str("path", w.path).Msg("Config watcher started")

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Config watcher stopped")
			return

		case sig := <-sigChan:
			w.logger.Info().Str("signal", sig.String()).Msg("Received signal, reloading configuration")
			w.reload()

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.logger.Debug().Str("op", event.Op.String()).Msg("Config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}

// Done is closed once Run has returned
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to load new configuration - keeping current config")
		return
	}

	if err := w.onReload(cfg); err != nil {
		w.logger.Error().Err(err).Msg("Failed to apply new configuration - keeping current config")
		return
	}

	w.logger.Info().Str("model", cfg.Model.ID).Msg("Configuration reloaded")
}
