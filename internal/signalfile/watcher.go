// Package signalfile implements the shell's file-based command channel:
// external tools drop a one-word command into a well-known file and the
// running UI picks it up.
package signalfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vibeshell/internal/logging"
)

const (
	DefaultPath         = "/tmp/vibeos-command"
	DefaultPollInterval = 500 * time.Millisecond

	CommandReset  = "reset"
	CommandShow   = "show"
	CommandHide   = "hide"
	CommandToggle = "toggle"
)

func IsKnown(command string) bool {
	switch command {
	case CommandReset, CommandShow, CommandHide, CommandToggle:
		return true
	}
	return false
}

// Handler receives each command, trimmed, on the watcher goroutine.
type Handler func(command string)

// Watcher consumes commands written to a signal file. It listens for
// filesystem events on the parent directory and also polls, since some
// writers (network mounts, containers) do not generate events.
type Watcher struct {
	path     string
	interval time.Duration
	handler  Handler
	logger   logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWatcher(path string, interval time.Duration, handler Handler, logger logging.Logger) *Watcher {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		interval: interval,
		handler:  handler,
		logger:   logger.With(logging.Component("signal"), logging.F("path", path)),
	}
}

func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. It returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	var notify *fsnotify.Watcher
	if fsWatcher, err := fsnotify.NewWatcher(); err != nil {
		w.logger.Warn("fsnotify unavailable, polling only", logging.Err(err))
	} else if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Warn("watch signal dir failed, polling only", logging.Err(err))
		_ = fsWatcher.Close()
	} else {
		notify = fsWatcher
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(ctx, notify, w.stopCh, w.doneCh)
	return nil
}

// Stop halts the watcher and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (w *Watcher) run(ctx context.Context, notify *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if notify != nil {
		defer notify.Close()
		events = notify.Events
		errs = notify.Errors
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// A command left over from before startup is still delivered.
	w.consume()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.consume()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("signal watcher error", logging.Err(err))
		case <-ticker.C:
			w.consume()
		}
	}
}

func (w *Watcher) consume() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("read signal file failed", logging.Err(err))
		}
		return
	}
	if err := os.Remove(w.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("remove signal file failed", logging.Err(err))
	}
	command := strings.TrimSpace(string(data))
	if command == "" {
		return
	}
	if !IsKnown(command) {
		w.logger.Warn("unknown signal command", logging.F("command", command))
	} else {
		w.logger.Info("signal command", logging.F("command", command))
	}
	if w.handler != nil {
		w.handler(command)
	}
}

// Send writes command to the signal file atomically so a watcher never
// reads a partial write.
func Send(path, command string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return errors.New("command is required")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp signal file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(command + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write signal file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close signal file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish signal file: %w", err)
	}
	return nil
}
