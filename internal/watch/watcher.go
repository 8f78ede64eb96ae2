// Package watch ingests recorded sessions: it watches the sessions
// directory for new logs and converts each settled file into an
// automation, persisting both.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"screenpilot/internal/codex"
	"screenpilot/internal/config"
	"screenpilot/internal/logging"
	"screenpilot/internal/store"
)

// Stats tracks watcher activity.
type Stats struct {
	FilesSeen         int
	SessionsConverted int
	SessionsRejected  int
	Errors            int
	LastEventTime     time.Time
	LastEventPath     string
}

// SessionWatcher converts session logs dropped into the sessions
// directory. Writes are debounced so a recorder still flushing a file
// does not trigger a half-read conversion.
type SessionWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	converter   *codex.Converter
	store       *store.Store
	sessionsDir string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
	log         *zap.Logger
}

// NewSessionWatcher creates a watcher over cfg.SessionsDir.
func NewSessionWatcher(converter *codex.Converter, st *store.Store, cfg config.WatchConfig) (*SessionWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &SessionWatcher{
		watcher:     watcher,
		converter:   converter,
		store:       st,
		sessionsDir: cfg.SessionsDir,
		debounceMap: make(map[string]time.Time),
		debounceDur: cfg.Debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		log:         logging.Get(logging.CategoryWatch),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a
// goroutine until Stop or context cancellation.
func (w *SessionWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.sessionsDir, 0755); err != nil {
		w.log.Warn("failed to create sessions dir", zap.String("dir", w.sessionsDir), zap.Error(err))
	}
	if err := w.watcher.Add(w.sessionsDir); err != nil {
		w.log.Warn("initial watch failed", zap.String("dir", w.sessionsDir), zap.Error(err))
	} else {
		w.log.Info("watching sessions directory", zap.String("dir", w.sessionsDir))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *SessionWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.log.Error("error closing watcher", zap.Error(err))
	}
}

func (w *SessionWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents()
		}
	}
}

// handleEvent records a create or write for debounced processing.
func (w *SessionWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	w.mu.Lock()
	w.stats.FilesSeen++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebouncedEvents converts files whose last write has settled
// past the debounce window.
func (w *SessionWatcher) processDebouncedEvents() {
	w.mu.Lock()
	now := time.Now()
	var toProcess []string
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			toProcess = append(toProcess, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range toProcess {
		w.convertSession(path)
	}
}

// convertSession turns one settled session file into a stored
// automation. A session below the quality threshold is persisted as a
// session but rejected as an automation.
func (w *SessionWatcher) convertSession(path string) {
	actions, err := codex.LoadSession(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Deleted between the event and the debounce window.
			return
		}
		w.log.Error("failed to read session", zap.String("path", path), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	name := strings.TrimSuffix(filepath.Base(path), ".json")
	if err := w.store.SaveSession(store.SessionRecord{ID: name, Name: name, Actions: actions}); err != nil {
		w.log.Error("failed to persist session", zap.String("session", name), zap.Error(err))
	}

	auto, err := w.converter.Convert(actions, name, path)
	if err != nil {
		w.log.Warn("session conversion failed", zap.String("session", name), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}
	if err := w.converter.Gate(auto); err != nil {
		w.log.Warn("session rejected", zap.String("session", name), zap.Error(err))
		w.mu.Lock()
		w.stats.SessionsRejected++
		w.mu.Unlock()
		return
	}
	if err := w.store.SaveAutomation(auto); err != nil {
		w.log.Error("failed to save automation", zap.String("session", name), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.stats.SessionsConverted++
	w.mu.Unlock()
	w.log.Info("session converted",
		zap.String("session", name),
		zap.Int("steps", len(auto.Steps)),
		zap.Float64("success_rate", auto.Quality.Rate()))
}

// ConvertAll converts every session file already present in the
// sessions directory. Used at startup to catch files dropped while the
// watcher was not running.
func (w *SessionWatcher) ConvertAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(w.sessionsDir, entry.Name())
		g.Go(func() error {
			w.convertSession(path)
			return nil
		})
	}
	return g.Wait()
}

// Stats returns a snapshot of watcher activity.
func (w *SessionWatcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *SessionWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
