// Package watcher ingests build batch files dropped into a records directory,
// with fsnotify events debounced per file so half-written batches settle first.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/models"
)

const defaultDebounce = 500 * time.Millisecond

// IngestFunc receives the records parsed from one settled batch file.
type IngestFunc func(ctx context.Context, records []*models.BuildRecord) error

// Watcher watches a single records directory for JSON batch files.
type Watcher struct {
	dir      string
	debounce time.Duration
	onBatch  IngestFunc
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timers   map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over dir. debounce <= 0 falls back to the
// default. onBatch is invoked once per settled file.
func NewWatcher(dir string, debounce time.Duration, onBatch IngestFunc, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onBatch:  onBatch,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
}

// Start begins watching and processes any batch files already present. It
// runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching records directory", zap.String("dir", w.dir))
	go w.run(ctx)
	w.syncExisting(ctx)
	return nil
}

// Stop terminates the watcher. Pending debounce timers are cancelled.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, timer := range w.timers {
			timer.Stop()
			delete(w.timers, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

// syncExisting ingests batch files already sitting in the directory at start.
func (w *Watcher) syncExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("cannot list records directory", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isBatchFile(entry.Name()) {
			continue
		}
		w.processBatch(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !isBatchFile(ev.Name) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		w.debounceBatch(ctx, ev.Name)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(ev.Name)
	}
}

// debounceBatch schedules ingest for after the file stops changing; each new
// write resets the timer.
func (w *Watcher) debounceBatch(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case <-w.done:
			return
		default:
		}
		w.processBatch(ctx, path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) processBatch(ctx context.Context, path string) {
	records, err := ReadBatchFile(path)
	if err != nil {
		w.logger.Error("batch file rejected", zap.String("path", path), zap.Error(err))
		return
	}
	if len(records) == 0 {
		w.logger.Debug("batch file empty", zap.String("path", path))
		return
	}
	if err := w.onBatch(ctx, records); err != nil {
		w.logger.Error("batch ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("batch ingested", zap.String("path", path), zap.Int("records", len(records)))
}

// ReadBatchFile parses a batch file: either a bare JSON array of build records
// or an object with a "builds" array.
func ReadBatchFile(path string) ([]*models.BuildRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var records []*models.BuildRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse batch array: %w", err)
		}
		return records, nil
	}
	var wrapper struct {
		Builds []*models.BuildRecord `json:"builds"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse batch object: %w", err)
	}
	return wrapper.Builds, nil
}

func isBatchFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
