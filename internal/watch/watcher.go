package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"go.uber.org/zap"
)

const debounceDelay = 500 * time.Millisecond

// Watcher observes registered export files and publishes a debounced
// "source.changed" event (payload: chat name) when one is rewritten.
// Directories are watched rather than the files themselves, since most
// tools replace files on save.
type Watcher struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	fsw    *fsnotify.Watcher

	mu         sync.Mutex
	chatByFile map[string]string
	dirs       map[string]bool
	debounce   map[string]*time.Timer
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// New creates a watcher over the sources registered in db.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Watcher {
	return &Watcher{
		db:         db,
		bus:        b,
		logger:     logger,
		chatByFile: make(map[string]string),
		dirs:       make(map[string]bool),
		debounce:   make(map[string]*time.Timer),
		stopCh:     make(chan struct{}),
	}
}

// Start begins watching. Refresh must be called again after sources change.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	if err := w.Refresh(); err != nil {
		_ = fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop halts the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	w.mu.Lock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Refresh reloads the file-to-chat mapping from the store and adjusts
// directory watches accordingly.
func (w *Watcher) Refresh() error {
	chats, err := w.db.ListChats()
	if err != nil {
		return err
	}

	files := make(map[string]string)
	dirs := make(map[string]bool)
	for _, chat := range chats {
		sources, err := w.db.ListSources(chat.ID)
		if err != nil {
			return err
		}
		for _, src := range sources {
			path := filepath.Clean(src.FilePath)
			files[path] = chat.Name
			dirs[filepath.Dir(path)] = true
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.chatByFile = files
	if w.fsw == nil {
		// Not started yet; Start will call Refresh again.
		return nil
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", zap.Error(err), zap.String("dir", dir))
			continue
		}
		w.dirs[dir] = true
	}
	for dir := range w.dirs {
		if dirs[dir] {
			continue
		}
		_ = w.fsw.Remove(dir)
		delete(w.dirs, dir)
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	chat, ok := w.chatByFile[filepath.Clean(event.Name)]
	w.mu.Unlock()
	if !ok {
		return
	}
	w.schedule(chat)
}

// schedule arms (or re-arms) the per-chat debounce timer. Bursts of
// writes within debounceDelay collapse into a single event.
func (w *Watcher) schedule(chat string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[chat]; ok {
		timer.Stop()
	}
	w.debounce[chat] = time.AfterFunc(debounceDelay, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.logger.Info("source changed", zap.String("chat", chat))
		w.bus.Publish(bus.Event{
			Kind:      "source.changed",
			Timestamp: time.Now(),
			Payload:   chat,
		})
	})
}
