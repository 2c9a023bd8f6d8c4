package importer

import (
	"context"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/export"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/metrics"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"go.uber.org/zap"
)

// Engine turns registered export files into stored records. It parses
// every source of a chat, merges them, and replaces the chat's records
// in one transaction. It subscribes to "source.changed" events from the
// watcher and re-imports the affected chat.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	logger  *zap.Logger
	metrics *metrics.Metrics
	cancel  context.CancelFunc
}

// ImportResult is the payload for "chat.imported" events.
type ImportResult struct {
	Chat    string
	Records int
}

// ImportFailure is the payload for "import.failed" events.
type ImportFailure struct {
	Chat string
	Err  string
}

// NewEngine creates a new import engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		db:      db,
		bus:     b,
		logger:  logger,
		metrics: m,
	}
}

// Start subscribes to source change events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("source.", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	if evt.Kind != "source.changed" {
		return
	}
	name, ok := evt.Payload.(string)
	if !ok {
		return
	}
	e.metrics.WatchEvents.Inc()

	chat, err := e.db.GetChat(name)
	if err != nil {
		e.logger.Error("failed to look up chat for re-import", zap.Error(err), zap.String("chat", name))
		return
	}
	if chat == nil {
		// Chat was removed between the fs event and now.
		return
	}
	if err := e.ImportChat(chat); err != nil {
		e.logger.Error("re-import failed", zap.Error(err), zap.String("chat", name))
	}
}

// ImportChat parses all of a chat's sources, combines them and replaces
// the stored records. Publishes "chat.imported" on success and
// "import.failed" on any error.
func (e *Engine) ImportChat(chat *store.Chat) error {
	start := time.Now()

	sources, err := e.db.ListSources(chat.ID)
	if err != nil {
		return e.fail(chat, fmt.Errorf("list sources: %w", err))
	}

	chats := make([]export.Chat, 0, len(sources))
	for _, src := range sources {
		parsed, err := export.Parse(src.FilePath, src.MediaDir, chat.Name)
		if err != nil {
			return e.fail(chat, fmt.Errorf("parse %s: %w", src.FilePath, err))
		}
		chats = append(chats, *parsed)
	}
	combined := export.Combine(chats)

	records := toRecords(combined.Records)
	if err := e.db.ReplaceRecords(chat.ID, records); err != nil {
		return e.fail(chat, fmt.Errorf("replace records: %w", err))
	}

	var firstSent, lastSent int64
	var lastPreview string
	if len(records) > 0 {
		firstSent = records[0].Timestamp
		last := records[len(records)-1]
		lastSent = last.Timestamp
		lastPreview = truncate(preview(last), 100)
	}
	if err := e.db.UpdateChatSummary(chat.ID, len(records), firstSent, lastSent, lastPreview); err != nil {
		return e.fail(chat, fmt.Errorf("update summary: %w", err))
	}

	for _, src := range sources {
		info, err := os.Stat(src.FilePath)
		if err != nil {
			continue
		}
		if err := e.db.UpdateSourceStat(src.ID, info.ModTime().UnixMilli(), info.Size()); err != nil {
			e.logger.Warn("failed to record source stat", zap.Error(err), zap.String("file", src.FilePath))
		}
	}

	e.metrics.ImportsTotal.WithLabelValues("ok").Inc()
	e.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	e.metrics.RecordsImported.Add(float64(len(records)))

	e.logger.Info("chat imported",
		zap.String("chat", chat.Name),
		zap.Int("sources", len(sources)),
		zap.Int("records", len(records)),
		zap.Duration("took", time.Since(start)),
	)
	e.bus.Publish(bus.Event{
		Kind:      "chat.imported",
		Timestamp: time.Now(),
		Payload:   ImportResult{Chat: chat.Name, Records: len(records)},
	})
	return nil
}

func (e *Engine) fail(chat *store.Chat, err error) error {
	e.metrics.ImportsTotal.WithLabelValues("error").Inc()
	e.bus.Publish(bus.Event{
		Kind:      "import.failed",
		Timestamp: time.Now(),
		Payload:   ImportFailure{Chat: chat.Name, Err: err.Error()},
	})
	return err
}

// SyncOnBoot re-imports every chat whose source files changed while the
// daemon was down, plus any chat that has never been imported. Unchanged
// chats are skipped.
func (e *Engine) SyncOnBoot() (imported, skipped, failed int, err error) {
	chats, err := e.db.ListChats()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("list chats: %w", err)
	}
	for i := range chats {
		chat := &chats[i]
		sources, err := e.db.ListSources(chat.ID)
		if err != nil {
			return imported, skipped, failed, fmt.Errorf("list sources: %w", err)
		}
		if chat.ImportedAt > 0 && !sourcesChanged(sources) {
			skipped++
			continue
		}
		if err := e.ImportChat(chat); err != nil {
			e.logger.Error("boot import failed", zap.Error(err), zap.String("chat", chat.Name))
			failed++
			continue
		}
		imported++
	}
	return imported, skipped, failed, nil
}

// ImportAll unconditionally re-imports every chat.
func (e *Engine) ImportAll() (imported, failed int) {
	chats, err := e.db.ListChats()
	if err != nil {
		e.logger.Error("failed to list chats for reload", zap.Error(err))
		return 0, 0
	}
	for i := range chats {
		if err := e.ImportChat(&chats[i]); err != nil {
			e.logger.Error("reload import failed", zap.Error(err), zap.String("chat", chats[i].Name))
			failed++
			continue
		}
		imported++
	}
	return imported, failed
}

func sourcesChanged(sources []store.Source) bool {
	for _, src := range sources {
		info, err := os.Stat(src.FilePath)
		if err != nil {
			return true
		}
		if info.ModTime().UnixMilli() != src.FileMtime || info.Size() != src.FileSize {
			return true
		}
	}
	return false
}

func toRecords(recs []export.Record) []store.Record {
	out := make([]store.Record, len(recs))
	for i, r := range recs {
		sr := store.Record{
			Timestamp: r.Timestamp.UnixMilli(),
			Sender:    r.Sender,
			Kind:      r.Kind,
			Body:      r.Text,
		}
		if r.Media != nil {
			sr.MediaType = r.Media.Type
			sr.MediaPath = r.Media.Path
			sr.Caption = r.Media.Caption
		}
		out[i] = sr
	}
	return out
}

func preview(r store.Record) string {
	if r.Kind == export.KindMedia {
		if r.Caption != "" {
			return r.Caption
		}
		return "<" + string(r.MediaType) + ">"
	}
	return r.Body
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
