package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/importer"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/metrics"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/view"
	"go.uber.org/zap"
)

// ErrUnknownChat is returned for chats that are not in the library.
var ErrUnknownChat = errors.New("viewer: unknown chat")

// Manager builds and caches one view.Session per chat. Sessions are
// dropped whenever the chat's records change, so reads after an import
// see the re-normalized sequence.
type Manager struct {
	db      *store.DB
	bus     *bus.Bus
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*view.Session
	cancel   context.CancelFunc
}

// NewManager creates a session manager over the given store.
func NewManager(db *store.DB, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		db:       db,
		bus:      b,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*view.Session),
	}
}

// Start subscribes to chat events so imports and removals invalidate
// the cached session.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	ch, unsub := m.bus.Subscribe("chat.", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				switch p := evt.Payload.(type) {
				case string:
					m.Invalidate(p)
				case importer.ImportResult:
					m.Invalidate(p.Chat)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Invalidate drops the cached session for a chat.
func (m *Manager) Invalidate(name string) {
	m.mu.Lock()
	delete(m.sessions, name)
	m.mu.Unlock()
}

// Session returns the cached session for a chat, building it from the
// store on first use. Returns ErrUnknownChat for unregistered names.
func (m *Manager) Session(name string) (*view.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[name]; ok {
		return s, nil
	}
	chat, err := m.db.GetChat(name)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, ErrUnknownChat
	}
	records, err := m.db.ListRecords(chat.ID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	s := view.NewSession(chat.ID, chat.Name, records)
	m.sessions[name] = s
	m.logger.Debug("session built", zap.String("chat", name), zap.Int("messages", s.Len()))
	return s, nil
}

// Messages returns a window of the chat's normalized messages plus the
// total message count.
func (m *Manager) Messages(name string, offset, limit int) ([]view.Message, int, error) {
	s, err := m.Session(name)
	if err != nil {
		return nil, 0, err
	}
	return s.Window(offset, limit), s.Len(), nil
}

// Resolve maps raw sequence numbers onto frontend indices.
func (m *Manager) Resolve(name string, seqs []int64) ([]view.Hit, error) {
	s, err := m.Session(name)
	if err != nil {
		return nil, err
	}
	hits := s.Resolve(seqs)
	m.countMisses(hits)
	return hits, nil
}

func (m *Manager) countMisses(hits []view.Hit) {
	for _, h := range hits {
		if !h.Found {
			m.metrics.ResolveMisses.Inc()
		}
	}
}

// Stats returns per-sender message type counts.
func (m *Manager) Stats(name string) (map[string]view.TypeCount, error) {
	s, err := m.Session(name)
	if err != nil {
		return nil, err
	}
	return view.Stats(s.Messages()), nil
}

// ToggleStar flips a record's star in the store first, then mirrors the
// flip into the cached session. Returns the new starred value.
func (m *Manager) ToggleStar(name string, seq int64) (bool, error) {
	s, err := m.Session(name)
	if err != nil {
		return false, err
	}
	starred, err := m.db.ToggleStarred(s.ChatID(), seq)
	if err != nil {
		return false, err
	}
	s.SetStarred(seq, starred)
	m.metrics.StarToggles.Inc()
	return starred, nil
}

// StarredItem is one starred record with its resolved frontend position.
type StarredItem struct {
	Record store.Record
	Index  int
	Found  bool
}

// Starred lists a chat's starred records, each resolved onto the
// normalized sequence.
func (m *Manager) Starred(name string) ([]StarredItem, error) {
	s, err := m.Session(name)
	if err != nil {
		return nil, err
	}
	records, err := m.db.ListStarred(s.ChatID())
	if err != nil {
		return nil, err
	}
	seqs := make([]int64, len(records))
	for i, r := range records {
		seqs[i] = r.Seq
	}
	hits := s.Resolve(seqs)
	m.countMisses(hits)

	items := make([]StarredItem, len(records))
	for i, r := range records {
		items[i] = StarredItem{Record: r, Index: hits[i].Index, Found: hits[i].Found}
	}
	return items, nil
}
