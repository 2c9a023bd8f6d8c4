package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/metrics"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/status"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/viewer"
	"go.uber.org/zap"
)

// Importer runs chat imports on behalf of the handlers.
type Importer interface {
	ImportChat(chat *store.Chat) error
	ImportAll() (imported, failed int)
}

// SourceRefresher reloads the watch list after sources change.
type SourceRefresher interface {
	Refresh() error
}

// Handlers serves the daemon's HTTP API over the library socket.
type Handlers struct {
	library   string
	startedAt time.Time

	db        *store.DB
	viewer    *viewer.Manager
	importer  Importer
	refresher SourceRefresher
	machine   *status.Machine
	bus       *bus.Bus
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewHandlers wires the API over its collaborators.
func NewHandlers(library string, db *store.DB, vm *viewer.Manager, imp Importer, refresher SourceRefresher, machine *status.Machine, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Handlers {
	return &Handlers{
		library:   library,
		startedAt: time.Now(),
		db:        db,
		viewer:    vm,
		importer:  imp,
		refresher: refresher,
		machine:   machine,
		bus:       b,
		metrics:   m,
		logger:    logger,
	}
}

// Router builds the chi router with all routes mounted.
func (h *Handlers) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/library", h.libraryStatus)
		r.Post("/library/reload", h.reloadLibrary)
		r.Get("/events", h.events)

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", h.listChats)
			r.Post("/", h.addChat)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.getChat)
				r.Delete("/", h.deleteChat)
				r.Post("/reload", h.reloadChat)
				r.Get("/messages", h.messages)
				r.Get("/search", h.search)
				r.Get("/starred", h.starred)
				r.Get("/stats", h.stats)
				r.Post("/star", h.star)
				r.Post("/resolve", h.resolve)
			})
		})
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}

func (h *Handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) libraryStatus(w http.ResponseWriter, _ *http.Request) {
	resp := LibraryStatusDTO{
		Library:  h.library,
		State:    string(h.machine.Current()),
		UptimeMS: time.Since(h.startedAt).Milliseconds(),
	}
	if n, err := h.db.ChatCount(); err == nil {
		resp.Chats = int(n)
	}
	if n, err := h.db.RecordCount(); err == nil {
		resp.Records = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) reloadLibrary(w http.ResponseWriter, _ *http.Request) {
	if err := h.machine.Transition(status.Importing); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	imported, failed := h.importer.ImportAll()
	next := status.Ready
	if failed > 0 {
		next = status.Degraded
	}
	if err := h.machine.Transition(next); err != nil {
		h.logger.Error("reload state transition failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		Imported: imported,
		Failed:   failed,
		State:    string(h.machine.Current()),
	})
}

// events streams bus events as SSE. An optional ?prefix= narrows the
// stream to one namespace ("chat.", "import.", ...).
func (h *Handlers) events(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	prefix := r.URL.Query().Get("prefix")
	ch, unsub := h.bus.Subscribe(prefix, 64)
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for {
		select {
		case evt := <-ch:
			env := EventEnvelope{
				EventID:          uuid.New().String(),
				Library:          h.library,
				Kind:             evt.Kind,
				OccurredAtUnixMS: evt.Timestamp.UnixMilli(),
				Payload:          evt.Payload,
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.EventID, evt.Kind, data)
			fl.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}
