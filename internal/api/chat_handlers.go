package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"go.uber.org/zap"
)

// Chat names appear in URLs and on disk, so they follow the same rules
// as library names.
var chatNameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

func (h *Handlers) listChats(w http.ResponseWriter, _ *http.Request) {
	chats, err := h.db.ListChats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]ChatDTO, 0, len(chats))
	for i := range chats {
		dtos = append(dtos, chatToDTO(&chats[i], nil))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handlers) getChat(w http.ResponseWriter, r *http.Request) {
	chat, ok := h.lookupChat(w, r)
	if !ok {
		return
	}
	sources, err := h.db.ListSources(chat.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatToDTO(chat, sources))
}

// addChat registers a chat, or another export file for an existing one,
// and imports it immediately. The file path must be absolute: the
// daemon's working directory is not the client's.
func (h *Handlers) addChat(w http.ResponseWriter, r *http.Request) {
	var req AddChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !chatNameRegexp.MatchString(req.Name) {
		writeError(w, http.StatusBadRequest, "invalid chat name: must match ^[a-z0-9_-]{1,64}$")
		return
	}
	if !filepath.IsAbs(req.File) {
		writeError(w, http.StatusBadRequest, "file must be an absolute path")
		return
	}
	if req.MediaDir != "" && !filepath.IsAbs(req.MediaDir) {
		writeError(w, http.StatusBadRequest, "media_dir must be an absolute path")
		return
	}

	chat, err := h.db.GetChat(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	created := chat == nil
	if created {
		chat, err = h.db.CreateChat(req.Name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if _, err := h.db.AddSource(chat.ID, req.File, req.MediaDir); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.refresher.Refresh(); err != nil {
		h.logger.Warn("watch refresh failed", zap.Error(err))
	}
	if created {
		h.bus.Publish(bus.Event{Kind: "chat.added", Timestamp: time.Now(), Payload: req.Name})
	}

	if err := h.importer.ImportChat(chat); err != nil {
		// The registration stands; the client can fix the file and reload.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.respondWithChat(w, http.StatusCreated, req.Name)
}

func (h *Handlers) deleteChat(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.db.DeleteChat(name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown chat "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.refresher.Refresh(); err != nil {
		h.logger.Warn("watch refresh failed", zap.Error(err))
	}
	h.bus.Publish(bus.Event{Kind: "chat.removed", Timestamp: time.Now(), Payload: name})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) reloadChat(w http.ResponseWriter, r *http.Request) {
	chat, ok := h.lookupChat(w, r)
	if !ok {
		return
	}
	if err := h.importer.ImportChat(chat); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respondWithChat(w, http.StatusOK, chat.Name)
}

// lookupChat resolves {name} or writes a 404.
func (h *Handlers) lookupChat(w http.ResponseWriter, r *http.Request) (*store.Chat, bool) {
	name := chi.URLParam(r, "name")
	chat, err := h.db.GetChat(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if chat == nil {
		writeError(w, http.StatusNotFound, "unknown chat "+name)
		return nil, false
	}
	return chat, true
}

// respondWithChat re-reads the chat so summary columns written by the
// import are reflected in the response.
func (h *Handlers) respondWithChat(w http.ResponseWriter, code int, name string) {
	chat, err := h.db.GetChat(name)
	if err != nil || chat == nil {
		writeError(w, http.StatusInternalServerError, "chat vanished during import")
		return
	}
	sources, err := h.db.ListSources(chat.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, code, chatToDTO(chat, sources))
}
