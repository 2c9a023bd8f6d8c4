package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/viewer"
)

func (h *Handlers) messages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	offset := queryInt(r, "offset")
	limit := queryInt(r, "limit")

	msgs, total, err := h.viewer.Messages(name, offset, limit)
	if err != nil {
		h.viewError(w, name, err)
		return
	}
	resp := MessagesResponse{Total: total, Messages: make([]MessageDTO, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageToDTO(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	hits, err := h.viewer.Search(name, r.URL.Query().Get("q"))
	if err != nil {
		h.viewError(w, name, err)
		return
	}
	resp := SearchResponse{Hits: make([]SearchHitDTO, 0, len(hits))}
	for _, hit := range hits {
		resp.Hits = append(resp.Hits, searchHitToDTO(hit))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) starred(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	items, err := h.viewer.Starred(name)
	if err != nil {
		h.viewError(w, name, err)
		return
	}
	resp := StarredResponse{Items: make([]StarredDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, starredToDTO(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	senders, err := h.viewer.Stats(name)
	if err != nil {
		h.viewError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Senders: senders})
}

func (h *Handlers) star(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req StarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	starred, err := h.viewer.ToggleStar(name, req.Seq)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no record with seq %d", req.Seq))
			return
		}
		h.viewError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, StarResponse{Seq: req.Seq, Starred: starred})
}

// resolve maps raw seqs onto frontend indices. Unknown seqs come back
// found:false rather than failing the batch.
func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	hits, err := h.viewer.Resolve(name, req.Seqs)
	if err != nil {
		h.viewError(w, name, err)
		return
	}
	resp := ResolveResponse{Hits: make([]HitDTO, 0, len(hits))}
	for _, hit := range hits {
		resp.Hits = append(resp.Hits, hitToDTO(hit))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) viewError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, viewer.ErrUnknownChat) {
		writeError(w, http.StatusNotFound, "unknown chat "+name)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
