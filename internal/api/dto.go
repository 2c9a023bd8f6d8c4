package api

import (
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/view"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/viewer"
)

// ChatDTO is the wire form of a registered chat.
type ChatDTO struct {
	Name             string      `json:"name"`
	MessageCount     int         `json:"message_count"`
	FirstSentUnixMS  int64       `json:"first_sent_unix_ms"`
	LastSentUnixMS   int64       `json:"last_sent_unix_ms"`
	LastPreview      string      `json:"last_preview"`
	ImportedAtUnixMS int64       `json:"imported_at_unix_ms"`
	Sources          []SourceDTO `json:"sources,omitempty"`
}

// SourceDTO is the wire form of one registered export file.
type SourceDTO struct {
	FilePath string `json:"file_path"`
	MediaDir string `json:"media_dir,omitempty"`
}

// MessageDTO is the wire form of one frontend message. Kind is the
// discriminator: "text", "system" and "media" carry seq; "bulk_media"
// carries seqs and items.
type MessageDTO struct {
	Kind            string           `json:"kind"`
	FrontendIndex   int              `json:"frontend_index"`
	Seq             *int64           `json:"seq,omitempty"`
	Seqs            []int64          `json:"seqs,omitempty"`
	TimestampUnixMS int64            `json:"timestamp_unix_ms"`
	Sender          string           `json:"sender,omitempty"`
	Starred         bool             `json:"starred"`
	Text            string           `json:"text,omitempty"`
	MediaType       string           `json:"media_type,omitempty"`
	Path            string           `json:"path,omitempty"`
	Caption         string           `json:"caption,omitempty"`
	Items           []GalleryItemDTO `json:"items,omitempty"`
}

// GalleryItemDTO is one photo or video inside a bulk_media message.
type GalleryItemDTO struct {
	Seq             int64  `json:"seq"`
	TimestampUnixMS int64  `json:"timestamp_unix_ms"`
	MediaType       string `json:"media_type"`
	Path            string `json:"path"`
}

// HitDTO is one resolved sequence number.
type HitDTO struct {
	Seq           int64 `json:"seq"`
	FrontendIndex int   `json:"frontend_index"`
	Found         bool  `json:"found"`
}

// SearchHitDTO is one search match.
type SearchHitDTO struct {
	Seq             int64  `json:"seq"`
	FrontendIndex   int    `json:"frontend_index"`
	Sender          string `json:"sender,omitempty"`
	TimestampUnixMS int64  `json:"timestamp_unix_ms"`
	Snippet         string `json:"snippet"`
}

// StarredDTO is one starred record with its resolved position.
type StarredDTO struct {
	Seq             int64  `json:"seq"`
	FrontendIndex   int    `json:"frontend_index"`
	Found           bool   `json:"found"`
	TimestampUnixMS int64  `json:"timestamp_unix_ms"`
	Sender          string `json:"sender,omitempty"`
	Kind            string `json:"kind"`
	Text            string `json:"text,omitempty"`
	MediaType       string `json:"media_type,omitempty"`
	Path            string `json:"path,omitempty"`
	Caption         string `json:"caption,omitempty"`
}

// LibraryStatusDTO reports daemon state and library counts.
type LibraryStatusDTO struct {
	Library  string `json:"library"`
	State    string `json:"state"`
	UptimeMS int64  `json:"uptime_ms"`
	Chats    int    `json:"chats"`
	Records  int64  `json:"records"`
}

// EventEnvelope frames one bus event on the SSE stream.
type EventEnvelope struct {
	EventID          string `json:"event_id"`
	Library          string `json:"library"`
	Kind             string `json:"kind"`
	OccurredAtUnixMS int64  `json:"occurred_at_unix_ms"`
	Payload          any    `json:"payload,omitempty"`
}

// AddChatRequest registers a chat (or another source for an existing one).
type AddChatRequest struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	MediaDir string `json:"media_dir,omitempty"`
}

// StarRequest toggles the star on one record.
type StarRequest struct {
	Seq int64 `json:"seq"`
}

// ResolveRequest maps raw sequence numbers onto frontend indices.
type ResolveRequest struct {
	Seqs []int64 `json:"seqs"`
}

// ReloadResponse reports a library-wide re-import.
type ReloadResponse struct {
	Imported int    `json:"imported"`
	Failed   int    `json:"failed"`
	State    string `json:"state"`
}

// MessagesResponse is a window of normalized messages.
type MessagesResponse struct {
	Total    int          `json:"total"`
	Messages []MessageDTO `json:"messages"`
}

// SearchResponse carries all matches for one query.
type SearchResponse struct {
	Hits []SearchHitDTO `json:"hits"`
}

// ResolveResponse carries one hit per requested seq, in order.
type ResolveResponse struct {
	Hits []HitDTO `json:"hits"`
}

// StarredResponse lists a chat's starred records.
type StarredResponse struct {
	Items []StarredDTO `json:"items"`
}

// StarResponse reports the new star state after a toggle.
type StarResponse struct {
	Seq     int64 `json:"seq"`
	Starred bool  `json:"starred"`
}

// StatsResponse maps sender names to their message type counts.
type StatsResponse struct {
	Senders map[string]view.TypeCount `json:"senders"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func chatToDTO(c *store.Chat, sources []store.Source) ChatDTO {
	dto := ChatDTO{
		Name:             c.Name,
		MessageCount:     c.MessageCount,
		FirstSentUnixMS:  c.FirstSent,
		LastSentUnixMS:   c.LastSent,
		LastPreview:      c.LastPreview,
		ImportedAtUnixMS: c.ImportedAt,
	}
	for _, s := range sources {
		dto.Sources = append(dto.Sources, SourceDTO{FilePath: s.FilePath, MediaDir: s.MediaDir})
	}
	return dto
}

func messageToDTO(msg view.Message) MessageDTO {
	switch t := msg.(type) {
	case *view.TextMessage:
		seq := t.Seq
		return MessageDTO{
			Kind:            "text",
			FrontendIndex:   t.Index,
			Seq:             &seq,
			TimestampUnixMS: t.Timestamp,
			Sender:          t.Sender,
			Starred:         t.Starred,
			Text:            t.Text,
		}
	case *view.SystemMessage:
		seq := t.Seq
		return MessageDTO{
			Kind:            "system",
			FrontendIndex:   t.Index,
			Seq:             &seq,
			TimestampUnixMS: t.Timestamp,
			Sender:          t.Sender,
			Starred:         t.Starred,
			Text:            t.Text,
		}
	case *view.MediaMessage:
		seq := t.Seq
		return MessageDTO{
			Kind:            "media",
			FrontendIndex:   t.Index,
			Seq:             &seq,
			TimestampUnixMS: t.Timestamp,
			Sender:          t.Sender,
			Starred:         t.Starred,
			MediaType:       string(t.MediaType),
			Path:            t.Path,
			Caption:         t.Caption,
		}
	case *view.BulkMediaMessage:
		items := make([]GalleryItemDTO, len(t.Items))
		for i, it := range t.Items {
			items[i] = GalleryItemDTO{
				Seq:             it.Seq,
				TimestampUnixMS: it.Timestamp,
				MediaType:       string(it.MediaType),
				Path:            it.Path,
			}
		}
		return MessageDTO{
			Kind:            "bulk_media",
			FrontendIndex:   t.Index,
			Seqs:            t.Seqs,
			TimestampUnixMS: t.Timestamp,
			Sender:          t.Sender,
			Starred:         t.Starred,
			Items:           items,
		}
	default:
		return MessageDTO{}
	}
}

func hitToDTO(h view.Hit) HitDTO {
	return HitDTO{Seq: h.Seq, FrontendIndex: h.Index, Found: h.Found}
}

func searchHitToDTO(h viewer.SearchHit) SearchHitDTO {
	return SearchHitDTO{
		Seq:             h.Seq,
		FrontendIndex:   h.Index,
		Sender:          h.Sender,
		TimestampUnixMS: h.Timestamp,
		Snippet:         h.Snippet,
	}
}

func starredToDTO(item viewer.StarredItem) StarredDTO {
	r := item.Record
	return StarredDTO{
		Seq:             r.Seq,
		FrontendIndex:   item.Index,
		Found:           item.Found,
		TimestampUnixMS: r.Timestamp,
		Sender:          r.Sender,
		Kind:            string(r.Kind),
		Text:            r.Body,
		MediaType:       string(r.MediaType),
		Path:            r.MediaPath,
		Caption:         r.Caption,
	}
}
