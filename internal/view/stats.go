package view

import (
	"github.com/williamdwatson/whatsapp-export-viewer/internal/export"
)

// MediaCount counts attachments by type.
type MediaCount struct {
	Photo uint64 `json:"photo"`
	Video uint64 `json:"video"`
	Audio uint64 `json:"audio"`
	Other uint64 `json:"other"`
}

// TypeCount counts one sender's messages by kind.
type TypeCount struct {
	Text   uint64     `json:"text"`
	Media  MediaCount `json:"media"`
	System uint64     `json:"system"`
}

// Stats folds the message sequence into per-sender counts. Messages
// without a sender are skipped. A gallery contributes one count per
// item, each by its own media type.
func Stats(msgs []Message) map[string]TypeCount {
	out := make(map[string]TypeCount)
	for _, m := range msgs {
		switch t := m.(type) {
		case *TextMessage:
			if t.Sender == "" {
				continue
			}
			c := out[t.Sender]
			c.Text++
			out[t.Sender] = c
		case *SystemMessage:
			if t.Sender == "" {
				continue
			}
			c := out[t.Sender]
			c.System++
			out[t.Sender] = c
		case *MediaMessage:
			if t.Sender == "" {
				continue
			}
			c := out[t.Sender]
			c.Media.count(t.MediaType)
			out[t.Sender] = c
		case *BulkMediaMessage:
			if t.Sender == "" {
				continue
			}
			c := out[t.Sender]
			for _, item := range t.Items {
				c.Media.count(item.MediaType)
			}
			out[t.Sender] = c
		}
	}
	return out
}

func (m *MediaCount) count(t export.MediaType) {
	switch t {
	case export.MediaPhoto:
		m.Photo++
	case export.MediaVideo:
		m.Video++
	case export.MediaAudio:
		m.Audio++
	default:
		m.Other++
	}
}
