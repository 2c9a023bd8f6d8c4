package view

import (
	"time"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/export"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
)

const (
	// bulkWindow is measured from the FIRST record of a candidate run,
	// not the previous one, so a long run cannot drift minute by
	// minute past the point where it still reads as one burst.
	bulkWindow = int64(5 * time.Minute / time.Millisecond)
	// bulkThreshold is the run length a gallery must exceed. Three
	// photos in a row still render fine individually.
	bulkThreshold = 3
)

// Build transforms a chat's records, ordered by sequence number, into
// the renderable message sequence. Every record lands in exactly one
// message, order is preserved, and each message's Index is its
// position in the result.
//
// Records are assumed to arrive in sequence order; Build does not
// verify that and produces unspecified grouping for unordered input,
// but never panics on it.
func Build(records []store.Record) []Message {
	msgs := make([]Message, 0, len(records))
	for i := 0; i < len(records); {
		r := records[i]
		switch {
		case r.Kind == export.KindSystem:
			msgs = append(msgs, &SystemMessage{
				Index:     len(msgs),
				Seq:       r.Seq,
				Timestamp: r.Timestamp,
				Sender:    r.Sender,
				Starred:   r.Starred,
				Text:      r.Body,
			})
			i++
		case r.Kind != export.KindMedia:
			msgs = append(msgs, &TextMessage{
				Index:     len(msgs),
				Seq:       r.Seq,
				Timestamp: r.Timestamp,
				Sender:    r.Sender,
				Starred:   r.Starred,
				Text:      r.Body,
			})
			i++
		case r.Caption != "" || i == len(records)-1:
			// Captioned media always stands alone, and the final
			// record cannot anchor a run.
			msgs = append(msgs, standaloneMedia(len(msgs), r))
			i++
		default:
			jEnd := i + 1
			for jEnd < len(records) && eligibleFollower(records[jEnd], r) {
				jEnd++
			}
			if jEnd-i <= bulkThreshold {
				// Too short to collapse. Only the anchor is settled;
				// the rest of the rejected run is re-examined from
				// the next position.
				msgs = append(msgs, standaloneMedia(len(msgs), r))
				i++
				continue
			}
			bulk := &BulkMediaMessage{
				Index:     len(msgs),
				Timestamp: r.Timestamp,
				Sender:    r.Sender,
				Starred:   r.Starred,
				Seqs:      make([]int64, 0, jEnd-i),
				Items:     make([]GalleryItem, 0, jEnd-i),
			}
			for _, m := range records[i:jEnd] {
				bulk.Seqs = append(bulk.Seqs, m.Seq)
				bulk.Items = append(bulk.Items, GalleryItem{
					Seq:       m.Seq,
					Timestamp: m.Timestamp,
					MediaType: m.MediaType,
					Path:      m.MediaPath,
				})
			}
			msgs = append(msgs, bulk)
			i = jEnd
		}
	}
	return msgs
}

// eligibleFollower reports whether r can extend a run anchored at
// anchor: same sender, within the window of the anchor's timestamp,
// an uncaptioned photo or video whose file is present.
func eligibleFollower(r, anchor store.Record) bool {
	return r.Sender == anchor.Sender &&
		r.Timestamp-anchor.Timestamp < bulkWindow &&
		r.Kind == export.KindMedia &&
		r.Caption == "" &&
		r.MediaPath != "" &&
		(r.MediaType == export.MediaPhoto || r.MediaType == export.MediaVideo)
}

func standaloneMedia(index int, r store.Record) *MediaMessage {
	return &MediaMessage{
		Index:     index,
		Seq:       r.Seq,
		Timestamp: r.Timestamp,
		Sender:    r.Sender,
		Starred:   r.Starred,
		MediaType: r.MediaType,
		Path:      r.MediaPath,
		Caption:   r.Caption,
	}
}
