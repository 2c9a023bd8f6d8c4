// Package view turns the flat record sequence of a chat into the typed
// message sequence the clients render, and resolves record sequence
// numbers back into positions in that sequence.
package view

import (
	"github.com/williamdwatson/whatsapp-export-viewer/internal/export"
)

// Message is one renderable chat entry. The union is closed: exactly
// TextMessage, SystemMessage, MediaMessage, and BulkMediaMessage
// implement it, and consumers switch over all four.
type Message interface {
	isMessage()
}

// TextMessage is a plain text entry.
type TextMessage struct {
	// Index is the message's position in the built sequence.
	Index int
	// Seq is the sequence number of the backing record.
	Seq       int64
	Timestamp int64
	Sender    string
	Starred   bool
	Text      string
}

// SystemMessage is a chat event such as a subject change or a
// participant joining. Sender is empty when the event could not be
// attributed.
type SystemMessage struct {
	Index     int
	Seq       int64
	Timestamp int64
	Sender    string
	Starred   bool
	Text      string
}

// MediaMessage is a single attachment. Path is empty when the media
// file was not found in any source directory; clients render a
// placeholder, never a substitute.
type MediaMessage struct {
	Index     int
	Seq       int64
	Timestamp int64
	Sender    string
	Starred   bool
	MediaType export.MediaType
	Path      string
	Caption   string
}

// GalleryItem is one attachment inside a BulkMediaMessage, keeping its
// own record identity so it stays addressable after collapsing.
type GalleryItem struct {
	Seq       int64
	Timestamp int64
	MediaType export.MediaType
	Path      string
}

// BulkMediaMessage collapses a run of consecutive uncaptioned media
// records into a single gallery entry. Starred reflects the first
// (anchor) member only. Timestamp and Sender are the anchor's.
type BulkMediaMessage struct {
	Index     int
	Seqs      []int64
	Timestamp int64
	Sender    string
	Starred   bool
	Items     []GalleryItem
}

func (*TextMessage) isMessage()     {}
func (*SystemMessage) isMessage()   {}
func (*MediaMessage) isMessage()    {}
func (*BulkMediaMessage) isMessage() {}
