package store

import (
	"errors"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/export"
)

// ErrNotFound is returned when an operation targets a row that does
// not exist.
var ErrNotFound = errors.New("store: not found")

// Chat is an imported chat with its denormalized summary.
type Chat struct {
	ID           int64
	Name         string
	MessageCount int
	FirstSent    int64
	LastSent     int64
	LastPreview  string
	ImportedAt   int64
}

// Source is one export file registered for a chat. Registration order
// doubles as merge priority: earlier sources win conflicts.
type Source struct {
	ID        int64
	ChatID    int64
	FilePath  string
	MediaDir  string
	FileMtime int64
	FileSize  int64
	CreatedAt int64
}

// Record is one persisted transcript entry. Seq is assigned by the
// importer as the record's position in the combined transcript and is
// stable until the next import.
type Record struct {
	ChatID    int64
	Seq       int64
	Timestamp int64
	Sender    string
	Kind      export.RecordKind
	Body      string
	MediaType export.MediaType
	MediaPath string
	Caption   string
	Starred   bool
}
