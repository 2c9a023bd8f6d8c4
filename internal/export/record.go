package export

import (
	"strings"
	"time"
)

// RecordKind discriminates the content of a parsed record.
type RecordKind string

const (
	KindText   RecordKind = "text"
	KindSystem RecordKind = "system"
	KindMedia  RecordKind = "media"
)

// MediaType classifies an attachment by its file extension.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaOther MediaType = "other"
)

var photoExts = []string{
	"png", "apng", "jpg", "jpeg", "gif", "webp", "avif", "jfif", "pjpeg",
	"pjp", "svg", "bmp", "ico", "tif", "tiff",
}

var videoExts = []string{"mp4", "avi", "mov", "wmv", "mkv", "webm", "flv"}

var audioExts = []string{"opus", "mp3", "aac", "ogg", "wav"}

// ClassifyMedia returns the media type for a filename based on its extension.
// Matching is case-insensitive.
func ClassifyMedia(filename string) MediaType {
	lower := strings.ToLower(filename)
	for _, ext := range photoExts {
		if strings.HasSuffix(lower, ext) {
			return MediaPhoto
		}
	}
	for _, ext := range videoExts {
		if strings.HasSuffix(lower, ext) {
			return MediaVideo
		}
	}
	for _, ext := range audioExts {
		if strings.HasSuffix(lower, ext) {
			return MediaAudio
		}
	}
	return MediaOther
}

// Media holds the attachment details of a media record.
type Media struct {
	Type MediaType
	// Path is the resolved location of the attachment inside the media
	// directory, or empty if the file was not found there.
	Path string
	// Caption is empty when the media has no caption.
	Caption string
}

// Record is a single parsed transcript entry.
type Record struct {
	Timestamp time.Time
	// Sender is empty for system records that could not be attributed.
	Sender string
	Kind   RecordKind
	// Text holds the body for text and system records.
	Text string
	// Media is set only when Kind == KindMedia.
	Media *Media
}

// IsLocation reports whether a text record shares a location pin.
func (r Record) IsLocation() bool {
	return r.Kind == KindText &&
		strings.HasPrefix(strings.ToLower(strings.TrimLeft(r.Text, " \t")), "location:")
}

// Chat is the result of parsing one export file.
type Chat struct {
	Name string
	// Records in transcript order.
	Records []Record
	// Directories lists the media directories the records reference.
	Directories []string
}
