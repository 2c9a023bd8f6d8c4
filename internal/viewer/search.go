package viewer

import (
	"strings"
	"unicode/utf8"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/view"
)

// snippetContext is how many bytes of surrounding text a snippet keeps
// on each side of the match.
const snippetContext = 40

// SearchHit is one search match, resolved onto the frontend sequence.
type SearchHit struct {
	Seq       int64
	Index     int
	Sender    string
	Timestamp int64
	Snippet   string
}

// Search scans a chat's messages for a case-insensitive substring.
// Text bodies, system text and media captions are searched; gallery
// items carry no text by construction. The snippet wraps the first
// match in <<...>> markers.
func (m *Manager) Search(name, query string) ([]SearchHit, error) {
	s, err := m.Session(name)
	if err != nil {
		return nil, err
	}
	m.metrics.SearchesTotal.Inc()

	q := strings.ToLower(query)
	if q == "" {
		return nil, nil
	}

	var hits []SearchHit
	for _, msg := range s.Messages() {
		var text, sender string
		var seq, ts int64
		var index int
		switch t := msg.(type) {
		case *view.TextMessage:
			text, sender, seq, ts, index = t.Text, t.Sender, t.Seq, t.Timestamp, t.Index
		case *view.SystemMessage:
			text, sender, seq, ts, index = t.Text, t.Sender, t.Seq, t.Timestamp, t.Index
		case *view.MediaMessage:
			text, sender, seq, ts, index = t.Caption, t.Sender, t.Seq, t.Timestamp, t.Index
		default:
			continue
		}
		at := strings.Index(strings.ToLower(text), q)
		if at < 0 {
			continue
		}
		hits = append(hits, SearchHit{
			Seq:       seq,
			Index:     index,
			Sender:    sender,
			Timestamp: ts,
			Snippet:   snippet(text, at, len(q)),
		})
	}
	return hits, nil
}

// snippet extracts the matched span with context, marking the match
// itself with << >>. The offset comes from the lowercased text, so all
// slicing is clamped and aligned back onto rune boundaries.
func snippet(text string, at, matchLen int) string {
	if at > len(text) {
		at = len(text)
	}
	end := at + matchLen
	if end > len(text) {
		end = len(text)
	}

	start := at - snippetContext
	if start < 0 {
		start = 0
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	stop := end + snippetContext
	if stop > len(text) {
		stop = len(text)
	}
	for stop < len(text) && !utf8.RuneStart(text[stop]) {
		stop++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	b.WriteString(text[start:at])
	b.WriteString("<<")
	b.WriteString(text[at:end])
	b.WriteString(">>")
	b.WriteString(text[end:stop])
	if stop < len(text) {
		b.WriteString("…")
	}
	return strings.ReplaceAll(b.String(), "\n", " ")
}
