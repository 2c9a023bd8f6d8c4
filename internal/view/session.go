package view

import (
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
)

// Hit is one resolved sequence number. Index is meaningful only when
// Found is true.
type Hit struct {
	Seq   int64
	Index int
	Found bool
}

// Session owns the built message sequence for one loaded chat. It is
// rebuilt wholesale when the chat's records change; the only in-place
// mutation is the starred flag.
//
// A Session is not safe for concurrent mutation; callers serialize
// access.
type Session struct {
	chatID int64
	name   string
	msgs   []Message
	// bySeq maps every record sequence number to the index of the
	// message that owns it, including gallery members.
	bySeq map[int64]int
}

// NewSession builds the message sequence for the given records.
func NewSession(chatID int64, name string, records []store.Record) *Session {
	msgs := Build(records)
	bySeq := make(map[int64]int, len(records))
	for idx, m := range msgs {
		switch t := m.(type) {
		case *TextMessage:
			bySeq[t.Seq] = idx
		case *SystemMessage:
			bySeq[t.Seq] = idx
		case *MediaMessage:
			bySeq[t.Seq] = idx
		case *BulkMediaMessage:
			for _, seq := range t.Seqs {
				bySeq[seq] = idx
			}
		}
	}
	return &Session{chatID: chatID, name: name, msgs: msgs, bySeq: bySeq}
}

func (s *Session) ChatID() int64 { return s.chatID }

func (s *Session) Name() string { return s.name }

// Len returns the number of built messages, which is at most the
// number of records.
func (s *Session) Len() int { return len(s.msgs) }

// Messages returns the full sequence. The slice is shared; callers
// must not modify it.
func (s *Session) Messages() []Message { return s.msgs }

// Window returns messages[offset:offset+limit], clamped to the
// sequence bounds. A non-positive limit means no limit.
func (s *Session) Window(offset, limit int) []Message {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.msgs) {
		return nil
	}
	end := len(s.msgs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return s.msgs[offset:end]
}

// Resolve maps record sequence numbers to message positions. Results
// are parallel to seqs. A sequence number the session does not contain
// resolves to Found=false; that is a normal outcome for stale search
// or star results, never an error. A gallery member resolves to the
// gallery's position, since the gallery is the addressable unit.
func (s *Session) Resolve(seqs []int64) []Hit {
	hits := make([]Hit, len(seqs))
	for i, seq := range seqs {
		idx, ok := s.bySeq[seq]
		hits[i] = Hit{Seq: seq, Found: ok}
		if ok {
			hits[i].Index = idx
		}
	}
	return hits
}

// SetStarred flips the starred flag of the message owning seq without
// rebuilding the sequence, and reports whether a message's visible
// state changed. A gallery reflects only its anchor: starring a
// non-anchor member persists but does not change how the gallery
// renders.
func (s *Session) SetStarred(seq int64, starred bool) bool {
	idx, ok := s.bySeq[seq]
	if !ok {
		return false
	}
	switch t := s.msgs[idx].(type) {
	case *TextMessage:
		t.Starred = starred
	case *SystemMessage:
		t.Starred = starred
	case *MediaMessage:
		t.Starred = starred
	case *BulkMediaMessage:
		if len(t.Seqs) == 0 || t.Seqs[0] != seq {
			return false
		}
		t.Starred = starred
	}
	return true
}
