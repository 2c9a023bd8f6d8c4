package view

import (
	"testing"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
)

// sessionFixture builds [text, 6-photo gallery, text] plus a trailing
// short run of two standalone photos.
func sessionFixture(t *testing.T) *Session {
	t.Helper()
	records := []store.Record{textRecord(0, 0, "Alice", "hi")}
	run := photoRun(1, 1, 6, "Alice")
	for i := range run {
		// Keep the whole burst inside the anchor's window.
		run[i].Timestamp = atMinute(1) + int64(i)*30_000
	}
	records = append(records, run...)
	records = append(records, textRecord(7, 10, "Alice", "bye"))
	records = append(records, photoRun(8, 11, 2, "Bob")...)
	records = append(records, textRecord(10, 20, "Bob", "done"))

	s := NewSession(42, "friends", records)
	if s.Len() != 6 {
		t.Fatalf("session has %d messages, want 6", s.Len())
	}
	return s
}

func TestSessionResolve(t *testing.T) {
	s := sessionFixture(t)

	tests := []struct {
		name      string
		seq       int64
		wantIndex int
		wantFound bool
	}{
		{"own seq text", 0, 0, true},
		{"gallery anchor", 1, 1, true},
		{"buried gallery member", 4, 1, true},
		{"last gallery member", 6, 1, true},
		{"text after gallery", 7, 2, true},
		{"standalone media", 9, 4, true},
		{"absent seq", 999, 0, false},
		{"negative seq", -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := s.Resolve([]int64{tt.seq})
			if len(hits) != 1 {
				t.Fatalf("got %d hits, want 1", len(hits))
			}
			h := hits[0]
			if h.Found != tt.wantFound {
				t.Fatalf("Found = %v, want %v", h.Found, tt.wantFound)
			}
			if h.Seq != tt.seq {
				t.Errorf("Seq = %d, want %d", h.Seq, tt.seq)
			}
			if tt.wantFound && h.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", h.Index, tt.wantIndex)
			}
		})
	}
}

func TestSessionResolveBatch(t *testing.T) {
	s := sessionFixture(t)

	// Results stay parallel to the input, misses included.
	hits := s.Resolve([]int64{7, 999, 4})
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if !hits[0].Found || hits[0].Index != 2 {
		t.Errorf("hits[0] = %+v, want found at 2", hits[0])
	}
	if hits[1].Found {
		t.Errorf("hits[1] = %+v, want miss", hits[1])
	}
	if !hits[2].Found || hits[2].Index != 1 {
		t.Errorf("hits[2] = %+v, want found at 1", hits[2])
	}

	if hits = s.Resolve(nil); len(hits) != 0 {
		t.Errorf("Resolve(nil) = %d hits, want 0", len(hits))
	}
}

func TestSessionSetStarred(t *testing.T) {
	s := sessionFixture(t)

	if !s.SetStarred(0, true) {
		t.Fatal("SetStarred(0, true) = false, want true")
	}
	if tm := s.Messages()[0].(*TextMessage); !tm.Starred {
		t.Error("text Starred = false after set")
	}
	// Toggling twice restores the original state.
	if !s.SetStarred(0, false) {
		t.Fatal("SetStarred(0, false) = false, want true")
	}
	if tm := s.Messages()[0].(*TextMessage); tm.Starred {
		t.Error("text Starred = true after toggle back")
	}

	if s.SetStarred(999, true) {
		t.Error("SetStarred(unknown) = true, want false")
	}
}

func TestSessionSetStarredGallery(t *testing.T) {
	s := sessionFixture(t)
	bulk := s.Messages()[1].(*BulkMediaMessage)

	// The anchor flips the gallery's visible flag.
	if !s.SetStarred(1, true) {
		t.Fatal("SetStarred(anchor) = false, want true")
	}
	if !bulk.Starred {
		t.Error("gallery Starred = false after starring anchor")
	}

	// A buried member's flag persists in the store but does not change
	// how the gallery renders.
	if s.SetStarred(4, true) {
		t.Error("SetStarred(member) = true, want false")
	}
	if !bulk.Starred {
		t.Error("gallery Starred changed by member toggle")
	}
	if !s.SetStarred(1, false) {
		t.Fatal("SetStarred(anchor, false) = false, want true")
	}
	if bulk.Starred {
		t.Error("gallery Starred = true after unstar")
	}
}

func TestSessionWindow(t *testing.T) {
	s := sessionFixture(t)

	tests := []struct {
		name          string
		offset, limit int
		wantLen       int
	}{
		{"all", 0, 0, 6},
		{"first two", 0, 2, 2},
		{"middle", 2, 2, 2},
		{"tail clamped", 4, 10, 2},
		{"offset past end", 10, 5, 0},
		{"negative offset", -3, 2, 2},
		{"negative limit means all", 1, -1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Window(tt.offset, tt.limit)
			if len(got) != tt.wantLen {
				t.Errorf("Window(%d, %d) = %d messages, want %d", tt.offset, tt.limit, len(got), tt.wantLen)
			}
		})
	}

	// Window slices the same sequence Resolve indexes into.
	w := s.Window(1, 1)
	if len(w) != 1 {
		t.Fatalf("got %d messages, want 1", len(w))
	}
	if _, ok := w[0].(*BulkMediaMessage); !ok {
		t.Errorf("Window(1,1)[0] is %T, want the gallery", w[0])
	}
}

func TestSessionIdentity(t *testing.T) {
	s := sessionFixture(t)
	if s.ChatID() != 42 {
		t.Errorf("ChatID = %d, want 42", s.ChatID())
	}
	if s.Name() != "friends" {
		t.Errorf("Name = %q, want friends", s.Name())
	}
}
