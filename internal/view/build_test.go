package view

import (
	"testing"
	"time"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/export"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
)

var buildBase = time.Date(2023, 5, 10, 9, 0, 0, 0, time.UTC).UnixMilli()

func atMinute(min int) int64 {
	return buildBase + int64(min)*60_000
}

func textRecord(seq int64, min int, sender, body string) store.Record {
	return store.Record{Seq: seq, Timestamp: atMinute(min), Sender: sender, Kind: export.KindText, Body: body}
}

func systemRecord(seq int64, min int, body string) store.Record {
	return store.Record{Seq: seq, Timestamp: atMinute(min), Kind: export.KindSystem, Body: body}
}

func photoRecord(seq int64, min int, sender string) store.Record {
	return store.Record{
		Seq: seq, Timestamp: atMinute(min), Sender: sender,
		Kind: export.KindMedia, MediaType: export.MediaPhoto, MediaPath: "/m/IMG.jpg",
	}
}

// photoRun returns n eligible photos from sender, one minute apart.
func photoRun(firstSeq int64, startMin, n int, sender string) []store.Record {
	out := make([]store.Record, n)
	for i := range out {
		out[i] = photoRecord(firstSeq+int64(i), startMin+i, sender)
	}
	return out
}

func flatten(msgs []Message) []int64 {
	var out []int64
	for _, m := range msgs {
		switch t := m.(type) {
		case *TextMessage:
			out = append(out, t.Seq)
		case *SystemMessage:
			out = append(out, t.Seq)
		case *MediaMessage:
			out = append(out, t.Seq)
		case *BulkMediaMessage:
			out = append(out, t.Seqs...)
		}
	}
	return out
}

func countBulks(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if _, ok := m.(*BulkMediaMessage); ok {
			n++
		}
	}
	return n
}

func TestBuildTextAndSystem(t *testing.T) {
	records := []store.Record{
		textRecord(10, 0, "Alice", "hi"),
		systemRecord(11, 1, "Alice added Bob"),
		textRecord(12, 2, "Bob", "hello"),
	}

	msgs := Build(records)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	tm, ok := msgs[0].(*TextMessage)
	if !ok {
		t.Fatalf("msgs[0] is %T, want *TextMessage", msgs[0])
	}
	if tm.Index != 0 || tm.Seq != 10 || tm.Sender != "Alice" || tm.Text != "hi" {
		t.Errorf("text = %+v, want index 0 seq 10 from Alice", tm)
	}
	if tm.Timestamp != atMinute(0) {
		t.Errorf("Timestamp = %d, want %d", tm.Timestamp, atMinute(0))
	}

	sm, ok := msgs[1].(*SystemMessage)
	if !ok {
		t.Fatalf("msgs[1] is %T, want *SystemMessage", msgs[1])
	}
	if sm.Index != 1 || sm.Seq != 11 {
		t.Errorf("system = %+v, want index 1 seq 11", sm)
	}
}

// TestBuildCollapsesLongRun covers the full shape: a text message, a
// burst of six eligible photos, and a closing text message become
// exactly three entries with the gallery in the middle.
func TestBuildCollapsesLongRun(t *testing.T) {
	itemAt := func(i int) int64 {
		// 40 seconds apart keeps even the sixth photo inside the
		// anchor's window.
		return atMinute(1) + int64(i)*40_000
	}
	records := []store.Record{textRecord(0, 0, "Alice", "hi")}
	for i := 0; i < 6; i++ {
		r := photoRecord(int64(i)+1, 0, "Alice")
		r.Timestamp = itemAt(i)
		records = append(records, r)
	}
	records = append(records, textRecord(7, 8, "Alice", "bye"))

	msgs := Build(records)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	bulk, ok := msgs[1].(*BulkMediaMessage)
	if !ok {
		t.Fatalf("msgs[1] is %T, want *BulkMediaMessage", msgs[1])
	}
	if bulk.Index != 1 {
		t.Errorf("Index = %d, want 1", bulk.Index)
	}
	if len(bulk.Items) != 6 || len(bulk.Seqs) != 6 {
		t.Fatalf("gallery has %d items / %d seqs, want 6", len(bulk.Items), len(bulk.Seqs))
	}
	for i, item := range bulk.Items {
		if item.Seq != int64(i)+1 {
			t.Errorf("item %d seq = %d, want %d", i, item.Seq, i+1)
		}
		if item.Timestamp != itemAt(i) {
			t.Errorf("item %d keeps its own timestamp: got %d, want %d", i, item.Timestamp, itemAt(i))
		}
	}
	// The gallery carries the anchor's timestamp and sender.
	if bulk.Timestamp != itemAt(0) || bulk.Sender != "Alice" {
		t.Errorf("gallery timestamp/sender = %d/%q, want anchor's", bulk.Timestamp, bulk.Sender)
	}

	if tm, ok := msgs[2].(*TextMessage); !ok || tm.Index != 2 || tm.Text != "bye" {
		t.Errorf("msgs[2] = %T %+v, want closing text at index 2", msgs[2], msgs[2])
	}
}

// TestBuildShortRunStaysStandalone is the no-grouping counterpart:
// three photos never collapse.
func TestBuildShortRunStaysStandalone(t *testing.T) {
	records := []store.Record{textRecord(0, 0, "Alice", "hi")}
	records = append(records, photoRun(1, 1, 3, "Alice")...)
	records = append(records, textRecord(4, 5, "Alice", "bye"))

	msgs := Build(records)
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	for i := 1; i <= 3; i++ {
		mm, ok := msgs[i].(*MediaMessage)
		if !ok {
			t.Fatalf("msgs[%d] is %T, want *MediaMessage", i, msgs[i])
		}
		if mm.Index != i || mm.Seq != int64(i) {
			t.Errorf("media %d = index %d seq %d, want %d/%d", i, mm.Index, mm.Seq, i, i)
		}
	}
}

func TestBuildThresholdBoundary(t *testing.T) {
	// Four eligible photos collapse, three do not.
	four := append(photoRun(0, 0, 4, "Alice"), textRecord(4, 10, "Alice", "x"))
	msgs := Build(four)
	if len(msgs) != 2 || countBulks(msgs) != 1 {
		t.Fatalf("4-run: got %d messages with %d galleries, want 2/1", len(msgs), countBulks(msgs))
	}
	if bulk := msgs[0].(*BulkMediaMessage); len(bulk.Items) != 4 {
		t.Errorf("4-run gallery has %d items, want 4", len(bulk.Items))
	}

	three := append(photoRun(0, 0, 3, "Alice"), textRecord(3, 10, "Alice", "x"))
	msgs = Build(three)
	if len(msgs) != 4 || countBulks(msgs) != 0 {
		t.Fatalf("3-run: got %d messages with %d galleries, want 4/0", len(msgs), countBulks(msgs))
	}
}

func TestBuildCaptionBreaksRun(t *testing.T) {
	records := photoRun(0, 0, 5, "Alice")
	records[2].Caption = "us at the lake"
	records = append(records, textRecord(5, 10, "Alice", "x"))

	msgs := Build(records)
	if countBulks(msgs) != 0 {
		t.Fatalf("got %d galleries, want 0", countBulks(msgs))
	}
	if len(msgs) != 6 {
		t.Fatalf("got %d messages, want 6", len(msgs))
	}
	mm, ok := msgs[2].(*MediaMessage)
	if !ok || mm.Caption != "us at the lake" {
		t.Errorf("msgs[2] = %T, want standalone captioned media", msgs[2])
	}
}

func TestBuildRunBreakers(t *testing.T) {
	// Disqualifying the third of five photos always prevents the
	// five-item gallery; every record still comes through standalone.
	tests := []struct {
		name   string
		mutate func(*store.Record)
	}{
		{"missing path", func(r *store.Record) { r.MediaPath = "" }},
		{"audio type", func(r *store.Record) { r.MediaType = export.MediaAudio }},
		{"other type", func(r *store.Record) { r.MediaType = export.MediaOther }},
		{"different sender", func(r *store.Record) { r.Sender = "Bob" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := photoRun(0, 0, 5, "Alice")
			tt.mutate(&records[2])
			records = append(records, textRecord(5, 10, "Alice", "x"))

			msgs := Build(records)
			if countBulks(msgs) != 0 {
				t.Errorf("got %d galleries, want 0", countBulks(msgs))
			}
			if len(msgs) != 6 {
				t.Errorf("got %d messages, want 6", len(msgs))
			}
		})
	}
}

func TestBuildWindowAnchoredToRunStart(t *testing.T) {
	// Gaps of four minutes each stay under the window between
	// neighbors but leave it relative to the run's first record, so no
	// gallery forms.
	records := []store.Record{
		photoRecord(0, 0, "Alice"),
		photoRecord(1, 4, "Alice"),
		photoRecord(2, 8, "Alice"),
		photoRecord(3, 12, "Alice"),
		photoRecord(4, 16, "Alice"),
		textRecord(5, 20, "Alice", "x"),
	}

	msgs := Build(records)
	if countBulks(msgs) != 0 {
		t.Errorf("got %d galleries, want 0", countBulks(msgs))
	}
	if len(msgs) != 6 {
		t.Errorf("got %d messages, want 6", len(msgs))
	}
}

// TestBuildRescanAfterRejectedRun pins down the restart behavior: a
// rejected run settles only its first record, and the rest may form a
// gallery of their own one position later.
func TestBuildRescanAfterRejectedRun(t *testing.T) {
	records := []store.Record{
		photoRecord(0, 0, "Alice"),
		photoRecord(1, 3, "Alice"),
		photoRecord(2, 4, "Alice"),
		photoRecord(3, 5, "Alice"), // five minutes from record 0, still within three of record 1
		photoRecord(4, 6, "Alice"),
		textRecord(5, 10, "Alice", "x"),
	}

	msgs := Build(records)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if _, ok := msgs[0].(*MediaMessage); !ok {
		t.Errorf("msgs[0] is %T, want standalone media", msgs[0])
	}
	bulk, ok := msgs[1].(*BulkMediaMessage)
	if !ok {
		t.Fatalf("msgs[1] is %T, want *BulkMediaMessage", msgs[1])
	}
	if len(bulk.Items) != 4 || bulk.Seqs[0] != 1 {
		t.Errorf("gallery = %d items starting at seq %d, want 4 from seq 1", len(bulk.Items), bulk.Seqs[0])
	}
}

func TestBuildLastMediaNeverAnchors(t *testing.T) {
	// Plenty of eligible photos, but the final record cannot start a
	// run; the scan before it already collapsed the rest.
	records := photoRun(0, 0, 5, "Alice")

	msgs := Build(records)
	// Records 0..3 scan as a 5-long run (the last record can still be
	// a follower), collapsing all five into one gallery.
	if len(msgs) != 1 || countBulks(msgs) != 1 {
		t.Fatalf("got %d messages with %d galleries, want 1/1", len(msgs), countBulks(msgs))
	}

	solo := []store.Record{photoRecord(0, 0, "Alice")}
	msgs = Build(solo)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if _, ok := msgs[0].(*MediaMessage); !ok {
		t.Errorf("single media is %T, want standalone", msgs[0])
	}
}

func TestBuildAnchorNotScreenedLikeFollowers(t *testing.T) {
	// The anchor only needs to be uncaptioned, non-final media; a
	// missing file does not stop it from heading a gallery.
	records := []store.Record{{
		Seq: 0, Timestamp: atMinute(0), Sender: "Alice",
		Kind: export.KindMedia, MediaType: export.MediaOther,
	}}
	records = append(records, photoRun(1, 1, 4, "Alice")...)
	records = append(records, textRecord(5, 10, "Alice", "x"))

	msgs := Build(records)
	if len(msgs) != 2 || countBulks(msgs) != 1 {
		t.Fatalf("got %d messages with %d galleries, want 2/1", len(msgs), countBulks(msgs))
	}
	bulk := msgs[0].(*BulkMediaMessage)
	if len(bulk.Items) != 5 {
		t.Fatalf("gallery has %d items, want 5", len(bulk.Items))
	}
	if bulk.Items[0].Path != "" || bulk.Items[0].MediaType != export.MediaOther {
		t.Errorf("anchor item = %+v, want its own path and type preserved", bulk.Items[0])
	}
}

func TestBuildCompletenessAndOrder(t *testing.T) {
	// A representative mix: texts, system records, a collapsing run, a
	// rejected short run, captioned media, and audio.
	var records []store.Record
	records = append(records, textRecord(100, 0, "Alice", "hi"))
	records = append(records, photoRun(101, 1, 6, "Alice")...)
	records = append(records, systemRecord(107, 8, "Bob joined"))
	records = append(records, photoRun(108, 9, 2, "Bob")...)
	records = append(records, store.Record{
		Seq: 110, Timestamp: atMinute(12), Sender: "Bob",
		Kind: export.KindMedia, MediaType: export.MediaPhoto, MediaPath: "/m/IMG.jpg", Caption: "look",
	})
	records = append(records, store.Record{
		Seq: 111, Timestamp: atMinute(13), Sender: "Alice",
		Kind: export.KindMedia, MediaType: export.MediaAudio, MediaPath: "/m/PTT.opus",
	})
	records = append(records, textRecord(112, 14, "Bob", "bye"))

	msgs := Build(records)

	got := flatten(msgs)
	if len(got) != len(records) {
		t.Fatalf("flattened %d seqs, want %d", len(got), len(records))
	}
	for i, r := range records {
		if got[i] != r.Seq {
			t.Errorf("flattened[%d] = %d, want %d", i, got[i], r.Seq)
		}
	}

	for i, m := range msgs {
		var idx int
		switch v := m.(type) {
		case *TextMessage:
			idx = v.Index
		case *SystemMessage:
			idx = v.Index
		case *MediaMessage:
			idx = v.Index
		case *BulkMediaMessage:
			idx = v.Index
		}
		if idx != i {
			t.Errorf("msgs[%d].Index = %d, want %d", i, idx, i)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	if msgs := Build(nil); len(msgs) != 0 {
		t.Errorf("Build(nil) = %d messages, want 0", len(msgs))
	}
}

func TestBuildStarredCarriedFromRecords(t *testing.T) {
	records := []store.Record{textRecord(0, 0, "Alice", "hi")}
	records[0].Starred = true
	run := photoRun(1, 1, 4, "Alice")
	run[0].Starred = true // anchor
	run[2].Starred = true // buried member
	records = append(records, run...)
	records = append(records, textRecord(5, 10, "Alice", "bye"))

	msgs := Build(records)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if tm := msgs[0].(*TextMessage); !tm.Starred {
		t.Error("text Starred = false, want true")
	}
	// The gallery reflects its anchor's flag only.
	if bulk := msgs[1].(*BulkMediaMessage); !bulk.Starred {
		t.Error("gallery Starred = false, want anchor's true")
	}
}
