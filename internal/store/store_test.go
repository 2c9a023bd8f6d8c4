package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/export"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func textRecord(ts int64, sender, body string) Record {
	return Record{Timestamp: ts, Sender: sender, Kind: export.KindText, Body: body}
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + record indexes)", result.Version)
	}
}

// TestMigrateSchemaHasRequiredColumns verifies the migration creates all
// columns the import engine depends on.
func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"insert chat", "INSERT INTO chats (name, message_count, first_sent, last_sent, last_preview, imported_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", []any{"family", 0, 0, 0, "", 0, 1000, 1000}},
		{"insert source", "INSERT INTO sources (chat_id, file_path, media_dir, file_mtime, file_size, created_at) VALUES (?, ?, ?, ?, ?, ?)", []any{1, "/exports/family.txt", "/exports/media", 0, 0, 1000}},
		{"insert record", "INSERT INTO records (chat_id, seq, timestamp, sender, kind, body, media_type, media_path, caption, starred) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{1, 0, 1000, "Alice", "text", "hello", "", "", "", false}},
		{"set meta", "INSERT INTO meta (key, value) VALUES (?, ?)", []any{"k", "v"}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}
}

func TestChatCreateAndGet(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Error("expected non-zero chat ID")
	}

	c, err := db.GetChat("family")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.ID != created.ID {
		t.Errorf("got %v, want ID %d", c, created.ID)
	}

	// Non-existent.
	c, err = db.GetChat("missing")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing chat")
	}
}

func TestCreateChatDuplicateName(t *testing.T) {
	db := testDB(t)

	if _, err := db.CreateChat("family"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateChat("family"); err == nil {
		t.Error("expected error for duplicate chat name")
	}
}

func TestListChatsOrder(t *testing.T) {
	db := testDB(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := db.CreateChat(name); err != nil {
			t.Fatal(err)
		}
	}
	alpha, _ := db.GetChat("alpha")
	mid, _ := db.GetChat("mid")
	if err := db.UpdateChatSummary(mid.ID, 5, 100, 9000, "latest"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateChatSummary(alpha.ID, 2, 100, 500, "older"); err != nil {
		t.Fatal(err)
	}

	chats, err := db.ListChats()
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(chats))
	for i, c := range chats {
		got[i] = c.Name
	}
	// mid has the newest message, then alpha; zeta never imported
	// (last_sent 0) sorts last.
	want := []string{"mid", "alpha", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if chats[0].MessageCount != 5 || chats[0].LastPreview != "latest" {
		t.Errorf("summary = %d/%q, want 5/latest", chats[0].MessageCount, chats[0].LastPreview)
	}
}

func TestDeleteChatCascades(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, "/exports/family.txt", ""); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceRecords(chat.ID, []Record{textRecord(1000, "Alice", "hi")}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteChat("family"); err != nil {
		t.Fatal(err)
	}

	var sources, records int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&sources); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&records); err != nil {
		t.Fatal(err)
	}
	if sources != 0 || records != 0 {
		t.Errorf("after delete: %d sources, %d records, want 0/0", sources, records)
	}

	if err := db.DeleteChat("family"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestAddSourceIdempotent(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	first, err := db.AddSource(chat.ID, "/exports/family.txt", "/exports/media-v1")
	if err != nil {
		t.Fatal(err)
	}
	// Re-adding the same path updates the media dir, not a new row.
	second, err := db.AddSource(chat.ID, "/exports/family.txt", "/exports/media-v2")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("second add created new row %d, want %d", second.ID, first.ID)
	}
	if second.MediaDir != "/exports/media-v2" {
		t.Errorf("media_dir = %q, want /exports/media-v2", second.MediaDir)
	}

	sources, err := db.ListSources(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
}

func TestListSourcesRegistrationOrder(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	paths := []string{"/exports/old.txt", "/exports/new.txt", "/exports/phone.txt"}
	for _, p := range paths {
		if _, err := db.AddSource(chat.ID, p, ""); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := db.ListSources(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != len(paths) {
		t.Fatalf("got %d sources, want %d", len(sources), len(paths))
	}
	for i, p := range paths {
		if sources[i].FilePath != p {
			t.Errorf("sources[%d] = %q, want %q", i, sources[i].FilePath, p)
		}
	}
}

func TestRemoveSource(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, "/exports/family.txt", ""); err != nil {
		t.Fatal(err)
	}
	if err := db.RemoveSource(chat.ID, "/exports/family.txt"); err != nil {
		t.Fatal(err)
	}
	if err := db.RemoveSource(chat.ID, "/exports/family.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove = %v, want ErrNotFound", err)
	}
}

func TestUpdateSourceStat(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	src, err := db.AddSource(chat.ID, "/exports/family.txt", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateSourceStat(src.ID, 1234, 5678); err != nil {
		t.Fatal(err)
	}

	sources, err := db.ListSources(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sources[0].FileMtime != 1234 || sources[0].FileSize != 5678 {
		t.Errorf("stat = %d/%d, want 1234/5678", sources[0].FileMtime, sources[0].FileSize)
	}
}

func TestReplaceRecordsAssignsSeqByPosition(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	records := []Record{
		textRecord(1000, "Alice", "first"),
		textRecord(2000, "Bob", "second"),
		textRecord(3000, "Alice", "third"),
	}
	if err := db.ReplaceRecords(chat.ID, records); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListRecords(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, r := range got {
		if r.Seq != int64(i) {
			t.Errorf("records[%d].Seq = %d, want %d", i, r.Seq, i)
		}
	}
	if got[1].Body != "second" {
		t.Errorf("body = %q, want second", got[1].Body)
	}

	n, err := db.CountRecords(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestReplaceRecordsRoundTripsMedia(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	records := []Record{{
		Timestamp: 1000,
		Sender:    "Alice",
		Kind:      export.KindMedia,
		MediaType: export.MediaPhoto,
		MediaPath: "/exports/media/IMG-0001.jpg",
		Caption:   "the beach",
	}}
	if err := db.ReplaceRecords(chat.ID, records); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListRecords(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	r := got[0]
	if r.Kind != export.KindMedia || r.MediaType != export.MediaPhoto {
		t.Errorf("kind/type = %s/%s, want media/photo", r.Kind, r.MediaType)
	}
	if r.MediaPath != "/exports/media/IMG-0001.jpg" || r.Caption != "the beach" {
		t.Errorf("path/caption = %q/%q", r.MediaPath, r.Caption)
	}
}

// TestReplaceRecordsCarriesStars verifies stars survive a re-import even
// though sequence numbers are reassigned. Regression: an edit near the top
// of an export shifted every seq, silently unstarring the whole chat.
func TestReplaceRecordsCarriesStars(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceRecords(chat.ID, []Record{
		textRecord(1000, "Alice", "keep me"),
		textRecord(2000, "Bob", "unstarred"),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ToggleStarred(chat.ID, 0); err != nil {
		t.Fatal(err)
	}

	// Re-import with a new message prepended: "keep me" moves to seq 1.
	if err := db.ReplaceRecords(chat.ID, []Record{
		textRecord(500, "Bob", "new first"),
		textRecord(1000, "Alice", "keep me"),
		textRecord(2000, "Bob", "unstarred"),
	}); err != nil {
		t.Fatal(err)
	}

	starred, err := db.ListStarred(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(starred) != 1 {
		t.Fatalf("got %d starred, want 1", len(starred))
	}
	if starred[0].Seq != 1 || starred[0].Body != "keep me" {
		t.Errorf("starred = seq %d %q, want seq 1 'keep me'", starred[0].Seq, starred[0].Body)
	}
}

func TestReplaceRecordsDropsStarsOnChangedBody(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceRecords(chat.ID, []Record{textRecord(1000, "Alice", "original")}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ToggleStarred(chat.ID, 0); err != nil {
		t.Fatal(err)
	}

	if err := db.ReplaceRecords(chat.ID, []Record{textRecord(1000, "Alice", "rewritten")}); err != nil {
		t.Fatal(err)
	}

	starred, err := db.ListStarred(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(starred) != 0 {
		t.Errorf("got %d starred after body change, want 0", len(starred))
	}
}

func TestToggleStarred(t *testing.T) {
	db := testDB(t)

	chat, err := db.CreateChat("family")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceRecords(chat.ID, []Record{textRecord(1000, "Alice", "hi")}); err != nil {
		t.Fatal(err)
	}

	on, err := db.ToggleStarred(chat.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !on {
		t.Error("first toggle should return true")
	}
	off, err := db.ToggleStarred(chat.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if off {
		t.Error("second toggle should return false")
	}

	if _, err := db.ToggleStarred(chat.ID, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("toggle missing = %v, want ErrNotFound", err)
	}
}

func TestMeta(t *testing.T) {
	db := testDB(t)

	v, err := db.GetMeta("schema_note")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("unset key = %q, want empty", v)
	}

	if err := db.SetMeta("schema_note", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMeta("schema_note", "v2"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetMeta("schema_note")
	if err != nil {
		t.Fatal(err)
	}
	if v != "v2" {
		t.Errorf("got %q, want v2", v)
	}
}
