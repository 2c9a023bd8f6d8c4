package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/metrics"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testEngine(t *testing.T) (*Engine, *store.DB, *bus.Bus) {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	return NewEngine(db, b, zap.NewNop(), metrics.New()), db, b
}

func writeExport(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportChatStoresRecords(t *testing.T) {
	e, db, b := testEngine(t)
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	path := writeExport(t,
		"1/2/23, 10:00 AM - Alice: hello there",
		"1/2/23, 10:05 AM - Bob: hi!",
		"1/2/23, 10:06 AM - Bob: IMG-0001.jpg (file attached)",
	)
	chat, err := db.CreateChat("friends")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, path, ""); err != nil {
		t.Fatal(err)
	}

	if err := e.ImportChat(chat); err != nil {
		t.Fatal(err)
	}

	records, err := db.ListRecords(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Sender != "Alice" || records[0].Body != "hello there" {
		t.Errorf("records[0] = %q/%q", records[0].Sender, records[0].Body)
	}
	if records[2].MediaType != "photo" {
		t.Errorf("records[2].MediaType = %q, want photo", records[2].MediaType)
	}

	got, err := db.GetChat("friends")
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageCount != 3 {
		t.Errorf("message_count = %d, want 3", got.MessageCount)
	}
	if got.LastPreview != "<photo>" {
		t.Errorf("last_preview = %q, want <photo>", got.LastPreview)
	}
	if got.ImportedAt == 0 {
		t.Error("imported_at not set")
	}
	if got.FirstSent >= got.LastSent {
		t.Errorf("first_sent %d should precede last_sent %d", got.FirstSent, got.LastSent)
	}

	select {
	case evt := <-ch:
		if evt.Kind != "chat.imported" {
			t.Errorf("event kind = %q, want chat.imported", evt.Kind)
		}
		res, ok := evt.Payload.(ImportResult)
		if !ok || res.Chat != "friends" || res.Records != 3 {
			t.Errorf("payload = %#v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for chat.imported")
	}
}

func TestImportChatMergesSources(t *testing.T) {
	e, db, _ := testEngine(t)

	older := writeExport(t,
		"1/2/23, 10:00 AM - Alice: one",
		"1/2/23, 10:01 AM - Bob: two",
		"1/2/23, 10:02 AM - Alice: three",
	)
	newer := writeExport(t,
		"1/2/23, 11:00 AM - Bob: four",
		"1/2/23, 11:05 AM - Alice: five",
	)
	chat, err := db.CreateChat("friends")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{older, newer} {
		if _, err := db.AddSource(chat.ID, p, ""); err != nil {
			t.Fatal(err)
		}
	}

	if err := e.ImportChat(chat); err != nil {
		t.Fatal(err)
	}

	records, err := db.ListRecords(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	if records[0].Body != "one" || records[4].Body != "five" {
		t.Errorf("merge order wrong: first %q last %q", records[0].Body, records[4].Body)
	}
}

func TestImportChatFailurePublishesEvent(t *testing.T) {
	e, db, b := testEngine(t)
	ch, unsub := b.Subscribe("import.", 10)
	defer unsub()

	chat, err := db.CreateChat("broken")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, "/nonexistent/chat.txt", ""); err != nil {
		t.Fatal(err)
	}

	if err := e.ImportChat(chat); err == nil {
		t.Fatal("expected error for missing export file")
	}

	select {
	case evt := <-ch:
		if evt.Kind != "import.failed" {
			t.Errorf("event kind = %q, want import.failed", evt.Kind)
		}
		f, ok := evt.Payload.(ImportFailure)
		if !ok || f.Chat != "broken" || f.Err == "" {
			t.Errorf("payload = %#v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for import.failed")
	}
}

func TestSyncOnBootSkipsUnchanged(t *testing.T) {
	e, db, _ := testEngine(t)

	path := writeExport(t, "1/2/23, 10:00 AM - Alice: hello")
	chat, err := db.CreateChat("friends")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, path, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.ImportChat(chat); err != nil {
		t.Fatal(err)
	}

	imported, skipped, failed, err := e.SyncOnBoot()
	if err != nil {
		t.Fatal(err)
	}
	if imported != 0 || skipped != 1 || failed != 0 {
		t.Errorf("boot sync = %d/%d/%d, want 0 imported, 1 skipped, 0 failed", imported, skipped, failed)
	}

	// Grow the file; the next boot sync must pick it up.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("1/2/23, 10:05 AM - Bob: a late reply\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	imported, skipped, failed, err = e.SyncOnBoot()
	if err != nil {
		t.Fatal(err)
	}
	if imported != 1 || skipped != 0 || failed != 0 {
		t.Errorf("boot sync after change = %d/%d/%d, want 1 imported", imported, skipped, failed)
	}

	n, err := db.CountRecords(chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("got %d records after re-import, want 2", n)
	}
}

func TestSyncOnBootImportsNeverImported(t *testing.T) {
	e, db, _ := testEngine(t)

	path := writeExport(t, "1/2/23, 10:00 AM - Alice: hello")
	chat, err := db.CreateChat("fresh")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, path, ""); err != nil {
		t.Fatal(err)
	}

	imported, skipped, failed, err := e.SyncOnBoot()
	if err != nil {
		t.Fatal(err)
	}
	if imported != 1 || skipped != 0 || failed != 0 {
		t.Errorf("boot sync = %d/%d/%d, want 1 imported", imported, skipped, failed)
	}
}

func TestSyncOnBootCountsFailures(t *testing.T) {
	e, db, _ := testEngine(t)

	good := writeExport(t, "1/2/23, 10:00 AM - Alice: hello")
	chatA, err := db.CreateChat("good")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chatA.ID, good, ""); err != nil {
		t.Fatal(err)
	}
	chatB, err := db.CreateChat("bad")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chatB.ID, "/nonexistent/chat.txt", ""); err != nil {
		t.Fatal(err)
	}

	imported, _, failed, err := e.SyncOnBoot()
	if err != nil {
		t.Fatal(err)
	}
	if imported != 1 || failed != 1 {
		t.Errorf("boot sync = %d imported, %d failed, want 1/1", imported, failed)
	}
}

func TestSourceChangedEventTriggersImport(t *testing.T) {
	e, db, b := testEngine(t)

	path := writeExport(t, "1/2/23, 10:00 AM - Alice: hello")
	chat, err := db.CreateChat("friends")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, path, ""); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	b.Publish(bus.Event{Kind: "source.changed", Timestamp: time.Now(), Payload: "friends"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := db.CountRecords(chat.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("records never imported, count = %d", n)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
