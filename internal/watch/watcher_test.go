package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
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

func registerChat(t *testing.T, db *store.DB, name, path string) {
	t.Helper()
	chat, err := db.CreateChat(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSource(chat.ID, path, ""); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, db *store.DB, b *bus.Bus) *Watcher {
	t.Helper()
	w := New(db, b, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func awaitEvent(t *testing.T, ch <-chan bus.Event, wantChat string) {
	t.Helper()
	select {
	case evt := <-ch:
		if evt.Kind != "source.changed" {
			t.Errorf("kind = %q, want source.changed", evt.Kind)
		}
		if chat, _ := evt.Payload.(string); chat != wantChat {
			t.Errorf("payload = %v, want %q", evt.Payload, wantChat)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for source.changed")
	}
}

func TestWatcherPublishesOnWrite(t *testing.T) {
	db := testDB(t)
	b := bus.New()

	dir := t.TempDir()
	path := filepath.Join(dir, "chat.txt")
	if err := os.WriteFile(path, []byte("1/2/23, 10:00 AM - Alice: hi\n"), 0600); err != nil {
		t.Fatal(err)
	}
	registerChat(t, db, "friends", path)

	ch, unsub := b.Subscribe("source.", 10)
	defer unsub()
	startWatcher(t, db, b)

	if err := os.WriteFile(path, []byte("1/2/23, 10:00 AM - Alice: hi\n1/2/23, 10:01 AM - Bob: yo\n"), 0600); err != nil {
		t.Fatal(err)
	}

	awaitEvent(t, ch, "friends")
}

func TestWatcherIgnoresUnregisteredFiles(t *testing.T) {
	db := testDB(t)
	b := bus.New()

	dir := t.TempDir()
	path := filepath.Join(dir, "chat.txt")
	if err := os.WriteFile(path, []byte("x\n"), 0600); err != nil {
		t.Fatal(err)
	}
	registerChat(t, db, "friends", path)

	ch, unsub := b.Subscribe("source.", 10)
	defer unsub()
	startWatcher(t, db, b)

	// A sibling file in the same watched directory must not trigger.
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("scratch\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event for unregistered file: %v", evt)
	case <-time.After(debounceDelay + 300*time.Millisecond):
		// Expected: nothing published.
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	db := testDB(t)
	b := bus.New()

	dir := t.TempDir()
	path := filepath.Join(dir, "chat.txt")
	if err := os.WriteFile(path, []byte("x\n"), 0600); err != nil {
		t.Fatal(err)
	}
	registerChat(t, db, "friends", path)

	ch, unsub := b.Subscribe("source.", 10)
	defer unsub()
	startWatcher(t, db, b)

	// Rapid writes well inside the debounce window.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("x\n"), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	awaitEvent(t, ch, "friends")

	// The burst should have collapsed into one event.
	select {
	case evt := <-ch:
		t.Errorf("burst produced extra event: %v", evt)
	case <-time.After(debounceDelay + 300*time.Millisecond):
	}
}

func TestRefreshPicksUpNewSources(t *testing.T) {
	db := testDB(t)
	b := bus.New()

	dir := t.TempDir()
	ch, unsub := b.Subscribe("source.", 10)
	defer unsub()
	w := startWatcher(t, db, b)

	// Register a chat after the watcher started.
	path := filepath.Join(dir, "late.txt")
	if err := os.WriteFile(path, []byte("x\n"), 0600); err != nil {
		t.Fatal(err)
	}
	registerChat(t, db, "latecomer", path)
	if err := w.Refresh(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("xy\n"), 0600); err != nil {
		t.Fatal(err)
	}

	awaitEvent(t, ch, "latecomer")
}
