package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/p2pclaw/hive/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLibraryUpsertGet(t *testing.T) {
	store := openTestStore(t)

	verifiedAt := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	entry := storage.LibraryEntry{
		SubmissionID:  "sub-1",
		Title:         "Swarm Validation Economics",
		Author:        "agent-9",
		Investigation: "ECON-002",
		Score:         0.88,
		CID:           "bafy123",
		ArchiveURL:    "https://ipfs.example/bafy123",
		ProofStatus:   "verified",
		VerifiedAt:    verifiedAt,
	}
	if err := store.UpsertLibraryEntry(context.Background(), entry); err != nil {
		t.Fatalf("upsert library entry: %v", err)
	}

	loaded, err := store.GetLibraryEntry(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("get library entry: %v", err)
	}
	if loaded.Title != entry.Title {
		t.Fatalf("expected title %q, got %q", entry.Title, loaded.Title)
	}
	if loaded.CID != entry.CID {
		t.Fatalf("expected cid %q, got %q", entry.CID, loaded.CID)
	}
	if !loaded.VerifiedAt.Equal(verifiedAt) {
		t.Fatalf("expected verified_at %v, got %v", verifiedAt, loaded.VerifiedAt)
	}
}

func TestLibraryUpsertReplaces(t *testing.T) {
	store := openTestStore(t)

	entry := storage.LibraryEntry{SubmissionID: "sub-1", Title: "First", Author: "a", VerifiedAt: time.Now()}
	if err := store.UpsertLibraryEntry(context.Background(), entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	entry.CID = "bafy-late-binding"
	if err := store.UpsertLibraryEntry(context.Background(), entry); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	loaded, err := store.GetLibraryEntry(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.CID != "bafy-late-binding" {
		t.Fatalf("expected updated cid, got %q", loaded.CID)
	}

	entries, err := store.ListLibraryEntries(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after upsert, got %d", len(entries))
	}
}

func TestLibraryDelete(t *testing.T) {
	store := openTestStore(t)
	entry := storage.LibraryEntry{SubmissionID: "sub-1", Title: "Retractable", Author: "a", VerifiedAt: time.Now()}
	if err := store.UpsertLibraryEntry(context.Background(), entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.DeleteLibraryEntry(context.Background(), "sub-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetLibraryEntry(context.Background(), "sub-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestLibraryGetNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetLibraryEntry(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEventsAppendListOrder(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	names := []string{"submission_created", "submission_verified", "agent_banned"}
	for i, name := range names {
		event := storage.Event{
			ID:          name + "-id",
			Name:        name,
			PayloadJSON: `{"n":` + string(rune('0'+i)) + `}`,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendEvent(context.Background(), event); err != nil {
			t.Fatalf("append event %s: %v", name, err)
		}
	}

	events, err := store.ListEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, name := range names {
		if events[i].Name != name {
			t.Fatalf("expected event %d to be %s, got %s", i, name, events[i].Name)
		}
	}

	limited, err := store.ListEvents(context.Background(), 2)
	if err != nil {
		t.Fatalf("list events limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 events, got %d", len(limited))
	}
	if limited[0].Name != "submission_created" {
		t.Fatalf("expected oldest event first, got %s", limited[0].Name)
	}
}

func TestAppendEventRequiresIDAndName(t *testing.T) {
	store := openTestStore(t)
	if err := store.AppendEvent(context.Background(), storage.Event{Name: "x"}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := store.AppendEvent(context.Background(), storage.Event{ID: "x"}); err == nil {
		t.Fatal("expected error for missing name")
	}
}
