package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/curax/triage/internal/types"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("patient-1")
	s.Append(Message{ID: types.NewMessageID(), Speaker: SpeakerUser, Content: "hello", Timestamp: time.Now()})
	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != s.ID || len(got.Transcript) != 1 {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), types.NewSessionID())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("")
	s.Context.Symptoms = []string{"headache"}
	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the original after Put must not leak into the store.
	s.Context.Symptoms[0] = "mutated"
	s.Append(Message{Content: "late"})

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Context.Symptoms[0] != "headache" {
		t.Errorf("stored snapshot mutated: %v", got.Context.Symptoms)
	}
	if len(got.Transcript) != 0 {
		t.Errorf("stored transcript grew: %d messages", len(got.Transcript))
	}
}

func TestMemoryStoreListSortedByStart(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	older := New("")
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := New("")
	if err := store.Put(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, older); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != older.ID {
		t.Errorf("expected oldest first, got %v", all)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("")
	if err := store.Put(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	s := New("patient-2")
	s.Context.Symptoms = []string{"cough"}
	s.Append(Message{ID: types.NewMessageID(), Speaker: SpeakerAssistant, Content: "hi", Timestamp: time.Now()})
	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Context.Symptoms[0] != "cough" || len(got.Transcript) != 1 {
		t.Errorf("unexpected session: %+v", got)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list: %v (%d sessions)", err, len(all))
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
