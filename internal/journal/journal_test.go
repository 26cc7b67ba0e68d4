package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := store.Record(ctx, Entry{Root: "bafyold", Name: "k51key", PublishedAt: base})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	second, err := store.Record(ctx, Entry{
		Root:        "bafynew",
		Name:        "k51key",
		Unpinned:    []string{"bafyold"},
		Warnings:    []string{"export key: disk full"},
		PublishedAt: base.Add(500 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("ids = %q, %q; want distinct non-empty", first.ID, second.ID)
	}

	got, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []Entry{
		second,
		{ID: first.ID, Root: "bafyold", Name: "k51key", Unpinned: []string{}, Warnings: []string{}, PublishedAt: base},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestListLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		if _, err := store.Record(ctx, Entry{Root: "bafy", Name: "k51", PublishedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].PublishedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("newest = %v", got[0].PublishedAt)
	}
}

func TestLast(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, found, err := store.Last(ctx); err != nil || found {
		t.Fatalf("Last on empty journal = found %v, err %v", found, err)
	}

	store.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	rec, err := store.Record(ctx, Entry{Root: "bafyroot", Name: "k51name"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, found, err := store.Last(ctx)
	if err != nil || !found {
		t.Fatalf("Last = found %v, err %v", found, err)
	}
	if got.ID != rec.ID || got.Root != "bafyroot" || !got.PublishedAt.Equal(rec.PublishedAt) {
		t.Errorf("Last = %+v, want %+v", got, rec)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Record(context.Background(), Entry{Root: "bafy", Name: "k51"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	got, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Root != "bafy" {
		t.Fatalf("List = %+v", got)
	}
}
