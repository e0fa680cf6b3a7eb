package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryStorePutListDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{RunID: "20240101_12000000", Site: "shop", CheckName: "health", Name: "/us", CheckID: 11, CreatedAt: at},
		{RunID: "20240101_12000000", Site: "shop", CheckName: "health", Name: "/eu", CheckID: 12, CreatedAt: at},
		{RunID: "20240102_09000000", Site: "blog", CheckName: "home", Name: "/", CheckID: 21, CreatedAt: at},
	}
	for _, entry := range entries {
		if err := store.Put(ctx, entry); err != nil {
			t.Fatalf("put %s: %v", entry.Key(), err)
		}
	}

	got, err := store.List(ctx, "20240101_12000000")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []Entry{entries[1], entries[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected run entries (-want +got):\n%s", diff)
	}

	all, err := store.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d err=%v", len(all), err)
	}

	removed, err := store.DeleteCheck(ctx, 12)
	if err != nil || removed != 1 {
		t.Fatalf("delete check: removed=%d err=%v", removed, err)
	}
	removed, err = store.DeleteCheck(ctx, 2)
	if err != nil || removed != 0 {
		t.Fatalf("suffix match must be exact: removed=%d err=%v", removed, err)
	}
	if left, _ := store.List(ctx, ""); len(left) != 2 {
		t.Fatalf("expected 2 entries left, got %d", len(left))
	}
}

func TestMemoryStoreValidatesEntries(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	tests := []Entry{
		{CheckID: 1},
		{RunID: "a.b", CheckID: 1},
		{RunID: "run"},
	}
	for _, entry := range tests {
		if err := store.Put(context.Background(), entry); err == nil {
			t.Fatalf("expected validation error for %+v", entry)
		}
	}
}

func TestEntryKey(t *testing.T) {
	t.Parallel()

	if got := (Entry{RunID: "20240101_12000000", CheckID: 99}).Key(); got != "20240101_12000000.99" {
		t.Fatalf("unexpected key %q", got)
	}
}
