package app

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func TestHistoryAppendRead(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := appendHistory(historyEntry{At: time.Now().UTC(), Type: "booking", Code: "ABC123", Slot: "morning"}); err != nil {
		t.Fatalf("appendHistory failed: %v", err)
	}
	entries, err := readHistory()
	if err != nil {
		t.Fatalf("readHistory failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Code != "ABC123" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].ID == "" {
		t.Fatalf("expected a generated entry id")
	}
	info, err := os.Stat(historyFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("history file mode = %o, want 600", perm)
	}
}

func TestReadHistoryPage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for i := 1; i <= 5; i++ {
		if err := appendHistory(historyEntry{Type: "booking", Code: fmt.Sprintf("C%d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	page, hasMore, err := readHistoryPage(2, 1)
	if err != nil {
		t.Fatalf("readHistoryPage failed: %v", err)
	}
	if len(page) != 2 || page[0].Code != "C3" || page[1].Code != "C4" || !hasMore {
		t.Fatalf("unexpected page: %+v hasMore=%v", page, hasMore)
	}

	page, hasMore, err = readHistoryPage(10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Code != "C1" || hasMore {
		t.Fatalf("unexpected last page: %+v hasMore=%v", page, hasMore)
	}

	if page, _, _ := readHistoryPage(5, 10); len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %+v", page)
	}
	if _, _, err := readHistoryPage(5, -1); err == nil {
		t.Fatalf("expected error for negative offset")
	}
}

func TestClearHistoryMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	n, err := clearHistory()
	if err != nil || n != 0 {
		t.Fatalf("clearHistory = %d, %v", n, err)
	}
}
