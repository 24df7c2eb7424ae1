package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenFileStore(dir, "attempt-1")
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if err := s.Set(KeyTabSwitchCount, "3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeySecurityPauseState, `{"isActive":true}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(KeySecurityPauseState); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// A second open simulates the process restart.
	reopened, err := OpenFileStore(dir, "attempt-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reopened.Get(KeyTabSwitchCount); !ok || v != "3" {
		t.Fatalf("counter after reopen = (%q, %v), want (3, true)", v, ok)
	}
	if _, ok := reopened.Get(KeySecurityPauseState); ok {
		t.Fatal("deleted key reappeared after reopen")
	}
}

func TestFileStoresAreScopedPerAttempt(t *testing.T) {
	dir := t.TempDir()

	a, _ := OpenFileStore(dir, "attempt-a")
	b, _ := OpenFileStore(dir, "attempt-b")
	a.Set(KeyTabSwitchCount, "9")
	if _, ok := b.Get(KeyTabSwitchCount); ok {
		t.Fatal("counter leaked between attempts")
	}
}

func TestFileStoreCorruptDocumentStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attempt-1", "durable.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{{{{"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := OpenFileStore(dir, "attempt-1")
	if err != nil {
		t.Fatalf("OpenFileStore over corrupt file: %v", err)
	}
	if _, ok := s.Get(KeyTabSwitchCount); ok {
		t.Fatal("corrupt document produced keys")
	}
	// The store stays usable and the next write repairs the file.
	if err := s.Set(KeyTabSwitchCount, "1"); err != nil {
		t.Fatalf("Set after corruption: %v", err)
	}
	reopened, err := OpenFileStore(dir, "attempt-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reopened.Get(KeyTabSwitchCount); !ok || v != "1" {
		t.Fatalf("counter after repair = (%q, %v), want (1, true)", v, ok)
	}
}
