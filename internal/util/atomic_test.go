package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	content := []byte(`{"sessionId":"s1"}`)

	err := AtomicWriteFile(path, content, 0644)
	if err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	// Verify file exists and has correct content
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", data, content)
	}

	// Verify permissions
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("permissions mismatch: got %o, want %o", info.Mode().Perm(), 0644)
	}
}

func TestAtomicWriteFile_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "nested", "snapshot.json")
	content := []byte("nested content")

	err := AtomicWriteFile(path, content, 0644)
	if err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", data, content)
	}
}

func TestAtomicWriteFile_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	// Write initial content
	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	// Overwrite
	if err := AtomicWriteFile(path, []byte("updated"), 0644); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "updated" {
		t.Errorf("content mismatch: got %q, want %q", data, "updated")
	}
}

func TestAtomicWriteFile_NoTempFileOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	if err := AtomicWriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	// Check no temp files remain
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "snapshot.json" {
			t.Errorf("unexpected file in directory: %s", entry.Name())
		}
	}
}

func TestTruncateTail(t *testing.T) {
	if got := TruncateTail("short", 10); got != "short" {
		t.Errorf("TruncateTail(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("a", 50) + "TAIL"
	got := TruncateTail(long, 10)
	if !strings.HasPrefix(got, "...(truncated)...\n") {
		t.Errorf("expected truncation marker prefix, got %q", got)
	}
	if !strings.HasSuffix(got, "TAIL") {
		t.Errorf("expected tail preserved, got %q", got)
	}
}

func TestTruncateHead(t *testing.T) {
	if got := TruncateHead("short", 10); got != "short" {
		t.Errorf("TruncateHead(short) = %q, want unchanged", got)
	}

	got := TruncateHead("HEAD"+strings.Repeat("b", 50), 10)
	if !strings.HasPrefix(got, "HEAD") {
		t.Errorf("expected head preserved, got %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
	if len(got) != 10 {
		t.Errorf("len = %d, want 10", len(got))
	}
}
