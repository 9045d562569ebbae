package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPruneLogDirRemovesOldestFirst(t *testing.T) {
	dir := t.TempDir()

	writeLogFile(t, filepath.Join(dir, "main-2026-01-01.log"), 60, time.Unix(1, 0))
	writeLogFile(t, filepath.Join(dir, "main-2026-01-02.log.gz"), 60, time.Unix(2, 0))
	active := filepath.Join(dir, mainLogName)
	writeLogFile(t, active, 60, time.Unix(3, 0))
	writeLogFile(t, filepath.Join(dir, "notes.txt"), 500, time.Unix(0, 0))

	removed, err := pruneLogDir(dir, 120, active)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed file, got %d", removed)
	}
	assertMissing(t, filepath.Join(dir, "main-2026-01-01.log"))
	assertPresent(t, filepath.Join(dir, "main-2026-01-02.log.gz"))
	assertPresent(t, active)
	assertPresent(t, filepath.Join(dir, "notes.txt"))
}

func TestPruneLogDirNeverRemovesActiveLog(t *testing.T) {
	dir := t.TempDir()

	active := filepath.Join(dir, mainLogName)
	writeLogFile(t, active, 200, time.Unix(1, 0))
	writeLogFile(t, filepath.Join(dir, "older.log"), 50, time.Unix(2, 0))

	removed, err := pruneLogDir(dir, 100, active)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed file, got %d", removed)
	}
	assertPresent(t, active)
	assertMissing(t, filepath.Join(dir, "older.log"))
}

func TestPruneLogDirWithinBudget(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, filepath.Join(dir, "a.log"), 10, time.Unix(1, 0))

	removed, err := pruneLogDir(dir, 100, "")
	if err != nil || removed != 0 {
		t.Fatalf("pruneLogDir() = %d, %v; want 0, nil", removed, err)
	}

	removed, err = pruneLogDir(filepath.Join(dir, "missing"), 1, "")
	if err != nil || removed != 0 {
		t.Fatalf("pruneLogDir(missing) = %d, %v; want 0, nil", removed, err)
	}
}

func TestStartRetentionJanitorDisabled(t *testing.T) {
	if j := startRetentionJanitor(t.TempDir(), 0, ""); j != nil {
		t.Fatal("expected nil janitor without a size budget")
	}
	var j *retentionJanitor
	j.stop()
}

func TestRetentionJanitorPrunesOnStart(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.log")
	writeLogFile(t, big, 2<<20, time.Unix(1, 0))

	j := startRetentionJanitor(dir, 1, "")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(big); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("janitor did not prune the oversized log")
		}
		time.Sleep(10 * time.Millisecond)
	}
	j.stop()
}

func writeLogFile(t *testing.T, path string, size int, modTime time.Time) {
	t.Helper()

	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("set times: %v", err)
	}
}

func assertPresent(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to remain, stat error: %v", filepath.Base(path), err)
	}
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed, stat error: %v", filepath.Base(path), err)
	}
}
