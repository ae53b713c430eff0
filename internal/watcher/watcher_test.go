package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type callRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *callRecorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *callRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *callRecorder) waitFor(t *testing.T, n int, timeout time.Duration) []string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, got %v", n, r.snapshot())
	return nil
}

func TestWatcherIngestsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	var rec callRecorder
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.record, nil,
		WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "dropped.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	got := rec.waitFor(t, 1, 3*time.Second)
	if got[0] != path {
		t.Errorf("ingested %q, want %q", got[0], path)
	}
}

func TestWatcherFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	var rec callRecorder
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.record, nil,
		WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	wanted := filepath.Join(dir, "kept.txt")
	if err := os.WriteFile(wanted, []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	got := rec.waitFor(t, 1, 3*time.Second)
	for _, p := range got {
		if filepath.Ext(p) != ".txt" {
			t.Errorf("non-matching file ingested: %q", p)
		}
	}
}

func TestWatcherDebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	var rec callRecorder
	w := NewWatcher([]string{dir}, nil, rec.record, nil,
		WithDebounce(150*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "busy.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("chunk"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	got := rec.waitFor(t, 1, 3*time.Second)
	// A settle period follows the burst; one more write may land after the
	// first flush but the burst itself must have been coalesced.
	if len(got) > 2 {
		t.Errorf("expected coalesced ingests, got %d calls", len(got))
	}
}

func TestWatcherRemoveCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var ingested, removed callRecorder
	w := NewWatcher([]string{dir}, nil, ingested.record, removed.record,
		WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	got := removed.waitFor(t, 1, 3*time.Second)
	if got[0] != path {
		t.Errorf("removed %q, want %q", got[0], path)
	}
}

func TestWatcherSyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	pre := filepath.Join(dir, "preexisting.txt")
	if err := os.WriteFile(pre, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skipped.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var rec callRecorder
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.record, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	got := rec.snapshot()
	if len(got) != 1 || got[0] != pre {
		t.Errorf("sync ingested %v, want [%s]", got, pre)
	}
}

func TestWatcherCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop")
	w := NewWatcher([]string{root}, nil, func(string) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root not created: %v", err)
	}
}
