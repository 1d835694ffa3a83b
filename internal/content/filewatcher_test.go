package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rwaddinsall/hcf2025/internal/snapshot"
)

func newTestFileWatcher(t *testing.T, path string, mgr *Manager) *FileWatcher {
	t.Helper()
	fw, err := NewFileWatcher(FileWatcherOptions{
		Path:     path,
		Manager:  mgr,
		Debounce: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	return fw
}

func TestNewFileWatcher_Validation(t *testing.T) {
	if _, err := NewFileWatcher(FileWatcherOptions{Manager: NewManager()}); err == nil {
		t.Fatal("missing path should fail")
	}
	if _, err := NewFileWatcher(FileWatcherOptions{Path: "x.json"}); err == nil {
		t.Fatal("missing manager should fail")
	}
	if _, err := NewFileWatcher(FileWatcherOptions{Path: filepath.Join(t.TempDir(), "nodir", "x.json"), Manager: NewManager()}); err == nil {
		t.Fatal("missing directory should fail")
	}
}

func TestFileWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strapi-content.json")
	w1, err := snapshot.WriteFile(path, docWithPages(t, 1))
	if err != nil {
		t.Fatal(err)
	}

	mgr := NewManager()
	fw := newTestFileWatcher(t, path, mgr)
	var swaps []string
	fw.onSwap = func(hash, _ string) { swaps = append(swaps, hash) }
	var results []string
	fw.onReload = func(r string) { results = append(results, r) }

	if err := fw.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if mgr.ContentHash() != w1.SHA256 || mgr.Source() != SourceFile {
		t.Fatalf("manager = %q %q", mgr.ContentHash(), mgr.Source())
	}

	// unchanged file does not swap
	if err := fw.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(swaps) != 1 {
		t.Fatalf("swaps = %v", swaps)
	}

	// invalid content keeps the current snapshot
	if err := os.WriteFile(path, []byte(`{"fetchedAt":"","strapiUrl":""}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fw.Reload(context.Background()); err == nil {
		t.Fatal("expected validation error")
	}
	if mgr.ContentHash() != w1.SHA256 {
		t.Fatal("invalid file replaced current content")
	}
	if strings.Join(results, ",") != "swapped,unchanged,error" {
		t.Fatalf("reload results = %v", results)
	}
}

func TestFileWatcher_RunPicksUpRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strapi-content.json")
	if _, err := snapshot.WriteFile(path, docWithPages(t, 1)); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager()
	snap, err := LoadFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	mgr.Set(*snap)

	fw := newTestFileWatcher(t, path, mgr)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	// unrelated files in the directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	w2, err := snapshot.WriteFile(path, docWithPages(t, 3))
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for mgr.ContentHash() != w2.SHA256 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("file watcher never reloaded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := len(mgr.Store().InfoPages()); got != 3 {
		t.Fatalf("info pages = %d, want 3", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
}
