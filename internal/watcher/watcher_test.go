package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	exts    []string
	mu      sync.Mutex
	ingests []string
	removes []string
}

func (s *recordingSink) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.exts {
		if e == ext {
			return true
		}
	}
	return false
}

func (s *recordingSink) IngestFile(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingests = append(s.ingests, path)
	return 1, nil
}

func (s *recordingSink) RemoveSource(ctx context.Context, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes, path)
	return 1, nil
}

func (s *recordingSink) ingested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ingests...)
}

func (s *recordingSink) removed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removes...)
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, roots []string, sink Sink) *Watcher {
	t.Helper()
	w := NewWatcher(roots, true, sink, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{exts: []string{".json"}}
	startWatcher(t, []string{dir}, sink)

	path := filepath.Join(dir, "diseases.json")
	for i := 0; i < 3; i++ {
		if err := writeFile(path, `{"title":"Influenza"}`); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, func() bool { return hasSuffix(sink.ingested(), "diseases.json") }) {
		t.Fatalf("expected diseases.json to be ingested, got %v", sink.ingested())
	}
	time.Sleep(150 * time.Millisecond)
	got := sink.ingested()
	if len(got) != 1 {
		t.Errorf("expected one debounced ingest, got %v", got)
	}
	if hasSuffix(got, "notes.xyz") {
		t.Errorf("notes.xyz should not be ingested")
	}
}

func TestWatcher_RemoveDeletesSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diseases.json")
	if err := writeFile(path, `{"title":"Influenza"}`); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{exts: []string{".json"}}
	startWatcher(t, []string{dir}, sink)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return hasSuffix(sink.removed(), "diseases.json") }) {
		t.Errorf("expected diseases.json source to be removed, got %v", sink.removed())
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.json", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.json"), "{}"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{exts: []string{".json"}}
	w := NewWatcher([]string{dir}, true, sink)
	w.SyncExistingFiles()

	got := sink.ingested()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.json") {
		t.Errorf("expected one ingested file a.json, got %v", got)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, &recordingSink{})

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_NewDirectory_ingestsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{exts: []string{".json", ".md"}}
	startWatcher(t, []string{dir}, sink)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.md"), "Asthma"); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, func() bool { return hasSuffix(sink.ingested(), "deep.md") }) {
		t.Errorf("expected deep.md to be ingested, got %v", sink.ingested())
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
