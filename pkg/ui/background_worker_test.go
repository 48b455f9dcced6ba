package ui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chat_timelines/pkg/settings"
)

const chatContent = `{"user_name":"User","character_name":"Seraphina"}
{"name":"Seraphina","is_user":false,"mes":"Welcome, traveler."}
{"name":"User","is_user":true,"mes":"Hello!"}
`

func writeChatDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chat1.jsonl"), []byte(chatContent), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return dir
}

func workerConfig(dir string) WorkerConfig {
	return WorkerConfig{
		ChatsDir:      dir,
		Options:       settings.Defaults(),
		DebounceDelay: 50 * time.Millisecond,
	}
}

func TestBackgroundWorker_NewWithoutDir(t *testing.T) {
	worker, err := NewBackgroundWorker(WorkerConfig{Options: settings.Defaults()})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	if worker.State() != WorkerIdle {
		t.Errorf("Expected idle state, got %v", worker.State())
	}
	if worker.GetSnapshot() != nil {
		t.Error("Expected nil snapshot initially")
	}
	if worker.WatcherChanged() != nil {
		t.Error("WatcherChanged should return nil when no watcher")
	}
}

func TestBackgroundWorker_StartStop(t *testing.T) {
	worker, err := NewBackgroundWorker(workerConfig(writeChatDir(t)))
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}

	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Stop should be idempotent
	worker.Stop()
	worker.Stop()

	if worker.State() != WorkerStopped {
		t.Errorf("Expected stopped state, got %v", worker.State())
	}
}

func TestBackgroundWorker_TriggerRefresh(t *testing.T) {
	worker, err := NewBackgroundWorker(workerConfig(writeChatDir(t)))
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	snapshot := worker.GetSnapshot()
	if snapshot == nil {
		t.Fatal("Expected snapshot after refresh")
	}
	if len(snapshot.Graph.Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(snapshot.Graph.Nodes))
	}
	if snapshot.Report.Sessions != 1 {
		t.Errorf("Expected 1 session in report, got %d", snapshot.Report.Sessions)
	}
	if snapshot.DataHash == "" {
		t.Error("Expected DataHash to be set in snapshot")
	}
	if snapshot.DataHash != worker.LastHash() {
		t.Errorf("DataHash mismatch: snapshot=%s, worker=%s", snapshot.DataHash, worker.LastHash())
	}
}

func TestBackgroundWorker_ContentHashDedup(t *testing.T) {
	worker, err := NewBackgroundWorker(workerConfig(writeChatDir(t)))
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	snapshot1 := worker.GetSnapshot()
	if snapshot1 == nil {
		t.Fatal("Expected snapshot after first refresh")
	}
	hash1 := worker.LastHash()
	if hash1 == "" {
		t.Error("Expected non-empty hash after first refresh")
	}

	// Second refresh with unchanged content is deduped.
	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	if worker.LastHash() != hash1 {
		t.Errorf("Hash changed unexpectedly: %s -> %s", hash1, worker.LastHash())
	}
	if worker.GetSnapshot() != snapshot1 {
		t.Error("Snapshot pointer changed when content was unchanged - dedup failed")
	}
}

func TestBackgroundWorker_ContentHashChanges(t *testing.T) {
	dir := writeChatDir(t)
	worker, err := NewBackgroundWorker(workerConfig(dir))
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	snapshot1 := worker.GetSnapshot()
	if snapshot1 == nil {
		t.Fatal("Expected snapshot after first refresh")
	}
	hash1 := worker.LastHash()

	updated := chatContent + `{"name":"Seraphina","is_user":false,"mes":"A new reply."}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "chat1.jsonl"), []byte(updated), 0644); err != nil {
		t.Fatalf("Failed to write modified file: %v", err)
	}

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	snapshot2 := worker.GetSnapshot()
	if snapshot2 == nil {
		t.Fatal("Expected snapshot after second refresh")
	}
	if worker.LastHash() == hash1 {
		t.Error("Hash should have changed when content changed")
	}
	if snapshot1 == snapshot2 {
		t.Error("Snapshot pointer should have changed when content changed")
	}
	if len(snapshot2.Graph.Nodes) != 3 {
		t.Errorf("Expected 3 nodes after appending a message, got %d", len(snapshot2.Graph.Nodes))
	}
}

func TestBackgroundWorker_ResetHash(t *testing.T) {
	worker, err := NewBackgroundWorker(workerConfig(writeChatDir(t)))
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	snapshot1 := worker.GetSnapshot()
	if worker.LastHash() == "" {
		t.Error("Expected non-empty hash")
	}

	worker.ResetHash()
	if worker.LastHash() != "" {
		t.Error("Expected empty hash after reset")
	}

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	if worker.LastHash() == "" {
		t.Error("Expected hash to be set after refresh")
	}
	if worker.GetSnapshot() == snapshot1 {
		t.Error("Expected new snapshot after hash reset")
	}
}

func TestBackgroundWorker_LoadError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	worker, err := NewBackgroundWorker(workerConfig(missing))
	if err != nil {
		// Watcher creation can fail for a missing directory, which is fine.
		t.Skipf("Skipping test - watcher creation failed: %v", err)
	}
	defer worker.Stop()

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	if worker.GetSnapshot() != nil {
		t.Error("Expected nil snapshot when directory doesn't exist")
	}

	lastErr := worker.LastError()
	if lastErr == nil {
		t.Error("Expected error to be recorded")
	} else if lastErr.Phase != "load" {
		t.Errorf("Expected phase 'load', got %q", lastErr.Phase)
	}
}

func TestBackgroundWorker_GroupMode(t *testing.T) {
	cfg := workerConfig(writeChatDir(t))
	cfg.GroupMode = true
	worker, err := NewBackgroundWorker(cfg)
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)

	snapshot := worker.GetSnapshot()
	if snapshot == nil {
		t.Fatal("Expected snapshot in group mode")
	}
	if len(snapshot.Graph.Nodes) != 1 {
		t.Errorf("Expected 1 opaque node per file, got %d", len(snapshot.Graph.Nodes))
	}
	if len(snapshot.Graph.Edges) != 0 {
		t.Errorf("Group mode must emit no edges, got %d", len(snapshot.Graph.Edges))
	}
}

func TestWorkerError_String(t *testing.T) {
	err := WorkerError{
		Phase:   "load",
		Cause:   os.ErrNotExist,
		Time:    time.Now(),
		Retries: 3,
	}

	s := err.Error()
	if !strings.Contains(s, "load") {
		t.Errorf("Error() should contain phase 'load': %s", s)
	}
	if !strings.Contains(s, "3") {
		t.Errorf("Error() should contain retry count: %s", s)
	}
	if err.Unwrap() != os.ErrNotExist {
		t.Error("Unwrap() should return underlying error")
	}
}

func TestBackgroundWorker_SafeCompute(t *testing.T) {
	worker, err := NewBackgroundWorker(workerConfig(writeChatDir(t)))
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	err2 := worker.safeCompute("test", func() error {
		panic("intentional panic for testing")
	})
	if err2 == nil {
		t.Fatal("safeCompute should catch panics")
	}
	if err2.Phase != "test" {
		t.Errorf("Expected phase 'test', got %q", err2.Phase)
	}

	// Worker still functional after the recovered panic.
	worker.TriggerRefresh()
	time.Sleep(200 * time.Millisecond)
	if worker.GetSnapshot() == nil {
		t.Error("Worker should still be functional after panic recovery")
	}
}

func TestHashPrefix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"short", "short"},
		{"1234567890123456", "1234567890123456"},
		{"8b423072ec4730921a2b3c4d5e6f7890", "8b423072ec473092"},
	}
	for _, tt := range tests {
		if got := hashPrefix(tt.input); got != tt.expected {
			t.Errorf("hashPrefix(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBackgroundWorker_ConcurrentTrigger(t *testing.T) {
	worker, err := NewBackgroundWorker(workerConfig(writeChatDir(t)))
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Only one process() runs at a time; the rest mark dirty.
	for i := 0; i < 5; i++ {
		go worker.TriggerRefresh()
	}

	time.Sleep(400 * time.Millisecond)

	if worker.State() != WorkerIdle {
		t.Errorf("Expected idle state after concurrent triggers, got %v", worker.State())
	}
	if worker.GetSnapshot() == nil {
		t.Error("Expected snapshot after concurrent triggers")
	}
}
