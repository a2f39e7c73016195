package policy

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan-policy.yaml")
	if err := os.WriteFile(path, []byte("min_confidence: 70\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	handle := NewHandle(loaded.Policy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, handle, log.New(io.Discard, "", 0))
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("min_confidence: 90\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for handle.Current().MinConfidence != 90 {
		select {
		case <-deadline:
			t.Fatalf("policy not reloaded, min_confidence still %d", handle.Current().MinConfidence)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}

func TestWatchKeepsPolicyOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan-policy.yaml")
	if err := os.WriteFile(path, []byte("min_confidence: 70\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	handle := NewHandle(Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Watch(ctx, path, handle, log.New(io.Discard, "", 0)) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("min_confidence: [broken\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	time.Sleep(700 * time.Millisecond)
	if got := handle.Current().MinConfidence; got != 70 {
		t.Fatalf("min_confidence = %d, want previous value 70", got)
	}
}
