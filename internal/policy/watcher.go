package policy

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handle is a concurrency-safe holder for the active scan policy. The
// engine reads through it; the watcher swaps in reloaded policies.
type Handle struct {
	mu     sync.RWMutex
	policy ScanPolicy
	hash   string
}

// NewHandle returns a handle seeded with p.
func NewHandle(p ScanPolicy) *Handle {
	return &Handle{policy: p}
}

// Current returns the active policy.
func (h *Handle) Current() ScanPolicy {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.policy
}

func (h *Handle) set(loaded LoadedPolicy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.policy = loaded.Policy
	h.hash = loaded.Hash
}

// Watch reloads the policy file into h whenever it changes, until ctx is
// cancelled. Events are debounced because editors commonly emit several
// writes per save. A reload failure keeps the previous policy active.
func Watch(ctx context.Context, path string, h *Handle, logger *log.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors that rename-on-save
	// replace the inode and a file watch would go stale.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var timer *time.Timer
	debounce := 300 * time.Millisecond
	reload := func() {
		loaded, err := Load(path)
		if err != nil {
			logger.Printf("policy reload failed, keeping previous: %v", err)
			return
		}
		h.set(loaded)
		logger.Printf("policy reloaded (%s): min_confidence=%d blocklist=%d entries",
			loaded.Hash, loaded.Policy.MinConfidence, len(loaded.Policy.Blocklist))
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || name != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("policy watch error: %v", err)
		}
	}
}
