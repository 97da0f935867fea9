package hostname

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
)

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Watcher reports changes to the file the orchestrator mounts the pod name into.
// It is only a trigger: os.Hostname reads the kernel UTS name, not this file, so a
// rewrite that is not paired with a sethostname changes nothing subscribers resolve.
// The kernel name itself cannot be watched, procfs raises no inotify events.
type Watcher struct {
	path  string
	ready chan struct{}

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewWatcher(path string) *Watcher {
	return &Watcher{
		path:  filepath.Clean(path),
		ready: make(chan struct{}),
		subs:  make(map[chan struct{}]struct{}),
	}
}

// Ready is closed once the watcher is either watching or has fallen back to idle.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Subscribe returns a channel that receives a value after each change. Notifications
// coalesce, so a slow reader sees at most one pending value.
func (w *Watcher) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, ch)
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) Subscribers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

func (w *Watcher) notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	log := pfxlog.ContextLogger(w.path)
	dir := filepath.Dir(w.path)

	// Handle case where the directory doesn't exist (local dev)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Warnf("directory %s does not exist, host name changes will not be streamed", dir)
		close(w.ready)
		<-ctx.Done()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		close(w.ready)
		return errors.Wrap(err, "unable to create file watcher")
	}
	defer func() { _ = fsw.Close() }()

	// The directory is watched rather than the file, since mounts are usually swapped by rename.
	if err := fsw.Add(dir); err != nil {
		close(w.ready)
		return errors.Wrapf(err, "unable to watch %s", dir)
	}
	close(w.ready)
	log.Debug("watching for host name changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&changeOps == 0 {
				continue
			}
			log.Debugf("host name file changed (%s)", ev.Op)
			w.notify()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("file watcher error")
		}
	}
}
