// Package watch implements the optional compile-database live
// watcher: an fsnotify watch on the resolved compile database path
// and the discovered analyzer-config path, so an external edit
// invalidates the cached index/fingerprint promptly instead of
// waiting for the next lazy mtime comparison.
//
// The daemon only ever watches those two individual files, and the
// watch is an optimization only — correctness never depends on it —
// so there is no event batching, directory-creation replay, or
// retry-with-backoff here.
package watch

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a small, replaceable set of individual files and
// invokes onChange whenever any of them is written, created, renamed,
// or removed. Paths containing the empty string are ignored.
type Watcher struct {
	onChange func(path string)
	onError  func(error)

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watched map[string]struct{}
	closed  bool
}

// New starts a Watcher. onChange is called (from the watcher's own
// goroutine) for every relevant event on a watched path; onError is
// called for fsnotify errors. Both must be non-blocking and safe to
// call concurrently with Watch/Close.
func New(onChange func(path string), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		onChange: onChange,
		onError:  onError,
		fsw:      fsw,
		watched:  make(map[string]struct{}),
	}
	go w.run()
	return w, nil
}

// Watch adds path to the watched set (a no-op if path is empty or
// already watched). Adding the same path after Close is a no-op.
func (w *Watcher) Watch(path string) {
	if path == "" {
		return
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if _, ok := w.watched[path]; ok {
		w.mu.Unlock()
		return
	}
	err := w.fsw.Add(path)
	if err == nil {
		w.watched[path] = struct{}{}
	}
	w.mu.Unlock()
	// onError runs without w.mu held, so it may call Close.
	if err != nil && w.onError != nil {
		w.onError(err)
	}
}

// Reset clears the watched set and replaces it with paths: every
// previously watched path is removed from fsnotify (errors from that
// removal are ignored), then each of paths is watched afresh. Used
// whenever the compile-db path or the discovered
// analyzer-config path changes (e.g. after initialize/configChanged).
func (w *Watcher) Reset(paths ...string) {
	w.mu.Lock()
	old := w.watched
	w.watched = make(map[string]struct{})
	w.mu.Unlock()

	for p := range old {
		_ = w.fsw.Remove(p)
	}
	for _, p := range paths {
		w.Watch(p)
	}
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.onChange(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Close stops the watcher and releases its underlying fsnotify handle.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.fsw.Close()
}
