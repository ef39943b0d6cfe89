package compiledb

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Loader owns the lazily-parsed, mtime-validated Index for a single
// compile database path: a snapshot is parsed once and reused until
// the source file's mtime
// changes, at which point it is reparsed and the pointer swapped
// atomically. Readers never see a partially-updated Index. Reparses
// are serialized by mu, which is held across the parse itself; a
// caller whose snapshot is still fresh also takes mu briefly to
// compare mtimes, so it waits while another caller is reparsing.
type Loader struct {
	path string

	mu        sync.Mutex // serializes reparses and guards lastMtime; held across a reparse
	lastMtime time.Time
	snapshot  atomic.Pointer[Index]
}

// NewLoader returns a Loader for the compile database at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the compile database path this loader was built for.
func (l *Loader) Path() string {
	return l.path
}

// Get returns the current Index, reparsing if the source file's mtime
// has changed since the last successful parse. Concurrent callers
// observe a consistent snapshot: the returned *Index is never mutated
// in place.
func (l *Loader) Get() (*Index, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return nil, err
	}
	mtime := info.ModTime()

	if snap := l.snapshot.Load(); snap != nil {
		l.mu.Lock()
		fresh := l.lastMtime.Equal(mtime)
		l.mu.Unlock()
		if fresh {
			return snap, nil
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check under the lock: another goroutine may have already
	// refreshed to this mtime while we were waiting.
	if snap := l.snapshot.Load(); snap != nil && l.lastMtime.Equal(mtime) {
		return snap, nil
	}
	idx, err := Parse(l.path)
	if err != nil {
		return nil, err
	}
	l.snapshot.Store(idx)
	l.lastMtime = mtime
	return idx, nil
}

// Mtime returns the mtime of the compile database as of the last
// successful Get, used as a settings-fingerprint input. The zero time
// is returned if Get has never succeeded.
func (l *Loader) Mtime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastMtime
}

// Invalidate discards the cached snapshot, forcing the next Get to
// reparse regardless of mtime. Used by the live watcher as an
// optimization only; correctness never depends on it.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshot.Store(nil)
	l.lastMtime = time.Time{}
}
