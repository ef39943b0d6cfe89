package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) sawChangeFor(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

func TestWatcherReportsWritesToWatchedFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "compile_commands.json")
	require.NoError(t, os.WriteFile(target, []byte("[]"), 0o644))

	rec := &recorder{}
	w, err := New(rec.onChange, nil)
	require.NoError(t, err)
	defer w.Close()

	w.Watch(target)
	require.NoError(t, os.WriteFile(target, []byte(`[{"file":"a.cc"}]`), 0o644))

	require.Eventually(t, func() bool {
		return rec.sawChangeFor(target)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestResetReplacesWatchedSet(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.json")
	fresh := filepath.Join(dir, "fresh.json")
	require.NoError(t, os.WriteFile(old, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}"), 0o644))

	rec := &recorder{}
	w, err := New(rec.onChange, nil)
	require.NoError(t, err)
	defer w.Close()

	w.Watch(old)
	w.Reset(fresh)

	require.NoError(t, os.WriteFile(fresh, []byte(`{"k":1}`), 0o644))
	require.Eventually(t, func() bool {
		return rec.sawChangeFor(fresh)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatchEmptyPathAndAfterCloseAreNoOps(t *testing.T) {
	rec := &recorder{}
	w, err := New(rec.onChange, nil)
	require.NoError(t, err)

	w.Watch("")
	require.NoError(t, w.Close())
	w.Watch(filepath.Join(t.TempDir(), "late.json"))
}
