// Package scheduler implements project-wide analysis runs: resolving
// a file list, optionally filtering it down to what the cache does
// not already cover, running a bounded worker pool over the (possibly
// batched) result, and emitting the begin/report/end progress
// notifications and per-file publishDiagnostics notifications along
// the way.
//
// The worker pool is a bounded weighted semaphore rather than a fixed
// goroutine set: one goroutine is spawned per file, each acquiring a
// slot before doing work and releasing it on completion. The pool
// size is re-read from settings on every run, so a maxWorkers change
// between runs takes effect without any pool restart.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aloshkarev/vsx-tidy/internal/cache"
	"github.com/aloshkarev/vsx-tidy/internal/compiledb"
	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
	"github.com/aloshkarev/vsx-tidy/internal/protocol"
	"github.com/aloshkarev/vsx-tidy/internal/settings"
	"github.com/aloshkarev/vsx-tidy/internal/span"
)

// Notifier is the outbound side of a run: publishing per-file
// diagnostics, progress, and (sparse, client-visible) log events.
type Notifier interface {
	PublishDiagnostics(runID, fileURI string, diagnostics []protocol.RpcDiagnostic)
	Progress(runID, kind, message string, percent *int)
	Log(level, message string)
}

// Deps are the pieces of daemon state a run needs, gathered by the
// caller (internal/supervisor) once per run so the scheduler itself
// stays free of any notion of "current settings" or "current root".
type Deps struct {
	Settings       settings.Settings
	CompileDbPath  string // "" if none resolved
	CompileDbDir   string
	CompileDbMtime time.Time
	ConfigMtime    time.Time
	Index          *compiledb.Index // compile-db index, if loaded; may be nil
	Cache          *cache.Cache

	// AnalyzeOnDisk runs the on-disk analysis path for a single file.
	// Project runs never use the unsaved-buffer path.
	AnalyzeOnDisk func(file string) ([]diagnostic.Diagnostic, error)

	Notify    Notifier
	Cancelled func() bool
}

// Request is the analyzeProject call's parameters.
type Request struct {
	RunID       string
	Mode        string
	Incremental bool
	BatchSize   int      // 0 = single batch containing every file
	Files       []string // raw "files" param entries (URI or path); empty = resolve from the compile db
}

// Run executes one project-analysis run to completion, emitting begin,
// zero or more report, and exactly one end progress notification. It
// does not return an error: the analyzeProject response has already
// been sent by the time this executes, so every failure is reported
// via Deps.Notify and Progress("end", ...) instead.
func Run(req Request, deps Deps) {
	deps.Notify.Progress(req.RunID, "begin", fmt.Sprintf("Starting project analysis (%s)", req.Mode), nil)

	if deps.CompileDbPath == "" {
		deps.Notify.Log("error", "compile_commands.json not found")
		deps.Notify.Progress(req.RunID, "end", "compile_commands.json not found", nil)
		return
	}

	files, err := resolveFiles(req, deps)
	if err != nil {
		deps.Notify.Log("error", fmt.Sprintf("failed to load compile_commands.json: %v", err))
		deps.Notify.Progress(req.RunID, "end", "compile_commands.json not found", nil)
		return
	}

	if req.Incremental {
		files = filterIncremental(files, req.Mode, deps)
	}

	total := len(files)
	if total == 0 {
		msg := "No files found in compile_commands.json"
		if req.Incremental {
			msg = "No changed files to analyze"
		}
		hundred := 100
		deps.Notify.Progress(req.RunID, "end", msg, &hundred)
		return
	}

	runWorkers(req, deps, files, total)

	hundred := 100
	deps.Notify.Progress(req.RunID, "end", "Project analysis completed", &hundred)
}

// resolveFiles picks the run's file list: the request's own "files"
// (tolerant URI-or-path decoding), else the already-loaded index's
// file list, else a direct parse of the compile database.
func resolveFiles(req Request, deps Deps) ([]string, error) {
	if len(req.Files) > 0 {
		out := make([]string, 0, len(req.Files))
		for _, f := range req.Files {
			out = append(out, span.PathOrRaw(f))
		}
		return out, nil
	}
	if deps.Index != nil {
		return append([]string(nil), deps.Index.Files...), nil
	}
	idx, err := compiledb.Parse(deps.CompileDbPath)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), idx.Files...), nil
}

// filterIncremental drops files whose cache entry is already fresh
// for the run's settings fingerprint: a pure existence check against
// both cache tiers, never reading the file's own diagnostics. Files
// the cache cannot stat (e.g. since deleted) are kept, so the run
// surfaces the resulting analyzer error rather than silently skipping
// them.
func filterIncremental(files []string, mode string, deps Deps) []string {
	fp := settings.Fingerprint(deps.Settings, mode, deps.CompileDbPath, deps.CompileDbMtime, deps.ConfigMtime)
	out := make([]string, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			out = append(out, f)
			continue
		}
		sig := cache.Signature{ModTime: info.ModTime(), Size: info.Size()}
		if !deps.Cache.IsCached(f, sig, fp) {
			out = append(out, f)
		}
	}
	return out
}

// runWorkers drives the bounded-concurrency pass over files: batches
// are synchronous barriers (a batch completes before the next starts),
// and within a batch a goroutine is spawned per file, each acquiring a
// semaphore slot sized to Settings.Workers().
func runWorkers(req Request, deps Deps, files []string, total int) {
	sem := semaphore.NewWeighted(int64(deps.Settings.Workers()))
	ctx := context.Background()
	throt := newThrottle(deps.Settings.PublishThrottleMs)
	var done int64

	batch := req.BatchSize
	if batch <= 0 {
		batch = total
	}
	for start := 0; start < total; start += batch {
		end := start + batch
		if end > total {
			end = total
		}
		var wg sync.WaitGroup
		for _, file := range files[start:end] {
			file := file
			if err := sem.Acquire(ctx, 1); err != nil {
				continue // ctx is Background, Acquire cannot fail
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				processFile(req, deps, file, &done, total, throt)
			}()
		}
		wg.Wait()
	}
}

// processFile analyzes one file (skipped entirely if the run was
// already cancelled), publishes its diagnostics under the publish
// throttle, and emits a progress report per the modulus rule.
func processFile(req Request, deps Deps, file string, done *int64, total int, throt *throttle) {
	if deps.Cancelled() {
		return
	}

	ds, err := deps.AnalyzeOnDisk(file)
	if err != nil {
		deps.Notify.Log("error", fmt.Sprintf("clang-tidy failed for %s: %v", file, err))
		ds = nil
	}

	throt.wait()
	uri := span.URIFromPath(file)
	deps.Notify.PublishDiagnostics(req.RunID, string(uri), diagnostic.ToRPC(ds))

	finished := int(atomic.AddInt64(done, 1))
	if shouldReport(finished, total) {
		percent := finished * 100 / total
		deps.Notify.Progress(req.RunID, "report", fmt.Sprintf("Analyzed %d/%d files", finished, total), &percent)
	}
}

// shouldReport decides the progress cadence: every file when
// total < 10, otherwise every 10th file plus the final one.
func shouldReport(finished, total int) bool {
	if finished == total {
		return true
	}
	if total < 10 {
		return true
	}
	return finished%10 == 0
}

// throttle serializes publishDiagnostics notifications to at most one
// every ms milliseconds across the whole run: a shared last-publish
// timestamp guarded by a mutex, slept against on every call when the
// elapsed time is too short.
type throttle struct {
	ms int

	mu   sync.Mutex
	last time.Time
}

func newThrottle(ms int) *throttle {
	return &throttle{ms: ms}
}

func (t *throttle) wait() {
	if t.ms <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	need := time.Duration(t.ms) * time.Millisecond
	if elapsed := time.Since(t.last); elapsed < need {
		time.Sleep(need - elapsed)
	}
	t.last = time.Now()
}
