// Package supervisor owns every piece of shared, mutable daemon state
// — settings, the resolved compile database and its lazily-reparsed
// index, the two-tier diagnostic cache, the run→cancel map, and the
// optional live watcher — and implements the coordination logic
// behind each RPC method. It is the single owning object the
// dispatcher calls into; the daemon has exactly one workspace, so
// there is one Supervisor per process.
package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aloshkarev/vsx-tidy/internal/analyzerproc"
	"github.com/aloshkarev/vsx-tidy/internal/cache"
	"github.com/aloshkarev/vsx-tidy/internal/compiledb"
	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
	"github.com/aloshkarev/vsx-tidy/internal/logging"
	"github.com/aloshkarev/vsx-tidy/internal/protocol"
	"github.com/aloshkarev/vsx-tidy/internal/runtracker"
	"github.com/aloshkarev/vsx-tidy/internal/scheduler"
	"github.com/aloshkarev/vsx-tidy/internal/settings"
	"github.com/aloshkarev/vsx-tidy/internal/span"
	"github.com/aloshkarev/vsx-tidy/internal/watch"
)

// DaemonName and Version are reported by initialize and --version.
const DaemonName = "vsx-tidy"

// Version is the daemon's release version, bumped at release time.
const Version = "0.1.0"

// Supervisor is the daemon's single long-lived state owner.
type Supervisor struct {
	mu                sync.Mutex
	settings          settings.Settings
	root              string
	compileDbPath     string
	compileDbResolved bool
	loader            *compiledb.Loader

	cache  *cache.Cache
	runs   *runtracker.Tracker
	logger logging.Logger
	conn   *protocol.Conn

	watcherMu sync.Mutex
	watcher   *watch.Watcher
}

// New returns an idle Supervisor. conn is used for every outbound
// notification (publishDiagnostics, progress, log); logger is the
// internal diagnostic trail, separate from the RPC log channel.
func New(conn *protocol.Conn, logger logging.Logger) *Supervisor {
	return &Supervisor{
		cache:  cache.New(),
		runs:   runtracker.New(),
		logger: logger,
		conn:   conn,
	}
}

// EnableWatch turns on the optional compile-database live watcher.
// A failure to start it is logged and otherwise ignored: the watcher
// is a pure optimization, never load-bearing.
func (s *Supervisor) EnableWatch() {
	w, err := watch.New(s.handleWatchEvent, s.handleWatchError)
	if err != nil {
		s.logger.Warning("failed to start compile database watcher: {Error}", err)
		return
	}
	s.watcherMu.Lock()
	s.watcher = w
	s.watcherMu.Unlock()
}

func (s *Supervisor) handleWatchEvent(path string) {
	s.logger.Debug("watch event for {Path}", path)
	s.mu.Lock()
	loader := s.loader
	s.mu.Unlock()
	if loader != nil && compiledb.SameFile(path, loader.Path()) {
		loader.Invalidate()
	}
}

func (s *Supervisor) handleWatchError(err error) {
	s.logger.Warning("compile database watcher error, disabling: {Error}", err)
	s.watcherMu.Lock()
	w := s.watcher
	s.watcher = nil
	s.watcherMu.Unlock()
	if w != nil {
		_ = w.Close()
	}
}

// InitializeResult is the response to an "initialize" request.
type InitializeResult struct {
	Server struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"server"`
	Capabilities struct {
		AnalyzeFile    bool `json:"analyzeFile"`
		AnalyzeProject bool `json:"analyzeProject"`
		Cancel         bool `json:"cancel"`
	} `json:"capabilities"`
	Pid int `json:"pid"`
}

// Initialize resets the session to rootURI/set, invalidating any
// previously resolved compile database.
func (s *Supervisor) Initialize(rootURI string, set settings.Settings) InitializeResult {
	s.mu.Lock()
	s.root = span.PathOrRaw(rootURI)
	s.settings = set
	s.invalidateCompileDbLocked()
	s.mu.Unlock()

	var res InitializeResult
	res.Server.Name = DaemonName
	res.Server.Version = Version
	res.Capabilities.AnalyzeFile = true
	res.Capabilities.AnalyzeProject = true
	res.Capabilities.Cancel = true
	res.Pid = os.Getpid()
	return res
}

// ConfigChanged applies a new settings snapshot, invalidating the
// resolved compile database the same way Initialize does, since
// compileDbPath or any other resolution input may have changed.
func (s *Supervisor) ConfigChanged(set settings.Settings) {
	s.mu.Lock()
	s.settings = set
	s.invalidateCompileDbLocked()
	s.mu.Unlock()
}

// invalidateCompileDbLocked must be called with s.mu held.
func (s *Supervisor) invalidateCompileDbLocked() {
	s.compileDbPath = ""
	s.compileDbResolved = false
	s.loader = nil
}

func (s *Supervisor) currentSettings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Supervisor) currentRoot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// resolveCompileDb lazily resolves and memoizes the compile database
// path: the configured path if set, else an auto-discovery walk from
// root, cached until the next initialize/configChanged. Returns
// ("", "") if none is found.
func (s *Supervisor) resolveCompileDb() (path, dir string) {
	s.mu.Lock()
	if s.compileDbResolved {
		path = s.compileDbPath
		s.mu.Unlock()
	} else {
		set, root := s.settings, s.root
		s.mu.Unlock()

		path = set.CompileDbPath
		if path == "" {
			if found, ok := compiledb.Discover(root, 4); ok {
				path = found
			}
		}

		s.mu.Lock()
		s.compileDbPath = path
		s.compileDbResolved = true
		if path != "" && (s.loader == nil || s.loader.Path() != path) {
			s.loader = compiledb.NewLoader(path)
		} else if path == "" {
			s.loader = nil
		}
		s.mu.Unlock()

		s.resetWatch(path)
	}
	if path != "" {
		dir = filepath.Dir(path)
	}
	return path, dir
}

func (s *Supervisor) resetWatch(compileDbPath string) {
	s.watcherMu.Lock()
	w := s.watcher
	s.watcherMu.Unlock()
	if w == nil || compileDbPath == "" {
		return
	}
	set, root := s.currentSettings(), s.currentRoot()
	dir := filepath.Dir(compileDbPath)
	cfgPath, _ := settings.DiscoverAnalyzerConfig(set.ConfigFileName(), root, root, dir)
	w.Reset(compileDbPath, cfgPath)
}

// loadIndex returns the current compile-database index, if any is
// resolved, logging (but not failing) on a parse error.
func (s *Supervisor) loadIndex() *compiledb.Index {
	s.mu.Lock()
	loader := s.loader
	s.mu.Unlock()
	if loader == nil {
		return nil
	}
	idx, err := loader.Get()
	if err != nil {
		s.emitLog("warn", fmt.Sprintf("failed to load compile_commands.json index: %v", err))
		return nil
	}
	return idx
}

// analyzeFileCached is the cached on-disk analysis path behind a
// direct analyzeFile call. Project runs call analyzerproc.AnalyzeOnDisk
// directly and neither read nor populate the cache.
func (s *Supervisor) analyzeFileCached(file, mode string) ([]diagnostic.Diagnostic, error) {
	dbPath, dbDir := s.resolveCompileDb()
	set, root := s.currentSettings(), s.currentRoot()

	var dbMtime time.Time
	s.mu.Lock()
	loader := s.loader
	s.mu.Unlock()
	if loader != nil {
		dbMtime = loader.Mtime()
	}
	cfgMtime := settings.AnalyzerConfigMtime(set.ConfigFileName(), filepath.Dir(file), root, dbDir)
	fp := settings.Fingerprint(set, mode, dbPath, dbMtime, cfgMtime)

	if cacheDir, ok := settings.ResolveCacheDir(set, root, dbDir); set.DiskCacheEnabled && ok {
		s.cache.SetDisk(cacheDir)
	} else {
		s.cache.SetDisk("")
	}

	info, statErr := os.Stat(file)
	if statErr == nil {
		sig := cache.Signature{ModTime: info.ModTime(), Size: info.Size()}
		if ds, hit := s.cache.Lookup(file, sig, fp); hit {
			s.logger.Debug("cache hit for {File}", file)
			return ds, nil
		}
	}
	s.logger.Debug("cache miss for {File}", file)

	ds, err := analyzerproc.AnalyzeOnDisk(set, mode, file, dbDir, root)
	if err != nil {
		return nil, err
	}
	if statErr == nil {
		sig := cache.Signature{ModTime: info.ModTime(), Size: info.Size()}
		s.cache.Store(file, sig, fp, ds)
	}
	return ds, nil
}

// AnalyzeFileResult is the response to an "analyzeFile" request.
type AnalyzeFileResult struct {
	RunID       string                   `json:"runId"`
	FileURI     string                   `json:"fileUri"`
	Diagnostics []protocol.RpcDiagnostic `json:"diagnostics"`
}

// AnalyzeFile handles an analyzeFile request: an index membership
// check (when an index is available), then either the unsaved-buffer
// path (when fileContent is present, falling back to on-disk on
// failure) or the cached on-disk path directly.
func (s *Supervisor) AnalyzeFile(runID, fileURI, mode, fileContent string, hasContent bool) (AnalyzeFileResult, error) {
	file := span.PathOrRaw(fileURI)
	if file == "" {
		return AnalyzeFileResult{}, fmt.Errorf("invalid fileUri")
	}

	s.runs.Start(runID)
	defer s.runs.Evict(runID)

	_, dbDir := s.resolveCompileDb()
	idx := s.loadIndex()
	if idx != nil && !idx.Contains(file) {
		return AnalyzeFileResult{RunID: runID, FileURI: fileURI, Diagnostics: []protocol.RpcDiagnostic{}}, nil
	}

	var ds []diagnostic.Diagnostic
	var err error
	if hasContent {
		set, root := s.currentSettings(), s.currentRoot()
		if idx != nil {
			ds, err = analyzerproc.AnalyzeUnsaved(set, mode, file, fileContent, dbDir, root, idx)
		} else {
			err = fmt.Errorf("compile command not found for file")
		}
		if err != nil {
			ds, err = s.analyzeFileCached(file, mode)
		}
	} else {
		ds, err = s.analyzeFileCached(file, mode)
	}
	if err != nil {
		return AnalyzeFileResult{}, err
	}
	return AnalyzeFileResult{RunID: runID, FileURI: fileURI, Diagnostics: diagnostic.ToRPC(ds)}, nil
}

// StartAnalyzeProject kicks off a project-wide run in the background
// and returns immediately; the caller sends the {runId} response
// before the run's notifications start arriving.
func (s *Supervisor) StartAnalyzeProject(runID, mode string, incremental bool, batchSize int, files []string) {
	flag := s.runs.Start(runID)
	go func() {
		defer s.runs.Evict(runID)

		dbPath, dbDir := s.resolveCompileDb()
		set, root := s.currentSettings(), s.currentRoot()
		idx := s.loadIndex()

		var dbMtime time.Time
		s.mu.Lock()
		loader := s.loader
		s.mu.Unlock()
		if loader != nil {
			dbMtime = loader.Mtime()
		}
		cfgMtime := settings.AnalyzerConfigMtime(set.ConfigFileName(), root, root, dbDir)

		if cacheDir, ok := settings.ResolveCacheDir(set, root, dbDir); set.DiskCacheEnabled && ok {
			s.cache.SetDisk(cacheDir)
		} else {
			s.cache.SetDisk("")
		}

		deps := scheduler.Deps{
			Settings:       set,
			CompileDbPath:  dbPath,
			CompileDbDir:   dbDir,
			CompileDbMtime: dbMtime,
			ConfigMtime:    cfgMtime,
			Index:          idx,
			Cache:          s.cache,
			AnalyzeOnDisk: func(file string) ([]diagnostic.Diagnostic, error) {
				return analyzerproc.AnalyzeOnDisk(set, mode, file, dbDir, root)
			},
			Notify:    s,
			Cancelled: flag.Load,
		}
		scheduler.Run(scheduler.Request{
			RunID:       runID,
			Mode:        mode,
			Incremental: incremental,
			BatchSize:   batchSize,
			Files:       files,
		}, deps)
	}()
}

// Cancel marks runID (or every in-flight run, for "*") cancelled. It
// never kills a running subprocess — cancellation is observed between
// files.
func (s *Supervisor) Cancel(runID string) {
	s.runs.Cancel(runID)
}

// PublishDiagnostics, Progress, and Log implement scheduler.Notifier,
// so the scheduler never needs to know about *protocol.Conn directly.
func (s *Supervisor) PublishDiagnostics(runID, fileURI string, diagnostics []protocol.RpcDiagnostic) {
	_ = s.conn.WriteNotification(protocol.NewNotification("publishDiagnostics", protocol.PublishDiagnosticsParams{
		RunID: runID, FileURI: fileURI, Diagnostics: diagnostics,
	}))
}

func (s *Supervisor) Progress(runID, kind, message string, percent *int) {
	_ = s.conn.WriteNotification(protocol.NewNotification("progress", protocol.ProgressParams{
		RunID: runID, Kind: kind, Message: message, Percent: percent,
	}))
}

func (s *Supervisor) Log(level, message string) {
	s.emitLog(level, message)
}

func (s *Supervisor) emitLog(level, message string) {
	_ = s.conn.WriteNotification(protocol.NewNotification("log", protocol.LogParams{Level: level, Message: message}))
	switch level {
	case "error":
		s.logger.Error(message)
	case "warn", "warning":
		s.logger.Warning(message)
	default:
		s.logger.Information(message)
	}
}
