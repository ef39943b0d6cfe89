package analyzerproc

import (
	"os"
	"path/filepath"
	"time"

	"github.com/aloshkarev/vsx-tidy/internal/compiledb"
	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
	"github.com/aloshkarev/vsx-tidy/internal/diagparse"
	"github.com/aloshkarev/vsx-tidy/internal/fixes"
	"github.com/aloshkarev/vsx-tidy/internal/settings"
)

const daemonName = "vsx-tidy"

// buildOnDiskArgv constructs the on-disk path's argv:
// [analyzer, file, -p, dbDir, -export-fixes, fixesPath, --quiet,
// -extra-arg=-fno-color-diagnostics, {-checks=<quickChecks> if
// mode=quick and set}, extraArgs...].
func buildOnDiskArgv(s settings.Settings, mode, file, dbDir, fixesPath string) []string {
	argv := []string{
		s.AnalyzerBinary(),
		file,
		"-p", dbDir,
		"-export-fixes", fixesPath,
		"--quiet",
		"-extra-arg=-fno-color-diagnostics",
	}
	if mode == "quick" && s.QuickChecks != "" {
		argv = append(argv, "-checks="+s.QuickChecks)
	}
	argv = append(argv, s.ExtraArgs...)
	return argv
}

// AnalyzeOnDisk runs the on-disk analysis path for file: build argv,
// invoke with the configured timeout, parse both output channels,
// merge, and cap. compileDbDir is the directory passed to -p and used
// as the subprocess's working directory; when empty, root is used for
// both. Caching is the caller's responsibility.
func AnalyzeOnDisk(s settings.Settings, mode, file, compileDbDir, root string) ([]diagnostic.Diagnostic, error) {
	dbDir := compileDbDir
	if dbDir == "" {
		dbDir = root
	}
	workDir := dbDir

	tmpDir, err := os.MkdirTemp("", daemonName+"-fixes-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)
	fixesPath := filepath.Join(tmpDir, "fixes.yaml")

	argv := buildOnDiskArgv(s, mode, file, dbDir, fixesPath)
	timeout := time.Duration(s.PerFileTimeoutMs) * time.Millisecond
	out, err := run(argv, workDir, timeout)
	if err != nil {
		return nil, err
	}

	baseDir := dbDir
	if baseDir == "" {
		baseDir = filepath.Dir(file)
	}
	textDiags := diagparse.Parse(out.combinedText(), baseDir)

	content, _ := os.ReadFile(file) // unreadable file: treat as empty, fix ranges collapse to (0,0)
	fixDiags, err := fixes.Parse(fixesPath, baseDir, file, string(content), compiledb.SameFile)
	if err != nil {
		fixDiags = nil // the analyzer may not have written an export file at all (no fixes); that's not a failure
	}

	merged := diagnostic.Merge(textDiags, fixDiags)
	return diagnostic.ApplyCaps(merged, s.MaxDiagnosticsPerFile, s.MaxFixesPerFile), nil
}
