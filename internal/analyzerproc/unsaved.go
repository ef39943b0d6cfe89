package analyzerproc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aloshkarev/vsx-tidy/internal/compiledb"
	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
	"github.com/aloshkarev/vsx-tidy/internal/diagparse"
	"github.com/aloshkarev/vsx-tidy/internal/fixes"
	"github.com/aloshkarev/vsx-tidy/internal/settings"
	"github.com/aloshkarev/vsx-tidy/internal/shlex"
)

// shadowEntry is the single-element compile database written into the
// unsaved-buffer path's temporary directory: a directory/file/arguments
// triple, no command string.
type shadowEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
}

// AnalyzeUnsaved runs the unsaved-buffer analysis path: it
// synthesizes a shadow compile-database entry pointing at a temp copy
// of content, invokes the analyzer against it, then rewrites every
// resulting diagnostic's file back to originalFile so the client never
// sees the shadow path. idx must be non-nil; realCompileDbDir and root
// are used only for analyzer-config discovery. The caller must not
// persist the result in either cache tier.
func AnalyzeUnsaved(s settings.Settings, mode, originalFile, content, realCompileDbDir, root string, idx *compiledb.Index) ([]diagnostic.Diagnostic, error) {
	entry, ok := idx.Lookup(originalFile)
	if !ok {
		return nil, fmt.Errorf("compile command not found for file")
	}

	args := entry.Arguments
	if len(args) == 0 {
		var err error
		args, err = shlex.Split(entry.Command)
		if err != nil {
			return nil, fmt.Errorf("tokenizing compile command: %w", err)
		}
	}

	tmpDir, err := os.MkdirTemp("", daemonName+"-unsaved-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	tempFile := filepath.Join(tmpDir, filepath.Base(originalFile))
	if err := os.WriteFile(tempFile, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing shadow buffer: %w", err)
	}

	absOriginal, _ := filepath.Abs(originalFile)
	newArgs := make([]string, len(args))
	replaced := false
	for i, a := range args {
		if a == entry.File || a == originalFile || a == absOriginal {
			newArgs[i] = tempFile
			replaced = true
			continue
		}
		newArgs[i] = a
	}
	if !replaced {
		return nil, fmt.Errorf("compile command does not reference file path")
	}

	shadowDB := []shadowEntry{{Directory: entry.Directory, File: tempFile, Arguments: newArgs}}
	raw, err := json.Marshal(shadowDB)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "compile_commands.json"), raw, 0o644); err != nil {
		return nil, fmt.Errorf("writing shadow compile database: %w", err)
	}

	cfgPath, cfgFound := settings.DiscoverAnalyzerConfig(
		s.ConfigFileName(), filepath.Dir(originalFile), root, realCompileDbDir)

	fixesPath := filepath.Join(tmpDir, "fixes.yaml")
	argv := []string{
		s.AnalyzerBinary(),
		tempFile,
		"-p", tmpDir,
		"-export-fixes", fixesPath,
		"--quiet",
		"-extra-arg=-fno-color-diagnostics",
	}
	if mode == "quick" && s.QuickChecks != "" {
		argv = append(argv, "-checks="+s.QuickChecks)
	}
	if cfgFound {
		argv = append(argv, "--config-file="+cfgPath)
	}
	argv = append(argv, s.ExtraArgs...)

	timeout := time.Duration(s.PerFileTimeoutMs) * time.Millisecond
	out, runErr := run(argv, tmpDir, timeout)
	if runErr != nil {
		return nil, runErr
	}

	textDiags := diagparse.Parse(out.combinedText(), tmpDir)
	fixDiags, parseErr := fixes.Parse(fixesPath, tmpDir, tempFile, content, compiledb.SameFile)
	if parseErr != nil {
		fixDiags = nil
	}

	rewriteFile(textDiags, originalFile)
	rewriteFile(fixDiags, originalFile)

	merged := diagnostic.Merge(textDiags, fixDiags)
	return diagnostic.ApplyCaps(merged, s.MaxDiagnosticsPerFile, s.MaxFixesPerFile), nil
}

func rewriteFile(ds []diagnostic.Diagnostic, path string) {
	for i := range ds {
		ds[i].File = path
	}
}
