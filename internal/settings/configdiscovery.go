package settings

import (
	"os"
	"path/filepath"
	"time"
)

// DiscoverAnalyzerConfig locates the analyzer config: from
// queryFileDir, walk parents looking for a ConfigFileName() file,
// stopping when found, when root is reached, or when compileDbDir is
// reached. If not found, fall back to compileDbDir then root.
func DiscoverAnalyzerConfig(cfgName, queryFileDir, root, compileDbDir string) (string, bool) {
	dir := queryFileDir
	for dir != "" {
		candidate := filepath.Join(dir, cfgName)
		if fileExists(candidate) {
			return candidate, true
		}
		if samePath(dir, root) || samePath(dir, compileDbDir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if compileDbDir != "" {
		candidate := filepath.Join(compileDbDir, cfgName)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	if root != "" {
		candidate := filepath.Join(root, cfgName)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// AnalyzerConfigMtime returns the mtime of the discovered analyzer
// config file, or the zero time if none was found. It is one of the
// settings-fingerprint inputs.
func AnalyzerConfigMtime(cfgName, queryFileDir, root, compileDbDir string) time.Time {
	path, ok := DiscoverAnalyzerConfig(cfgName, queryFileDir, root, compileDbDir)
	if !ok {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
