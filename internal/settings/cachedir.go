package settings

import (
	"os"
	"path/filepath"
)

const cacheDirName = "vsx-tidy-cache"

// ResolveCacheDir resolves the on-disk cache directory:
// disabled settings yield ("", false); otherwise DiskCacheDir is used
// if set, else "<root>/.vscode/<daemon>-cache", else
// "<compileDbDir>/.vscode/<daemon>-cache", else ("", false). Relative
// paths are resolved against root, then compileDbDir. The directory is
// created; failure to create is reported as ("", false) so the caller
// treats caching as disabled for this call.
func ResolveCacheDir(s Settings, root, compileDbDir string) (string, bool) {
	if !s.DiskCacheEnabled {
		return "", false
	}

	dir := s.DiskCacheDir
	switch {
	case dir != "":
		dir = resolveAgainst(dir, root, compileDbDir)
	case root != "":
		dir = filepath.Join(root, ".vscode", cacheDirName)
	case compileDbDir != "":
		dir = filepath.Join(compileDbDir, ".vscode", cacheDirName)
	default:
		return "", false
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false
	}
	return dir, true
}

// resolveAgainst makes a relative dir absolute against root first,
// falling back to compileDbDir if root is empty.
func resolveAgainst(dir, root, compileDbDir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	if root != "" {
		return filepath.Join(root, dir)
	}
	if compileDbDir != "" {
		return filepath.Join(compileDbDir, dir)
	}
	return dir
}
