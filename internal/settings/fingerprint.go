package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// Fingerprint hashes every input that could change the analyzer's
// output for a file, in a fixed order: analyzerPath, extraArgs,
// maxWorkers, quickChecks, maxDiagnosticsPerFile, maxFixesPerFile,
// perFileTimeoutMs, mode, compile-db path, compile-db mtime,
// analyzer-config mtime. Only intra-process stability is needed; a
// disk-cache entry written under a different fingerprint simply
// misses.
func Fingerprint(s Settings, mode, compileDbPath string, compileDbMtime, analyzerConfigMtime time.Time) string {
	var b strings.Builder
	fmt.Fprintln(&b, s.AnalyzerPath)
	for _, a := range s.ExtraArgs {
		fmt.Fprintln(&b, a)
	}
	fmt.Fprintln(&b, "--")
	fmt.Fprintln(&b, s.MaxWorkers)
	fmt.Fprintln(&b, s.QuickChecks)
	fmt.Fprintln(&b, s.MaxDiagnosticsPerFile)
	fmt.Fprintln(&b, s.MaxFixesPerFile)
	fmt.Fprintln(&b, s.PerFileTimeoutMs)
	fmt.Fprintln(&b, mode)
	fmt.Fprintln(&b, compileDbPath)
	fmt.Fprintln(&b, compileDbMtime.UnixNano())
	fmt.Fprintln(&b, analyzerConfigMtime.UnixNano())
	return digest.FromString(b.String()).Encoded()
}

// Hash16 returns a stable 16-hex-digit digest of s, used for both the
// key (absolute path) and fingerprint components of disk-cache
// filenames.
func Hash16(s string) string {
	full := digest.FromString(s).Encoded()
	return full[:16]
}
