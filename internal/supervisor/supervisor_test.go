package supervisor

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloshkarev/vsx-tidy/internal/logging"
	"github.com/aloshkarev/vsx-tidy/internal/protocol"
	"github.com/aloshkarev/vsx-tidy/internal/settings"
)

// writeStubAnalyzer writes a shell script standing in for clang-tidy
// that reports one diagnostic per invocation and no fixes.
func writeStubAnalyzer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stub-tidy.sh")
	script := `#!/bin/sh
FILE="$1"
echo "$FILE:1:1: warning: stub finding [chk]"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeCompileDb(t *testing.T, dir string, files ...string) string {
	t.Helper()
	type entry struct {
		Directory string `json:"directory"`
		File      string `json:"file"`
		Command   string `json:"command"`
	}
	var entries []entry
	for _, f := range files {
		entries = append(entries, entry{Directory: dir, File: f, Command: "cc -c " + f})
	}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(dir, "compile_commands.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func newTestSupervisor() (*Supervisor, *bytes.Buffer) {
	var out bytes.Buffer
	conn := protocol.NewConn(strings.NewReader(""), &out)
	sup := New(conn, logging.New("", "fatal"))
	return sup, &out
}

func notificationLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var results []map[string]any
	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		results = append(results, m)
	}
	return results
}

func TestAnalyzeFileUsesOnDiskPathAndEvictsItsRun(t *testing.T) {
	stub := writeStubAnalyzer(t)
	root := t.TempDir()
	target := filepath.Join(root, "a.cpp")
	require.NoError(t, os.WriteFile(target, []byte("int main(){}"), 0o644))
	writeCompileDb(t, root, target)

	sup, _ := newTestSupervisor()
	sup.Initialize("file://"+root, settings.Settings{AnalyzerPath: stub})

	res, err := sup.AnalyzeFile("r1", "file://"+target, "full", "", false)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "chk", res.Diagnostics[0].Code)

	// The run's cancel-map entry is evicted once the response is ready.
	assert.Equal(t, 0, sup.runs.Len())
}

// writeCountingAnalyzer writes a stub that appends a line to countFile
// on every invocation, so tests can assert how many times the analyzer
// actually ran.
func writeCountingAnalyzer(t *testing.T, countFile string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "counting-tidy.sh")
	script := `#!/bin/sh
echo run >> "` + countFile + `"
echo "$1:3:5: warning: x [chk]"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func invocationCount(t *testing.T, countFile string) int {
	t.Helper()
	raw, err := os.ReadFile(countFile)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(raw), "run")
}

func TestSecondAnalyzeFileIsServedFromCacheWithoutInvokingAnalyzer(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "count.txt")
	stub := writeCountingAnalyzer(t, countFile)
	root := t.TempDir()
	target := filepath.Join(root, "a.cpp")
	require.NoError(t, os.WriteFile(target, []byte("int main(){}"), 0o644))
	writeCompileDb(t, root, target)

	sup, _ := newTestSupervisor()
	sup.Initialize("file://"+root, settings.Settings{AnalyzerPath: stub})

	first, err := sup.AnalyzeFile("r1", "file://"+target, "full", "", false)
	require.NoError(t, err)
	require.Equal(t, 1, invocationCount(t, countFile))

	second, err := sup.AnalyzeFile("r2", "file://"+target, "full", "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, invocationCount(t, countFile), "second call must be a cache hit")
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestChangedExtraArgsInvalidateTheCache(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "count.txt")
	stub := writeCountingAnalyzer(t, countFile)
	root := t.TempDir()
	target := filepath.Join(root, "a.cpp")
	require.NoError(t, os.WriteFile(target, []byte("int main(){}"), 0o644))
	writeCompileDb(t, root, target)

	sup, _ := newTestSupervisor()
	sup.Initialize("file://"+root, settings.Settings{AnalyzerPath: stub})

	_, err := sup.AnalyzeFile("r1", "file://"+target, "full", "", false)
	require.NoError(t, err)

	sup.ConfigChanged(settings.Settings{AnalyzerPath: stub, ExtraArgs: []string{"-std=c++20"}})
	_, err = sup.AnalyzeFile("r2", "file://"+target, "full", "", false)
	require.NoError(t, err)
	assert.Equal(t, 2, invocationCount(t, countFile), "a fingerprint change must re-invoke the analyzer")
}

func TestUnsavedContentFallsBackToOnDiskWhenNoIndexExists(t *testing.T) {
	stub := writeStubAnalyzer(t)
	root := t.TempDir()
	target := filepath.Join(root, "a.cpp")
	require.NoError(t, os.WriteFile(target, []byte("int main(){}"), 0o644))
	// No compile database anywhere under root: the unsaved path cannot
	// find a compile command, so the on-disk path serves the request.

	sup, _ := newTestSupervisor()
	sup.Initialize("file://"+root, settings.Settings{AnalyzerPath: stub})

	res, err := sup.AnalyzeFile("r1", "file://"+target, "full", "int x;", true)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "chk", res.Diagnostics[0].Code)
}

func TestAnalyzeFileSkipsFilesOutsideCompileDb(t *testing.T) {
	stub := writeStubAnalyzer(t)
	root := t.TempDir()
	inDb := filepath.Join(root, "a.cpp")
	outside := filepath.Join(root, "b.cpp")
	require.NoError(t, os.WriteFile(inDb, []byte("int main(){}"), 0o644))
	require.NoError(t, os.WriteFile(outside, []byte("int main(){}"), 0o644))
	writeCompileDb(t, root, inDb)

	sup, _ := newTestSupervisor()
	sup.Initialize("file://"+root, settings.Settings{AnalyzerPath: stub})

	res, err := sup.AnalyzeFile("r2", "file://"+outside, "full", "", false)
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
}

func TestStartAnalyzeProjectPublishesAndCompletes(t *testing.T) {
	stub := writeStubAnalyzer(t)
	root := t.TempDir()
	a := filepath.Join(root, "a.cpp")
	b := filepath.Join(root, "b.cpp")
	require.NoError(t, os.WriteFile(a, []byte("int main(){}"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("int main(){}"), 0o644))
	writeCompileDb(t, root, a, b)

	sup, out := newTestSupervisor()
	sup.Initialize("file://"+root, settings.Settings{AnalyzerPath: stub})

	sup.StartAnalyzeProject("run-1", "full", false, 0, nil)

	require.Eventually(t, func() bool {
		return sup.runs.Len() == 0
	}, 5*time.Second, 10*time.Millisecond, "project run never reached end")

	lines := notificationLines(t, out)
	var kinds []string
	published := 0
	for _, l := range lines {
		switch l["method"] {
		case "progress":
			params := l["params"].(map[string]any)
			kinds = append(kinds, params["kind"].(string))
		case "publishDiagnostics":
			published++
		}
	}
	assert.Equal(t, "begin", kinds[0])
	assert.Equal(t, "end", kinds[len(kinds)-1])
	assert.Equal(t, 2, published)
}

func TestConfigChangedInvalidatesResolvedCompileDb(t *testing.T) {
	root := t.TempDir()
	writeCompileDb(t, root, filepath.Join(root, "a.cpp"))

	sup, _ := newTestSupervisor()
	sup.Initialize("file://"+root, settings.Settings{})

	path, _ := sup.resolveCompileDb()
	require.NotEmpty(t, path)

	sup.ConfigChanged(settings.Settings{})
	sup.mu.Lock()
	resolved := sup.compileDbResolved
	sup.mu.Unlock()
	assert.False(t, resolved)
}

func TestCancelOnUnknownRunIsNoOp(t *testing.T) {
	sup, _ := newTestSupervisor()
	sup.Cancel("does-not-exist")
	assert.Equal(t, 0, sup.runs.Len())
}
