package fixes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identitySameFile(a, b string) bool { return a == b }

func writeYAML(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "fixes.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestParseUTF16ColumnForReplacement(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeYAML(t, dir, `
Diagnostics:
  - DiagnosticName: my-check
    DiagnosticMessage:
      Message: insert here
      FileOffset: 3
      Replacements:
        - FilePath: /p/a.cc
          Offset: 3
          Length: 0
          ReplacementText: "!"
`)
	text := "aé\n" // bytes: 61 c3 a9 0a
	out, err := Parse(yamlPath, "/p", "/p/a.cc", text, identitySameFile)
	require.NoError(t, err)
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, "my-check", d.Code)
	assert.Equal(t, 0, d.Range.Start.Line)
	assert.Equal(t, 2, d.Range.Start.Character) // two UTF-16 units: 'a', 'é'
	require.Len(t, d.Fixes, 1)
	require.Len(t, d.Fixes[0].Edits, 1)
	assert.Equal(t, "!", d.Fixes[0].Edits[0].NewText)
	assert.Equal(t, "Apply vsx-tidy fix (my-check)", d.Fixes[0].Title)
}

func TestParseSkipsReplacementsForOtherFiles(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeYAML(t, dir, `
Diagnostics:
  - DiagnosticName: chk
    DiagnosticMessage:
      Message: m
      FileOffset: 0
      Replacements:
        - FilePath: /other/file.cc
          Offset: 0
          Length: 1
          ReplacementText: x
`)
	out, err := Parse(yamlPath, "/p", "/p/a.cc", "", identitySameFile)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseUnreadableFileTreatsTextAsEmpty(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeYAML(t, dir, `
Diagnostics:
  - DiagnosticName: chk
    DiagnosticMessage:
      Message: m
      FileOffset: 5
      Replacements:
        - FilePath: /p/a.cc
          Offset: 5
          Length: 0
          ReplacementText: x
`)
	out, err := Parse(yamlPath, "/p", "/p/a.cc", "", identitySameFile)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Range.Start.Line)
	assert.Equal(t, 0, out[0].Range.Start.Character)
}

func TestParseTitleWithoutCheckCode(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeYAML(t, dir, `
Diagnostics:
  - DiagnosticMessage:
      Message: m
      FileOffset: 0
      Replacements:
        - FilePath: /p/a.cc
          Offset: 0
          Length: 1
          ReplacementText: x
`)
	out, err := Parse(yamlPath, "/p", "/p/a.cc", "abc", identitySameFile)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Apply vsx-tidy fix", out[0].Fixes[0].Title)
}
