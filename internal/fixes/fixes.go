// Package fixes parses the analyzer's exported fixes document
// (a YAML-shaped export, mirroring clang-tidy's `-export-fixes`
// format) and converts it into range-based edits.
package fixes

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
	"github.com/aloshkarev/vsx-tidy/internal/span"
	"gopkg.in/yaml.v3"
)

const daemonName = "vsx-tidy"

// doc is the top-level shape of the exported fixes file.
type doc struct {
	MainSourceFile string          `yaml:"MainSourceFile"`
	Diagnostics    []fixDiagnostic `yaml:"Diagnostics"`
}

type fixDiagnostic struct {
	DiagnosticName string       `yaml:"DiagnosticName"`
	Message        *diagMessage `yaml:"DiagnosticMessage"`
}

type diagMessage struct {
	Message      string        `yaml:"Message"`
	FilePath     string        `yaml:"FilePath"`
	FileOffset   int           `yaml:"FileOffset"`
	Replacements []replacement `yaml:"Replacements"`
}

type replacement struct {
	FilePath        string `yaml:"FilePath"`
	Offset          int    `yaml:"Offset"`
	Length          int    `yaml:"Length"`
	ReplacementText string `yaml:"ReplacementText"`
}

// SameFile is injected so the caller can supply the daemon's
// path-equivalence rule (canonicalize-and-compare) without this
// package depending on the compiledb package.
type SameFile func(a, b string) bool

// Parse reads the fixes document at path and converts every diagnostic
// whose replacements touch targetFile into a diagnostic.Diagnostic
// carrying a single Fix. baseDir resolves relative replacement paths,
// matching the textual parser's base-directory rule. text is the
// current content of targetFile, used to translate byte offsets into
// UTF-16 positions; if the file could not be read, pass an empty
// string and the ranges collapse to (0,0).
func Parse(yamlPath, baseDir, targetFile, text string, sameFile SameFile) ([]diagnostic.Diagnostic, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("reading fixes document: %w", err)
	}
	var d doc
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing fixes document: %w", err)
	}

	lt := span.NewLineTable(text)
	var out []diagnostic.Diagnostic
	for _, fd := range d.Diagnostics {
		if fd.Message == nil {
			continue
		}
		var edits []span.TextEdit
		for _, r := range fd.Message.Replacements {
			rp := resolvePath(r.FilePath, baseDir)
			if !sameFile(rp, targetFile) {
				continue
			}
			edits = append(edits, span.TextEdit{
				Range:   lt.OffsetRange(r.Offset, r.Length),
				NewText: r.ReplacementText,
			})
		}
		if len(edits) == 0 {
			continue
		}

		title := fmt.Sprintf("Apply %s fix", daemonName)
		if fd.DiagnosticName != "" {
			title = fmt.Sprintf("Apply %s fix (%s)", daemonName, fd.DiagnosticName)
		}

		out = append(out, diagnostic.Diagnostic{
			File:     targetFile,
			Range:    lt.OffsetRange(fd.Message.FileOffset, 1),
			Severity: diagnostic.Warning,
			Code:     fd.DiagnosticName,
			Message:  fd.Message.Message,
			Fixes: []diagnostic.Fix{{
				Title: title,
				Edits: edits,
			}},
		})
	}
	return out, nil
}

func resolvePath(p, baseDir string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
