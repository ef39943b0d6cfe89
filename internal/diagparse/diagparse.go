// Package diagparse extracts human-readable diagnostics from the
// combined stdout+stderr of the external analyzer.
package diagparse

import (
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
	"github.com/aloshkarev/vsx-tidy/internal/span"
)

// lineRe matches "<file>:<line>:<col>: (warning|error|note): <message>[ [<check-code>]]".
// The check code, if present, is the last bracketed token on the
// line; messages are free text and may themselves contain brackets,
// so the check-code group is anchored to the end of the line.
var lineRe = regexp.MustCompile(`^(.+):(\d+):(\d+): (warning|error|note): (.*)$`)

// checkCodeRe extracts a trailing " [check-code]" suffix from a
// message, if present.
var checkCodeRe = regexp.MustCompile(`^(.*) \[([A-Za-z0-9_.,-]+)\]$`)

// Parse scans text line by line for diagnostic lines, resolving
// relative file paths against baseDir. Picking baseDir (the
// compile-db directory, the root, or the query file's directory) is
// the caller's job.
func Parse(text, baseDir string) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	for _, line := range splitLines(text) {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file, lineNo, colNo, sev, msg := m[1], m[2], m[3], m[4], m[5]

		ln, err := strconv.Atoi(lineNo)
		if err != nil {
			continue
		}
		col, err := strconv.Atoi(colNo)
		if err != nil {
			continue
		}

		code := ""
		if cm := checkCodeRe.FindStringSubmatch(msg); cm != nil {
			msg = cm[1]
			code = cm[2]
		}

		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}

		out = append(out, diagnostic.Diagnostic{
			File:     filepath.Clean(file),
			Range:    span.OneColumnRange(ln-1, col-1),
			Severity: diagnostic.NormalizeSeverity(sev),
			Code:     code,
			Message:  msg,
		})
	}
	return out
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, trimCR(text[start:i]))
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, trimCR(text[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}
