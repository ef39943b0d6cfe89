// Package diagnostic holds the internal Diagnostic/Fix model shared
// by the text and fixes parsers, the merge step, and the per-file
// caps.
package diagnostic

import (
	"sort"

	"github.com/aloshkarev/vsx-tidy/internal/protocol"
	"github.com/aloshkarev/vsx-tidy/internal/span"
)

// Severity mirrors protocol.Severity but is kept distinct so internal
// passes (merge, caps) never depend on the wire package.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Fix is a suggested edit set with a human-readable title.
type Fix struct {
	Title string
	Edits []span.TextEdit
}

// Diagnostic is the internal representation: it carries the file it
// belongs to (dropped in the wire form) and an ordered list of fixes
// (possibly empty).
type Diagnostic struct {
	File     string
	Range    span.Range
	Severity Severity
	Code     string
	Message  string
	Fixes    []Fix
}

// Clone returns a deep copy, so cache reads never hand out a slice an
// unrelated caller could mutate.
func Clone(ds []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(ds))
	for i, d := range ds {
		cp := d
		cp.Fixes = make([]Fix, len(d.Fixes))
		for j, f := range d.Fixes {
			cpf := f
			cpf.Edits = append([]span.TextEdit(nil), f.Edits...)
			cp.Fixes[j] = cpf
		}
		out[i] = cp
	}
	return out
}

// mergeKey identifies a diagnostic for merging: (file, start.line,
// start.character, check code or "", message).
type mergeKey struct {
	file    string
	line    int
	char    int
	code    string
	message string
}

func keyOf(d Diagnostic) mergeKey {
	return mergeKey{
		file:    d.File,
		line:    d.Range.Start.Line,
		char:    d.Range.Start.Character,
		code:    d.Code,
		message: d.Message,
	}
}

// Merge combines the text-channel and fixes-channel diagnostics for a
// single file. Diagnostics sharing a merge key have their fix
// sequences concatenated (text-channel fixes, which are always empty,
// followed by fixes-channel fixes); all others are kept as-is. Output
// order is sorted by position purely to give callers and tests a
// stable view; no semantics depend on it.
func Merge(text, fixes []Diagnostic) []Diagnostic {
	order := make([]mergeKey, 0, len(text)+len(fixes))
	byKey := make(map[mergeKey]*Diagnostic, len(text)+len(fixes))

	add := func(d Diagnostic) {
		k := keyOf(d)
		if existing, ok := byKey[k]; ok {
			existing.Fixes = append(existing.Fixes, d.Fixes...)
			return
		}
		cp := d
		cp.Fixes = append([]Fix(nil), d.Fixes...)
		byKey[k] = &cp
		order = append(order, k)
	}
	for _, d := range text {
		add(d)
	}
	for _, d := range fixes {
		add(d)
	}

	out := make([]Diagnostic, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Range.Start, out[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return out
}

// ApplyCaps truncates to maxDiagnostics (0 = unlimited), then
// distributes a maxFixes budget across the (possibly truncated)
// sequence in order, clearing fixes once the budget is exhausted. The
// diagnostic itself is never removed by the fix cap.
func ApplyCaps(ds []Diagnostic, maxDiagnostics, maxFixes int) []Diagnostic {
	if maxDiagnostics > 0 && len(ds) > maxDiagnostics {
		ds = ds[:maxDiagnostics]
	}
	if maxFixes <= 0 {
		return ds
	}
	remaining := maxFixes
	for i := range ds {
		if remaining <= 0 {
			ds[i].Fixes = nil
			continue
		}
		if len(ds[i].Fixes) > remaining {
			ds[i].Fixes = ds[i].Fixes[:remaining]
		}
		remaining -= len(ds[i].Fixes)
	}
	return ds
}

// ToRPC converts internal diagnostics to their wire form, dropping
// File and omitting Fixes when empty.
func ToRPC(ds []Diagnostic) []protocol.RpcDiagnostic {
	out := make([]protocol.RpcDiagnostic, len(ds))
	for i, d := range ds {
		rd := protocol.RpcDiagnostic{
			Range:    d.Range,
			Severity: protocol.Severity(d.Severity),
			Code:     d.Code,
			Message:  d.Message,
		}
		if len(d.Fixes) > 0 {
			rd.Fixes = make([]protocol.RpcFix, len(d.Fixes))
			for j, f := range d.Fixes {
				rd.Fixes[j] = protocol.RpcFix{Title: f.Title, Edits: f.Edits}
			}
		}
		out[i] = rd
	}
	return out
}

// NormalizeSeverity maps an analyzer-reported severity token to the
// three-valued internal severity: error and warning map to
// themselves, anything else (notably "note") becomes info.
func NormalizeSeverity(token string) Severity {
	switch token {
	case "error":
		return Error
	case "warning":
		return Warning
	default:
		return Info
	}
}
