package protocol

import "github.com/aloshkarev/vsx-tidy/internal/span"

// Severity is the client-visible diagnostic severity. Internal
// severities map onto this 1:1.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RpcFix is the wire form of a Fix: a title plus its edits.
type RpcFix struct {
	Title string          `json:"title"`
	Edits []span.TextEdit `json:"edits"`
}

// RpcDiagnostic is the wire form of a Diagnostic. It omits the
// internal file field, and omits Fixes entirely when empty.
type RpcDiagnostic struct {
	Range    span.Range `json:"range"`
	Severity Severity   `json:"severity"`
	Code     string     `json:"code,omitempty"`
	Message  string     `json:"message"`
	Fixes    []RpcFix   `json:"fixes,omitempty"`
}
