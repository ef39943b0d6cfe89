// Package span defines the position and range types shared by the
// RPC protocol and the analyzer output parsers, plus the file URI and
// UTF-16 offset arithmetic needed to translate between them.
package span

import (
	"net/url"
	"path/filepath"
	"strings"
)

// URI is the URI of a file as sent over the wire by the client.
type URI string

const fileScheme = "file"

// URIFromPath returns the URI for an absolute or relative file path.
// A relative path is first made absolute.
func URIFromPath(path string) URI {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: fileScheme, Path: filepath.ToSlash(path)}
	return URI(u.String())
}

// Path returns the filesystem path encoded by the URI. Non-file URIs
// and malformed URIs yield the empty string.
func (u URI) Path() string {
	s := string(u)
	if s == "" {
		return ""
	}
	// Fast path for the common case, avoiding a net/url allocation.
	if strings.HasPrefix(s, "file:///") {
		rest := s[len("file://"):]
		if !strings.ContainsAny(rest, "%@&?") {
			return filepath.FromSlash(rest)
		}
	}
	parsed, err := url.Parse(s)
	if err != nil || parsed.Scheme != fileScheme {
		return ""
	}
	return filepath.FromSlash(parsed.Path)
}

// PathOrRaw treats s as a URI if it parses as a file URI with a
// non-empty path, and otherwise returns s unchanged, interpreting it
// as a raw filesystem path. analyzeProject's "files" request field is
// decoded this tolerantly, so clients may send either form.
func PathOrRaw(s string) string {
	if p := URI(s).Path(); p != "" {
		return p
	}
	return s
}
