// Package compiledb parses, canonicalizes, and memoizes compilation
// databases (compile_commands.json).
package compiledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is a single compilation-database record. At least one of
// Command / Arguments is present.
type Entry struct {
	File      string   `json:"file"`
	Directory string   `json:"directory"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
}

type rawEntry struct {
	File      string   `json:"file"`
	Directory string   `json:"directory"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
}

// Index is an immutable snapshot of a parsed compilation database:
// canonicalized file paths, their membership set, and entry lookup.
// Once built it is never mutated; a refreshed database replaces the
// whole Index.
type Index struct {
	SourcePath string
	Files      []string // ordered canonical paths, duplicates removed
	set        map[string]struct{}
	byPath     map[string]Entry
}

// Contains reports whether path (after canonicalization) is present
// in the index.
func (idx *Index) Contains(path string) bool {
	_, ok := idx.set[Canonicalize(path)]
	return ok
}

// Lookup returns the entry for path (after canonicalization).
func (idx *Index) Lookup(path string) (Entry, bool) {
	e, ok := idx.byPath[Canonicalize(path)]
	return e, ok
}

// Canonicalize resolves symlinks and ".." segments in path. If
// resolution fails, the original (absolute, cleaned) path is returned
// unchanged.
func Canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return filepath.Clean(abs)
}

// SameFile reports whether two paths refer to the same file: compare
// canonicalized forms, falling back to the literal path on either
// side if canonicalization fails (which Canonicalize already does
// internally).
func SameFile(a, b string) bool {
	return Canonicalize(a) == Canonicalize(b)
}

// Parse reads and parses the compilation database at path, building
// an immutable Index. Entries referring to the same canonical path
// are deduplicated, first occurrence wins.
func Parse(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading compile database: %w", err)
	}
	var entries []rawEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing compile database: %w", err)
	}

	idx := &Index{
		SourcePath: path,
		set:        make(map[string]struct{}, len(entries)),
		byPath:     make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if e.Command == "" && len(e.Arguments) == 0 {
			continue // neither command nor arguments; skip rather than fail the whole load
		}
		file := e.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(e.Directory, file)
		}
		canon := Canonicalize(file)
		if _, dup := idx.byPath[canon]; dup {
			continue
		}
		idx.set[canon] = struct{}{}
		idx.Files = append(idx.Files, canon)
		idx.byPath[canon] = Entry{
			File:      file,
			Directory: e.Directory,
			Command:   e.Command,
			Arguments: e.Arguments,
		}
	}
	return idx, nil
}

// Discover walks downward from root, up to depth levels, looking for
// a file named compile_commands.json, not following symlinks. It
// returns the first match found.
func Discover(root string, depth int) (string, bool) {
	var found string
	_ = walkDepth(root, depth, func(path string, isDir bool) bool {
		if !isDir && filepath.Base(path) == "compile_commands.json" {
			found = path
			return false
		}
		return true
	})
	return found, found != ""
}

// walkDepth walks the tree rooted at root, invoking visit for every
// entry up to maxDepth levels below root (root itself is depth 0).
// visit returns false to stop the walk early.
func walkDepth(root string, maxDepth int, visit func(path string, isDir bool) bool) error {
	return walkDepthRec(root, 0, maxDepth, visit)
}

func walkDepthRec(dir string, depth, maxDepth int, visit func(path string, isDir bool) bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // unreadable directories are silently skipped, matching a best-effort discovery walk
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if !visit(path, e.IsDir()) {
			return errStop
		}
		if e.IsDir() && depth+1 < maxDepth {
			if err := walkDepthRec(path, depth+1, maxDepth, visit); err == errStop {
				return errStop
			}
		}
	}
	return nil
}

var errStop = fmt.Errorf("stop walk")
