// Package diskcache implements the on-disk tier of the diagnostic
// cache: one file per (file, fingerprint), named
// "<key16>-<mtime>-<size>-<fp16>.json", written via a sibling temp
// file plus atomic rename, with older-fingerprint siblings for the
// same key evicted on a successful write.
package diskcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
	"github.com/aloshkarev/vsx-tidy/internal/settings"
)

// SchemaVersion is bumped whenever the on-disk Entry shape changes in
// an incompatible way; entries written under an older version are
// treated as misses. Cache contents never survive a format change.
const SchemaVersion = 1

// Entry is the on-disk representation of a cached file's diagnostics.
type Entry struct {
	SchemaVersion int                     `json:"schemaVersion"`
	Path          string                  `json:"path"`
	MtimeUnix     int64                   `json:"mtimeUnix"`
	Size          int64                   `json:"size"`
	Fingerprint   string                  `json:"fingerprint"`
	Diagnostics   []diagnostic.Diagnostic `json:"diagnostics"`
}

// Store is a disk-backed cache rooted at a single resolved directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. dir is assumed to already exist
// (cache-dir resolution creates it).
func New(dir string) *Store {
	return &Store{dir: dir}
}

func keyAndFingerprint(path, fingerprint string) (key16, fp16 string) {
	return settings.Hash16(path), settings.Hash16(fingerprint)
}

func filename(key16 string, mtimeUnix, size int64, fp16 string) string {
	return fmt.Sprintf("%s-%d-%d-%s.json", key16, mtimeUnix, size, fp16)
}

// ExpectedFilename returns the filename Load/Save would use for
// (path, mtime, size, fingerprint), without touching the filesystem.
// The project scheduler's incremental-mode check uses exactly this to
// test cache membership without a full Load.
func (s *Store) ExpectedFilename(path string, mtime time.Time, size int64, fingerprint string) string {
	key16, fp16 := keyAndFingerprint(path, fingerprint)
	return filename(key16, mtime.Unix(), size, fp16)
}

// Exists reports whether a disk entry for exactly this (path, mtime,
// size, fingerprint) combination exists, without reading or parsing
// it.
func (s *Store) Exists(path string, mtime time.Time, size int64, fingerprint string) bool {
	if s == nil || s.dir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, s.ExpectedFilename(path, mtime, size, fingerprint)))
	return err == nil
}

// Load reads and validates the disk entry for (path, mtime, size,
// fingerprint). Any mismatch — schema version, path, mtime, size, or
// fingerprint — or any I/O error is treated as a miss.
func (s *Store) Load(path string, mtime time.Time, size int64, fingerprint string) (Entry, bool) {
	if s == nil || s.dir == "" {
		return Entry{}, false
	}
	name := s.ExpectedFilename(path, mtime, size, fingerprint)
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false
	}
	if e.SchemaVersion != SchemaVersion || e.Path != path ||
		e.MtimeUnix != mtime.Unix() || e.Size != size || e.Fingerprint != fingerprint {
		return Entry{}, false
	}
	return e, true
}

// Save writes the entry for (path, mtime, size, fingerprint) via a
// sibling temp file plus atomic rename, then removes every other file
// sharing the key16 prefix.
func (s *Store) Save(path string, mtime time.Time, size int64, fingerprint string, ds []diagnostic.Diagnostic) error {
	if s == nil || s.dir == "" {
		return fmt.Errorf("disk cache not configured")
	}
	key16, fp16 := keyAndFingerprint(path, fingerprint)
	target := filepath.Join(s.dir, filename(key16, mtime.Unix(), size, fp16))

	entry := Entry{
		SchemaVersion: SchemaVersion,
		Path:          path,
		MtimeUnix:     mtime.Unix(),
		Size:          size,
		Fingerprint:   fingerprint,
		Diagnostics:   diagnostic.Clone(ds),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+key16+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.evictOthers(key16, filepath.Base(target))
	return nil
}

// evictOthers removes every file in the cache directory whose name
// starts with "<key16>-" except keep (the file just written), so at
// most one disk entry exists per key at any quiescent moment.
// Concurrent writers to the same key race benignly; sharing a cache
// directory between daemon processes is unsupported.
func (s *Store) evictOthers(key16, keep string) {
	prefix := key16 + "-"
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == keep || !strings.HasPrefix(name, prefix) {
			continue
		}
		os.Remove(filepath.Join(s.dir, name))
	}
}
