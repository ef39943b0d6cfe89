// Package cache implements the two-tier (memory + disk) diagnostic
// cache: a memory tier keyed by file path plus (mtime, size, settings
// fingerprint), backed by a disk tier whose entries are addressed by
// content-derived filenames and evicted per-key on write.
package cache

import (
	"sync"
	"time"

	"github.com/aloshkarev/vsx-tidy/internal/cache/diskcache"
	"github.com/aloshkarev/vsx-tidy/internal/diagnostic"
)

// Signature is a file's (mtime, size) pair, used both as a memory-tier
// key component and to detect staleness.
type Signature struct {
	ModTime time.Time
	Size    int64
}

type memEntry struct {
	sig         Signature
	fingerprint string
	diagnostics []diagnostic.Diagnostic
}

// Cache is the composed two-tier cache for a single daemon session.
// The memory tier is a plain mutex-guarded map — entries are small
// and the hot path is a handful of comparisons, so no further
// sharding is warranted.
//
// The disk tier's root directory can change between calls (settings
// or the compile-db directory may change), so it is held behind its
// own small mutex rather than baked in at construction time.
type Cache struct {
	mu  sync.Mutex
	mem map[string]memEntry

	diskMu sync.Mutex
	disk   *diskcache.Store // nil when disk caching is disabled
}

// New returns an empty Cache with disk persistence disabled.
func New() *Cache {
	return &Cache{mem: make(map[string]memEntry)}
}

// SetDisk (re)configures the disk tier to the given resolved cache
// directory, or disables it when dir is empty.
func (c *Cache) SetDisk(dir string) {
	c.diskMu.Lock()
	defer c.diskMu.Unlock()
	if dir == "" {
		c.disk = nil
		return
	}
	c.disk = diskcache.New(dir)
}

func (c *Cache) currentDisk() *diskcache.Store {
	c.diskMu.Lock()
	defer c.diskMu.Unlock()
	return c.disk
}

// Lookup consults the tiers in order: a memory hit returns a clone
// immediately; otherwise, if a disk tier is configured, a disk hit is
// parsed, promoted to memory, and returned.
func (c *Cache) Lookup(path string, sig Signature, fingerprint string) ([]diagnostic.Diagnostic, bool) {
	c.mu.Lock()
	e, ok := c.mem[path]
	c.mu.Unlock()
	if ok && e.sig == sig && e.fingerprint == fingerprint {
		return diagnostic.Clone(e.diagnostics), true
	}

	disk := c.currentDisk()
	if disk == nil {
		return nil, false
	}
	entry, ok := disk.Load(path, sig.ModTime, sig.Size, fingerprint)
	if !ok {
		return nil, false
	}
	c.storeMem(path, sig, fingerprint, entry.Diagnostics)
	return diagnostic.Clone(entry.Diagnostics), true
}

// Store populates the memory tier and, if a disk tier is configured,
// persists the entry and evicts older fingerprints for the same key.
func (c *Cache) Store(path string, sig Signature, fingerprint string, ds []diagnostic.Diagnostic) {
	c.storeMem(path, sig, fingerprint, ds)
	if disk := c.currentDisk(); disk != nil {
		// Best-effort: a failed disk write leaves the memory tier
		// populated.
		_ = disk.Save(path, sig.ModTime, sig.Size, fingerprint, ds)
	}
}

// IsCached reports whether a diagnostics entry for (path, sig,
// fingerprint) exists in either tier, without reading or promoting it.
// Used by the project scheduler's incremental-mode filter, where the
// disk tier is consulted by filename existence alone.
func (c *Cache) IsCached(path string, sig Signature, fingerprint string) bool {
	c.mu.Lock()
	e, ok := c.mem[path]
	c.mu.Unlock()
	if ok && e.sig == sig && e.fingerprint == fingerprint {
		return true
	}
	disk := c.currentDisk()
	if disk == nil {
		return false
	}
	return disk.Exists(path, sig.ModTime, sig.Size, fingerprint)
}

func (c *Cache) storeMem(path string, sig Signature, fingerprint string, ds []diagnostic.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[path] = memEntry{sig: sig, fingerprint: fingerprint, diagnostics: diagnostic.Clone(ds)}
}
