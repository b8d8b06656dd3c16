// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/costlens/internal/fingerprint"
	"github.com/jeranaias/costlens/internal/util"
)

// ErrStoreCorrupt indicates an on-disk entry failed to deserialize. The
// store recovers locally: the bad file is quarantined and the lookup is
// treated as a miss. Callers never see a false hit and never crash on a
// corrupt entry.
var ErrStoreCorrupt = errors.New("cache entry corrupt")

const (
	entryExt      = ".json"
	quarantineExt = ".corrupt"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists fingerprint-addressed analysis results under a single
// directory, one file per entry. All I/O is local; Lookup never blocks
// on the network.
type Store struct {
	mu         sync.Mutex
	dir        string
	ttl        time.Duration
	maxEntries int
}

// NewStore opens (creating if needed) a store rooted at dir. Entries
// older than ttl are treated as misses; maxEntries bounds the entry
// count, evicting oldest-first on commit (0 means unbounded).
func NewStore(dir string, ttl time.Duration, maxEntries int) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir, ttl: ttl, maxEntries: maxEntries}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) entryPath(fp fingerprint.Fingerprint) string {
	return filepath.Join(s.dir, string(fp)+entryExt)
}

// =============================================================================
// LOOKUP / COMMIT
// =============================================================================

// Lookup returns the committed entry for fp, or ok=false on a miss.
// Expired and corrupt entries are misses; corrupt files are quarantined
// so they cannot resurface as false hits.
func (s *Store) Lookup(fp fingerprint.Fingerprint) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(fp)
}

func (s *Store) lookupLocked(fp fingerprint.Fingerprint) (*Entry, bool, error) {
	path := s.entryPath(fp)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		s.quarantineLocked(path)
		log.Printf("cache: quarantined entry %s: %v", fp.Short(), err)
		return nil, false, nil
	}

	if entry.Expired(s.ttl, time.Now()) {
		return nil, false, nil
	}
	return entry, true, nil
}

// decodeEntry deserializes an on-disk entry. Undecodable or structurally
// empty entries return ErrStoreCorrupt so readers quarantine them
// instead of serving a hollow hit.
func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if len(entry.Result) == 0 {
		return nil, fmt.Errorf("%w: missing result payload", ErrStoreCorrupt)
	}
	return &entry, nil
}

// quarantineLocked moves a bad entry aside instead of deleting it, so it
// can be inspected later. Failure to rename falls back to removal.
func (s *Store) quarantineLocked(path string) {
	if err := os.Rename(path, path+quarantineExt); err != nil {
		os.Remove(path)
	}
}

// Commit durably records result under fp and returns the stored entry.
// Entries are immutable: committing an already-present fingerprint
// returns the existing entry unchanged. The write is atomic on every
// exit path, so a concurrent or subsequent Lookup sees either nothing or
// the complete entry.
func (s *Store) Commit(fp fingerprint.Fingerprint, vendor string, result json.RawMessage, tokens int, costUSD float64) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok, err := s.lookupLocked(fp); err != nil {
		return nil, err
	} else if ok {
		return existing, nil
	}

	entry := &Entry{
		Fingerprint: fp,
		Vendor:      vendor,
		Result:      result,
		TokensUsed:  tokens,
		CostUSD:     costUSD,
		CreatedAt:   time.Now().UTC(),
	}

	if err := util.AtomicWriteJSON(s.entryPath(fp), entry, 0644); err != nil {
		return nil, fmt.Errorf("failed to commit cache entry: %w", err)
	}

	if s.maxEntries > 0 {
		s.enforceEntryLimitLocked()
	}
	return entry, nil
}

// enforceEntryLimitLocked evicts oldest entries until the count is back
// under maxEntries. Eviction errors are logged, not fatal: the next
// commit retries.
func (s *Store) enforceEntryLimitLocked() {
	entries, err := s.entriesLocked()
	if err != nil || len(entries) <= s.maxEntries {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	for _, e := range entries[:len(entries)-s.maxEntries] {
		if err := os.Remove(s.entryPath(e.Fingerprint)); err != nil {
			log.Printf("cache: failed to evict %s: %v", e.Fingerprint.Short(), err)
		}
	}
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// EvictExpired removes entries older than ttl and returns the count
// removed. It is idempotent; a second call right after the first evicts
// nothing.
func (s *Store) EvictExpired(ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.entriesLocked()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	evicted := 0
	for _, e := range entries {
		if !e.Expired(ttl, now) {
			continue
		}
		if err := os.Remove(s.entryPath(e.Fingerprint)); err != nil {
			return evicted, fmt.Errorf("failed to evict expired entry: %w", err)
		}
		evicted++
	}
	return evicted, nil
}

// Clear removes every entry and quarantined file. Used by explicit
// maintenance only, never by the request flow.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.listFilesLocked()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	return nil
}

// Entries enumerates every readable entry for maintenance and
// inspection. Corrupt files are skipped and quarantined.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesLocked()
}

// Export writes every readable entry to a single JSON file and
// returns the number of entries written.
func (s *Store) Export(path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.entriesLocked()
	if err != nil {
		return 0, err
	}
	if err := util.AtomicWriteJSON(path, entries, 0644); err != nil {
		return 0, fmt.Errorf("failed to export cache: %w", err)
	}
	return len(entries), nil
}

func (s *Store) entriesLocked() ([]Entry, error) {
	names, err := s.listFilesLocked()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if !strings.HasSuffix(name, entryExt) {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		entry, err := decodeEntry(data)
		if err != nil {
			s.quarantineLocked(path)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Stats reports entry count, quarantined count, and total bytes on disk.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var stats Stats
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		switch {
		case strings.HasSuffix(name, quarantineExt):
			stats.Quarantined++
		case strings.HasSuffix(name, entryExt):
			stats.Entries++
		default:
			continue
		}
		if info, err := de.Info(); err == nil {
			stats.TotalBytes += info.Size()
		}
	}
	return stats, nil
}

func (s *Store) listFilesLocked() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasSuffix(name, entryExt) || strings.HasSuffix(name, quarantineExt) {
			names = append(names, name)
		}
	}
	return names, nil
}
