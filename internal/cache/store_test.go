// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/costlens/internal/fingerprint"
)

const testFP = fingerprint.Fingerprint("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

func newTestStore(t *testing.T, ttl time.Duration, maxEntries int) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), ttl, maxEntries)
	require.NoError(t, err)
	return s
}

func TestStore_MissThenHit(t *testing.T) {
	s := newTestStore(t, 0, 0)

	_, ok, err := s.Lookup(testFP)
	require.NoError(t, err)
	assert.False(t, ok)

	result := json.RawMessage(`{"status":"success"}`)
	entry, err := s.Commit(testFP, "Microsoft", result, 1200, 0.15)
	require.NoError(t, err)
	assert.Equal(t, testFP, entry.Fingerprint)

	got, ok, err := s.Lookup(testFP)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"success"}`, string(got.Result))
	assert.Equal(t, "Microsoft", got.Vendor)
}

func TestStore_CommitIsImmutable(t *testing.T) {
	s := newTestStore(t, 0, 0)

	first, err := s.Commit(testFP, "Microsoft", json.RawMessage(`{"v":1}`), 10, 0.10)
	require.NoError(t, err)

	second, err := s.Commit(testFP, "Microsoft", json.RawMessage(`{"v":2}`), 20, 0.20)
	require.NoError(t, err)

	assert.JSONEq(t, string(first.Result), string(second.Result), "commit must never overwrite")
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 0, 0)
	require.NoError(t, err)
	_, err = s.Commit(testFP, "Adobe", json.RawMessage(`{"ok":true}`), 5, 0.05)
	require.NoError(t, err)

	// Fresh store over the same directory, as after a process restart.
	reopened, err := NewStore(dir, 0, 0)
	require.NoError(t, err)
	got, ok, err := reopened.Lookup(testFP)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Adobe", got.Vendor)
}

func TestStore_CorruptEntryIsQuarantinedMiss(t *testing.T) {
	s := newTestStore(t, 0, 0)
	path := filepath.Join(s.Dir(), string(testFP)+entryExt)
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0644))

	_, ok, err := s.Lookup(testFP)
	require.NoError(t, err, "corruption must not propagate to the caller")
	assert.False(t, ok)

	_, statErr := os.Stat(path + quarantineExt)
	assert.NoError(t, statErr, "corrupt file should be quarantined")
	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Quarantined)
}

func TestStore_EmptyResultEntryIsQuarantinedMiss(t *testing.T) {
	s := newTestStore(t, 0, 0)
	path := filepath.Join(s.Dir(), string(testFP)+entryExt)
	raw := `{"fingerprint":"` + string(testFP) + `","vendor":"VMware","created_at":"2025-01-02T03:04:05Z"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	_, err := decodeEntry([]byte(raw))
	assert.ErrorIs(t, err, ErrStoreCorrupt)

	_, ok, err := s.Lookup(testFP)
	require.NoError(t, err)
	assert.False(t, ok, "an entry with no result payload must not be served")

	_, statErr := os.Stat(path + quarantineExt)
	assert.NoError(t, statErr, "hollow entry should be quarantined")
}

func TestStore_UnknownFieldsIgnored(t *testing.T) {
	s := newTestStore(t, 0, 0)
	path := filepath.Join(s.Dir(), string(testFP)+entryExt)
	raw := `{"fingerprint":"` + string(testFP) + `","vendor":"VMware",` +
		`"result":{"x":1},"created_at":"2025-01-02T03:04:05Z","future_field":"ignored"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	got, ok, err := s.Lookup(testFP)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "VMware", got.Vendor)
}

func TestStore_TTLExpiryIsMiss(t *testing.T) {
	s := newTestStore(t, 24*time.Hour, 0)
	_, err := s.Commit(testFP, "AWS", json.RawMessage(`{}`), 1, 0.01)
	require.NoError(t, err)

	// Backdate the entry on disk past the TTL.
	backdate(t, s, testFP, time.Now().Add(-48*time.Hour))

	_, ok, err := s.Lookup(testFP)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_EvictExpired(t *testing.T) {
	s := newTestStore(t, 0, 0)
	old := fingerprint.Fingerprint(strings.Repeat("b", 64))
	fresh := fingerprint.Fingerprint(strings.Repeat("c", 64))

	_, err := s.Commit(old, "Old", json.RawMessage(`{}`), 1, 0.01)
	require.NoError(t, err)
	_, err = s.Commit(fresh, "Fresh", json.RawMessage(`{}`), 1, 0.01)
	require.NoError(t, err)
	backdate(t, s, old, time.Now().Add(-72*time.Hour))

	n, err := s.EvictExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Idempotent: nothing further to evict.
	n, err = s.EvictExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, ok, err := s.Lookup(fresh)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Export(t *testing.T) {
	s := newTestStore(t, 0, 0)

	_, err := s.Commit(testFP, "Microsoft", json.RawMessage(`{"v":1}`), 10, 0.10)
	require.NoError(t, err)
	other := fingerprint.Fingerprint(strings.Repeat("b", 64))
	_, err = s.Commit(other, "Amazon", json.RawMessage(`{"v":2}`), 20, 0.20)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "entries.json")
	count, err := s.Export(path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var exported []Entry
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Len(t, exported, 2)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t, 0, 0)
	_, err := s.Commit(testFP, "Microsoft", json.RawMessage(`{}`), 1, 0.01)
	require.NoError(t, err)

	require.NoError(t, s.Clear())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}

func TestStore_EntryCountCeiling(t *testing.T) {
	s := newTestStore(t, 0, 2)

	fps := []fingerprint.Fingerprint{
		fingerprint.Fingerprint(strings.Repeat("1", 64)),
		fingerprint.Fingerprint(strings.Repeat("2", 64)),
		fingerprint.Fingerprint(strings.Repeat("3", 64)),
	}
	for i, fp := range fps {
		_, err := s.Commit(fp, "V", json.RawMessage(`{}`), 1, 0.01)
		require.NoError(t, err)
		// Distinct CreatedAt timestamps so eviction order is stable.
		backdate(t, s, fp, time.Now().Add(time.Duration(i-len(fps))*time.Minute))
	}
	_, err := s.Commit(testFP, "V", json.RawMessage(`{}`), 1, 0.01)
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)

	_, ok, err := s.Lookup(fps[0])
	require.NoError(t, err)
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestStore_ConcurrentCommitAndLookup(t *testing.T) {
	s := newTestStore(t, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Commit(testFP, "Microsoft", json.RawMessage(`{"status":"success"}`), 1, 0.01)
		}()
		go func() {
			defer wg.Done()
			entry, ok, err := s.Lookup(testFP)
			if err != nil {
				t.Error(err)
				return
			}
			// Never a partial entry: either a miss or the full result.
			if ok && len(entry.Result) == 0 {
				t.Error("observed committed entry with empty result")
			}
		}()
	}
	wg.Wait()
}

// backdate rewrites an entry's created_at so TTL paths can be tested
// without sleeping.
func backdate(t *testing.T, s *Store, fp fingerprint.Fingerprint, to time.Time) {
	t.Helper()
	path := filepath.Join(s.Dir(), string(fp)+entryExt)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry Entry
	require.NoError(t, json.Unmarshal(data, &entry))
	entry.CreatedAt = to.UTC()
	out, err := json.Marshal(&entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, out, 0644))
}
