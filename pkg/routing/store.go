// Package routing holds the process-local IMSI to network-element mapping
// written by Update Location and read by Send Routing Info for SM. It is
// deliberately not persistent: the data model treats it as living only for
// process lifetime.
package routing

import "sync"

// Entry is the set of network element addresses known for a subscriber.
// Empty strings mean "not present".
type Entry struct {
	VLRNumber  string
	MSCNumber  string
	SGSNNumber string
	MMENumber  string
}

// Empty reports whether none of the four number fields are set, the
// condition the data model treats as "equivalent to no entry" for routing
// lookups.
func (e Entry) Empty() bool {
	return e.VLRNumber == "" && e.MSCNumber == "" && e.SGSNNumber == "" && e.MMENumber == ""
}

// Store is the in-memory IMSI->Entry map. A single RWMutex is sufficient:
// the data is small and read-mostly, and the spec explicitly rules out
// reaching for sharded concurrency here.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Upsert overwrites (or creates) the Entry for imsi. Last writer wins.
func (s *Store) Upsert(imsi string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[imsi] = entry
}

// Lookup returns the Entry for imsi and whether one is present at all.
// A caller must additionally check Entry.Empty() per the data model's
// "absence of an entry, or an entry with all fields empty" rule.
func (s *Store) Lookup(imsi string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[imsi]
	return e, ok
}
