package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/capdir/discovery"
)

// Record is a locally registered provider and the GBIDs it was registered in.
type Record struct {
	Entry discovery.DiscoveryEntry
	Gbids []string
}

func (r Record) clone() Record {
	return Record{Entry: r.Entry.Clone(), Gbids: slices.Clone(r.Gbids)}
}

type indexKey struct {
	domain        string
	interfaceName string
}

func keyOf(e discovery.DiscoveryEntry) indexKey {
	return indexKey{domain: e.Domain, interfaceName: e.InterfaceName}
}

// LocalStore holds local provider registrations keyed by participant id and
// indexed by (domain, interface).
type LocalStore struct {
	mu      sync.RWMutex
	records map[string]Record
	index   map[indexKey]map[string]struct{}
}

// NewLocalStore creates an empty LocalStore.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		records: make(map[string]Record),
		index:   make(map[indexKey]map[string]struct{}),
	}
}

// Insert adds or replaces the record of entry.ParticipantID.
func (s *LocalStore) Insert(entry discovery.DiscoveryEntry, gbids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid := entry.ParticipantID
	if old, ok := s.records[pid]; ok {
		s.unindex(pid, keyOf(old.Entry))
	}
	s.records[pid] = Record{Entry: entry.Clone(), Gbids: slices.Clone(gbids)}

	k := keyOf(entry)
	ids, ok := s.index[k]
	if !ok {
		ids = make(map[string]struct{})
		s.index[k] = ids
	}
	ids[pid] = struct{}{}
}

// Get returns the record of participantID.
func (s *LocalStore) Get(participantID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[participantID]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// Lookup returns the records registered for interfaceName in any of domains,
// ordered by participant id.
func (s *LocalStore) Lookup(domains []string, interfaceName string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, d := range domains {
		for pid := range s.index[indexKey{domain: d, interfaceName: interfaceName}] {
			out = append(out, s.records[pid].clone())
		}
	}
	sortRecords(out)
	return out
}

// Remove deletes and returns the record of participantID.
func (s *LocalStore) Remove(participantID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[participantID]
	if !ok {
		return Record{}, false
	}
	s.remove(participantID, r)
	return r, true
}

// All returns every record ordered by participant id.
func (s *LocalStore) All() []Record {
	return s.filter(func(Record) bool { return true })
}

// GlobalRecords returns the records with GLOBAL scope.
func (s *LocalStore) GlobalRecords() []Record {
	return s.filter(func(r Record) bool { return r.Entry.IsGlobal() })
}

// Touch refreshes LastSeenDateMs and ExpiryDateMs of every GLOBAL record and
// returns the refreshed records.
func (s *LocalStore) Touch(now time.Time, expiry time.Duration) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	var out []Record
	for pid, r := range s.records {
		if !r.Entry.IsGlobal() {
			continue
		}
		r.Entry.LastSeenDateMs = nowMs
		r.Entry.ExpiryDateMs = nowMs + expiry.Milliseconds()
		s.records[pid] = r
		out = append(out, r.clone())
	}
	sortRecords(out)
	return out
}

// RemoveExpired deletes and returns the records whose expiry date is before now.
func (s *LocalStore) RemoveExpired(now time.Time) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	var out []Record
	for pid, r := range s.records {
		if r.Entry.IsExpired(nowMs) {
			s.remove(pid, r)
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out
}

// Len returns the number of records.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *LocalStore) filter(keep func(Record) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	sortRecords(out)
	return out
}

// remove must be called with s.mu held.
func (s *LocalStore) remove(pid string, r Record) {
	delete(s.records, pid)
	s.unindex(pid, keyOf(r.Entry))
}

func (s *LocalStore) unindex(pid string, k indexKey) {
	ids := s.index[k]
	delete(ids, pid)
	if len(ids) == 0 {
		delete(s.index, k)
	}
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Entry.ParticipantID < rs[j].Entry.ParticipantID
	})
}
