package gcd

import (
	"context"
	"sync"
)

// MemoryStorage keeps records in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	byGbid map[string]map[string]Record
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{byGbid: make(map[string]map[string]Record)}
}

func (m *MemoryStorage) Get(_ context.Context, gbid, participantID string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byGbid[gbid][participantID]
	if !ok {
		return Record{}, false, nil
	}
	r.Entry = r.Entry.Clone()
	return r, true, nil
}

func (m *MemoryStorage) Put(_ context.Context, gbid string, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.byGbid[gbid]
	if !ok {
		records = make(map[string]Record)
		m.byGbid[gbid] = records
	}
	r.Entry = r.Entry.Clone()
	records[r.Entry.ParticipantID] = r
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, gbid, participantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byGbid[gbid][participantID]; !ok {
		return false, nil
	}
	delete(m.byGbid[gbid], participantID)
	return true, nil
}

func (m *MemoryStorage) List(_ context.Context, gbid string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.byGbid[gbid]))
	for _, r := range m.byGbid[gbid] {
		r.Entry = r.Entry.Clone()
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStorage) Ping(context.Context) error { return nil }

func (m *MemoryStorage) Close() error { return nil }
