package vectorstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps records in a map. MaxRecordBytes, when positive, rejects records
// whose Size exceeds it with ErrCapacity.
type MemoryBackend struct {
	mu             sync.RWMutex
	records        map[string]Record
	MaxRecordBytes int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(maxRecordBytes int) *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record), MaxRecordBytes: maxRecordBytes}
}

// Put implements Backend.
func (m *MemoryBackend) Put(_ context.Context, rec Record) error {
	if m.MaxRecordBytes > 0 && rec.Size() > m.MaxRecordBytes {
		return ErrCapacity
	}
	rec.Vector = append([]float32(nil), rec.Vector...)
	m.mu.Lock()
	m.records[rec.Key] = rec
	m.mu.Unlock()
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

// Scan implements Backend.
func (m *MemoryBackend) Scan(ctx context.Context, fn func(Record) bool) error {
	m.mu.RLock()
	snapshot := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		snapshot = append(snapshot, rec)
	}
	m.mu.RUnlock()

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(rec) {
			return nil
		}
	}
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	return nil
}
