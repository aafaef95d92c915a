package repository

import (
	"context"
	"sync"
)

const defaultHistoryCapacity = 1000

// MemoryAnalysisRepository keeps the most recent analyses in memory.
type MemoryAnalysisRepository struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	records  map[string]*AnalysisRecord
}

// NewMemoryAnalysisRepository creates a store that evicts the oldest record
// once capacity is reached.
func NewMemoryAnalysisRepository(capacity int) *MemoryAnalysisRepository {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &MemoryAnalysisRepository{
		capacity: capacity,
		records:  make(map[string]*AnalysisRecord),
	}
}

func (m *MemoryAnalysisRepository) SaveAnalysisResult(ctx context.Context, record *AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.ID]; !exists {
		m.order = append(m.order, record.ID)
	}
	m.records[record.ID] = record

	for len(m.order) > m.capacity {
		delete(m.records, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryAnalysisRepository) GetAnalysisResult(ctx context.Context, id string) (*AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return record, nil
}

func (m *MemoryAnalysisRepository) GetAnalysisHistory(ctx context.Context, source string) ([]*AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var history []*AnalysisRecord
	for i := len(m.order) - 1; i >= 0; i-- {
		if r := m.records[m.order[i]]; r.Source == source {
			history = append(history, r)
		}
	}
	return history, nil
}
