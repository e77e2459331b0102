package store

import (
	"context"
	"slices"
	"sync"

	"recroai/internal/types"
)

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu         sync.RWMutex
	order      map[string][]string
	candidates map[string]map[string]types.RawCandidate
	scores     map[string]map[string]types.ScoreRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		order:      make(map[string][]string),
		candidates: make(map[string]map[string]types.RawCandidate),
		scores:     make(map[string]map[string]types.ScoreRecord),
	}
}

// PutCandidates implements Store
func (m *MemoryStore) PutCandidates(_ context.Context, jobID string, candidates []types.RawCandidate) error {
	candidates, err := normalizeCandidates(candidates)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.candidates[jobID]
	if byID == nil {
		byID = make(map[string]types.RawCandidate)
		m.candidates[jobID] = byID
	}
	for _, c := range candidates {
		c.JobID = jobID
		c.Material = slices.Clone(c.Material)
		if _, exists := byID[c.ID]; !exists {
			m.order[jobID] = append(m.order[jobID], c.ID)
		}
		byID[c.ID] = c
	}
	return nil
}

// GetCandidates implements Store
func (m *MemoryStore) GetCandidates(_ context.Context, jobID string, ids []string) ([]types.RawCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ids == nil {
		ids = m.order[jobID]
	}

	out := make([]types.RawCandidate, 0, len(ids))
	var missing []string
	for _, id := range ids {
		c, ok := m.candidates[jobID][id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, c)
	}
	if len(missing) > 0 {
		return nil, missingCandidates(jobID, missing)
	}
	return out, nil
}

// GetScore implements Store. A missing record is (nil, nil).
func (m *MemoryStore) GetScore(_ context.Context, jobID, candidateID string) (*types.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.scores[jobID][candidateID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// PutScore implements Store
func (m *MemoryStore) PutScore(_ context.Context, record types.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.scores[record.JobID]
	if byID == nil {
		byID = make(map[string]types.ScoreRecord)
		m.scores[record.JobID] = byID
	}
	byID[record.CandidateID] = record
	return nil
}

// ListScores implements Store. Records follow candidate submission order;
// records for candidates never submitted come last by id.
func (m *MemoryStore) ListScores(_ context.Context, jobID string) ([]types.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := m.scores[jobID]
	out := make([]types.ScoreRecord, 0, len(byID))
	seen := make(map[string]bool, len(byID))
	for _, id := range m.order[jobID] {
		if r, ok := byID[id]; ok {
			out = append(out, r)
			seen[id] = true
		}
	}
	var rest []string
	for id := range byID {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	for _, id := range rest {
		out = append(out, byID[id])
	}
	return out, nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }
