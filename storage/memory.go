package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iabalyuk/advisorbot/model"
)

// Memory is a thread-safe in-memory advisor directory
type Memory struct {
	mu          sync.RWMutex
	advisors    map[model.AdvisorID]model.Advisor
	lastUpdated time.Time
}

// NewMemory creates an empty in-memory directory
func NewMemory() *Memory {
	return &Memory{
		advisors: make(map[model.AdvisorID]model.Advisor),
	}
}

// Replace swaps the whole directory content
func (m *Memory) Replace(advisors []model.Advisor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advisors = make(map[model.AdvisorID]model.Advisor, len(advisors))
	for _, a := range advisors {
		m.advisors[a.ID] = a
	}
	m.lastUpdated = time.Now()
}

// LastUpdated returns when the directory content was last replaced
func (m *Memory) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}

// Len returns the number of advisors stored
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.advisors)
}

// Search implements directory.Backend. Results are ordered by id.
func (m *Memory) Search(ctx context.Context, predicate string) ([]model.Advisor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(predicate)
	result := make([]model.Advisor, 0, len(m.advisors))
	for _, a := range m.advisors {
		if needle == "" ||
			strings.Contains(strings.ToLower(a.Name), needle) ||
			strings.Contains(strings.ToLower(a.ResearchField), needle) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
