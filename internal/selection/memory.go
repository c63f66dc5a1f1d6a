package selection

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/stockcast/internal/contracts"
)

// MemoryStore is an in-process CandidateStore (dry runs, tests)
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*contracts.CandidateState
	saves  int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*contracts.CandidateState)}
}

// LoadAll returns copies of every state
func (m *MemoryStore) LoadAll(ctx context.Context) (map[string]*contracts.CandidateState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*contracts.CandidateState, len(m.states))
	for k, v := range m.states {
		c := *v
		out[k] = &c
	}
	return out, nil
}

// SaveAll replaces the given states
func (m *MemoryStore) SaveAll(ctx context.Context, states []*contracts.CandidateState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range states {
		c := *s
		m.states[s.Ticker] = &c
	}
	m.saves++
	return nil
}

// MarkProcessed implements contracts.CandidateStore
func (m *MemoryStore) MarkProcessed(ctx context.Context, ticker string, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(ticker)
	d := contracts.DateOf(day)
	s.ProcessedDate = &d
	s.Priority = 0
	s.Failures = 0
	s.LastError = ""
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed implements contracts.CandidateStore
func (m *MemoryStore) MarkFailed(ctx context.Context, ticker string, day time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(ticker)
	d := contracts.DateOf(day)
	if s.FailedDate != nil && s.FailedDate.Equal(d) {
		s.Failures++
	} else {
		s.Failures = 1
	}
	s.FailedDate = &d
	s.LastError = truncateReason(reason)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a copy of one state
func (m *MemoryStore) Get(ticker string) (contracts.CandidateState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[ticker]
	if !ok {
		return contracts.CandidateState{}, false
	}
	return *s, true
}

// Saves returns how many SaveAll calls were made
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) get(ticker string) *contracts.CandidateState {
	s, ok := m.states[ticker]
	if !ok {
		s = &contracts.CandidateState{Ticker: ticker}
		m.states[ticker] = s
	}
	return s
}
