package service

import (
	"sync"

	"github.com/teddyrendahl/psbeam/internal/focus"
	"github.com/teddyrendahl/psbeam/pkg/models"
)

// runStore keeps run records in memory. Finished runs beyond the history
// limit are evicted oldest first; a run that is still searching is never
// evicted.
type runStore struct {
	mu    sync.RWMutex
	runs  map[string]*models.RunResponse
	order []string // insertion order, oldest first
	limit int
}

func newRunStore(limit int) *runStore {
	if limit < 1 {
		limit = 1
	}
	return &runStore{
		runs:  make(map[string]*models.RunResponse),
		limit: limit,
	}
}

// Put registers a new run record.
func (s *runStore) Put(run models.RunResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = &run
	s.order = append(s.order, run.ID)
	s.evict()
}

// Update applies fn to a stored record under the store lock.
func (s *runStore) Update(id string, fn func(run *models.RunResponse)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		fn(run)
	}
}

// Get returns a copy of one run record.
func (s *runStore) Get(id string) (models.RunResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return models.RunResponse{}, false
	}
	return cloneRun(run), true
}

// List returns run summaries, newest first.
func (s *runStore) List() []models.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]models.RunSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		summary := models.RunSummary{
			ID:        run.ID,
			State:     run.State,
			Target:    run.Target,
			Strategy:  run.Strategy,
			StartedAt: run.StartedAt,
			Trials:    len(run.Trials),
		}
		if run.Best != nil {
			best := *run.Best
			summary.Best = &best
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// Len reports how many records are currently held.
func (s *runStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// evict drops the oldest finished records over the limit. Caller holds
// the lock.
func (s *runStore) evict() {
	excess := len(s.order) - s.limit
	if excess <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		run := s.runs[id]
		if excess > 0 && run.State != string(focus.StateSearching) {
			delete(s.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// cloneRun copies a record so callers never alias store-internal state.
func cloneRun(run *models.RunResponse) models.RunResponse {
	out := *run
	if run.Trials != nil {
		out.Trials = append([]models.TrialEntry(nil), run.Trials...)
	}
	if run.Best != nil {
		best := *run.Best
		out.Best = &best
	}
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}
