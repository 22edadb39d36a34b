package memory

import (
	"context"
	"sync"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
// Results are stored as encoded documents so callers never share state.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]storedRun // keyed by run_id
}

type storedRun struct {
	summary domain.RunSummary
	result  []byte
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]storedRun),
	}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Save stores a run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Save(_ context.Context, runID string, cfg domain.BacktestConfig, result *domain.BacktestResult) error {
	if err := storage.ValidateRun(runID, result); err != nil {
		return err
	}

	_, doc, err := storage.EncodeRun(runID, cfg, result)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	summary := result.Summary()
	summary.RunID = runID
	summary.StartDate = cfg.StartDate
	summary.EndDate = cfg.EndDate
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	s.data[runID] = storedRun{summary: summary, result: doc}
	return nil
}

// List returns up to limit run summaries, newest first.
func (s *RunStore) List(_ context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	result := make([]domain.RunSummary, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r.summary)
	}
	s.mu.RUnlock()

	storage.SortSummaries(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Get retrieves a full run result. Returns ErrNotFound if not exists.
func (s *RunStore) Get(_ context.Context, runID string) (*domain.BacktestResult, error) {
	s.mu.RLock()
	r, ok := s.data[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.DecodeResult(r.result)
}
