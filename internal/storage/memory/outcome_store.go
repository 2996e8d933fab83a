package memory

import (
	"context"
	"sort"
	"sync"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[outcomeKey]*domain.OutcomeRecord
}

type outcomeKey struct {
	runID         string
	symbol        string
	date          string
	judgmentLabel string
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[outcomeKey]*domain.OutcomeRecord),
	}
}

func outcomeKeyOf(r *domain.OutcomeRecord) outcomeKey {
	return outcomeKey{r.RunID, r.Symbol, r.Date, r.JudgmentLabel}
}

// InsertBulk adds multiple records. Fails entire batch on duplicate
// (run_id, symbol, date, judgment_label).
func (s *OutcomeStore) InsertBulk(_ context.Context, records []*domain.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[outcomeKey]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.RunID == "" || r.Date == "" {
			return storage.ErrInvalidInput
		}

		k := outcomeKeyOf(r)
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, r := range records {
		copy := *r
		s.data[outcomeKeyOf(r)] = &copy
	}

	return nil
}

// GetByRunID retrieves all records for a judgment run, ordered by date ASC.
func (s *OutcomeStore) GetByRunID(_ context.Context, runID string) ([]*domain.OutcomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OutcomeRecord
	for _, r := range s.data {
		if r.RunID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date < result[j].Date
	})

	return result, nil
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
