package memory

import (
	"context"
	"sort"
	"sync"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// AggregateStore is an in-memory implementation of storage.AggregateStore.
type AggregateStore struct {
	mu   sync.RWMutex
	data map[aggregateKey]*domain.AggregateRecord
}

type aggregateKey struct {
	symbol        string
	openTime      int64 // unix nanoseconds
	thresholdMin  int
	judgmentLabel string
}

// NewAggregateStore creates a new in-memory aggregate store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		data: make(map[aggregateKey]*domain.AggregateRecord),
	}
}

func keyOf(r *domain.AggregateRecord) aggregateKey {
	return aggregateKey{r.Symbol, r.OpenTime.UnixNano(), r.ThresholdMin, r.JudgmentLabel}
}

// InsertBulk adds multiple records. Fails entire batch on duplicate
// (symbol, open_time, threshold_min, judgment_label).
func (s *AggregateStore) InsertBulk(_ context.Context, records []*domain.AggregateRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[aggregateKey]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.Symbol == "" || r.OpenTime.IsZero() {
			return storage.ErrInvalidInput
		}

		k := keyOf(r)
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
		s.data[keyOf(r)] = &copy
	}

	return nil
}

// GetByWindow retrieves records for one (threshold, horizon label)
// partition, ordered by open_time ASC.
func (s *AggregateStore) GetByWindow(_ context.Context, symbol string, thresholdMin int, judgmentLabel string) ([]*domain.AggregateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AggregateRecord
	for _, r := range s.data {
		if r.Symbol == symbol && r.ThresholdMin == thresholdMin && r.JudgmentLabel == judgmentLabel {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})

	return result, nil
}

// GetBySymbol retrieves all records for a symbol, ordered by open_time ASC.
func (s *AggregateStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.AggregateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AggregateRecord
	for _, r := range s.data {
		if r.Symbol == symbol {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})

	return result, nil
}

var _ storage.AggregateStore = (*AggregateStore)(nil)
