package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// PriceBarStore is an in-memory implementation of storage.PriceBarStore.
type PriceBarStore struct {
	mu   sync.RWMutex
	data map[barKey]*domain.PriceBar
}

type barKey struct {
	symbol    string
	timestamp int64 // unix nanoseconds
}

// NewPriceBarStore creates a new in-memory price bar store.
func NewPriceBarStore() *PriceBarStore {
	return &PriceBarStore{
		data: make(map[barKey]*domain.PriceBar),
	}
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, timestamp).
func (s *PriceBarStore) InsertBulk(_ context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[barKey]struct{}, len(bars))

	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}

		k := barKey{b.Symbol, b.Timestamp.UnixNano()}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, b := range bars {
		copy := *b
		s.data[barKey{b.Symbol, b.Timestamp.UnixNano()}] = &copy
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
func (s *PriceBarStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if b.Symbol == symbol {
			copy := *b
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *PriceBarStore) GetByTimeRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if b.Symbol != symbol {
			continue
		}
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		copy := *b
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.PriceBarStore = (*PriceBarStore)(nil)
