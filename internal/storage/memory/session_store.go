package memory

import (
	"context"
	"sort"
	"sync"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	data map[sessionKey]*domain.MarketSession
}

type sessionKey struct {
	symbol    string
	closeTime int64 // unix nanoseconds
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[sessionKey]*domain.MarketSession),
	}
}

// InsertBulk adds multiple sessions. Fails entire batch on duplicate (symbol, close_time).
func (s *SessionStore) InsertBulk(_ context.Context, sessions []*domain.MarketSession) error {
	if len(sessions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[sessionKey]struct{}, len(sessions))

	for _, sess := range sessions {
		if sess == nil || sess.Symbol == "" || sess.CloseTime.IsZero() {
			return storage.ErrInvalidInput
		}

		k := sessionKey{sess.Symbol, sess.CloseTime.UnixNano()}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, sess := range sessions {
		copy := *sess
		s.data[sessionKey{sess.Symbol, sess.CloseTime.UnixNano()}] = &copy
	}

	return nil
}

// GetBySymbol retrieves all sessions for a symbol, ordered by close_time ASC.
func (s *SessionStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.MarketSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketSession
	for _, sess := range s.data {
		if sess.Symbol == symbol {
			copy := *sess
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CloseTime.Before(result[j].CloseTime)
	})

	return result, nil
}

var _ storage.SessionStore = (*SessionStore)(nil)
