package postgres

import (
	"context"
	"fmt"
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// InsertBulk adds multiple sessions atomically. Fails entire batch on any duplicate.
func (s *SessionStore) InsertBulk(ctx context.Context, sessions []*domain.MarketSession) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO market_sessions (
			symbol, close_time, open_time, next_close_time, session_type
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	for _, sess := range sessions {
		_, err := tx.Exec(ctx, query,
			sess.Symbol, sess.CloseTime,
			nullableTime(sess.OpenTime), nullableTime(sess.NextCloseTime),
			sess.SessionType,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert market session: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all sessions for a symbol, ordered by close_time ASC.
func (s *SessionStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.MarketSession, error) {
	query := `
		SELECT symbol, close_time, open_time, next_close_time, session_type
		FROM market_sessions
		WHERE symbol = $1
		ORDER BY close_time ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query sessions by symbol: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.MarketSession
	for rows.Next() {
		var sess domain.MarketSession
		var openTime, nextCloseTime *time.Time

		if err := rows.Scan(&sess.Symbol, &sess.CloseTime, &openTime, &nextCloseTime, &sess.SessionType); err != nil {
			return nil, fmt.Errorf("scan market session row: %w", err)
		}

		if openTime != nil {
			sess.OpenTime = *openTime
		}
		if nextCloseTime != nil {
			sess.NextCloseTime = *nextCloseTime
		}
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market session rows: %w", err)
	}

	return sessions, nil
}

// nullableTime maps the domain's zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
