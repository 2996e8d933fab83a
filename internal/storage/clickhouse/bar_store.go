package clickhouse

import (
	"context"
	"fmt"
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore using ClickHouse.
type PriceBarStore struct {
	conn *Conn
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(conn *Conn) *PriceBarStore {
	return &PriceBarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, timestamp).
func (s *PriceBarStore) InsertBulk(ctx context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol    string
		timestamp int64
	}
	seen := make(map[key]struct{})
	for _, b := range bars {
		k := key{b.Symbol, b.Timestamp.UnixNano()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Symbol, b.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			symbol, timestamp, open, high, low, close
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
func (s *PriceBarStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceBar, error) {
	query := `
		SELECT symbol, timestamp, open, high, low, close
		FROM price_bars
		WHERE symbol = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query bars by symbol: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *PriceBarStore) GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.PriceBar, error) {
	query := `
		SELECT symbol, timestamp, open, high, low, close
		FROM price_bars
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// exists checks if a bar with the given key exists.
func (s *PriceBarStore) exists(ctx context.Context, symbol string, timestamp time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM price_bars
		WHERE symbol = ? AND timestamp = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, timestamp).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPriceBars scans multiple rows.
func scanPriceBars(rows chRows) ([]*domain.PriceBar, error) {
	var bars []*domain.PriceBar

	for rows.Next() {
		var b domain.PriceBar

		err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close)
		if err != nil {
			return nil, fmt.Errorf("scan price bar row: %w", err)
		}

		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price bar rows: %w", err)
	}

	return bars, nil
}
