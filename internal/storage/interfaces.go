package storage

import (
	"context"
	"time"

	"margin-liq-lab/internal/domain"
)

// PriceBarStore provides access to price_bars storage.
type PriceBarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, timestamp).
	InsertBulk(ctx context.Context, bars []*domain.PriceBar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceBar, error)

	// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.PriceBar, error)
}

// SessionStore provides access to market_sessions storage.
type SessionStore interface {
	// InsertBulk adds multiple sessions. Fails entire batch on duplicate (symbol, close_time).
	InsertBulk(ctx context.Context, sessions []*domain.MarketSession) error

	// GetBySymbol retrieves all sessions for a symbol, ordered by close_time ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.MarketSession, error)
}

// AggregateStore provides access to daily_aggregates storage.
type AggregateStore interface {
	// InsertBulk adds multiple records. Fails entire batch on duplicate
	// (symbol, open_time, threshold_min, judgment_label).
	InsertBulk(ctx context.Context, records []*domain.AggregateRecord) error

	// GetByWindow retrieves records for one (threshold, horizon label)
	// partition, ordered by open_time ASC.
	GetByWindow(ctx context.Context, symbol string, thresholdMin int, judgmentLabel string) ([]*domain.AggregateRecord, error)

	// GetBySymbol retrieves all records for a symbol, ordered by open_time ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.AggregateRecord, error)
}

// OutcomeStore provides access to outcome_records storage.
type OutcomeStore interface {
	// InsertBulk adds multiple records. Fails entire batch on duplicate
	// (run_id, symbol, date, judgment_label).
	InsertBulk(ctx context.Context, records []*domain.OutcomeRecord) error

	// GetByRunID retrieves all records for a judgment run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.OutcomeRecord, error)
}
