package clickhouse

import (
	"context"
	"fmt"
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// AggregateStore implements storage.AggregateStore using ClickHouse.
type AggregateStore struct {
	conn *Conn
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(conn *Conn) *AggregateStore {
	return &AggregateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

const aggregateColumns = `
	symbol, date, session_type,
	close_time, open_time, next_close_time,
	threshold_min, threshold_time,
	judgment_hours, judgment_label, judgment_hours_actual, judgment_end_time,
	long_entry, short_entry,
	phase1_high, phase1_low,
	phase2_high, phase2_low,
	phase2_breach_long_time, phase2_breach_long_min,
	phase2_breach_short_time, phase2_breach_short_max,
	skip_minutes, reference_open_time
`

// InsertBulk adds multiple records. Fails entire batch on duplicate
// (symbol, open_time, threshold_min, judgment_label).
func (s *AggregateStore) InsertBulk(ctx context.Context, records []*domain.AggregateRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol        string
		openTime      int64
		thresholdMin  int
		judgmentLabel string
	}
	seen := make(map[key]struct{})
	for _, r := range records {
		k := key{r.Symbol, r.OpenTime.UnixNano(), r.ThresholdMin, r.JudgmentLabel}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range records {
		exists, err := s.exists(ctx, r.Symbol, r.OpenTime, r.ThresholdMin, r.JudgmentLabel)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_aggregates (`+aggregateColumns+`)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.Symbol, r.Date, r.SessionType,
			r.CloseTime, r.OpenTime, r.NextCloseTime,
			int32(r.ThresholdMin), r.ThresholdTime,
			r.JudgmentHours, r.JudgmentLabel, r.JudgmentHoursActual, r.JudgmentEndTime,
			r.LongEntry, r.ShortEntry,
			r.Phase1High, r.Phase1Low,
			r.Phase2High, r.Phase2Low,
			r.Phase2BreachLongTime, r.Phase2BreachLongMin,
			r.Phase2BreachShortTime, r.Phase2BreachShortMax,
			int32(r.SkipMinutes), r.ReferenceOpenTime,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByWindow retrieves records for one (threshold, horizon label) partition,
// ordered by open_time ASC.
func (s *AggregateStore) GetByWindow(ctx context.Context, symbol string, thresholdMin int, judgmentLabel string) ([]*domain.AggregateRecord, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM daily_aggregates
		WHERE symbol = ? AND threshold_min = ? AND judgment_label = ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, int32(thresholdMin), judgmentLabel)
	if err != nil {
		return nil, fmt.Errorf("query aggregates by window: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

// GetBySymbol retrieves all records for a symbol, ordered by open_time ASC.
func (s *AggregateStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.AggregateRecord, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM daily_aggregates
		WHERE symbol = ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query aggregates by symbol: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

// exists checks if a record with the given key exists.
func (s *AggregateStore) exists(ctx context.Context, symbol string, openTime time.Time, thresholdMin int, judgmentLabel string) (bool, error) {
	query := `
		SELECT count(*) FROM daily_aggregates
		WHERE symbol = ? AND open_time = ? AND threshold_min = ? AND judgment_label = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, openTime, thresholdMin, judgmentLabel).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanAggregates scans multiple rows.
func scanAggregates(rows chRows) ([]*domain.AggregateRecord, error) {
	var records []*domain.AggregateRecord

	for rows.Next() {
		var r domain.AggregateRecord
		var thresholdMin, skipMinutes int32

		err := rows.Scan(
			&r.Symbol, &r.Date, &r.SessionType,
			&r.CloseTime, &r.OpenTime, &r.NextCloseTime,
			&thresholdMin, &r.ThresholdTime,
			&r.JudgmentHours, &r.JudgmentLabel, &r.JudgmentHoursActual, &r.JudgmentEndTime,
			&r.LongEntry, &r.ShortEntry,
			&r.Phase1High, &r.Phase1Low,
			&r.Phase2High, &r.Phase2Low,
			&r.Phase2BreachLongTime, &r.Phase2BreachLongMin,
			&r.Phase2BreachShortTime, &r.Phase2BreachShortMax,
			&skipMinutes, &r.ReferenceOpenTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}

		r.ThresholdMin = int(thresholdMin)
		r.SkipMinutes = int(skipMinutes)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}

	return records, nil
}
