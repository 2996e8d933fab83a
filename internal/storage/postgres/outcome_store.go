package postgres

import (
	"context"
	"fmt"
	"math"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *OutcomeStore) InsertBulk(ctx context.Context, records []*domain.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO outcome_records (
			run_id, symbol, date, session_type,
			judgment_label, judgment_hours_actual,
			side, outcome, detail,
			entry_price, liquidation_price, liquidation_time,
			distance_from_entry, breach_time, phase2_low
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15
		)
	`

	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.RunID, r.Symbol, r.Date, r.SessionType,
			r.JudgmentLabel, r.JudgmentHoursActual,
			string(r.Side), string(r.Outcome), r.Detail,
			r.EntryPrice, r.LiquidationPrice, r.LiquidationTime,
			r.DistanceFromEntry, r.BreachTime, nullableFloat(r.Phase2Low),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert outcome record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all records for a judgment run, ordered by date ASC.
func (s *OutcomeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.OutcomeRecord, error) {
	query := `
		SELECT run_id, symbol, date, session_type,
		       judgment_label, judgment_hours_actual,
		       side, outcome, detail,
		       entry_price, liquidation_price, liquidation_time,
		       distance_from_entry, breach_time, phase2_low
		FROM outcome_records
		WHERE run_id = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes by run id: %w", err)
	}
	defer rows.Close()

	var records []*domain.OutcomeRecord
	for rows.Next() {
		var r domain.OutcomeRecord
		var side, outcome string
		var phase2Low *float64

		err := rows.Scan(
			&r.RunID, &r.Symbol, &r.Date, &r.SessionType,
			&r.JudgmentLabel, &r.JudgmentHoursActual,
			&side, &outcome, &r.Detail,
			&r.EntryPrice, &r.LiquidationPrice, &r.LiquidationTime,
			&r.DistanceFromEntry, &r.BreachTime, &phase2Low,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outcome record row: %w", err)
		}

		r.Side = domain.PositionSide(side)
		r.Outcome = domain.Outcome(outcome)
		if phase2Low != nil {
			r.Phase2Low = *phase2Low
		} else {
			r.Phase2Low = math.NaN()
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome record rows: %w", err)
	}

	return records, nil
}

// nullableFloat maps NaN to SQL NULL.
func nullableFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
