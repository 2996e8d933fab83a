package reporting

import (
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/judgment"
)

// Report is the rendered summary of one judgment run.
type Report struct {
	GeneratedAt time.Time
	RunID       string
	Symbol      string
	ModelDesc   string

	Stats    judgment.Statistics
	Outcomes []*domain.OutcomeRecord
}

// NewReport assembles a report from a run's outcomes and statistics.
func NewReport(runID, symbol, modelDesc string, outcomes []*domain.OutcomeRecord, stats judgment.Statistics) *Report {
	return &Report{
		GeneratedAt: time.Now(),
		RunID:       runID,
		Symbol:      symbol,
		ModelDesc:   modelDesc,
		Stats:       stats,
		Outcomes:    outcomes,
	}
}
