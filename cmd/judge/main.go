package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/judgment"
	"margin-liq-lab/internal/liquidation"
	"margin-liq-lab/internal/reporting"
	"margin-liq-lab/internal/storage"
	chstore "margin-liq-lab/internal/storage/clickhouse"
	"margin-liq-lab/internal/storage/migrations"
	pgstore "margin-liq-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	configPath := flag.String("config", "", "Exchange liquidation config YAML (defaults apply when missing)")

	// Position parameters
	leverage := flag.Float64("leverage", 500, "Position leverage")
	margin := flag.Float64("margin", 100, "Position margin")
	additionalMargin := flag.Float64("additional-margin", 0, "Additional account margin")

	// Judgment window
	thresholdMin := flag.Int("threshold-min", 3, "Phase-1 length in minutes")
	judgmentHours := flag.String("judgment-hours", domain.JudgmentLabelClose, "Judgment horizon in hours, or 'close'")
	recoveryPct := flag.Float64("recovery-threshold-pct", judgment.DefaultRecoveryThresholdPct,
		"Entry-breach depth (percent) still counted as recovered")
	refineTimes := flag.Bool("refine-liquidation-times", true, "Scan bars for exact liquidation minutes")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (outcomes)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (aggregates, bars)")
	migrate := flag.Bool("migrate", false, "Apply schema migrations first")

	// Output
	outputJSON := flag.Bool("json", false, "Output statistics as JSON")
	csvPath := flag.String("csv", "", "Write per-day outcomes CSV to this path")
	persist := flag.Bool("persist", false, "Persist outcome records to storage")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[judge] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required (aggregates)")
	}

	horizon, err := parseHorizon(*judgmentHours)
	if err != nil {
		logger.Fatalf("invalid --judgment-hours: %v", err)
	}

	// Build the liquidation model; an unknown model type is fatal here,
	// a missing config file is not.
	cfg := liquidation.DefaultConfig()
	if *configPath != "" {
		cfg = liquidation.LoadConfig(*configPath, logger)
	}
	model, err := liquidation.FromConfig(cfg)
	if err != nil {
		logger.Fatalf("build liquidation model: %v (config: %s)", err, cfg)
	}
	logger.Printf("Model: %s", cfg)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// ClickHouse for aggregates and bar refinement
	var conn *chstore.Conn
	if *migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, *clickhouseDSN)
	}
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer conn.Close()

	label := horizonLabel(horizon)
	records, err := chstore.NewAggregateStore(conn).GetByWindow(ctx, *symbol, *thresholdMin, label)
	if err != nil {
		logger.Fatalf("load aggregates: %v", err)
	}
	if len(records) == 0 {
		logger.Fatalf("no aggregate rows for symbol=%s threshold=%dmin horizon=%s", *symbol, *thresholdMin, label)
	}

	var bars []*domain.PriceBar
	if *refineTimes {
		bars, err = chstore.NewPriceBarStore(conn).GetBySymbol(ctx, *symbol)
		if err != nil {
			logger.Fatalf("load bars: %v", err)
		}
	}

	judge := judgment.NewJudge(judgment.JudgeOptions{
		Model:                model,
		Leverage:             *leverage,
		PositionMargin:       *margin,
		AdditionalMargin:     *additionalMargin,
		ThresholdMin:         *thresholdMin,
		JudgmentHours:        horizon,
		RecoveryThresholdPct: *recoveryPct,
		Bars:                 bars,
	})

	logger.Printf("Judging %d sessions: run=%s", len(records), judge.RunID())

	batch := judgment.NewBatchJudge(judge)
	batch.Progress = func(done, total int) {
		logger.Printf("judged %d/%d", done, total)
	}
	outcomes := batch.JudgeAll(records)
	stats := judgment.Summarize(outcomes)

	// Persist outcomes
	if *persist {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required with --persist (outcomes)")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("postgres migrations: %v", err)
			}
		}

		if err := pgstore.NewOutcomeStore(pool).InsertBulk(ctx, outcomes); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				logger.Fatalf("run %s already persisted", judge.RunID())
			}
			logger.Fatalf("insert outcomes: %v", err)
		}
		logger.Printf("Persisted %d outcome records", len(outcomes))
	}

	// Write per-day CSV
	if *csvPath != "" {
		csv := reporting.RenderOutcomesCSV(outcomes)
		if err := os.WriteFile(*csvPath, []byte(csv), 0o644); err != nil {
			logger.Fatalf("write csv: %v", err)
		}
		logger.Printf("Wrote %s", *csvPath)
	}

	// Output
	if *outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return
	}

	report := reporting.NewReport(judge.RunID(), *symbol, cfg.String(), outcomes, stats)
	fmt.Print(reporting.RenderMarkdown(report))
}

// parseHorizon maps "close" to nil and "22" / "22h" to hours.
func parseHorizon(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, domain.JudgmentLabelClose) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "h"), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func horizonLabel(horizon *float64) string {
	if horizon == nil {
		return domain.JudgmentLabelClose
	}
	return strconv.FormatFloat(*horizon, 'f', -1, 64) + "h"
}
