package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"margin-liq-lab/internal/aggregate"
	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/ingest"
	"margin-liq-lab/internal/storage"
	chstore "margin-liq-lab/internal/storage/clickhouse"
	"margin-liq-lab/internal/storage/memory"
	"margin-liq-lab/internal/storage/migrations"
	pgstore "margin-liq-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	thresholds := flag.String("thresholds", "", "Comma-separated Phase-1 minutes (default 1-5)")
	horizons := flag.String("horizons", "", "Comma-separated judgment hours plus optional 'close' (default 1-24,close)")
	openOffsetMin := flag.Int("open-offset-min", 1, "Minutes past open where reference selection starts")
	openMaxSkip := flag.Int("open-max-skip", 3, "Degenerate opening bars to skip at most")
	priceTick := flag.Float64("price-tick", 0.01, "Minimum range of a non-degenerate bar")

	// Direct CSV input (bypasses storage reads)
	barsPath := flag.String("bars", "", "Minute bar CSV path (reads storage when empty)")
	sessionsPath := flag.String("sessions", "", "Market session CSV path (reads storage when empty)")
	timezone := flag.String("timezone", ingest.DefaultLocationName, "Zone for naive CSV timestamps")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (sessions)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (bars, aggregates)")
	migrate := flag.Bool("migrate", false, "Apply schema migrations first")
	persist := flag.Bool("persist", false, "Persist aggregate rows to storage")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[aggregate] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}

	fromCSV := *barsPath != "" || *sessionsPath != ""
	if fromCSV && (*barsPath == "" || *sessionsPath == "") {
		logger.Fatal("--bars and --sessions must be given together")
	}

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

	var bars []*domain.PriceBar
	var sessions []*domain.MarketSession
	var aggStore storage.AggregateStore = memory.NewAggregateStore()

	if fromCSV {
		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			logger.Fatalf("invalid timezone %s: %v", *timezone, err)
		}
		loader := ingest.NewLoader(ingest.LoaderOptions{Location: loc, Logger: logger})

		barResult, err := loader.LoadBars(*barsPath, *symbol)
		if err != nil {
			logger.Fatalf("load bars: %v", err)
		}
		bars = barResult.Bars
		if len(bars) == 0 {
			logger.Fatal("no bars loaded")
		}

		sessionResult, err := loader.LoadSessions(*sessionsPath, *symbol, bars[len(bars)-1].Timestamp)
		if err != nil {
			logger.Fatalf("load sessions: %v", err)
		}
		sessions = sessionResult.Sessions
	}

	if !fromCSV || *persist {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required (bars and aggregates)")
		}

		var conn *chstore.Conn
		var err error
		if *migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, *clickhouseDSN)
		}
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		aggStore = chstore.NewAggregateStore(conn)

		if !fromCSV {
			if *postgresDSN == "" {
				logger.Fatal("--postgres-dsn is required when reading sessions from storage")
			}
			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			defer pool.Close()

			bars, err = chstore.NewPriceBarStore(conn).GetBySymbol(ctx, *symbol)
			if err != nil {
				logger.Fatalf("load bars from storage: %v", err)
			}
			sessions, err = pgstore.NewSessionStore(pool).GetBySymbol(ctx, *symbol)
			if err != nil {
				logger.Fatalf("load sessions from storage: %v", err)
			}
		}
	}

	if len(bars) == 0 || len(sessions) == 0 {
		logger.Fatalf("nothing to aggregate: bars=%d sessions=%d", len(bars), len(sessions))
	}

	builder := aggregate.NewBuilder()
	builder.OpenBarOffsetMin = *openOffsetMin
	builder.OpenBarMaxSkip = *openMaxSkip
	builder.PriceTick = *priceTick
	if *thresholds != "" {
		parsed, err := parseThresholds(*thresholds)
		if err != nil {
			logger.Fatalf("invalid --thresholds: %v", err)
		}
		builder.Thresholds = parsed
	}
	if *horizons != "" {
		parsed, err := parseHorizons(*horizons)
		if err != nil {
			logger.Fatalf("invalid --horizons: %v", err)
		}
		builder.Horizons = parsed
	}

	logger.Printf("Building aggregates: symbol=%s bars=%d sessions=%d thresholds=%d horizons=%d",
		*symbol, len(bars), len(sessions), len(builder.Thresholds), len(builder.Horizons))

	records := builder.Build(bars, sessions)
	logger.Printf("Built %d aggregate rows", len(records))

	if *persist {
		if err := aggStore.InsertBulk(ctx, records); err != nil {
			logger.Fatalf("insert aggregates: %v", err)
		}
		logger.Printf("Persisted %d aggregate rows", len(records))
	}
}

// parseThresholds parses a comma-separated minute list.
func parseThresholds(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseHorizons parses comma-separated hour counts; "close" maps to the
// until-next-close horizon.
func parseHorizons(raw string) ([]*float64, error) {
	var out []*float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if strings.EqualFold(part, domain.JudgmentLabelClose) {
			out = append(out, nil)
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(part, "h"), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, nil
}
