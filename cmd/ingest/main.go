package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"margin-liq-lab/internal/ingest"
	"margin-liq-lab/internal/storage"
	chstore "margin-liq-lab/internal/storage/clickhouse"
	"margin-liq-lab/internal/storage/memory"
	"margin-liq-lab/internal/storage/migrations"
	pgstore "margin-liq-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	barsPath := flag.String("bars", "", "Minute bar CSV path (required)")
	sessionsPath := flag.String("sessions", "", "Market session CSV path (required)")
	symbol := flag.String("symbol", "", "Instrument symbol, e.g. XAUUSD (required)")
	timezone := flag.String("timezone", ingest.DefaultLocationName, "Zone for naive CSV timestamps")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (sessions)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (bars)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	migrate := flag.Bool("migrate", false, "Apply schema migrations before ingesting")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	// Validate required flags
	if *barsPath == "" {
		logger.Fatal("--bars is required")
	}
	if *sessionsPath == "" {
		logger.Fatal("--sessions is required")
	}
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		logger.Fatalf("invalid timezone %s: %v", *timezone, err)
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

	// Create stores
	var barStore storage.PriceBarStore = memory.NewPriceBarStore()
	var sessionStore storage.SessionStore = memory.NewSessionStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (sessions)")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory (bars)")
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
		sessionStore = pgstore.NewSessionStore(pool)

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

		barStore = chstore.NewPriceBarStore(conn)
	}

	loader := ingest.NewLoader(ingest.LoaderOptions{Location: loc, Logger: logger})

	// Load bars
	barResult, err := loader.LoadBars(*barsPath, *symbol)
	if err != nil {
		logger.Fatalf("load bars: %v", err)
	}
	logger.Printf("Loaded %d bars (%d rows, %d duplicates dropped)",
		len(barResult.Bars), barResult.Rows, barResult.DuplicatesDropped)
	if len(barResult.Bars) == 0 {
		logger.Fatal("no bars loaded")
	}

	// Load sessions; the final session's next close comes from the last bar
	lastBarTime := barResult.Bars[len(barResult.Bars)-1].Timestamp
	sessionResult, err := loader.LoadSessions(*sessionsPath, *symbol, lastBarTime)
	if err != nil {
		logger.Fatalf("load sessions: %v", err)
	}
	logger.Printf("Loaded %d sessions (%d rows, %d incomplete dropped, backfilled=%v)",
		len(sessionResult.Sessions), sessionResult.Rows,
		sessionResult.IncompleteDropped, sessionResult.BackfilledNextClose)

	// Persist
	if err := barStore.InsertBulk(ctx, barResult.Bars); err != nil {
		logger.Fatalf("insert bars: %v", err)
	}
	if err := sessionStore.InsertBulk(ctx, sessionResult.Sessions); err != nil {
		logger.Fatalf("insert sessions: %v", err)
	}

	logger.Printf("Ingest complete: symbol=%s bars=%d sessions=%d",
		*symbol, len(barResult.Bars), len(sessionResult.Sessions))
}
