// Command ingest acquires raw inputs for position reconstruction: it
// backfills event logs from an Ethereum node into PostgreSQL and derives the
// pool price history into ClickHouse. It can also import previously exported
// JSON record files instead of talking to a node.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/eth"
	"uniswap-lp-lab/internal/ingestion"
	"uniswap-lp-lab/internal/observability"
	"uniswap-lp-lab/internal/pipeline"
	"uniswap-lp-lab/internal/position"
	"uniswap-lp-lab/internal/storage"
	chstore "uniswap-lp-lab/internal/storage/clickhouse"
	"uniswap-lp-lab/internal/storage/memory"
	"uniswap-lp-lab/internal/storage/migrations"
	pgstore "uniswap-lp-lab/internal/storage/postgres"
	"uniswap-lp-lab/internal/tickmath"
)

func main() {
	mode := flag.String("mode", "backfill", "Ingestion mode: backfill, live, import, or fixtures")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Ethereum RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", "", "Ethereum WebSocket endpoint (live mode)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	fromBlock := flag.Uint64("from-block", 0, "Start block for backfill")
	toBlock := flag.Uint64("to-block", 0, "End block for backfill")
	logsFile := flag.String("logs-file", "", "JSON event log records file for import mode")
	pricesFile := flag.String("prices-file", "", "JSON price sample records file for import mode")
	pool := flag.String("pool", "", "Pool contract address")
	positionManager := flag.String("position-manager", "", "Position manager contract address")
	quoteToken := flag.String("quote-token", "", "Quote (token0) contract address")
	baseToken := flag.String("base-token", "", "Base (token1) contract address")
	account := flag.String("account", "", "Account whose positions are tracked")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down", sig)
		cancel()
	}()

	cfg := resolvePool(logger, *mode, *pool, *positionManager, *quoteToken, *baseToken, *account)
	metrics := observability.NewMetrics("")

	logStore, sampleStore, closeStores, err := createStores(ctx, *useMemory || *mode == "fixtures", *postgresDSN, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Error creating stores: %v", err)
	}
	defer closeStores()

	switch *mode {
	case "backfill":
		err = runBackfill(ctx, logger, metrics, cfg, *rpcEndpoint, *fromBlock, *toBlock, logStore, sampleStore)
	case "live":
		err = runLive(ctx, logger, metrics, cfg, *rpcEndpoint, *wsEndpoint, logStore)
	case "import":
		err = runImport(ctx, logger, *logsFile, *pricesFile, cfg, logStore, sampleStore)
	case "fixtures":
		err = pipeline.LoadFixtures(ctx, logStore, sampleStore)
	default:
		logger.Fatalf("Unknown mode: %s", *mode)
	}

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Ingestion complete")
}

func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}

// resolvePool builds the pool configuration from flags. Fixture mode supplies
// its own configuration; the other modes require all five addresses.
func resolvePool(logger *log.Logger, mode, pool, positionManager, quoteToken, baseToken, account string) position.PoolConfig {
	if mode == "fixtures" {
		return pipeline.FixturePool()
	}

	for name, v := range map[string]string{
		"--pool":             pool,
		"--position-manager": positionManager,
		"--quote-token":      quoteToken,
		"--base-token":       baseToken,
		"--account":          account,
	} {
		if v == "" {
			logger.Fatalf("%s is required", name)
		}
	}

	return position.PoolConfig{
		Pool:            common.HexToAddress(pool),
		PositionManager: common.HexToAddress(positionManager),
		QuoteToken:      common.HexToAddress(quoteToken),
		BaseToken:       common.HexToAddress(baseToken),
		Account:         common.HexToAddress(account),
	}
}

// createStores connects the event log and price sample stores, running
// migrations when the databases are used.
func createStores(ctx context.Context, useMemory bool, postgresDSN, clickhouseDSN string) (storage.EventLogStore, storage.PriceSampleStore, func(), error) {
	if useMemory {
		return memory.NewEventLogStore(), memory.NewPriceSampleStore(), func() {}, nil
	}
	if postgresDSN == "" || clickhouseDSN == "" {
		return nil, nil, nil, fmt.Errorf("--postgres-dsn and --clickhouse-dsn are required, or pass --use-memory")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		pool.Close()
		conn.Close()
		return nil, nil, nil, err
	}

	closeStores := func() {
		pool.Close()
		conn.Close()
	}
	return pgstore.NewEventLogStore(pool), chstore.NewPriceSampleStore(conn), closeStores, nil
}

// runBackfill pulls logs from the node, stores them, and derives the price
// history from the stored swap events.
func runBackfill(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, cfg position.PoolConfig, rpcEndpoint string, fromBlock, toBlock uint64, logStore storage.EventLogStore, sampleStore storage.PriceSampleStore) error {
	if rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required for backfill")
	}
	if toBlock == 0 {
		return fmt.Errorf("--to-block is required for backfill")
	}

	client := eth.NewHTTPClient(rpcEndpoint, eth.WithTimeout(60*time.Second))

	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		RPC:      client,
		LogStore: logStore,
		Pool:     cfg,
		Logger:   logger,
		Metrics:  metrics,
	})

	result, err := backfiller.BackfillRange(ctx, fromBlock, toBlock)
	if err != nil {
		return err
	}
	logger.Printf("Backfilled %d logs up to block %d", result.LogsStored, result.HighestBlock)

	return derivePrices(ctx, logger, cfg, logStore, sampleStore)
}

// runLive stores logs from a WebSocket subscription until interrupted. Price
// derivation over live data happens at report time from the stored swap logs.
func runLive(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, cfg position.PoolConfig, rpcEndpoint, wsEndpoint string, logStore storage.EventLogStore) error {
	if rpcEndpoint == "" || wsEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint and --ws-endpoint are required for live mode")
	}

	ws, err := eth.NewWSClient(ctx, wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	watcher := ingestion.NewWatcher(ingestion.WatchOptions{
		Subscriber: ws,
		RPC:        eth.NewHTTPClient(rpcEndpoint),
		LogStore:   logStore,
		Pool:       cfg,
		Logger:     logger,
		Metrics:    metrics,
	})

	result, err := watcher.Run(ctx)
	if result != nil {
		logger.Printf("Live capture stored %d logs", result.LogsStored)
	}
	return err
}

// runImport loads exported JSON record files into the stores. The price file
// is optional; without it the history is derived from imported swap logs.
func runImport(ctx context.Context, logger *log.Logger, logsFile, pricesFile string, cfg position.PoolConfig, logStore storage.EventLogStore, sampleStore storage.PriceSampleStore) error {
	if logsFile == "" {
		return fmt.Errorf("--logs-file is required for import")
	}

	f, err := os.Open(logsFile)
	if err != nil {
		return err
	}
	logs, err := ingestion.ParseEventLogRecords(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", logsFile, err)
	}
	if err := logStore.InsertBulk(ctx, logs); err != nil {
		return fmt.Errorf("store event logs: %w", err)
	}
	logger.Printf("Imported %d event logs", len(logs))

	if pricesFile == "" {
		return derivePrices(ctx, logger, cfg, logStore, sampleStore)
	}

	pf, err := os.Open(pricesFile)
	if err != nil {
		return err
	}
	samples, err := ingestion.ParsePriceSampleRecords(pf)
	pf.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", pricesFile, err)
	}
	if err := sampleStore.InsertBulk(ctx, samples); err != nil {
		return fmt.Errorf("store price samples: %w", err)
	}
	logger.Printf("Imported %d price samples", len(samples))
	return nil
}

func derivePrices(ctx context.Context, logger *log.Logger, cfg position.PoolConfig, logStore storage.EventLogStore, sampleStore storage.PriceSampleStore) error {
	logs, err := logStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load stored logs: %w", err)
	}

	samples, err := ingestion.DerivePriceSamples(logs, cfg, tickmath.NewConverter())
	if err != nil {
		return fmt.Errorf("derive price samples: %w", err)
	}
	if len(samples) == 0 {
		logger.Println("No swap events found, price history unchanged")
		return nil
	}

	if err := sampleStore.InsertBulk(ctx, samples); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Println("Price history already present, skipping")
			return nil
		}
		return fmt.Errorf("store price samples: %w", err)
	}
	logger.Printf("Derived %d price samples from swap events", len(samples))
	return nil
}
