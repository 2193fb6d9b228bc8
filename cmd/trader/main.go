// Package main runs the autonomous trading engine:
// - Scan (scheduled): trending tokens → score → risk gate → buy
// - Exit check (scheduled): SL/TP evaluation → close → learn
// - Status (scheduled): win rate / PnL / exposure report
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/engine"
	"solana-trader/internal/learning"
	"solana-trader/internal/market"
	"solana-trader/internal/observability"
	"solana-trader/internal/position"
	"solana-trader/internal/reporting"
	"solana-trader/internal/scheduler"
	"solana-trader/internal/storage"
	chstore "solana-trader/internal/storage/clickhouse"
	"solana-trader/internal/storage/memory"
	"solana-trader/internal/storage/migrations"
	pgstore "solana-trader/internal/storage/postgres"
)

// allStores holds the storage implementations behind the engine.
type allStores struct {
	positionStore storage.PositionStore
	tradeStore    storage.TradeRecordStore
	memoryStore   storage.MemoryEntryStore
	archiveStore  storage.TradeArchiveStore // nil without clickhouse
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint (holdings/balance)")
	dexURL := flag.String("dexscreener-url", envOr("DEXSCREENER_URL", "https://api.dexscreener.com"), "DexScreener API base URL")
	jupiterURL := flag.String("jupiter-url", envOr("JUPITER_URL", "https://lite-api.jup.ag"), "Jupiter API base URL")
	streamEndpoint := flag.String("price-stream-endpoint", os.Getenv("PRICE_STREAM_ENDPOINT"), "WebSocket price stream endpoint (optional; REST fallback otherwise)")
	webhookURL := flag.String("webhook-url", os.Getenv("WEBHOOK_URL"), "Notification webhook URL (optional; logs otherwise)")
	walletPubkey := flag.String("wallet", os.Getenv("WALLET_PUBKEY"), "Wallet public key (base58)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional trade archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	baseSize := flag.Float64("base-size", 0.05, "Base trade size in SOL")
	maxPosition := flag.Float64("max-position-size", 0.1, "Max single position size in SOL")
	maxPortfolio := flag.Float64("max-portfolio-exposure", 0.5, "Max total exposure across open positions in SOL")
	minScore := flag.Int("min-trend-score", 65, "Minimum composite trend score for a buy")
	minBuyRatio := flag.Float64("min-buy-ratio", 0.60, "Minimum buy ratio (fraction) for a buy")
	maxImpact := flag.Float64("max-price-impact", 5.0, "Max quote price impact, percent")
	maxSlippage := flag.Int("max-slippage-bps", 300, "Slippage ceiling in basis points")
	cooldown := flag.Duration("cooldown", 30*time.Minute, "Minimum time between trades on the same token")
	stopLossPct := flag.Float64("stop-loss-pct", 20, "Default stop-loss distance, percent below entry")
	takeProfitPct := flag.Float64("take-profit-pct", 50, "Default take-profit distance, percent above entry")
	maxAutoBuys := flag.Int("max-auto-buys", 3, "Max automatic buys per scan cycle")
	dryRun := flag.Bool("dry-run", envOr("DRY_RUN", "true") == "true", "Simulate execution; positions still tracked")

	scanInterval := flag.Duration("scan-interval", 5*time.Minute, "Scan cycle interval")
	exitInterval := flag.Duration("exit-interval", 1*time.Minute, "Exit check interval")
	statusInterval := flag.Duration("status-interval", 30*time.Minute, "Status report interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[trader] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if !*dryRun && *walletPubkey == "" {
		logger.Fatal("--wallet is required for live trading")
	}
	if *walletPubkey != "" {
		if err := domain.ValidateWalletAddress(*walletPubkey); err != nil {
			logger.Fatalf("Invalid wallet address: %v", err)
		}
	}

	limits := domain.Limits{
		MaxPositionSOL:     *maxPosition,
		MaxPortfolioSOL:    *maxPortfolio,
		MinTrendScore:      *minScore,
		MinBuyRatio:        *minBuyRatio,
		MinLiquidityUSD:    50_000,
		MinVolume24hUSD:    100_000,
		MaxPriceImpactPct:  *maxImpact,
		MaxSlippageBps:     *maxSlippage,
		Cooldown:           *cooldown,
		StopLossPct:        *stopLossPct,
		TakeProfitPct:      *takeProfitPct,
		MaxAutoBuysPerScan: *maxAutoBuys,
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Market collaborators
	dex := market.NewDexScreenerClient(*dexURL)
	jupiter := market.NewJupiterClient(*jupiterURL, market.WithJupiterDryRun(*dryRun))

	var holdings market.HoldingsProvider
	if *rpcEndpoint != "" {
		holdings = market.NewRPCClient(*rpcEndpoint)
	}

	var notifier market.Notifier
	if *webhookURL != "" {
		notifier = market.NewWebhookNotifier(*webhookURL, nil)
	} else {
		notifier = market.NewLogNotifier(log.New(os.Stdout, "[report] ", log.LstdFlags))
	}

	manager := position.NewManager(position.Options{
		Positions: stores.positionStore,
		Trades:    stores.tradeStore,
		Archive:   stores.archiveStore,
		Logger:    log.New(os.Stdout, "[position] ", log.LstdFlags|log.Lshortfile),
	})
	learner := learning.NewLearner(learning.Options{
		Store:  stores.memoryStore,
		Logger: log.New(os.Stdout, "[learning] ", log.LstdFlags|log.Lshortfile),
	})

	eng := engine.New(engine.Options{
		Trends:       dex,
		Prices:       dex,
		Quoter:       jupiter,
		Executor:     jupiter,
		Holdings:     holdings,
		Manager:      manager,
		Learner:      learner,
		Memory:       stores.memoryStore,
		Trades:       stores.tradeStore,
		Archive:      stores.archiveStore,
		Limits:       limits,
		WalletPubkey: *walletPubkey,
		BaseSizeSOL:  *baseSize,
		DryRun:       *dryRun,
		Logger:       log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile),
	})

	// Live price cache, fed by the stream when one is configured. The exit
	// job falls back to REST prices when the cache is nil.
	var cache *priceCache
	if *streamEndpoint != "" {
		stream, err := market.NewPriceStream(ctx, *streamEndpoint, nil)
		if err != nil {
			logger.Fatalf("Failed to connect price stream: %v", err)
		}
		defer stream.Close()
		cache = newPriceCache()
		go cache.consume(stream.Updates())
		go trackOpenTokens(ctx, eng, stream, *exitInterval, logger)
	}

	notify := func(message string) {
		if err := notifier.Notify(ctx, message); err != nil && ctx.Err() == nil {
			logger.Printf("Notification delivery failed: %v", err)
		}
	}

	// Schedule the three cycles
	sched := scheduler.New(logger)
	sched.Add(scheduler.Job{
		Name:       "scan",
		Interval:   *scanInterval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			start := time.Now()
			report, err := eng.Scan(ctx)
			if err != nil {
				observability.RecordScan("error", time.Since(start).Seconds())
				return err
			}
			observability.RecordScan("success", time.Since(start).Seconds())
			observability.MarkScanRun(float64(time.Now().Unix()))
			for _, cand := range report.Candidates {
				observability.RecordCandidate(string(cand.Action), string(cand.DenyReason))
			}
			notify(reporting.FormatScan(report))
			return nil
		},
	})
	sched.Add(scheduler.Job{
		Name:     "check-exits",
		Interval: *exitInterval,
		Run: func(ctx context.Context) error {
			report, err := eng.CheckExits(ctx, cache.snapshot())
			if err != nil {
				return err
			}
			observability.MarkExitRun(float64(time.Now().Unix()))
			for _, result := range report.Results {
				if result.Trade != nil {
					observability.RecordExit(result.Trade.ExitReason, result.Trade.PnLPct)
					for _, lesson := range result.Lessons {
						observability.RecordMemoryWrite(string(lesson.Kind))
					}
				}
			}
			if report.Closed > 0 {
				notify(reporting.FormatExits(report))
			}
			return nil
		},
	})
	sched.Add(scheduler.Job{
		Name:     "status",
		Interval: *statusInterval,
		Run: func(ctx context.Context) error {
			report, err := eng.Status(ctx)
			if err != nil {
				return err
			}
			observability.UpdatePortfolio(len(report.OpenPositions), report.ExposureSOL)
			notify(reporting.FormatStatus(report))
			return nil
		},
	})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	go startHTTPServer(*metricsAddr, sched, eng, logger)

	logger.Printf("Starting trader (dry-run: %v, scan: %v, exits: %v, status: %v)",
		*dryRun, *scanInterval, *exitInterval, *statusInterval)
	sched.Start(ctx)
	sched.Wait()

	logger.Println("Shutdown complete")
}

// createStores creates the stores and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			positionStore: memory.NewPositionStore(),
			tradeStore:    memory.NewTradeRecordStore(),
			memoryStore:   memory.NewMemoryEntryStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL (source of truth)
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		positionStore: pgstore.NewPositionStore(pool),
		tradeStore:    pgstore.NewTradeRecordStore(pool),
		memoryStore:   pgstore.NewMemoryEntryStore(pool),
	}

	// ClickHouse (optional analytics archive)
	var chConn *chstore.Conn
	if clickhouseDSN != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.archiveStore = chstore.NewTradeArchiveStore(chConn)
	} else {
		logger.Println("No clickhouse DSN, trade archive disabled")
	}

	cleanup := func() {
		if chConn != nil {
			chConn.Close()
		}
		pool.Close()
	}
	return stores, cleanup, nil
}

// priceCache holds the latest streamed price per token.
type priceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func newPriceCache() *priceCache {
	return &priceCache{prices: make(map[string]float64)}
}

func (c *priceCache) consume(updates <-chan market.PriceUpdate) {
	for update := range updates {
		c.mu.Lock()
		c.prices[update.TokenAddress] = update.PriceUSD
		c.mu.Unlock()
	}
}

// snapshot returns a copy of the cache, or nil on a nil cache so the exit
// job falls back to REST prices.
func (c *priceCache) snapshot() map[string]float64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	prices := make(map[string]float64, len(c.prices))
	for token, price := range c.prices {
		prices[token] = price
	}
	return prices
}

// trackOpenTokens keeps the stream subscribed to every open position's token.
func trackOpenTokens(ctx context.Context, eng *engine.Engine, stream *market.PriceStream, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	subscribed := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := eng.Status(ctx)
			if err != nil {
				logger.Printf("Stream subscription refresh failed: %v", err)
				continue
			}

			current := make(map[string]bool, len(status.OpenPositions))
			for _, pos := range status.OpenPositions {
				current[pos.TokenAddress] = true
				if !subscribed[pos.TokenAddress] {
					if err := stream.Subscribe(pos.TokenAddress); err != nil {
						logger.Printf("Subscribe %s failed: %v", pos.TokenAddress, err)
						continue
					}
					subscribed[pos.TokenAddress] = true
				}
			}
			for token := range subscribed {
				if !current[token] {
					if err := stream.Unsubscribe(token); err != nil {
						logger.Printf("Unsubscribe %s failed: %v", token, err)
						continue
					}
					delete(subscribed, token)
				}
			}
		}
	}
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func startHTTPServer(addr string, sched *scheduler.Scheduler, eng *engine.Engine, logger *log.Logger) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		report, err := eng.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := struct {
			Status        string                `json:"status"`
			DryRun        bool                  `json:"dry_run"`
			OpenPositions int                   `json:"open_positions"`
			ExposureSOL   float64               `json:"exposure_sol"`
			Summary       *domain.TradeSummary  `json:"summary"`
			Jobs          []scheduler.JobStatus `json:"jobs"`
		}{
			Status:        "running",
			DryRun:        report.DryRun,
			OpenPositions: len(report.OpenPositions),
			ExposureSOL:   report.ExposureSOL,
			Summary:       report.Summary,
			Jobs:          sched.Status(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
