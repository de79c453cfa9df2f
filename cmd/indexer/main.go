package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/selendra/selendra-explorer-sub000/internal/alert"
	"github.com/selendra/selendra-explorer-sub000/internal/chain/evm"
	"github.com/selendra/selendra-explorer-sub000/internal/chain/ratelimit"
	"github.com/selendra/selendra-explorer-sub000/internal/chain/substrate/rpc"
	"github.com/selendra/selendra-explorer-sub000/internal/circuitbreaker"
	"github.com/selendra/selendra-explorer-sub000/internal/config"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/evm/classifier"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline/evmblock"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline/processor"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline/substrateblock"
	"github.com/selendra/selendra-explorer-sub000/internal/store"
	"github.com/selendra/selendra-explorer-sub000/internal/store/memory"
	"github.com/selendra/selendra-explorer-sub000/internal/store/postgres"
	redispkg "github.com/selendra/selendra-explorer-sub000/internal/store/redis"
	"github.com/selendra/selendra-explorer-sub000/internal/substrate/extrinsic"
	"github.com/selendra/selendra-explorer-sub000/internal/tracing"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "selendra-indexer"

	// dbPoolAlertRatio is the in-use share of MaxOpenConnections above which
	// a DB_POOL alert is raised.
	dbPoolAlertRatio = 0.8

	healthShutdownTimeout = 5 * time.Second
)

// streamBackend is a publisher that owns a connection.
type streamBackend interface {
	redispkg.Publisher
	Close() error
}

var newStreamFactory = func(redisURL string) (streamBackend, error) { return redispkg.NewStream(redisURL) }

type dbStatsProvider interface {
	Stats() sql.DBStats
}

type dbPoolStatsGauges struct {
	open         prometheus.Gauge
	inUse        prometheus.Gauge
	idle         prometheus.Gauge
	waitCount    prometheus.Gauge
	waitDuration prometheus.Gauge
}

// chainRunner is one configured processor and the resources it owns.
type chainRunner struct {
	chain     model.Chain
	processor *processor.Processor
	closeFn   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	logger.Info("starting selendra indexer",
		"chains", strings.Join(cfg.Indexer.Chains, ","),
		"network", cfg.Indexer.Network,
		"store_backend", cfg.Store.Backend,
		"db_url", maskCredentials(cfg.DB.URL),
		"evm_rpc", cfg.EVM.RPCURL,
		"substrate_rpc", cfg.Substrate.RPCURL,
		"start_block", cfg.Indexer.StartBlock,
		"batch_size", cfg.Indexer.BatchSize,
		"continuous_sync", cfg.Indexer.ContinuousSync,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("indexer shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tracingCfg := tracing.Config{
		ServiceName: serviceName,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Network:     cfg.Indexer.Network,
		Chains:      cfg.Indexer.Chains,
	}
	if cfg.Tracing.Enabled {
		tracingCfg.Endpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	alerter := alert.New(cfg.Alert.SlackWebhookURL, cfg.Alert.WebhookURL, cfg.Alert.Cooldown(), logger)

	st, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	st, closeStream, err := attachNotifier(st, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStream()

	board := pipeline.NewHealthBoard()
	runners, err := buildRunners(ctx, cfg, st, alerter, board, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, r := range runners {
			if r.closeFn != nil {
				r.closeFn()
			}
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gCtx)
	defer stopServing()

	g.Go(func() error {
		return runHealthServer(serveCtx, cfg.Server.HealthPort, board, logger)
	})

	if db != nil {
		startDBPoolStatsPump(serveCtx, db.DB, cfg.DB.PoolStatsIntervalMS, alerter, logger)
	}

	// A bounded run ends the health server once every processor is done.
	g.Go(func() error {
		defer stopServing()
		return runProcessors(gCtx, runners, cfg, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore returns the configured backend. db is nil for the memory backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, *postgres.DB, error) {
	if cfg.Store.Backend == config.StoreBackendMemory {
		logger.Warn("using in-memory store; indexed data is lost on exit")
		return memory.New(), nil, nil
	}

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("connected to database", "db_url", maskCredentials(cfg.DB.URL))
	return postgres.NewStore(db), db, nil
}

// attachNotifier wraps st so indexed blocks are announced on a Redis stream
// when REDIS_STREAM_ENABLED is set.
func attachNotifier(st *store.Store, cfg *config.Config, logger *slog.Logger) (*store.Store, func(), error) {
	if !cfg.Redis.StreamEnabled {
		return st, func() {}, nil
	}

	redisURL := strings.TrimSpace(cfg.Redis.URL)
	if redisURL == "" {
		return nil, nil, fmt.Errorf("initialize redis stream: redis URL is empty")
	}
	backend, err := newStreamFactory(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize redis stream: %w", err)
	}
	if backend == nil {
		return nil, nil, fmt.Errorf("initialize redis stream: backend is nil")
	}

	logger.Info("redis stream notifications enabled",
		"redis_url", maskCredentials(redisURL),
		"stream", cfg.Redis.Stream,
	)
	closeFn := func() {
		if err := backend.Close(); err != nil {
			logger.Warn("redis stream close error", "error", err)
		}
	}
	return redispkg.WrapStore(st, backend, cfg.Redis.Stream, logger), closeFn, nil
}

func buildRunners(ctx context.Context, cfg *config.Config, st *store.Store, alerter alert.Alerter, board *pipeline.HealthBoard, logger *slog.Logger) ([]chainRunner, error) {
	network := model.Network(cfg.Indexer.Network)
	var runners []chainRunner

	if cfg.Indexer.Enabled(model.ChainEVM) {
		client, err := evm.Dial(ctx, cfg.EVM.RPCURL, cfg.EVM.RPS, logger)
		if err != nil {
			return nil, err
		}
		accounts := classifier.New(client, logger,
			classifier.WithCache(cfg.Classifier.CacheSize, classifier.DefaultCacheTTL),
		)
		handler := evmblock.New(client, accounts, st, network, logger)
		runners = append(runners, chainRunner{
			chain:     model.ChainEVM,
			processor: newProcessor(handler, cfg.EVM, cfg, st, alerter, board, logger),
			closeFn:   client.Close,
		})
	}

	if cfg.Indexer.Enabled(model.ChainSubstrate) {
		rps := cfg.Substrate.RPS
		client := rpc.NewClient(cfg.Substrate.RPCURL, logger,
			rpc.WithLimiter(ratelimit.NewLimiter(rps, burstFor(rps), model.ChainSubstrate.String())),
			rpc.WithBreaker(circuitbreaker.New(circuitbreaker.Config{
				Name:      model.ChainSubstrate.String(),
				IsFailure: func(err error) bool { return !errors.Is(err, model.ErrNotFound) },
				OnStateChange: func(from, to circuitbreaker.State) {
					logger.Warn("substrate rpc circuit breaker state changed", "from", from.String(), "to", to.String())
				},
			})),
		)
		handler := substrateblock.New(client, extrinsic.NewDecoder(logger), st, network, logger)
		runners = append(runners, chainRunner{
			chain:     model.ChainSubstrate,
			processor: newProcessor(handler, cfg.Substrate, cfg, st, alerter, board, logger),
		})
	}

	if len(runners) == 0 {
		return nil, fmt.Errorf("no chains enabled")
	}
	return runners, nil
}

func newProcessor(handler processor.BlockHandler, chainCfg config.ChainConfig, cfg *config.Config, st *store.Store, alerter alert.Alerter, board *pipeline.HealthBoard, logger *slog.Logger) *processor.Processor {
	network := model.Network(cfg.Indexer.Network)
	health := pipeline.NewPipelineHealth(handler.Chain(), network)
	board.Register(health)
	return processor.New(handler, logger,
		processor.WithNetwork(network),
		processor.WithConcurrency(cfg.Indexer.Concurrency),
		processor.WithBlockTime(chainCfg.BlockTime()),
		processor.WithCursorRepository(st.Cursors),
		processor.WithHealth(health),
		processor.WithAlerter(alerter),
	)
}

// runProcessors drives every runner to completion, or until ctx ends in
// continuous mode.
func runProcessors(ctx context.Context, runners []chainRunner, cfg *config.Config, logger *slog.Logger) error {
	g, gCtx := errgroup.WithContext(ctx)
	processing := cfg.Indexer.Processing()
	for _, r := range runners {
		r := r
		g.Go(func() error {
			if cfg.Indexer.ContinuousSync {
				return r.processor.StartContinuousSync(gCtx, processing)
			}
			result, err := r.processor.StartProcessing(gCtx, processing)
			if err != nil {
				return fmt.Errorf("%s processing: %w", r.chain, err)
			}
			logger.Info("processing run finished",
				"chain", r.chain.String(),
				"run_id", result.RunID,
				"start", result.Start,
				"end", result.End,
				"batches", result.Batches,
				"processed", result.Processed,
				"failed", len(result.Failed),
				"duration", result.Duration.String(),
			)
			return nil
		})
	}
	return g.Wait()
}

func newHealthMux(board *pipeline.HealthBoard, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !board.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("unhealthy")); err != nil {
				logger.Warn("failed to write health response", "error", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(board.Snapshots()); err != nil {
			logger.Warn("failed to write status response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func runHealthServer(ctx context.Context, port int, board *pipeline.HealthBoard, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newHealthMux(board, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func collectDBPoolStats(db dbStatsProvider, gauges dbPoolStatsGauges) (stats sql.DBStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return sql.DBStats{}, fmt.Errorf("db stats provider is nil")
	}

	stats = db.Stats()
	gauges.open.Set(float64(stats.OpenConnections))
	gauges.inUse.Set(float64(stats.InUse))
	gauges.idle.Set(float64(stats.Idle))
	gauges.waitCount.Set(float64(stats.WaitCount))
	gauges.waitDuration.Set(stats.WaitDuration.Seconds())
	return stats, nil
}

// dbPoolAlert returns the alert to raise for stats, if any. An unlimited pool
// never alerts.
func dbPoolAlert(stats sql.DBStats) (alert.Alert, bool) {
	if stats.MaxOpenConnections <= 0 {
		return alert.Alert{}, false
	}
	usage := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	if usage <= dbPoolAlertRatio {
		return alert.Alert{}, false
	}
	return alert.Alert{
		Type:    alert.AlertTypeDBPool,
		Title:   "DB connection pool near exhaustion",
		Message: fmt.Sprintf("Pool usage: %d/%d (%.0f%%)", stats.InUse, stats.MaxOpenConnections, usage*100),
		Fields: map[string]string{
			"wait_count": fmt.Sprintf("%d", stats.WaitCount),
		},
	}, true
}

func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, intervalMS int, alerter alert.Alerter, logger *slog.Logger) {
	if db == nil || intervalMS <= 0 {
		return
	}
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}

	gauges := dbPoolStatsGauges{
		open:         metrics.DBPoolOpen,
		inUse:        metrics.DBPoolInUse,
		idle:         metrics.DBPoolIdle,
		waitCount:    metrics.DBPoolWaitCount,
		waitDuration: metrics.DBPoolWaitDurationSeconds,
	}

	sample := func() {
		stats, err := collectDBPoolStats(db, gauges)
		if err != nil {
			logger.Warn("failed to collect db pool stats", "error", err)
			return
		}
		if a, ok := dbPoolAlert(stats); ok {
			if err := alerter.Send(ctx, a); err != nil {
				logger.Warn("failed to send db pool alert", "error", err)
			}
		}
	}

	ticker := time.NewTicker(time.Duration(intervalMS) * time.Millisecond)
	go func() {
		defer ticker.Stop()
		sample()
		for {
			select {
			case <-ctx.Done():
				logger.Info("db pool stats sampler stopped", "cause", "context_done")
				return
			case <-ticker.C:
				sample()
			}
		}
	}()
}

// maskCredentials hides the userinfo part of a connection URL.
func maskCredentials(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Scheme + "://***@" + u.Host + u.RequestURI()
}

func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}
