// cmd/verification-manager/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketplace-verification/internal/api"
	"marketplace-verification/internal/audit"
	awsclients "marketplace-verification/internal/common/aws"
	"marketplace-verification/internal/common/camunda"
	"marketplace-verification/internal/common/config"
	"marketplace-verification/internal/common/database"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/observability"
	"marketplace-verification/internal/common/validation"
	"marketplace-verification/internal/contract"
	"marketplace-verification/internal/listing"
	"marketplace-verification/internal/notification"
	"marketplace-verification/internal/payment"
	"marketplace-verification/internal/store/postgres"
	"marketplace-verification/internal/subscription"
	"marketplace-verification/pkg/registry"

	dc "marketplace-verification/internal/workers/contract/decide-contract"
	dp "marketplace-verification/internal/workers/payment/decide-payment"
	sp "marketplace-verification/internal/workers/payment/simulate-payout"
	ds "marketplace-verification/internal/workers/subscription/decide-subscription"
	ss "marketplace-verification/internal/workers/subscription/sweep-subscriptions"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to configs/config.yaml)")
	migrate := flag.Bool("migrate", false, "apply the database schema before starting")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting verification manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs, err := observability.New(cfg.App.Name, cfg.Tracing, nil)
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(ctx, cfg.Database.Postgres, 5*time.Second)
		return err
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	st := postgres.New(pg.DB)
	if *migrate {
		if err := st.Migrate(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("Database schema applied")
	}

	checks := map[string]api.ReadinessCheck{"postgres": pg.Ping}

	// --- Redis eligibility cache (optional) ---
	var cache subscription.Cache
	if cfg.Database.Redis.Enabled {
		redisClient := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error { return redisClient.Ping(ctx) }, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		cache = subscription.NewRedisCache(redisClient.Client)
		checks["redis"] = redisClient.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Elasticsearch audit trail (optional) ---
	var recorder audit.Recorder = audit.Nop{}
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		esRecorder := audit.NewElasticsearchRecorder(esClient.Client, cfg.Audit.Index)
		if err := esRecorder.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("audit index setup failed", zap.Error(err))
		}
		recorder = esRecorder
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Notifications ---
	clients, err := awsclients.NewClients(ctx, cfg.Notifications.AWS.Region,
		cfg.Notifications.Email.Enabled, cfg.Notifications.SMS.Enabled)
	if err != nil {
		zapLog.Fatal("aws clients failed", zap.Error(err))
	}
	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		QueueSize: cfg.Notifications.QueueSize,
		FromEmail: cfg.Notifications.Email.FromEmail,
	}, st, clients, log)
	dispatcher.Start(context.Background())

	// --- Services ---
	gate := subscription.NewGate(subscription.Config{
		MonthlyFee: cfg.Subscription.MonthlyFee,
		AnnualFee:  cfg.Subscription.AnnualFee,
		CacheTTL:   cfg.Subscription.CacheTTLDuration(),
	}, st, cache, dispatcher, recorder, log)
	pipeline := payment.NewPipeline(payment.Config{
		ContractValidityMonths: cfg.Payment.ContractValidityMonths,
	}, st, dispatcher, recorder, log)
	coordinator := contract.NewCoordinator(contract.Config{
		ValidityMonths: cfg.Payment.ContractValidityMonths,
	}, st, dispatcher, log)
	listings := listing.NewService(st, gate, dispatcher, log)

	if interval := time.Duration(cfg.Subscription.SweepInterval) * time.Second; interval > 0 {
		go gate.RunSweeper(ctx, interval)
		zapLog.Info("subscription sweeper started", zap.Duration("interval", interval))
	}

	// --- Zeebe workers ---
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		validator, err := loadValidator(cfg.Registry)
		if err != nil {
			zapLog.Fatal("activity registry failed", zap.Error(err))
		}

		zeebe, err := camunda.NewClient(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		}, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		timeout := func(taskType string) time.Duration {
			return config.GetDuration(cfg.Workers[taskType].Timeout)
		}
		start := func(taskType string, handler camunda.JobHandler) {
			wcfg := cfg.Workers[taskType]
			if !wcfg.Enabled {
				zapLog.Info("worker disabled", zap.String("taskType", taskType))
				return
			}
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), camunda.WorkerConfig{
				TaskType:      taskType,
				MaxJobsActive: wcfg.MaxJobsActive,
				Timeout:       config.GetDuration(wcfg.Timeout),
			}, handler, log))
		}

		start(ds.TaskType, ds.NewHandler(&ds.Config{Timeout: timeout(ds.TaskType)}, gate, validator, log))
		start(ss.TaskType, ss.NewHandler(&ss.Config{Timeout: timeout(ss.TaskType)}, gate, validator, log))
		start(dp.TaskType, dp.NewHandler(&dp.Config{Timeout: timeout(dp.TaskType)}, pipeline, validator, log))
		start(sp.TaskType, sp.NewHandler(&sp.Config{Timeout: timeout(sp.TaskType)}, pipeline, validator, log))
		start(dc.TaskType, dc.NewHandler(&dc.Config{Timeout: timeout(dc.TaskType)}, coordinator, validator, log))

		zapLog.Info("workers registered", zap.Int("count", len(workers)))
	}

	// --- HTTP API ---
	handler := api.NewHandler(api.Services{
		Subscriptions: gate,
		Payments:      pipeline,
		Contracts:     coordinator,
		Listings:      listings,
		Audit:         recorder,
	}, checks, log)
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	dispatcher.Close()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Verification manager stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func loadValidator(cfg config.RegistryConfig) (*validation.Validator, error) {
	reg := registry.DefaultRegistry()
	if cfg.Path != "" {
		var err error
		if reg, err = registry.LoadRegistry(cfg.Path); err != nil {
			return nil, err
		}
	}
	return validation.NewValidator(reg)
}
