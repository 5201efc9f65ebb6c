// cmd/workflow-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"admissions-workflow/internal/api"
	"admissions-workflow/internal/audit"
	awsclients "admissions-workflow/internal/common/aws"
	"admissions-workflow/internal/common/camunda"
	"admissions-workflow/internal/common/config"
	"admissions-workflow/internal/common/database"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/common/observability"
	"admissions-workflow/internal/common/validation"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/notify"
	"admissions-workflow/internal/onboarding"
	"admissions-workflow/internal/ratelimit"
	"admissions-workflow/internal/repository"
	"admissions-workflow/internal/workflow"
	"admissions-workflow/pkg/registry"

	cor "admissions-workflow/internal/workers/application/check-onboarding-readiness"
	car "admissions-workflow/internal/workers/application/create-application-record"
	tas "admissions-workflow/internal/workers/application/transition-application-status"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting workflow server...", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	obs, err := observability.New(cfg.Observability.ServiceName)
	if err != nil {
		zapLog.Fatal("metrics setup failed", zap.Error(err))
	}
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Observability.ServiceName, cfg.Observability.OTLPEndpoint)
	if err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	applied, err := repository.Migrate(ctx, pg.DB)
	if err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	if len(applied) > 0 {
		zapLog.Info("schema migrations applied", zap.Strings("versions", applied))
	}

	// --- Init Redis with retry ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var auditIndex *audit.Index
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
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
		auditIndex = audit.NewIndex(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, 5*time.Second, log)
		if err := auditIndex.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("audit index setup failed", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Domain ---
	repo := repository.New(pg.DB)
	gate := onboarding.NewGate(repo, log)

	if cfg.Integrations.AWS.S3.Bucket == "" {
		zapLog.Fatal("integrations.aws.s3.bucket is required for onboarding uploads")
	}
	objects, err := awsclients.NewObjectStore(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.S3.Bucket, cfg.Integrations.AWS.S3.KeyPrefix)
	if err != nil {
		zapLog.Fatal("s3 client failed", zap.Error(err))
	}
	limiter := ratelimit.New(redis.Client, cfg.Uploads.RateLimit, config.GetDuration(cfg.Uploads.RateWindow))
	uploader := onboarding.NewUploader(gate, objects, limiter, cfg.Uploads.MaxSizeBytes, log)

	validator, err := validation.NewIntakeValidator()
	if err != nil {
		zapLog.Fatal("intake schemas failed to compile", zap.Error(err))
	}

	gated, err := gatedStatuses(cfg.Workflow.GatedStates)
	if err != nil {
		zapLog.Fatal("invalid workflow.gated_states", zap.Error(err))
	}

	opts := []workflow.Option{
		workflow.WithGate(gate, gated...),
		workflow.WithValidator(validator),
	}

	var dispatcher *notify.Dispatcher
	if cfg.Notifications.Enabled {
		senders, err := buildSenders(ctx, cfg)
		if err != nil {
			zapLog.Fatal("notification senders failed", zap.Error(err))
		}
		dispatcher = notify.NewDispatcher(notify.Options{
			Workers:        cfg.Notifications.Workers,
			QueueSize:      cfg.Notifications.QueueSize,
			MaxAttempts:    cfg.Notifications.MaxAttempts,
			InitialBackoff: config.GetDuration(cfg.Notifications.InitialBackoff),
			AttemptTimeout: config.GetDuration(cfg.Notifications.AttemptTimeout),
		}, notify.NewDeadLetters(redis.Client, cfg.Notifications.DeadLetterKey), log, senders...)
		dispatcher.Start()
		opts = append(opts, workflow.WithObserver(dispatcher))
	}
	if auditIndex != nil {
		opts = append(opts, workflow.WithObserver(auditIndex))
	}

	executor := workflow.NewExecutor(repo, log, opts...)
	reader := workflow.NewReader(repo)

	// --- Camunda Workers ---
	var zeebe *camunda.Client
	var workers *camunda.Workers
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.Connect(ctx, cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewWorkers(zeebe.Zeebe(), obs, log)
		startWorkers(workers, cfg, executor, gate, log)
	}

	// --- HTTP API ---
	checks := map[string]api.Check{
		"postgres": pg.Ping,
		"redis":    redis.Ping,
	}
	if esClient != nil {
		checks["elasticsearch"] = esClient.Ping
	}
	if zeebe != nil {
		checks["zeebe"] = zeebe.HealthCheck
	}

	apiCfg := api.Config{
		BasePath:       cfg.HTTP.BasePath,
		Auth:           api.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer},
		MaxUploadBytes: cfg.Uploads.MaxSizeBytes,
		Workflow:       executor,
		Applications:   repo,
		History:        reader,
		Onboarding:     gate,
		Uploads:        uploader,
		Checks:         checks,
		Logger:         log,
	}
	if auditIndex != nil {
		apiCfg.Audit = auditIndex
	}
	handler, err := api.New(apiCfg)
	if err != nil {
		zapLog.Fatal("api setup failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if workers != nil {
		workers.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if dispatcher != nil {
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			zapLog.Error("notification dispatcher did not drain", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Error("tracing shutdown failed", zap.Error(err))
	}

	zapLog.Info("Workflow server stopped gracefully")
}

func startWorkers(workers *camunda.Workers, cfg *config.Config, executor *workflow.Executor, gate *onboarding.Gate, log logger.Logger) {
	handlers := map[string]camunda.JobHandler{
		car.TaskType: car.NewHandler(car.LoadConfig(config.GetWorkerConfig(cfg, car.TaskType)), executor, log),
		tas.TaskType: tas.NewHandler(tas.LoadConfig(config.GetWorkerConfig(cfg, tas.TaskType)), executor, log),
		cor.TaskType: cor.NewHandler(cor.LoadConfig(config.GetWorkerConfig(cfg, cor.TaskType)), gate, log),
	}
	for _, activity := range registry.Default().Activities {
		handler, ok := handlers[activity.TaskType]
		if !ok {
			log.Warn("no handler for registered activity", map[string]interface{}{"taskType": activity.TaskType})
			continue
		}
		workers.Start(activity.TaskType, config.GetWorkerConfig(cfg, activity.TaskType), handler)
	}
}

func gatedStatuses(raw []string) ([]models.Status, error) {
	out := make([]models.Status, 0, len(raw))
	for _, s := range raw {
		status, err := models.ParseStatus(s)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func buildSenders(ctx context.Context, cfg *config.Config) ([]notify.Sender, error) {
	var senders []notify.Sender
	aws := cfg.Integrations.AWS
	if aws.SES.Enabled {
		client, err := awsclients.NewSESClient(ctx, aws.Region)
		if err != nil {
			return nil, err
		}
		senders = append(senders, notify.NewEmailSender(client, aws.SES.FromEmail))
	}
	if aws.SNS.Enabled {
		client, err := awsclients.NewSNSClient(ctx, aws.Region)
		if err != nil {
			return nil, err
		}
		senders = append(senders, notify.NewSMSSender(client))
	}
	return senders, nil
}
