package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	deliveryUsecases "github.com/opencat-io/opencat/internal/application/delivery/usecases"
	eventUsecases "github.com/opencat-io/opencat/internal/application/events/usecases"
	ingestionUsecases "github.com/opencat-io/opencat/internal/application/ingestion/usecases"
	"github.com/opencat-io/opencat/internal/application/resolver"
	"github.com/opencat-io/opencat/internal/infrastructure/cache"
	"github.com/opencat-io/opencat/internal/infrastructure/config"
	"github.com/opencat-io/opencat/internal/infrastructure/database"
	"github.com/opencat-io/opencat/internal/infrastructure/mail"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/infrastructure/scheduler"
	"github.com/opencat-io/opencat/internal/infrastructure/webhook"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

var (
	env            string
	fanOutInterval time.Duration
	expiryInterval time.Duration
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the background worker",
		Long:  `Start the webhook delivery dispatcher together with the fan-out and expiry sweeps, without the HTTP server. Multiple workers can run side by side; delivery claims are leased through the database.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().DurationVar(&fanOutInterval, "fanout-sweep-interval", 30*time.Second, "Interval between fan-out sweep passes")
	cmd.Flags().DurationVar(&expiryInterval, "expiry-sweep-interval", time.Minute, "Interval between transaction expiry sweep passes")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting delivery worker", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Infow("redis connection established", "address", cfg.Redis.GetAddr())
	}

	gormDB := database.Get()
	subscriberRepo := repository.NewSubscriberRepository(gormDB, log)
	transactionRepo := repository.NewTransactionRepository(gormDB, log)
	productRepo := repository.NewProductRepository(gormDB, log)
	eventRepo := repository.NewEventRepository(gormDB, log)
	endpointRepo := repository.NewWebhookEndpointRepository(gormDB, log)
	deliveryRepo := repository.NewWebhookDeliveryRepository(gormDB, log)
	txManager := db.NewTransactionManager(gormDB)

	var entitlementCache cache.EntitlementCache
	if redisClient != nil {
		entitlementCache = cache.NewRedisEntitlementCache(redisClient, log)
	}
	resolverSvc := resolver.NewService(transactionRepo, productRepo, entitlementCache, log)

	fanOutUC := eventUsecases.NewFanOutEventsUseCase(eventRepo, endpointRepo, deliveryRepo, log)
	expireUC := ingestionUsecases.NewExpireTransactionsUseCase(
		subscriberRepo, transactionRepo, eventRepo,
		resolverSvc, txManager, fanOutUC, log,
	)

	sender := webhook.NewHTTPSender(cfg.Webhook.RequestTimeout(), log)
	var alertMailer mail.AlertMailer
	if cfg.Mail.OperatorAddress != "" {
		alertMailer = mail.NewSMTPAlertMailer(cfg.Mail, log)
	}
	dispatchUC := deliveryUsecases.NewDispatchDueUseCase(
		deliveryRepo, endpointRepo, eventRepo, sender, alertMailer, cfg.Webhook, log,
	)

	manager, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler manager: %w", err)
	}
	if err := manager.RegisterFanOutSweep(fanOutUC, fanOutInterval); err != nil {
		return fmt.Errorf("failed to register fan-out sweep: %w", err)
	}
	if err := manager.RegisterExpirySweep(expireUC, expiryInterval); err != nil {
		return fmt.Errorf("failed to register expiry sweep: %w", err)
	}
	manager.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := scheduler.NewDispatcher(dispatchUC, cfg.Webhook, log)
	dispatcher.Start(ctx)

	log.Infow("worker started",
		"dispatch_workers", cfg.Webhook.Workers,
		"fanout_sweep_interval", fanOutInterval,
		"expiry_sweep_interval", expiryInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Infow("received signal, shutting down", "signal", sig)

	cancel()
	dispatcher.Stop()
	if err := manager.Stop(); err != nil {
		log.Errorw("failed to stop scheduler manager", "error", err)
	}

	log.Infow("worker stopped")
	return nil
}
