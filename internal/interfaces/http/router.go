package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appUsecases "github.com/opencat-io/opencat/internal/application/app/usecases"
	catalogUsecases "github.com/opencat-io/opencat/internal/application/catalog/usecases"
	deliveryUsecases "github.com/opencat-io/opencat/internal/application/delivery/usecases"
	eventUsecases "github.com/opencat-io/opencat/internal/application/events/usecases"
	ingestionUsecases "github.com/opencat-io/opencat/internal/application/ingestion/usecases"
	"github.com/opencat-io/opencat/internal/application/resolver"
	subscriberUsecases "github.com/opencat-io/opencat/internal/application/subscriber/usecases"
	"github.com/opencat-io/opencat/internal/infrastructure/cache"
	"github.com/opencat-io/opencat/internal/infrastructure/config"
	"github.com/opencat-io/opencat/internal/infrastructure/mail"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/infrastructure/scheduler"
	"github.com/opencat-io/opencat/internal/infrastructure/webhook"
	"github.com/opencat-io/opencat/internal/interfaces/http/handlers"
	"github.com/opencat-io/opencat/internal/interfaces/http/middleware"
	"github.com/opencat-io/opencat/internal/shared/db"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// Router wires repositories, use cases, handlers, and background jobs, and
// owns the Gin engine.
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	logger logger.Interface

	appHandler          *handlers.AppHandler
	catalogHandler      *handlers.CatalogHandler
	transactionHandler  *handlers.TransactionHandler
	subscriberHandler   *handlers.SubscriberHandler
	eventHandler        *handlers.EventHandler
	webhookHandler      *handlers.WebhookHandler
	notificationHandler *handlers.NotificationHandler
	healthHandler       *handlers.HealthHandler

	authMiddleware gin.HandlerFunc
	rateLimiter    *middleware.RateLimiter

	fanOutUC   *eventUsecases.FanOutEventsUseCase
	expireUC   *ingestionUsecases.ExpireTransactionsUseCase
	dispatchUC *deliveryUsecases.DispatchDueUseCase

	schedulerManager *scheduler.SchedulerManager
	dispatcher       *scheduler.Dispatcher
}

// NewRouter builds the full dependency graph. redisClient may be nil, in
// which case entitlement resolution skips the cache and rate limiting is
// disabled.
func NewRouter(database *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) *Router {
	engine := gin.New()

	appRepo := repository.NewAppRepository(database, log)
	apiKeyRepo := repository.NewAPIKeyRepository(database, log)
	entitlementRepo := repository.NewEntitlementRepository(database, log)
	productRepo := repository.NewProductRepository(database, log)
	offeringRepo := repository.NewOfferingRepository(database, log)
	subscriberRepo := repository.NewSubscriberRepository(database, log)
	transactionRepo := repository.NewTransactionRepository(database, log)
	eventRepo := repository.NewEventRepository(database, log)
	endpointRepo := repository.NewWebhookEndpointRepository(database, log)
	deliveryRepo := repository.NewWebhookDeliveryRepository(database, log)

	txManager := db.NewTransactionManager(database)

	var entitlementCache cache.EntitlementCache
	if redisClient != nil {
		entitlementCache = cache.NewRedisEntitlementCache(redisClient, log)
	}
	resolverSvc := resolver.NewService(transactionRepo, productRepo, entitlementCache, log)

	fanOutUC := eventUsecases.NewFanOutEventsUseCase(eventRepo, endpointRepo, deliveryRepo, log)
	ingestUC := ingestionUsecases.NewIngestTransactionUseCase(
		subscriberRepo, transactionRepo, productRepo, eventRepo,
		resolverSvc, txManager, fanOutUC, log,
	)
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

	authUC := appUsecases.NewAuthenticateAPIKeyUseCase(appRepo, apiKeyRepo, log)

	appHandler := handlers.NewAppHandler(
		appUsecases.NewCreateAppUseCase(appRepo, log),
		appUsecases.NewListAppsUseCase(appRepo, log),
		appUsecases.NewCreateAPIKeyUseCase(appRepo, apiKeyRepo, log),
		log,
	)
	catalogHandler := handlers.NewCatalogHandler(
		catalogUsecases.NewCreateEntitlementUseCase(entitlementRepo, log),
		catalogUsecases.NewListEntitlementsUseCase(entitlementRepo, log),
		catalogUsecases.NewCreateProductUseCase(productRepo, entitlementRepo, log),
		catalogUsecases.NewListProductsUseCase(productRepo, log),
		catalogUsecases.NewUpsertOfferingUseCase(offeringRepo, productRepo, log),
		catalogUsecases.NewGetOfferingsUseCase(offeringRepo, productRepo, log),
		log,
	)
	transactionHandler := handlers.NewTransactionHandler(ingestUC, log)
	subscriberHandler := handlers.NewSubscriberHandler(
		subscriberUsecases.NewGetSubscriberInfoUseCase(subscriberRepo, transactionRepo, resolverSvc, log),
		log,
	)
	eventHandler := handlers.NewEventHandler(
		eventUsecases.NewListEventsUseCase(eventRepo, log),
		log,
	)
	webhookHandler := handlers.NewWebhookHandler(
		deliveryUsecases.NewRegisterEndpointUseCase(endpointRepo, log),
		deliveryUsecases.NewManageEndpointsUseCase(endpointRepo, log),
		deliveryUsecases.NewListDeliveriesUseCase(deliveryRepo, endpointRepo, log),
		deliveryUsecases.NewReplayDeliveryUseCase(deliveryRepo, log),
		log,
	)
	notificationHandler := handlers.NewNotificationHandler(appRepo, ingestUC, log)
	healthHandler := handlers.NewHealthHandler(database, redisClient)

	var rateLimiter *middleware.RateLimiter
	if redisClient != nil {
		rateLimiter = middleware.NewRateLimiter(redisClient, 300, time.Minute)
	}

	return &Router{
		engine:              engine,
		cfg:                 cfg,
		logger:              log,
		appHandler:          appHandler,
		catalogHandler:      catalogHandler,
		transactionHandler:  transactionHandler,
		subscriberHandler:   subscriberHandler,
		eventHandler:        eventHandler,
		webhookHandler:      webhookHandler,
		notificationHandler: notificationHandler,
		healthHandler:       healthHandler,
		authMiddleware:      middleware.APIKeyAuth(authUC),
		rateLimiter:         rateLimiter,
		fanOutUC:            fanOutUC,
		expireUC:            expireUC,
		dispatchUC:          dispatchUC,
	}
}

// SetupRoutes configures all HTTP routes.
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.CORS(r.cfg.Server.AllowedOrigins))

	r.engine.GET("/healthz", r.healthHandler.HealthCheck)

	v1 := r.engine.Group("/v1")
	if r.rateLimiter != nil {
		v1.Use(r.rateLimiter.Limit())
	}

	// Store server notifications authenticate by payload identity, not API
	// key; the store cannot present one.
	notifications := v1.Group("/notifications")
	{
		notifications.POST("/apple", r.notificationHandler.Apple)
		notifications.POST("/google", r.notificationHandler.Google)
	}

	apps := v1.Group("/apps")
	apps.Use(r.authMiddleware)
	{
		apps.POST("", r.appHandler.CreateApp)
		apps.GET("", r.appHandler.ListApps)
		apps.POST("/:app_sid/keys", r.appHandler.CreateAPIKey)
	}

	// Catalog and webhook management are app-scoped: the app_sid in the
	// path must be the app the API key belongs to.
	scoped := v1.Group("/apps/:app_sid")
	scoped.Use(r.authMiddleware, middleware.RequireAppScope())
	{
		scoped.POST("/entitlements", r.catalogHandler.CreateEntitlement)
		scoped.GET("/entitlements", r.catalogHandler.ListEntitlements)
		scoped.POST("/products", r.catalogHandler.CreateProduct)
		scoped.GET("/products", r.catalogHandler.ListProducts)
		scoped.PUT("/offerings", r.catalogHandler.UpsertOffering)
		scoped.GET("/offerings", r.catalogHandler.GetOfferings)

		scoped.POST("/webhooks", r.webhookHandler.RegisterEndpoint)
		scoped.GET("/webhooks", r.webhookHandler.ListEndpoints)
		scoped.PATCH("/webhooks/:endpoint_sid", r.webhookHandler.UpdateEndpoint)
		scoped.GET("/webhooks/:endpoint_sid/deliveries", r.webhookHandler.ListDeliveries)
	}

	authed := v1.Group("")
	authed.Use(r.authMiddleware)
	{
		authed.POST("/transactions", r.transactionHandler.Ingest)
		authed.GET("/subscribers/:app_user_id", r.subscriberHandler.GetSubscriberInfo)
		authed.GET("/events", r.eventHandler.ListEvents)
		authed.POST("/deliveries/:delivery_sid/replay", r.webhookHandler.ReplayDelivery)
	}
}

// StartSchedulers starts the fan-out and expiry sweeps. The sweeps are the
// safety net behind inline fan-out and the only driver of time-based
// expiry, so every deployment should run them in at least one process.
func (r *Router) StartSchedulers(fanOutInterval, expiryInterval time.Duration) error {
	manager, err := scheduler.NewSchedulerManager(r.logger)
	if err != nil {
		return err
	}
	if err := manager.RegisterFanOutSweep(r.fanOutUC, fanOutInterval); err != nil {
		return err
	}
	if err := manager.RegisterExpirySweep(r.expireUC, expiryInterval); err != nil {
		return err
	}
	manager.Start()
	r.schedulerManager = manager
	return nil
}

// StartDispatcher starts the webhook delivery worker pool.
func (r *Router) StartDispatcher(ctx context.Context) {
	r.dispatcher = scheduler.NewDispatcher(r.dispatchUC, r.cfg.Webhook, r.logger)
	r.dispatcher.Start(ctx)
}

// GetEngine returns the Gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Shutdown stops background jobs. In-flight HTTP requests are handled by
// the http.Server shutdown in the serve command.
func (r *Router) Shutdown() {
	if r.dispatcher != nil {
		r.dispatcher.Stop()
	}
	if r.schedulerManager != nil {
		if err := r.schedulerManager.Stop(); err != nil {
			r.logger.Errorw("failed to stop scheduler manager", "error", err)
		}
	}
}
