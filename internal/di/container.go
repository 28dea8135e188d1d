// Package di assembles the runtime dependency graph: config in, router out.
package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/handlers"
	"github.com/millbrook-supply/api/internal/payments"
	"github.com/millbrook-supply/api/internal/platform/auth"
	"github.com/millbrook-supply/api/internal/platform/config"
	"github.com/millbrook-supply/api/internal/platform/database"
	"github.com/millbrook-supply/api/internal/platform/idempotency"
	"github.com/millbrook-supply/api/internal/platform/mq"
	"github.com/millbrook-supply/api/internal/platform/observability"
	"github.com/millbrook-supply/api/internal/repositories/gormrepo"
	"github.com/millbrook-supply/api/internal/repositories/redisguard"
	"github.com/millbrook-supply/api/internal/services"
)

// Services bundles the service-layer contracts the handlers rely upon.
// Checkout is nil when no payment provider is configured; the router then
// answers checkout routes with 501.
type Services struct {
	CartFactory handlers.CartFactory
	Merge       *services.CartMergeCoordinator
	Pricing     services.PricingService
	Stock       services.StockService
	Checkout    services.CheckoutService
}

// Container wires storage, services, and the HTTP surface for runtime use.
type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Events   *mq.StockPublisher
	Services Services
	Router   http.Handler
}

// NewContainer opens every backing connection and builds the full graph.
// Callers own the returned container and must Close it on shutdown.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		return nil, errors.New("di: logger is required")
	}

	db, err := database.OpenMySQL(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("di: open mysql: %w", err)
	}
	if cfg.MySQL.AutoMigrate {
		if err := gormrepo.Migrate(db); err != nil {
			return nil, fmt.Errorf("di: migrate schema: %w", err)
		}
	}

	redisClient, err := database.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("di: open redis: %w", err)
	}

	var events *mq.StockPublisher
	if cfg.AMQP.URL != "" {
		events, err = mq.NewStockPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, fmt.Errorf("di: connect amqp: %w", err)
		}
	} else {
		logger.Warn("amqp url not configured, stock events disabled")
	}

	svc, err := buildServices(cfg, logger, db, redisClient, events)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("di: build token codec: %w", err)
	}

	router := buildRouter(cfg, logger, db, redisClient, codec, svc)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Redis:    redisClient,
		Events:   events,
		Services: svc,
		Router:   router,
	}, nil
}

// Close releases backing connections in reverse dependency order.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Events != nil {
		if err := c.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close mysql: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func buildServices(cfg config.Config, logger *zap.Logger, db *gorm.DB, redisClient *redis.Client, events *mq.StockPublisher) (Services, error) {
	var svc Services
	log := observability.ServiceLogger(logger)

	carts, err := gormrepo.NewCartRepository(db, cfg.Catalog.DefaultCurrency)
	if err != nil {
		return Services{}, fmt.Errorf("di: build cart repository: %w", err)
	}
	catalog, err := gormrepo.NewCatalogRepository(db)
	if err != nil {
		return Services{}, fmt.Errorf("di: build catalog repository: %w", err)
	}
	guard, err := redisguard.NewGuard(redisClient, cfg.Redis.KeyPrefix)
	if err != nil {
		return Services{}, fmt.Errorf("di: build transition guard: %w", err)
	}

	svc.CartFactory = func(ownerKey string, kind domain.CartKind) (services.CartService, error) {
		return services.NewCartService(services.CartServiceDeps{
			Carts:    carts,
			Catalog:  catalog,
			OwnerKey: ownerKey,
			Kind:     kind,
			Logger:   log,
		})
	}

	svc.Merge, err = services.NewCartMergeCoordinator(services.CartMergeCoordinatorDeps{
		Guard:  guard,
		Logger: log,
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build merge coordinator: %w", err)
	}

	svc.Pricing, err = services.NewPricingService(services.PricingServiceDeps{
		Catalog: catalog,
		Logger:  log,
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build pricing service: %w", err)
	}

	stockDeps := services.StockServiceDeps{Catalog: catalog, Logger: log}
	if events != nil {
		stockDeps.Events = events
	}
	svc.Stock, err = services.NewStockService(stockDeps)
	if err != nil {
		return Services{}, fmt.Errorf("di: build stock service: %w", err)
	}

	if cfg.Stripe.APIKey != "" {
		provider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Stripe.APIKey,
			Logger: payments.StripeLogger(log),
		})
		if err != nil {
			return Services{}, fmt.Errorf("di: build stripe provider: %w", err)
		}
		svc.Checkout, err = services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:    carts,
			Catalog:  catalog,
			Provider: provider,
			Logger:   log,
		})
		if err != nil {
			return Services{}, fmt.Errorf("di: build checkout service: %w", err)
		}
	} else {
		logger.Warn("stripe api key not configured, checkout disabled")
	}

	return svc, nil
}

func buildRouter(cfg config.Config, logger *zap.Logger, db *gorm.DB, redisClient *redis.Client, codec *auth.TokenCodec, svc Services) http.Handler {
	health := handlers.NewHealthHandlers()
	health.AddCheck("mysql", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	health.AddCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	var idemStore idempotency.Store
	if store, err := idempotency.NewRedisStore(redisClient, cfg.Redis.KeyPrefix); err != nil {
		logger.Warn("idempotency store unavailable", zap.Error(err))
	} else {
		idemStore = store
	}

	cartHandlers := handlers.NewCartHandlers(svc.CartFactory, svc.Merge)
	pricingHandlers := handlers.NewPricingHandlers(svc.Pricing)
	stockHandlers := handlers.NewStockHandlers(svc.Stock, cfg.Catalog.LowStockThreshold)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			auth.Middleware(codec),
			idempotency.Middleware(idemStore, idempotency.DefaultTTL),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithGuestCartRoutes(cartHandlers.GuestRoutes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCatalogRoutes(pricingHandlers.Routes),
		handlers.WithAdminRoutes(stockHandlers.Routes),
		handlers.WithAdminMiddlewares(auth.RequireRoles(auth.RoleAdmin, auth.RoleStaff)),
	}

	if svc.Checkout != nil {
		checkoutHandlers := handlers.NewCheckoutHandlers(svc.Checkout, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
		opts = append(opts, handlers.WithCheckoutRoutes(checkoutHandlers.Routes))
	}

	return handlers.NewRouter(opts...)
}
