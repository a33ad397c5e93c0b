package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/predictions-backend/internal/cache"
	"github.com/magabrotheeeer/predictions-backend/internal/config"
	"github.com/magabrotheeeer/predictions-backend/internal/filestore"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/auth"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/dashboard"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/email"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/health"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/predictions"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/setting"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/subscription"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/transactions"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/users"
	"github.com/magabrotheeeer/predictions-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/lock"
	"github.com/magabrotheeeer/predictions-backend/internal/migrations"
	"github.com/magabrotheeeer/predictions-backend/internal/paymentprovider"
	"github.com/magabrotheeeer/predictions-backend/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/predictions-backend/internal/services/auth"
	dashboardservice "github.com/magabrotheeeer/predictions-backend/internal/services/dashboard"
	emailservice "github.com/magabrotheeeer/predictions-backend/internal/services/email"
	predictionservice "github.com/magabrotheeeer/predictions-backend/internal/services/predictions"
	settingsservice "github.com/magabrotheeeer/predictions-backend/internal/services/settings"
	subservice "github.com/magabrotheeeer/predictions-backend/internal/services/subscription"
	transactionservice "github.com/magabrotheeeer/predictions-backend/internal/services/transaction"
	userservice "github.com/magabrotheeeer/predictions-backend/internal/services/users"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

const (
	rateLimitRPS   = 10
	rateLimitBurst = 20
	rateLimitTTL   = 3 * time.Minute
	shutdownWait   = 15 * time.Second
)

// App HTTP-приложение со всеми открытыми соединениями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилища и брокер, применяет миграции и собирает маршрутизатор.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.db = db
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}
	a.cache = cacheRedis

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.conn = conn
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEmailQueues(), cfg.RabbitMQPrefetch)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	a.ch = ch

	files, err := filestore.New(cfg.UploadsDir, cfg.PublicBaseURL, cfg.MaxUploadSize)
	if err != nil {
		a.close()
		return nil, err
	}

	publisher := rabbitmq.NewPublisher(ch, rabbitmq.EmailRoutingKey)
	locker := lock.New(cacheRedis.Db)
	payments := paymentprovider.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	authService := authservice.NewAuthService(db, cacheRedis, publisher, files, jwtMaker, cfg.OTP, logger)
	if cfg.BootstrapAdminEmail != "" {
		if err = authService.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := Handlers{
		Auth:         auth.New(logger, authService, cfg.IsDevelopment(), cfg.MaxUploadSize),
		Users:        users.New(logger, userservice.NewUserService(db, files)),
		Predictions:  predictions.New(logger, predictionservice.NewPredictionService(db, files, logger), cfg.MaxUploadSize),
		Subscription: subscription.New(logger, subservice.NewSubscriptionService(db, cacheRedis, payments, logger)),
		Transactions: transactions.New(logger, transactionservice.NewTransactionService(db, payments, locker, cfg.Stripe, logger)),
		Dashboard:    dashboard.New(logger, dashboardservice.NewDashboardService(db)),
		Email:        email.New(logger, emailservice.NewEmailService(publisher, cfg.AdminEmail, logger)),
		Setting:      setting.New(logger, settingsservice.NewSettingsService(db, cacheRedis, logger)),
		Health: health.New(logger, map[string]health.Check{
			"postgres": db.DB.PingContext,
			"redis": func(ctx context.Context) error {
				return cacheRedis.Db.Ping(ctx).Err()
			},
			"rabbitmq": func(_ context.Context) error {
				if conn.IsClosed() {
					return amqp.ErrClosed
				}
				return nil
			},
		}),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Infra{
		Tokens:     jwtMaker,
		Metrics:    middlewarectx.NewMetrics(registry),
		Gatherer:   registry,
		Limiter:    middlewarectx.NewRateLimiter(rateLimitRPS, rateLimitBurst, rateLimitTTL),
		UploadsDir: files.Dir(),
	}, h)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      WithCORS(router, cfg.AllowedOrigins),
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
