package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-creator-billing/app/controller"
	"github.com/vibast-solutions/ms-go-creator-billing/app/fees"
	"github.com/vibast-solutions/ms-go-creator-billing/app/lock"
	"github.com/vibast-solutions/ms-go-creator-billing/app/repository"
	"github.com/vibast-solutions/ms-go-creator-billing/app/service"
	"github.com/vibast-solutions/ms-go-creator-billing/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for webhook intake and subscription reads.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, billingService, cleanup := mustCreateBillingService()
	defer cleanup()

	billingController := controller.NewBillingController(billingService)
	e := setupHTTPServer(billingController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(billingController *controller.BillingController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestID())

	e.GET("/health", billingController.Health)

	webhooks := e.Group("/webhooks/providers")
	webhooks.POST("/:provider", billingController.HandleWebhook)

	subscriptions := e.Group("/subscriptions")
	subscriptions.GET("/:subscriberId/:creatorId/:interval", billingController.GetSubscription)
	subscriptions.GET("/:subscriberId/:creatorId/:interval/payments", billingController.ListSubscriptionPayments)

	return e
}

func mustCreateBillingService() (*config.Config, *service.BillingService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	var redisClient *redis.Client
	var locker lock.Locker
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to parse Redis URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to ping Redis")
		}
		locker = lock.NewRedisLocker(redisClient)
	} else {
		logrus.Warn("REDIS_URL not set, using in-process locks; run a single instance only")
		locker = lock.NewMemoryLocker()
	}

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	sessionRepo := repository.NewCheckoutSessionRepository(db)
	ledgerStore := service.NewLedgerStore(repository.NewLedger(db))

	dispatcher := service.NewDispatcher(cfg.Webhooks, cfg.App.APIKey, redisClient, logrus.StandardLogger())

	billingService := service.NewBillingService(
		ledgerStore,
		subscriptionRepo,
		paymentRepo,
		sessionRepo,
		locker,
		fees.NewPolicy(cfg.Fees),
		dispatcher,
		cfg.Webhooks,
		cfg.Jobs,
		logrus.StandardLogger(),
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close Redis client")
			}
		}
	}

	return cfg, billingService, cleanup
}
