package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/aimonitoring/alert-engine/pkg/api"
	"github.com/aimonitoring/alert-engine/pkg/config"
	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/notification"
	"github.com/aimonitoring/alert-engine/pkg/services"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// @title Alert Engine API
// @version 1.0
// @description Alert rule evaluation and notification dispatch for the AI monitoring platform
// @BasePath /api

func main() {
	// Configure Log Level from Environment Variable
	logLevelStr := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(logLevelStr) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel) // Default to Info
	}
	logrus.Infof("Log level set to: %s", logrus.GetLevel().String())

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Set up the database
	st, err := store.NewPostgres(store.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	// Notification drivers. Each driver bounds its own delivery
	// attempts with the shared send timeout; the webhook driver uses
	// its dedicated timeout so retries stay per-attempt.
	sendTimeout := time.Duration(cfg.Notifications.SendTimeoutSeconds) * time.Second
	notifiers := notification.Registry{
		models.ChannelTypeEmail: notification.NewEmailNotifier(notification.EmailConfig{
			Enabled:  cfg.Notifications.Email.Enabled,
			Host:     cfg.Notifications.Email.Host,
			Port:     cfg.Notifications.Email.Port,
			Username: cfg.Notifications.Email.Username,
			Password: cfg.Notifications.Email.Password,
			From:     cfg.Notifications.Email.From,
			FromName: cfg.Notifications.Email.FromName,
			UseTLS:   cfg.Notifications.Email.UseTLS,
			Timeout:  sendTimeout,
		}),
		models.ChannelTypeSlack: notification.NewSlackNotifier(notification.SlackConfig{
			Enabled: cfg.Notifications.Slack.Enabled,
			Timeout: sendTimeout,
		}),
		models.ChannelTypeWebhook: notification.NewWebhookNotifier(notification.WebhookConfig{
			Enabled:        cfg.Notifications.Webhook.Enabled,
			Timeout:        time.Duration(cfg.Notifications.Webhook.TimeoutSeconds) * time.Second,
			RetryOnFailure: cfg.Notifications.Webhook.RetryOnFailure,
			MaxAttempts:    cfg.Notifications.Webhook.MaxAttempts,
			BackoffDelay:   time.Duration(cfg.Notifications.Webhook.BackoffDelaySeconds) * time.Second,
		}),
	}

	// Initialize services
	limiter := services.NewRateLimiter(services.RateLimitConfig{
		Enabled:          cfg.RateLimit.Enabled,
		MaxAlertsPerRule: cfg.RateLimit.MaxAlertsPerRule,
		TimeWindow:       time.Duration(cfg.RateLimit.TimeWindowMinutes) * time.Minute,
		DefaultCooldown:  time.Duration(cfg.RateLimit.CooldownMinutes) * time.Minute,
	})
	engine := services.NewRuleEngine(st)
	dispatcher := services.NewDispatcher(st, limiter, notifiers, services.DispatcherConfig{
		SendTimeout: time.Duration(cfg.Notifications.SendTimeoutSeconds) * time.Second,
	})
	alerts := services.NewAlertService(st, dispatcher)

	// Start the anomaly monitor
	ctx := context.Background()
	monitor := services.NewAnomalyMonitor(st, engine, dispatcher, services.MonitorConfig{
		Enabled:          cfg.Monitoring.Enabled,
		Interval:         time.Duration(cfg.Monitoring.IntervalSeconds) * time.Second,
		CriticalInterval: time.Duration(cfg.Monitoring.CriticalIntervalSeconds) * time.Second,
		Lookback:         time.Duration(cfg.Monitoring.LookbackMinutes) * time.Minute,
		BatchSize:        cfg.Monitoring.BatchSize,
		Workers:          cfg.Monitoring.Workers,
	})
	if err := monitor.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start anomaly monitor: %v", err)
	}

	// Set up the Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// API routes
	apiHandler := api.NewAPIHandler(st, engine, dispatcher, alerts, limiter, monitor)
	apiHandler.SetupRoutes(e)

	// Swagger documentation
	e.GET("/swagger/*", echo.WrapHandler(httpSwagger.Handler()))

	// Create HTTP server
	// Use PORT environment variable if available, otherwise use config
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logrus.Infof("Starting server on port %s", port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Stop the anomaly monitor and wait for in-flight ticks
	monitor.Stop()

	// Create a deadline for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Shutdown the server
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := st.Close(); err != nil {
		logrus.Errorf("Error closing database: %v", err)
	}

	logrus.Info("Server exited properly")
}
