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

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/omnitext/omnitext/internal/messaging/app"
	"github.com/omnitext/omnitext/internal/messaging/provider"
	"github.com/omnitext/omnitext/internal/messaging/repository/postgres"
	httptransport "github.com/omnitext/omnitext/internal/messaging/transport/http"
	"github.com/omnitext/omnitext/internal/messaging/transport/http/middleware"
	"github.com/omnitext/omnitext/internal/platform/config"
	"github.com/omnitext/omnitext/internal/platform/database"
	"github.com/omnitext/omnitext/internal/platform/logger"
	"github.com/omnitext/omnitext/internal/platform/messagebroker"
)

func main() {
	cfg, err := config.Load("messaging_service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", "messaging_service")
	appLogger.Info("starting messaging service")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(rootCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "messaging_service", appLogger)
	if err != nil {
		appLogger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	messageRepo := postgres.NewPgMessageRepository(dbPool, appLogger)
	numberRepo := postgres.NewPgOwnedNumberRepository(dbPool, appLogger)
	accountRepo := postgres.NewPgAccountRepository(dbPool, appLogger)

	providers := map[string]provider.Adapter{
		"twilio": provider.NewTwilioProvider(appLogger, cfg.TwilioAPIBaseURL, cfg.TwilioAccountSID, cfg.TwilioAuthToken, nil),
		"telnyx": provider.NewTelnyxProvider(appLogger, cfg.TelnyxAPIBaseURL, cfg.TelnyxAPIKey, cfg.TelnyxMessagingProfileID),
	}

	sendService := app.NewSendService(providers, messageRepo, numberRepo, appLogger)
	provisioningService := app.NewProvisioningService(providers, numberRepo, accountRepo, appLogger)
	inboundRouter := app.NewInboundRouter(providers, numberRepo, messageRepo, natsClient, appLogger)
	statusReconciler := app.NewStatusReconciler(providers, messageRepo, natsClient, appLogger)

	validate := validator.New()
	router := httptransport.NewRouter(httptransport.RouterDeps{
		MessageHandler:      httptransport.NewMessageHandler(sendService, validate, appLogger),
		ProvisioningHandler: httptransport.NewProvisioningHandler(provisioningService, validate, appLogger),
		WebhookHandler:      httptransport.NewWebhookHandler(inboundRouter, statusReconciler, cfg.TwilioWebhookBaseURL, appLogger),
		AuthMiddleware:      middleware.Auth(cfg.JWTSecret, appLogger),
		HealthCheck:         dbPool.Ping,
	})

	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		appLogger.Info("API server listening", "port", cfg.ServerPort)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		appLogger.Info("metrics server listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("API server shutdown failed", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("metrics server shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("messaging service shut down gracefully")
}
