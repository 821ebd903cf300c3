// Package main provides the entrypoint for the notification worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/database"
	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/dispatch"
	"github.com/pushgate/pushgate/internal/provider/resilience"
	"github.com/pushgate/pushgate/internal/push/fcm"
	"github.com/pushgate/pushgate/internal/push/googleoauth"
	"github.com/pushgate/pushgate/internal/subscriber"
	"github.com/pushgate/pushgate/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pushgate-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting notification worker")

	// Worker also exposes a health endpoint for the container platform
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	// Load the service account credential and build the dispatch pipeline
	credPath := os.Getenv("FCM_CREDENTIALS_FILE")
	if credPath == "" {
		credPath = "service-account.json"
	}
	cred, err := googleoauth.LoadCredential(credPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load service credential")
	}
	signer, err := googleoauth.NewAssertionSigner(cred)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build assertion signer")
	}

	exchanger := googleoauth.NewTokenExchanger(googleoauth.ExchangerConfig{
		HTTPClient: resilience.NewClient(resilience.SingleAttemptClientConfig("google-oauth")),
		Logger:     log,
	})
	fcmClient := fcm.NewClient(fcm.ClientConfig{
		HTTPClient: resilience.NewClient(resilience.SingleAttemptClientConfig(fcm.ProviderName)),
		Logger:     log,
	})

	deviceService := device.NewService(device.ServiceConfig{
		Repository:  device.NewPostgresRepository(pool),
		Subscribers: subscriber.NewPostgresRepository(pool),
		Logger:      log,
	})

	dispatchMetrics, err := dispatch.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dispatch metrics")
	}
	dispatchService := dispatch.NewService(dispatch.ServiceConfig{
		Signer:    signer,
		Exchanger: exchanger,
		Sender:    fcmClient,
		Devices:   deviceService,
		ProjectID: cred.ProjectID,
		Metrics:   dispatchMetrics,
		Logger:    log,
	})

	workerConfig := worker.ConfigFromEnv()
	if workerConfig.ProjectID == "" {
		workerConfig.ProjectID = cred.ProjectID
	}

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		Config:     workerConfig,
		Dispatcher: dispatchService,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer handler.Close()

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Start consuming jobs. Receive errors are reported back to the main
	// goroutine so the deferred cleanup still runs on the way out.
	receiveErr := make(chan error, 1)
	go func() {
		if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
			receiveErr <- err
		}
	}()

	// Wait for interrupt signal or a receive failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down worker")
	case err := <-receiveErr:
		log.Error().Err(err).Msg("pubsub receive failed, shutting down worker")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
