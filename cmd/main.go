package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"tribehub/api"
	"tribehub/auth"
	"tribehub/cache"
	"tribehub/contract"
	"tribehub/internal"
	"tribehub/pubsub"
	"tribehub/repositories"
	"tribehub/runtime"
	"tribehub/runtime/workers"
	"tribehub/services"
	"tribehub/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes before
// the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Shared bus: NATS across instances, in-memory for a single node.
	var bus contract.IBus
	if config.NatsURL != "" {
		natsBus, err := pubsub.NewNatsBus(config.NatsURL, log)
		if err != nil {
			return fmt.Errorf("NATS connection failed: %w", err)
		}
		defer natsBus.Close()
		bus = natsBus
	} else {
		log.Info("No NATS_URL configured, running with the in-memory bus")
		bus = pubsub.NewMemoryBus()
	}

	// 4. Repositories & core components
	kv := repositories.NewKV(db, log)
	queue := repositories.NewQueueRepository(db, log)
	records := repositories.NewNotificationRepository(db, log)

	registry := runtime.NewRegistry()
	verifier := auth.NewVerifier(config.JWTSecret)
	admission := auth.NewAdmission(verifier, log)
	router := runtime.NewRouter(log, registry, bus, kv, admission)
	notifications := services.NewNotificationService(log, records, queue, kv, registry)

	// 5. Supervised workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewBusFanoutWorker(log, bus, runtime.SubjectBroadcast, router))
	sup.Add(workers.NewHealthMonitoringWorker(log, registry, config.MetricInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sup.Run(ctx)

	// 6. HTTP surface: websocket endpoint plus cached read routes.
	responseCache := cache.New(kv, log)
	handlers := api.NewHandlers(log, kv, notifications)

	muxRouter := mux.NewRouter()
	muxRouter.Handle("/ws", ws.NewServer(log, router, admission, config.ConnectionBufferSize))
	api.Routes(muxRouter, responseCache, handlers, verifier)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: muxRouter}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "node_id", router.NodeID(), "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
