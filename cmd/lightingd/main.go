package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"

	"smart-lighting-backend/config"
	"smart-lighting-backend/internal/api"
	"smart-lighting-backend/internal/camera"
	"smart-lighting-backend/internal/db"
	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/metrics"
	"smart-lighting-backend/internal/monitor"
	"smart-lighting-backend/internal/notification"
	"smart-lighting-backend/internal/store"
	"smart-lighting-backend/internal/ws"
)

func main() {
	logger := log.New(os.Stdout, "lighting-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(cfg)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Detection backend: a stub by default, a real model service when
	// configured.
	var detector detect.Client
	switch cfg.Detection.Backend {
	case "http":
		if cfg.Detection.BackendURL == "" {
			logger.Fatalf("detection.backend_url must be set when detection.backend is http")
		}
		detector = detect.NewHTTPClient(cfg.Detection.BackendURL)
		logger.Printf("using HTTP detection backend at %s", cfg.Detection.BackendURL)
	default:
		detector = detect.NewStubClient(0, 300*time.Millisecond)
		logger.Println("using stub detection backend")
	}

	cameras := camera.NewManager(camera.NewSimulatedOpener().Open)

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		logger.Fatalf("failed to register metrics: %v", err)
	}

	// Push notifications are optional; without VAPID keys the aggregator
	// simply has no notifier.
	var notifier monitor.Notifier
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatalf("VAPID keys must be configured when push is enabled")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workerPool.Start(ctx)
		notifier = workerPool
		logger.Println("push notification workers started")
	}

	reconciler := monitor.NewReconciler(appStore)
	aggregator := monitor.NewAggregator(appStore, cameras, detector, reconciler, m, notifier,
		cfg.Detection.LiveTimeout, cfg.Detection.StopGrace)

	hub := ws.NewHub()
	unsubscribe := hub.Attach(appStore)
	defer unsubscribe()

	if err := aggregator.Bootstrap(ctx); err != nil {
		logger.Printf("Warning: failed to bootstrap monitoring loops: %v", err)
	}

	handler := api.NewHandler(appStore, aggregator, reconciler, detector,
		cfg.Detection.UploadTimeout, webpushOptions, hub)
	router := api.NewRouter(handler, &cfg.Server, reg)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	aggregator.MasterStop()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
