package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wendleyw/boardsync/internal/api/rest"
	"github.com/wendleyw/boardsync/internal/board"
	"github.com/wendleyw/boardsync/internal/cache"
	"github.com/wendleyw/boardsync/internal/config"
	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/internal/sync"
	"github.com/wendleyw/boardsync/internal/ticket"
	"github.com/wendleyw/boardsync/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	var logger *zap.Logger
	if cfg.Server.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	// Open database and migrate schema
	db, err := store.Open(store.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	tickets := store.NewTicketRepository(db)
	mappings := store.NewTaskMappingRepository(db)
	logs := store.NewCommunicationLogRepository(db)
	events := store.NewWebhookEventRepository(db)

	// Create platform clients
	boardClient := board.NewClient(board.Config{
		ClientID:     cfg.Board.ClientID,
		ClientSecret: cfg.Board.ClientSecret,
		AccessToken:  cfg.Board.AccessToken,
		BaseURL:      cfg.Board.BaseURL,
	}, logger)

	trackerClient, err := tracker.NewClient(tracker.Config{
		BaseURL:    cfg.Tracker.BaseURL,
		Username:   cfg.Tracker.Username,
		APIToken:   cfg.Tracker.APIToken,
		ProjectKey: cfg.Tracker.ProjectKey,
		DoneStatus: cfg.Tracker.DoneStatus,
		OpenStatus: cfg.Tracker.OpenStatus,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create tracker client", zap.Error(err))
	}

	// Create webhook delivery dedup store
	dedup, err := cache.NewDeliveryStore(cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Sync.DedupTTL, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer dedup.Close()

	// Create sync engine and ticket service
	engine := sync.NewEngine(mappings, tickets, logs, boardClient, trackerClient, logger).
		WithStaleThreshold(cfg.Sync.StaleThreshold)
	ticketService := ticket.NewService(tickets, mappings, logs, boardClient, trackerClient, engine, logger)

	// Create API handlers
	webhookHandler := rest.NewWebhookHandler(engine, mappings, events, dedup, logger)
	projectHandler := rest.NewProjectHandler(ticketService, engine, mappings, logger)

	// Setup REST API
	router := chi.NewRouter()
	router.Route("/api/webhooks", func(r chi.Router) {
		webhookHandler.RegisterRoutes(r)
	})
	router.Route("/api/projects", func(r chi.Router) {
		r.Use(rest.Authenticator(cfg.Auth.JWTSecret, cfg.Auth.Enabled))
		projectHandler.RegisterRoutes(r)
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("starting REST API server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start REST server", zap.Error(err))
		}
	}()

	// Start webhook event retention sweeper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := store.NewEventSweeper(events, cfg.Sync.EventRetention, cfg.Sync.SweepInterval, logger)
	go sweeper.Start(ctx)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	server.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
