package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neuroflux/backend/internal/api"
	"github.com/neuroflux/backend/internal/config"
	"github.com/neuroflux/backend/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("[main] Starting NeuroFlux OS backend (env=%s)", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the storage backend: durable mode when the database is reachable,
	// cache mode otherwise.
	s, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("[main] Failed to open storage: %v", err)
	}
	defer s.Close()

	// Create router
	router := api.NewRouter(cfg, s)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("[main] Server listening on port %s (storage=%s)", cfg.Port, s.Mode())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[main] Shutting down server...")

	// Give outstanding requests time to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] Server forced to shutdown: %v", err)
	}

	log.Println("[main] Server stopped")
}
