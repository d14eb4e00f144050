package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutroom/floor-service/internal/config"
	"github.com/cutroom/floor-service/internal/db"
	"github.com/cutroom/floor-service/internal/router"
	"github.com/cutroom/floor-service/internal/websockets"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run database migrations
	if err := database.Migrate(cfg.Database); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize WebSocket hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websockets.NewHub()
	go hub.Run(hubCtx)

	// Initialize router
	r := router.New(database, hub, cfg)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := r.Auth().EnsureAdmin(seedCtx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Printf("Skipping admin seed: %v", err)
	}
	cancelSeed()

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s (database: %s)", cfg.Server.Address, database.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	stopHub()

	log.Println("Server exited properly")
}
