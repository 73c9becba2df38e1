package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/guest-reconciler/internal/api"
	"github.com/ignite/guest-reconciler/internal/app"
	"github.com/ignite/guest-reconciler/internal/config"
	"github.com/ignite/guest-reconciler/internal/worker"
)

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Guest Reconciler API (cmd/server/main.go)                 ║")
	log.Println("║  CSV import, Opera feed sync and vendor merge              ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	var poller *worker.FeedPoller
	if cfg.Feed.PollEnabled {
		poller = a.NewPoller()
		if poller != nil {
			poller.Start()
			log.Printf("Feed poller started in-process (every %s)", cfg.Feed.Interval())
		} else {
			log.Println("Feed polling enabled but no mail source configured - poller not started")
		}
	} else {
		log.Println("In-process feed polling disabled (run cmd/worker or POST /api/feed/sync)")
	}

	server := api.NewServer(cfg.Server, a.Handlers(poller))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized - server is ready")

	<-done
	log.Println("Shutting down...")

	if poller != nil {
		poller.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
