package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/guest-reconciler/internal/app"
	"github.com/ignite/guest-reconciler/internal/config"
)

func main() {
	log.Println("Starting Guest Reconciler Feed Worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	poller := a.NewPoller()
	if poller == nil {
		log.Fatal("No mail source configured (mail.source must be gmail or s3)")
	}
	poller.Start()
	log.Printf("Feed poller started (interval: %s, lock ttl: %s)", cfg.Feed.Interval(), cfg.Feed.LockTTL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down worker...")
	poller.Stop()
	log.Println("Worker stopped")
}
