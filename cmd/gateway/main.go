package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/app"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.NewGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init gateway: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("gateway stopped: %v", err)
		os.Exit(1)
	}
}
