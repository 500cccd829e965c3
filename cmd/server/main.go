package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/m3rciful/pricewatch/core/bootstrap"
	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/server.yaml"
	}
	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.LoggingConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := server.NewApp(ctx, cfg, infra.DB)
	if err != nil {
		log.Fatalf("server init: %v", err)
	}
	if err := app.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
