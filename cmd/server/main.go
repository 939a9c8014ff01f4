package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/saha-club/bookingservice/internal/app"
	"github.com/saha-club/bookingservice/internal/config"
	applog "github.com/saha-club/bookingservice/internal/log"
	"github.com/saha-club/bookingservice/internal/tracing"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(*configPath); statErr == nil {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if tracing.IsEnabled() {
		tracingCfg := tracing.DefaultConfig()
		tracingCfg.ServiceName = cfg.AppName
		shutdown, err := tracing.Init(tracingCfg, applog.L(context.Background()))
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer shutdown()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Printf("Application error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
