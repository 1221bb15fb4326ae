package main

import (
	"flag"
	"log"
	"os"

	"PulseScan/internal/di"
	"PulseScan/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	once := flag.Bool("once", false, "run a single scan cycle and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s backend=%s dry_run=%t", cfg.Environment, cfg.Backend.Type, cfg.Alerts.DryRun)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run blocks until SIGINT/SIGTERM, or one cycle with -once
	if err := app.Run(*once); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
