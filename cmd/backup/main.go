// cmd/backup/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/semmidev/sqlscribe/internal/app"
	"github.com/semmidev/sqlscribe/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	gdriveAuth := flag.String("gdrive-auth", "", "run the Google Drive OAuth helper with this client secret file instead of the scheduler")
	gdriveAuthAddr := flag.String("gdrive-auth-addr", ":8087", "listen address for the OAuth helper")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *gdriveAuth != "" {
		return app.RunGDriveAuth(ctx, cfg.App, *gdriveAuth, *gdriveAuthAddr)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return application.Run(ctx)
}
