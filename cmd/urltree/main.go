package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"urltree/internal/config"
	"urltree/internal/logging"
	"urltree/internal/server"
)

// Build information (set by linker flags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	cfg := config.Load()

	if showVersion {
		fmt.Println()
		fmt.Println("🌳 urltree - URL list to directory tree service")
		fmt.Printf("📦 Version: %s\n", version)
		if commit != "unknown" {
			fmt.Printf("🔗 Commit: %s\n", commit)
		}
		if date != "unknown" {
			fmt.Printf("📅 Built: %s\n", date)
		}
		fmt.Println()
		os.Exit(0)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logger := logging.L()
	logger.Info("starting urltree", zap.String("version", version), zap.String("commit", commit))

	srv, err := server.New(cfg)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	if err := srv.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
