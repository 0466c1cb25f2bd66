// RenderIQ sybil service - signup duplicate-account risk scoring
package main

import (
	"context"
	"os"

	"github.com/0xMilord/renderiq-sub004/internal/config"
	"github.com/0xMilord/renderiq-sub004/internal/logging"
	"github.com/0xMilord/renderiq-sub004/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting sybil service",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"max_accounts_per_ip", cfg.MaxAccountsPerIP,
		"trusted_prefixes", len(cfg.TrustedIPPrefixes),
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
