// Damtwin - encrypted risk-assessment core for dam digital twins
package main

import (
	"context"
	"os"

	"github.com/hydroward/damtwin/internal/config"
	"github.com/hydroward/damtwin/internal/logging"
	"github.com/hydroward/damtwin/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting damtwin",
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
		"coprocessor_signer", cfg.CoprocessorSigner,
		"operators", len(cfg.OperatorAddresses),
	)

	srv, err := server.New(cfg, server.WithLogger(logging.New(cfg.LogLevel, cfg.LogFormat)))
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
