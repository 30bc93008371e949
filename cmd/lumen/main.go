// Package main is the entry point for the Lumen scene viewer.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/app"
	"github.com/Faultbox/lumen/internal/config"
	"github.com/Faultbox/lumen/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Lumen ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	a, err := app.New(cfg)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		logger.Error("render loop stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	}

	if err := a.Close(); err != nil {
		logger.Warn("shutdown finished with errors", zap.Error(err))
	}
	logger.Info("closed normally")
}
