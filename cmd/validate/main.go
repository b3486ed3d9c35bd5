package main

import (
	"context"
	"os"

	"imagegen/internal/config"
	"imagegen/internal/core"
	logpkg "imagegen/internal/log"
	"imagegen/internal/probe"

	"github.com/joho/godotenv"
)

func main() {
	dotenvErr := godotenv.Load()

	logger := logpkg.CreateLogger()
	if dotenvErr != nil {
		logger.Warn("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadServerConfigFromEnv(logger)
	if err != nil {
		logger.Fatal("Configuration is invalid: %v", err)
	}

	for _, m := range cfg.Models {
		logger.Info("Model %s (%s): endpoint configured, size %s, daily quota %d", m.ID, m.DisplayName, m.OutputSize, m.DailyQuota)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*core.ProbeTimeout)
	defer cancel()

	prober := probe.NewProber(core.ProbeTimeout)
	failed := false
	for _, result := range prober.CheckAll(ctx, cfg) {
		report(logger, result)
		failed = failed || result.Failed()
	}

	if failed {
		logger.Error("Validation finished with errors")
		os.Exit(1)
	}
	logger.Info("Validation complete")
}

func report(logger core.Logger, r probe.Result) {
	switch r.Status {
	case probe.StatusOK:
		logger.Info("[%s] connected to %s, %d models available", r.Name, r.BaseURL, r.ModelCount)
	case probe.StatusSkipped:
		logger.Warn("[%s] skipped: %s", r.Name, r.Detail)
	case probe.StatusUnexpected:
		logger.Warn("[%s] unexpected status %d: %s", r.Name, r.StatusCode, r.Detail)
	default:
		logger.Error("[%s] %s: %s", r.Name, r.Status, r.Detail)
	}
	for _, w := range r.Warnings {
		logger.Warn("[%s] %s", r.Name, w)
	}
}
