// Package main is the entry point for the excuse generator server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (env vars and an optional .env file)
// 2. Create dependencies (logger, account store, text generator)
// 3. Start the server
//
// All actual logic lives in the internal/ packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/excuse-me/internal/config"
	"github.com/sakif/excuse-me/internal/generator"
	"github.com/sakif/excuse-me/internal/generator/openai"
	"github.com/sakif/excuse-me/internal/server"
	"github.com/sakif/excuse-me/internal/store"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet.
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	// === 3. OPEN THE ACCOUNT STORE ===
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Open(ctx, cfg.DB)
	cancel()
	if err != nil {
		logger.Error("failed to open account store",
			slog.String("driver", cfg.DB.Driver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. TEXT GENERATOR ===
	// Optional: without an API key the server starts, and generation
	// requests fail with GenerationError.
	var gen generator.Generator = generator.Unavailable{}
	if cfg.Generation.APIKey != "" {
		oc := openai.DefaultConfig()
		oc.APIKey = cfg.Generation.APIKey
		oc.BaseURL = cfg.Generation.BaseURL
		oc.Timeout = cfg.Generation.Timeout
		if cfg.Generation.Model != "" {
			oc.Model = cfg.Generation.Model
		}

		g, err := openai.New(oc, logger)
		if err != nil {
			logger.Error("failed to create generator", slog.String("error", err.Error()))
			db.Close()
			os.Exit(1)
		}
		gen = g
		logger.Info("text generation enabled", slog.String("model", oc.Model))
	} else {
		logger.Warn("OPENAI_API_KEY not set, excuse generation is unavailable")
	}

	if !cfg.Auth.GitHubEnabled() {
		logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET not set)")
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger, db, gen)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		db.Close()
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
