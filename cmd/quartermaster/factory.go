package main

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/internal/config"
	"github.com/ShayCichocki/quartermaster/internal/confirm"
	"github.com/ShayCichocki/quartermaster/internal/dispatch"
	"github.com/ShayCichocki/quartermaster/internal/llm"
	"github.com/ShayCichocki/quartermaster/internal/orchestrator"
	"github.com/ShayCichocki/quartermaster/internal/services"
	"github.com/ShayCichocki/quartermaster/internal/state"
)

// loadConfig resolves the effective configuration for this invocation.
func loadConfig() (*config.Config, error) {
	if flagConfigPath != "" {
		return config.LoadFromPath(flagConfigPath)
	}
	return config.Load()
}

// buildOrchestrator assembles a fully wired orchestrator from configuration.
// The returned cleanup function closes the store, history, and orchestrator.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, func(), error) {
	apiKey, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or run: quartermaster config anthropic.api_key <key>", err)
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Planner.Model),
		APIKey:        apiKey,
		MaxTokens:     int64(cfg.Planner.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.Region,
	})
	if err != nil {
		return nil, nil, err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := services.OpenStore(cfg.Data.PantryPath)
	if err != nil {
		return nil, nil, err
	}

	router := dispatch.NewRouter(cat)
	if err := services.RegisterAll(router, store); err != nil {
		store.Close()
		return nil, nil, err
	}

	db, err := state.Open(cfg.Data.HistoryPath)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		store.Close()
		db.Close()
		return nil, nil, err
	}

	logger, err := orchestrator.NewDebugLogger(cfg.Debug.LogPath)
	if err != nil {
		logger = orchestrator.NopLogger()
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Completer: client,
		Catalog:   cat,
		Router:    router,
		History:   db,
		Confirm: confirm.Config{
			Timeout:         cfg.Confirmation.Timeout,
			TimeoutStrategy: cfg.Confirmation.TimeoutStrategy(),
		},
		EventBuffer: cfg.Events.BufferSize,
		Logger:      logger,
	})
	if err != nil {
		store.Close()
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		orch.Close()
		store.Close()
		db.Close()
	}
	return orch, cleanup, nil
}

// loadCatalog uses the catalog file when present, falling back to the
// built-in callable set.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Data.CatalogPath != "" {
		if _, err := os.Stat(cfg.Data.CatalogPath); err == nil {
			return catalog.LoadFile(cfg.Data.CatalogPath)
		}
	}
	return catalog.New(services.CatalogEntries()...)
}
