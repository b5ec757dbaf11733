package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/tessera-ai/tessera/internal/config"
	"github.com/tessera-ai/tessera/internal/reasoning"
	"github.com/tessera-ai/tessera/internal/registry"
	"github.com/tessera-ai/tessera/internal/validation"
	"github.com/tessera-ai/tessera/internal/workflow"
	"github.com/tessera-ai/tessera/pkg/database"
	"github.com/tessera-ai/tessera/pkg/lifecycle"
	"github.com/tessera-ai/tessera/pkg/storage"
)

// app holds the wired subsystems for a single process.
type app struct {
	lc     *lifecycle.Coordinator
	system *workflow.System
}

// build wires the orchestration stack from configuration: model registry and
// entitlement gate, backend pool, coordinator, validator, checkpoint store,
// and optional bundle archive. Postgres and Azure storage attach only when
// configured; otherwise checkpoints stay in memory and archival is skipped.
func build(cfg *config.Config, logger *slog.Logger) (*app, error) {
	lc := lifecycle.New()

	catalog, err := registry.NewStatic(cfg.Registry())
	if err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}
	gate := registry.NewGate(catalog)

	factory := reasoning.NewBackendFactory(
		cfg.Backend.Local.ProviderConfig(),
		cfg.Backend.Cloud.ProviderConfig(),
	)
	pool := reasoning.NewPool(factory)
	coordinator := reasoning.NewCoordinator(gate, pool, cfg.Backend.CallTimeoutDuration(), logger)

	validator := validation.New(cfg.Extraction.Threshold(), cfg.Extraction.Attempts(), logger)
	runtime := workflow.NewRuntime(coordinator, validator, logger)

	var store workflow.Store = workflow.NewMemoryStore()
	if cfg.Database.Configured() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := db.Start(lc); err != nil {
			return nil, fmt.Errorf("database start: %w", err)
		}
		store = workflow.NewPostgresStore(db.Connection())
	}

	var archive storage.System
	if cfg.Storage.Configured() {
		archive, err = storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := archive.Start(lc); err != nil {
			return nil, fmt.Errorf("storage start: %w", err)
		}
	}

	executor := workflow.NewExecutor(store, runtime, logger)
	system := workflow.NewSystem(executor, store, archive, logger)

	return &app{lc: lc, system: system}, nil
}

func loadSpec(path string) (workflow.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.Spec{}, fmt.Errorf("read workflow spec: %w", err)
	}

	var spec workflow.Spec
	if err := toml.Unmarshal(data, &spec); err != nil {
		return workflow.Spec{}, fmt.Errorf("parse workflow spec: %w", err)
	}
	return spec, nil
}
