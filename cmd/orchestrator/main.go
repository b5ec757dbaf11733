package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tessera-ai/tessera/internal/config"
	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/registry"
	"github.com/tessera-ai/tessera/internal/workflow"
)

func main() {
	var (
		docPath  = flag.String("doc", "", "Path to a parsed document JSON file")
		specPath = flag.String("workflow", "", "Path to a workflow spec TOML file (default: standard extraction workflow)")
		tierName = flag.String("tier", string(registry.TierStandard), "Caller entitlement tier: lite, standard, or professional")
		modelID  = flag.String("model", "", "Model for reasoning stages (default: configured default model)")
	)
	flag.Parse()

	if *docPath == "" {
		fmt.Fprintln(os.Stderr, "usage: orchestrator -doc <document.json> [-workflow <spec.toml>] [-tier <tier>] [-model <id>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logger.Info(
		"tessera starting",
		"version", cfg.Version,
		"env", cfg.Env(),
		"default_model", cfg.Orchestrator.DefaultModel,
	)

	doc, err := loadDocument(*docPath)
	if err != nil {
		log.Fatal("document load failed:", err)
	}

	model := *modelID
	if model == "" {
		model = cfg.Orchestrator.DefaultModel
	}

	spec := workflow.DefaultSpec(model)
	if *specPath != "" {
		spec, err = loadSpec(*specPath)
		if err != nil {
			log.Fatal("workflow spec load failed:", err)
		}
	}
	spec.Policy = cfg.Orchestrator.Policy()

	app, err := build(cfg, logger)
	if err != nil {
		log.Fatal("startup failed:", err)
	}
	app.lc.WaitForStartup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := app.system.StartWorkflow(ctx, spec, doc, registry.Tier(*tierName))
	if err != nil {
		log.Fatal("workflow rejected:", err)
	}

	bundle, err := app.system.Wait(ctx, id)
	if err != nil {
		logger.Error("workflow did not complete", "workflow", id, "error", err)
	}
	if bundle != nil {
		out, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			log.Fatal("bundle encoding failed:", err)
		}
		fmt.Println(string(out))
	}

	if err := app.lc.Shutdown(cfg.Orchestrator.ShutdownTimeoutDuration()); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("tessera stopped")

	if err != nil || (bundle != nil && !bundle.Passed()) {
		os.Exit(1)
	}
}

func loadDocument(path string) (extraction.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extraction.Document{}, fmt.Errorf("read document: %w", err)
	}

	var doc extraction.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return extraction.Document{}, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}
